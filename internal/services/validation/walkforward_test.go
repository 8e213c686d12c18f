package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StratGate/internal/domain/models"
)

func TestWalkForwardFoldLayout(t *testing.T) {
	cfg := testValidation()
	wf := NewWalkForward(cfg, testSimulator(cfg), nil, nil)

	folds, err := wf.GenerateFolds(1000)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	for i, f := range folds {
		assert.Equal(t, i*cfg.Step, f.TrainStart)
		assert.Equal(t, cfg.TrainWindow, f.TrainLen())
		assert.Equal(t, cfg.TestWindow, f.TestLen())
		assert.Equal(t, f.TrainEnd, f.TestStart)
	}

	// Time ordering: each fold tests strictly later data.
	for i := 1; i < len(folds); i++ {
		assert.GreaterOrEqual(t, folds[i].TestStart, folds[i-1].TestEnd)
	}
}

func TestWalkForwardRejectsOverlappingSteps(t *testing.T) {
	cfg := testValidation()
	cfg.Step = 50 // below test window
	wf := NewWalkForward(cfg, testSimulator(cfg), nil, nil)

	_, err := wf.GenerateFolds(1000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFoldConfig))
}

func TestWalkForwardRejectsShortSeries(t *testing.T) {
	cfg := testValidation()
	wf := NewWalkForward(cfg, testSimulator(cfg), nil, nil)

	_, err := wf.GenerateFolds(cfg.TrainWindow + cfg.TestWindow - 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFoldConfig))
}

func TestWalkForwardEvaluate(t *testing.T) {
	cfg := testValidation()
	series := flatSeries(1000)
	cache := buildCache(t, series)

	wf := NewWalkForward(cfg, testSimulator(cfg), nil, nil)
	res, err := wf.Evaluate("TEST", series, cache, &holdPredictor{}, passthrough)
	require.NoError(t, err)

	assert.Len(t, res.PerFold, 5)
	assert.Len(t, res.InSample, 5)
	assert.Equal(t, 0, res.ExcludedFolds)
	assert.Equal(t, 0.0, res.Efficiency) // no trades anywhere
}

func TestWalkForwardExcludesFailedFold(t *testing.T) {
	cfg := testValidation()
	series := flatSeries(1000)
	cache := buildCache(t, series)

	// First fold's training range starts at bar 5; failing below bar 100
	// kills fold 0 only.
	wf := NewWalkForward(cfg, testSimulator(cfg), nil, nil)
	res, err := wf.Evaluate("TEST", series, cache, &holdPredictor{failBelow: 100}, passthrough)
	require.NoError(t, err)

	assert.Equal(t, 1, res.ExcludedFolds)
	require.Len(t, res.Exclusions, 1)
	assert.Equal(t, 0, res.Exclusions[0].FoldID)
	assert.Len(t, res.PerFold, 4)
	assert.Len(t, res.InSample, 4)
}

func TestEfficiency(t *testing.T) {
	is := []models.PerformanceMetrics{{SharpeRatio: 2.0}, {SharpeRatio: 2.0}}
	oos := []models.PerformanceMetrics{{SharpeRatio: 1.5}, {SharpeRatio: 0.9}}
	assert.InDelta(t, 0.6, efficiency(is, oos), 1e-12)
	assert.Equal(t, 0.0, efficiency([]models.PerformanceMetrics{{}}, oos[:1]))
}
