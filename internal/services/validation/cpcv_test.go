package validation

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StratGate/internal/domain/models"
	"StratGate/internal/services/backtest"
	"StratGate/internal/services/indicator"
	"StratGate/pkg/config"
)

type flatExtractor struct{ warmup int }

func (e flatExtractor) Warmup() int { return e.warmup }

func (e flatExtractor) Compute(series models.Series) ([]models.FeatureVector, error) {
	rows := make([]models.FeatureVector, len(series))
	for i := range rows {
		rows[i] = models.FeatureVector{"idx": float64(i)}
	}
	return rows, nil
}

type holdPredictor struct {
	failBelow int // indices below this fail; 0 disables
}

func (p *holdPredictor) Predict(_ string, index int, _ models.FeatureVector) (models.Prediction, error) {
	if p.failBelow > 0 && index < p.failBelow {
		return models.Prediction{}, fmt.Errorf("model unavailable")
	}
	return models.Prediction{Action: models.ActionHold}, nil
}

func passthrough(_ int, _ models.FeatureVector, pred models.Prediction) models.Decision {
	return models.Decision{Action: pred.Action, Confidence: pred.Confidence, PredictedMovePct: pred.PredictedMovePct}
}

func flatSeries(n int) models.Series {
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	s := make(models.Series, n)
	for i := range s {
		s[i] = models.Bar{
			Time:   base.Add(time.Duration(i) * 24 * time.Hour),
			Open:   100, High: 100.5, Low: 99.5, Close: 100,
			Volume: 1000,
		}
	}
	return s
}

func testScoring() config.Scoring {
	return config.Scoring{
		AccuracyGapCap:    40,
		SharpeGapCap:      40,
		TrendPenalty:      20,
		TrendBonus:        10,
		SlopeThreshold:    0.001,
		LeakagePenalty:    20,
		LeakageGapBelow:   -0.05,
		StableCV:          0.15,
		StableAccuracy:    0.70,
		SafeBelow:         30,
		RejectAbove:       70,
		DegradationGrowth: 1.2,
	}
}

func testValidation() config.Validation {
	return config.Validation{
		InitialCapital: 10000,
		NSplits:        5,
		EmbargoPct:     0.01,
		TestSizePct:    0.2,
		MinTrainPct:    0.3,
		TrainWindow:    500,
		TestWindow:     100,
		Step:           100,
		MinConfidence:  0.7,
		MinMovementPct: 1.0,
		MaxNotionalPct: 0.95,
		Scoring:        testScoring(),
	}
}

func testSimulator(cfg config.Validation) *backtest.Simulator {
	return backtest.NewSimulator(backtest.ExecutionFromValidation(cfg), nil)
}

func buildCache(t *testing.T, series models.Series) *indicator.Cache {
	t.Helper()
	cache, err := indicator.Build(series, flatExtractor{warmup: 5})
	require.NoError(t, err)
	return cache
}

// 1000 daily bars with 5 splits and 1% embargo must produce exactly 5
// folds, each with a 10-bar embargo.
func TestGenerateFoldsStandardLayout(t *testing.T) {
	cfg := testValidation()
	cv := NewCrossValidator(cfg, testSimulator(cfg), nil, nil)

	folds, err := cv.GenerateFolds(1000)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	for i, f := range folds {
		assert.Equal(t, i, f.ID)
		assert.Equal(t, 10, f.Embargo)
		assert.Equal(t, 200, f.TestLen())
	}
	assert.Equal(t, 0, folds[0].TestStart)
	assert.Equal(t, 800, folds[4].TestStart)
}

// No-leakage invariant: every fold's train/test index distance is at
// least the embargo.
func TestGenerateFoldsNoLeakage(t *testing.T) {
	cfg := testValidation()
	for _, n := range []int{97, 250, 1000, 5003} {
		cv := NewCrossValidator(cfg, testSimulator(cfg), nil, nil)
		folds, err := cv.GenerateFolds(n)
		require.NoError(t, err, "n=%d", n)
		for _, f := range folds {
			assert.GreaterOrEqual(t, f.Gap(), f.Embargo, "n=%d fold=%d", n, f.ID)
			assert.Greater(t, f.TrainLen(), 0)
			assert.Greater(t, f.TestLen(), 0)
		}
	}
}

func TestGenerateFoldsInvalidConfig(t *testing.T) {
	cfg := testValidation()
	cfg.NSplits = 1
	cv := NewCrossValidator(cfg, testSimulator(cfg), nil, nil)
	_, err := cv.GenerateFolds(1000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFoldConfig))

	cfg = testValidation()
	cfg.NSplits = 10 // test group fraction 0.1 is fine, but 10 groups of 1000 ok; shrink n instead
	cv = NewCrossValidator(cfg, testSimulator(cfg), nil, nil)
	_, err = cv.GenerateFolds(12)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFoldConfig))

	cfg = testValidation()
	cfg.TestSizePct = 0.1 // 5 splits -> 0.2 fraction exceeds it
	cv = NewCrossValidator(cfg, testSimulator(cfg), nil, nil)
	_, err = cv.GenerateFolds(1000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFoldConfig))
}

func TestValidateAggregatesAllFolds(t *testing.T) {
	cfg := testValidation()
	series := flatSeries(1000)
	cache := buildCache(t, series)

	cv := NewCrossValidator(cfg, testSimulator(cfg), nil, nil)
	agg, err := cv.Validate("TEST", series, cache, &holdPredictor{}, passthrough)
	require.NoError(t, err)

	assert.Len(t, agg.PerFold, 5)
	assert.Equal(t, 0, agg.ExcludedFolds)
	assert.Empty(t, agg.Exclusions)
	assert.False(t, agg.Stable) // zero signals means zero accuracy
}

// A failing fold is excluded with a reason; the rest still aggregate.
func TestValidateExcludesFailedFolds(t *testing.T) {
	cfg := testValidation()
	series := flatSeries(1000)
	cache := buildCache(t, series)

	// The predictor fails on every index inside the first test group.
	cv := NewCrossValidator(cfg, testSimulator(cfg), nil, nil)
	agg, err := cv.Validate("TEST", series, cache, &holdPredictor{failBelow: 200}, passthrough)
	require.NoError(t, err)

	assert.Equal(t, 1, agg.ExcludedFolds)
	require.Len(t, agg.Exclusions, 1)
	assert.Equal(t, 0, agg.Exclusions[0].FoldID)
	assert.Len(t, agg.PerFold, 4)
}

// Zero usable folds is the only condition that surfaces a top-level error.
func TestValidateTotalFailure(t *testing.T) {
	cfg := testValidation()
	series := flatSeries(1000)
	cache := buildCache(t, series)

	cv := NewCrossValidator(cfg, testSimulator(cfg), nil, nil)
	_, err := cv.Validate("TEST", series, cache, &holdPredictor{failBelow: 1000}, passthrough)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 5 folds failed")
}

func TestMeanMetrics(t *testing.T) {
	folds := []models.PerformanceMetrics{
		{Accuracy: 0.8, SharpeRatio: 2.0, TotalTrades: 10},
		{Accuracy: 0.6, SharpeRatio: 1.0, TotalTrades: 6},
	}
	m := meanMetrics(folds)
	assert.InDelta(t, 0.7, m.Accuracy, 1e-12)
	assert.InDelta(t, 1.5, m.SharpeRatio, 1e-12)
	assert.Equal(t, 16, m.TotalTrades)
}
