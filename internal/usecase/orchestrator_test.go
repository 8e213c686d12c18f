package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StratGate/internal/domain/models"
	"StratGate/internal/domain/repository"
	"StratGate/pkg/config"
)

type fakeProvider struct {
	series map[string]models.Series
	errs   map[string]error
}

func (p *fakeProvider) Fetch(_ context.Context, symbol string, _, _ time.Time, _ repository.Timeframe) (models.Series, error) {
	if err, ok := p.errs[symbol]; ok {
		return nil, err
	}
	s, ok := p.series[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return s, nil
}

type flatExtractor struct{}

func (flatExtractor) Warmup() int { return 5 }

func (flatExtractor) Compute(series models.Series) ([]models.FeatureVector, error) {
	rows := make([]models.FeatureVector, len(series))
	for i := range rows {
		rows[i] = models.FeatureVector{"idx": float64(i)}
	}
	return rows, nil
}

type holdPredictor struct{}

func (holdPredictor) Predict(string, int, models.FeatureVector) (models.Prediction, error) {
	return models.Prediction{Action: models.ActionHold}, nil
}

func passthrough(_ int, _ models.FeatureVector, pred models.Prediction) models.Decision {
	return models.Decision{Action: pred.Action, Confidence: pred.Confidence, PredictedMovePct: pred.PredictedMovePct}
}

func trendingSeries(n int, drift float64) models.Series {
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	s := make(models.Series, n)
	price := 100.0
	for i := range s {
		price *= 1 + drift
		s[i] = models.Bar{
			Time:   base.Add(time.Duration(i) * 24 * time.Hour),
			Open:   price * 0.999,
			High:   price * 1.004,
			Low:    price * 0.996,
			Close:  price,
			Volume: 1000,
		}
	}
	return s
}

func testValidationConfig() config.Validation {
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
		Workers:        2,
		SymbolTimeout:  time.Minute,
		Scoring: config.Scoring{
			AccuracyGapCap: 40, SharpeGapCap: 40,
			TrendPenalty: 20, TrendBonus: 10,
			SlopeThreshold: 0.001,
			LeakagePenalty: 20, LeakageGapBelow: -0.05,
			StableCV: 0.15, StableAccuracy: 0.70,
			SafeBelow: 30, RejectAbove: 70,
			DegradationGrowth: 1.2,
		},
	}
}

func newTestOrchestrator(p repository.SeriesProvider) *Orchestrator {
	cfg := testValidationConfig()
	return NewOrchestrator(cfg, p, NewPipeline(cfg, nil, nil), nil, nil, nil, nil)
}

// One malformed series out of three must not take down the run: the other
// two produce results and the bad one lands in the failure list.
func TestRunIsolatesSymbolFailures(t *testing.T) {
	bad := trendingSeries(1000, 0.001)
	bad[10].Time = bad[9].Time // duplicate timestamp

	o := newTestOrchestrator(&fakeProvider{series: map[string]models.Series{
		"AAA": trendingSeries(1000, 0.001),
		"BAD": bad,
		"CCC": trendingSeries(1000, -0.0005),
	}})

	res, err := o.Run(context.Background(), []string{"AAA", "BAD", "CCC"}, time.Time{}, time.Time{}, repository.TF1d, flatExtractor{}, holdPredictor{}, passthrough)
	require.NoError(t, err)

	require.Len(t, res.Symbols, 2)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "BAD", res.Failures[0].Symbol)
	assert.False(t, res.Failures[0].TimedOut)
	assert.NotEmpty(t, res.RunID)

	assert.Equal(t, []string{"AAA", "CCC"}, res.CorrelationOrder)
	require.Len(t, res.Correlations, 2)
	assert.Equal(t, 1.0, res.Correlations[0][0])
	assert.InDelta(t, res.Correlations[0][1], res.Correlations[1][0], 1e-12)
}

func TestRunAllSymbolsFailed(t *testing.T) {
	o := newTestOrchestrator(&fakeProvider{errs: map[string]error{
		"AAA": fmt.Errorf("feed unavailable"),
		"BBB": fmt.Errorf("feed unavailable"),
	}})

	_, err := o.Run(context.Background(), []string{"AAA", "BBB"}, time.Time{}, time.Time{}, repository.TF1d, flatExtractor{}, holdPredictor{}, passthrough)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 symbols failed")
}

func TestRunNoSymbols(t *testing.T) {
	o := newTestOrchestrator(&fakeProvider{})
	_, err := o.Run(context.Background(), nil, time.Time{}, time.Time{}, repository.TF1d, flatExtractor{}, holdPredictor{}, passthrough)
	assert.Error(t, err)
}

func TestRunBestAndWorstSymbol(t *testing.T) {
	o := newTestOrchestrator(&fakeProvider{series: map[string]models.Series{
		"UP":   trendingSeries(1000, 0.001),
		"DOWN": trendingSeries(1000, -0.001),
	}})

	res, err := o.Run(context.Background(), []string{"UP", "DOWN"}, time.Time{}, time.Time{}, repository.TF1d, flatExtractor{}, holdPredictor{}, passthrough)
	require.NoError(t, err)
	require.Len(t, res.Symbols, 2)
	assert.NotEmpty(t, res.BestSymbol)
	assert.NotEmpty(t, res.WorstSymbol)
	// Hold-only strategies never trade, so nothing qualifies for the
	// recommended list.
	assert.Empty(t, res.RecommendedSymbols)
}

func TestCorrelationMatrix(t *testing.T) {
	a := []float64{0.01, -0.02, 0.03, 0.01}
	b := []float64{0.01, -0.02, 0.03, 0.01}
	c := []float64{-0.01, 0.02, -0.03, -0.01}

	m := correlationMatrix([][]float64{a, b, c})
	assert.InDelta(t, 1.0, m[0][1], 1e-9)
	assert.InDelta(t, -1.0, m[0][2], 1e-9)
	assert.Equal(t, 1.0, m[2][2])
}

func TestValidateSymbolRejectsMalformedSeries(t *testing.T) {
	cfg := testValidationConfig()
	p := NewPipeline(cfg, nil, nil)

	series := trendingSeries(1000, 0.001)
	series[3].High = series[3].Low - 1 // impossible bar

	_, err := p.ValidateSymbol(context.Background(), "TEST", series, flatExtractor{}, holdPredictor{}, passthrough)
	assert.Error(t, err)
}

func TestDefaultParamRangesAreWellFormed(t *testing.T) {
	for name, r := range DefaultParamRanges() {
		assert.Less(t, r.Min, r.Max, name)
	}
}
