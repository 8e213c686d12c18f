package backtest

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StratGate/internal/domain/models"
	"StratGate/internal/services/indicator"
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

type scriptedPredictor struct {
	preds map[int]models.Prediction
	err   error
}

func (p *scriptedPredictor) Predict(symbol string, index int, _ models.FeatureVector) (models.Prediction, error) {
	if p.err != nil {
		return models.Prediction{}, p.err
	}
	if pr, ok := p.preds[index]; ok {
		return pr, nil
	}
	return models.Prediction{Action: models.ActionHold}, nil
}

func passthrough(_ int, _ models.FeatureVector, pred models.Prediction) models.Decision {
	return models.Decision{Action: pred.Action, Confidence: pred.Confidence, PredictedMovePct: pred.PredictedMovePct}
}

func flatSeries(n int, close float64) models.Series {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := make(models.Series, n)
	for i := range s {
		s[i] = models.Bar{
			Time:   base.Add(time.Duration(i) * 24 * time.Hour),
			Open:   close,
			High:   close * 1.005,
			Low:    close * 0.995,
			Close:  close,
			Volume: 1000,
		}
	}
	return s
}

func testConfig() ExecutionConfig {
	return ExecutionConfig{
		InitialCapital:    10000,
		MinConfidence:     0.72,
		MinMovementPct:    5.0,
		StopLossATRMult:   2.0,
		TakeProfitATRMult: 3.0,
		MaxNotionalPct:    0.95,
		LabelHorizon:      5,
	}
}

func buildCache(t *testing.T, series models.Series, warmup int) *indicator.Cache {
	t.Helper()
	cache, err := indicator.Build(series, flatExtractor{warmup: warmup})
	require.NoError(t, err)
	return cache
}

// 33 candidate signals, only 10 clear both the confidence and movement
// thresholds; each accepted entry is stopped out on the following bar so
// every accepted signal becomes exactly one trade.
func TestGatesAdmitExactlyPassingSignals(t *testing.T) {
	series := flatSeries(120, 100)
	preds := map[int]models.Prediction{}

	accepted := 0
	for k := 0; k < 33; k++ {
		idx := 5 + 3*k
		conf, move := 0.60, 2.0
		if k%3 == 0 && accepted < 10 { // 11 candidates with k%3==0; cap at 10
			conf, move = 0.80, 6.0
			accepted++
			// Force a stop-loss on the bar after entry.
			series[idx+1].Low = 90
		}
		preds[idx] = models.Prediction{Action: models.ActionBuy, Confidence: conf, PredictedMovePct: move}
	}
	require.Equal(t, 10, accepted)

	cache := buildCache(t, series, 2)
	sim := NewSimulator(testConfig(), nil)
	res, err := sim.Run("TEST", series, cache, &scriptedPredictor{preds: preds}, passthrough, 0, len(series))
	require.NoError(t, err)

	require.Len(t, res.Ledger, 10)
	for _, tr := range res.Ledger {
		assert.Equal(t, models.ExitStopLoss, tr.ExitReason)
		assert.Equal(t, models.SideLong, tr.Side)
	}
	assert.Equal(t, 10, res.Metrics.TotalTrades)
}

func TestSinglePositionInvariant(t *testing.T) {
	series := flatSeries(80, 100)
	preds := map[int]models.Prediction{}
	for i := 3; i < 75; i++ {
		preds[i] = models.Prediction{Action: models.ActionBuy, Confidence: 0.9, PredictedMovePct: 8}
	}

	cache := buildCache(t, series, 2)
	sim := NewSimulator(testConfig(), nil)
	res, err := sim.Run("TEST", series, cache, &scriptedPredictor{preds: preds}, passthrough, 0, len(series))
	require.NoError(t, err)

	// Closed trades must never overlap in time.
	for i := 1; i < len(res.Ledger); i++ {
		assert.False(t, res.Ledger[i].EntryTime.Before(res.Ledger[i-1].ExitTime),
			"trade %d entered before trade %d exited", i, i-1)
	}
}

func TestSignalReversalClosesPosition(t *testing.T) {
	series := flatSeries(40, 100)
	preds := map[int]models.Prediction{
		5:  {Action: models.ActionBuy, Confidence: 0.9, PredictedMovePct: 8},
		10: {Action: models.ActionSell, Confidence: 0.9, PredictedMovePct: -8},
	}

	cache := buildCache(t, series, 2)
	sim := NewSimulator(testConfig(), nil)
	res, err := sim.Run("TEST", series, cache, &scriptedPredictor{preds: preds}, passthrough, 0, len(series))
	require.NoError(t, err)

	require.NotEmpty(t, res.Ledger)
	assert.Equal(t, models.ExitSignalReversal, res.Ledger[0].ExitReason)
	assert.Equal(t, series[10].Time, res.Ledger[0].ExitTime)
}

func TestOpenPositionClosedAtEndOfData(t *testing.T) {
	series := flatSeries(30, 100)
	preds := map[int]models.Prediction{
		25: {Action: models.ActionBuy, Confidence: 0.9, PredictedMovePct: 8},
	}

	cache := buildCache(t, series, 2)
	sim := NewSimulator(testConfig(), nil)
	res, err := sim.Run("TEST", series, cache, &scriptedPredictor{preds: preds}, passthrough, 0, len(series))
	require.NoError(t, err)

	require.Len(t, res.Ledger, 1)
	assert.Equal(t, models.ExitEndOfData, res.Ledger[0].ExitReason)
	assert.Equal(t, series[len(series)-1].Time, res.Ledger[0].ExitTime)
}

func TestTakeProfitUsesFixedTarget(t *testing.T) {
	series := flatSeries(30, 100)
	preds := map[int]models.Prediction{
		5: {Action: models.ActionBuy, Confidence: 0.9, PredictedMovePct: 8},
	}
	// ATR fallback is 2% of price, so the target sits at entry + 6.
	series[8].High = 110

	cache := buildCache(t, series, 2)
	sim := NewSimulator(testConfig(), nil)
	res, err := sim.Run("TEST", series, cache, &scriptedPredictor{preds: preds}, passthrough, 0, len(series))
	require.NoError(t, err)

	require.Len(t, res.Ledger, 1)
	assert.Equal(t, models.ExitTakeProfit, res.Ledger[0].ExitReason)
	assert.InDelta(t, 106, res.Ledger[0].ExitPrice, 0.5)
	assert.Greater(t, res.Ledger[0].PnL, 0.0)
}

func TestEmptyRangeIsHardError(t *testing.T) {
	series := flatSeries(10, 100)
	cache := buildCache(t, series, 8)
	sim := NewSimulator(testConfig(), nil)

	_, err := sim.Run("TEST", series, cache, &scriptedPredictor{}, passthrough, 9, 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, indicator.ErrInsufficientHistory))

	_, err = sim.Run("TEST", nil, cache, &scriptedPredictor{}, passthrough, 0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, indicator.ErrInsufficientHistory))
}

func TestPredictorFailureIsDivergence(t *testing.T) {
	series := flatSeries(20, 100)
	cache := buildCache(t, series, 2)
	sim := NewSimulator(testConfig(), nil)

	_, err := sim.Run("TEST", series, cache, &scriptedPredictor{err: fmt.Errorf("model unavailable")}, passthrough, 0, len(series))
	require.Error(t, err)

	var div *DivergenceError
	require.True(t, errors.As(err, &div))
	assert.Equal(t, 2, div.Index)
}

func TestCostsReduceRoundTripPnL(t *testing.T) {
	cfg := testConfig()
	cfg.SlippagePct = 0.0005
	cfg.CommissionPct = 0.001

	series := flatSeries(30, 100)
	preds := map[int]models.Prediction{
		5:  {Action: models.ActionBuy, Confidence: 0.9, PredictedMovePct: 8},
		10: {Action: models.ActionSell, Confidence: 0.9, PredictedMovePct: -8},
	}

	cache := buildCache(t, series, 2)
	sim := NewSimulator(cfg, nil)
	res, err := sim.Run("TEST", series, cache, &scriptedPredictor{preds: preds}, passthrough, 0, len(series))
	require.NoError(t, err)

	// Flat price, so the whole round trip loses exactly the frictions.
	require.NotEmpty(t, res.Ledger)
	assert.Less(t, res.Ledger[0].PnL, 0.0)
	assert.Less(t, res.Metrics.TotalReturn, 0.0)
}

func TestTradePnLCarriesBothCommissions(t *testing.T) {
	cfg := testConfig()
	cfg.CommissionPct = 0.001

	series := flatSeries(30, 100)
	preds := map[int]models.Prediction{
		5:  {Action: models.ActionBuy, Confidence: 0.9, PredictedMovePct: 8},
		10: {Action: models.ActionSell, Confidence: 0.9, PredictedMovePct: -8},
	}

	cache := buildCache(t, series, 2)
	sim := NewSimulator(cfg, nil)
	res, err := sim.Run("TEST", series, cache, &scriptedPredictor{preds: preds}, passthrough, 0, len(series))
	require.NoError(t, err)
	require.Len(t, res.Ledger, 1)

	// No slippage and a flat price: the round trip loses exactly the
	// entry plus exit commission, and the equity curve agrees with the
	// ledger.
	qty := cfg.InitialCapital * cfg.MaxNotionalPct / 100.0
	wantPnL := -2 * 100.0 * qty * cfg.CommissionPct
	assert.InDelta(t, wantPnL, res.Ledger[0].PnL, 1e-9)
	assert.InDelta(t, cfg.InitialCapital+wantPnL, float64(res.Equity[len(res.Equity)-1]), 1e-9)
}

func TestMaxDrawdown(t *testing.T) {
	eq := models.EquityCurve{100, 120, 90, 110, 80}
	assert.InDelta(t, (120.0-80.0)/120.0, maxDrawdown(eq), 1e-12)
	assert.Equal(t, 0.0, maxDrawdown(models.EquityCurve{100, 101, 102}))
}

func TestAnnualizedSharpeFlatCurveIsZero(t *testing.T) {
	eq := models.EquityCurve{100, 100, 100, 100}
	assert.Equal(t, 0.0, annualizedSharpe(eq))
}

func TestClassifierRates(t *testing.T) {
	series := flatSeries(20, 100)
	// Bars 0..9 rise afterwards, 10..14 fall afterwards.
	for i := range series {
		series[i].Close = 100
	}
	for i := 10; i < 20; i++ {
		series[i].Close = 90
	}

	var c classifier
	c.observe(models.ActionBuy, series, 2, 5)  // forward 100 -> 100, not up: FP
	c.observe(models.ActionBuy, series, 6, 5)  // 100 -> 90: FP
	c.observe(models.ActionSell, series, 7, 5) // 100 -> 90: TN
	c.observe(models.ActionBuy, series, 18, 5) // horizon past end: ungraded

	acc, prec, rec := c.rates()
	assert.InDelta(t, 1.0/3.0, acc, 1e-12)
	assert.Equal(t, 0.0, prec)
	assert.Equal(t, 0.0, rec)
}
