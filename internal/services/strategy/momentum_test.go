package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StratGate/internal/domain/models"
	"StratGate/internal/services/indicator"
)

func TestMomentumBuySignal(t *testing.T) {
	m := NewMomentum()
	pred, err := m.Predict("BTCUSDT", 50, models.FeatureVector{
		indicator.FeatMom10: 0.03,
		indicator.FeatRSI14: 55,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ActionBuy, pred.Action)
	assert.InDelta(t, 0.8, pred.Confidence, 1e-9)
	assert.InDelta(t, 3.0, pred.PredictedMovePct, 1e-9)
}

func TestMomentumSellSignal(t *testing.T) {
	m := NewMomentum()
	pred, err := m.Predict("BTCUSDT", 50, models.FeatureVector{
		indicator.FeatMom10: -0.02,
		indicator.FeatRSI14: 45,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ActionSell, pred.Action)
}

func TestMomentumHoldsAtRSIExtremes(t *testing.T) {
	m := NewMomentum()

	pred, err := m.Predict("BTCUSDT", 50, models.FeatureVector{
		indicator.FeatMom10: 0.03,
		indicator.FeatRSI14: 80, // overbought, no chasing
	})
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, pred.Action)

	pred, err = m.Predict("BTCUSDT", 50, models.FeatureVector{
		indicator.FeatMom10: -0.03,
		indicator.FeatRSI14: 20, // oversold
	})
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, pred.Action)
}

func TestMomentumHoldsOnMissingFeatures(t *testing.T) {
	m := NewMomentum()
	pred, err := m.Predict("BTCUSDT", 50, models.FeatureVector{})
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, pred.Action)
}

func TestMomentumConfidenceCapped(t *testing.T) {
	m := NewMomentum()
	pred, err := m.Predict("BTCUSDT", 50, models.FeatureVector{
		indicator.FeatMom10: 0.50,
		indicator.FeatRSI14: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.95, pred.Confidence)
}

func TestPassThrough(t *testing.T) {
	decide := PassThrough()
	dec := decide(10, nil, models.Prediction{
		Action:           models.ActionBuy,
		Confidence:       0.77,
		PredictedMovePct: 2.5,
	})
	assert.Equal(t, models.ActionBuy, dec.Action)
	assert.Equal(t, 0.77, dec.Confidence)
	assert.Equal(t, 2.5, dec.PredictedMovePct)
}
