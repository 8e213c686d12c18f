package strategy

import (
	"math"

	"StratGate/internal/domain/models"
	"StratGate/internal/domain/service"
	"StratGate/internal/services/indicator"
)

// Momentum is a deterministic baseline predictor for exercising the
// validation pipeline end to end. It trades trend continuation filtered
// by RSI extremes; confidence scales with the strength of the move. Any
// production model plugs in through the same Predictor contract.
type Momentum struct {
	RSIOverbought float64
	RSIOversold   float64
}

func NewMomentum() *Momentum {
	return &Momentum{RSIOverbought: 70, RSIOversold: 30}
}

func (m *Momentum) Predict(symbol string, _ int, features models.FeatureVector) (models.Prediction, error) {
	mom, okMom := features.Get(indicator.FeatMom10)
	rsi, okRSI := features.Get(indicator.FeatRSI14)
	if !okMom || !okRSI {
		return models.Prediction{Symbol: symbol, Action: models.ActionHold}, nil
	}

	pred := models.Prediction{
		Symbol:           symbol,
		Action:           models.ActionHold,
		PredictedMovePct: mom * 100,
	}

	switch {
	case mom > 0 && rsi < m.RSIOverbought:
		pred.Action = models.ActionBuy
	case mom < 0 && rsi > m.RSIOversold:
		pred.Action = models.ActionSell
	default:
		return pred, nil
	}

	// Stronger momentum, higher conviction, capped below certainty.
	pred.Confidence = math.Min(0.5+math.Abs(mom)*10, 0.95)
	return pred, nil
}

// PassThrough forwards the prediction unchanged as a decision. The
// simulator's confidence and movement gates do the filtering.
func PassThrough() service.DecisionFunc {
	return func(_ int, _ models.FeatureVector, pred models.Prediction) models.Decision {
		return models.Decision{
			Action:           pred.Action,
			Confidence:       pred.Confidence,
			PredictedMovePct: pred.PredictedMovePct,
		}
	}
}
