package service

import (
	"StratGate/internal/domain/models"
)

// FeatureExtractor computes the full-series feature matrix exactly once.
// Implementations must be pure and deterministic and must declare their
// longest lookback so index ranges can be validated.
type FeatureExtractor interface {
	// Warmup returns the longest lookback window among features. Indices
	// before Warmup have no defined feature values.
	Warmup() int

	// Compute returns one FeatureVector per bar, indexed identically to
	// the series. Entries below Warmup may be incomplete and must not be
	// read.
	Compute(series models.Series) ([]models.FeatureVector, error)
}

// Predictor is any model satisfying the predict contract. Its output is
// read-only to the engine.
type Predictor interface {
	Predict(symbol string, index int, features models.FeatureVector) (models.Prediction, error)
}

// DecisionFunc turns cached features and a prediction into a trading
// decision for one bar. It may only see features at index and earlier
// bars; returning Hold() is the normal "filter did not pass" outcome.
type DecisionFunc func(index int, features models.FeatureVector, pred models.Prediction) models.Decision

// FitnessFunc scores one parameter vector for the optimizer. Higher is
// better. An error marks the individual as worst-possible rather than
// aborting the run.
type FitnessFunc func(params map[string]float64) (float64, error)
