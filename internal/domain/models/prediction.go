package models

import "time"

// Action is a trading decision produced by a prediction source.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Prediction is the read-only output of an external model collaborator.
type Prediction struct {
	Timestamp        time.Time
	Symbol           string
	Action           Action
	Confidence       float64 // [0, 1]
	PredictedPrice   float64
	PredictedMovePct float64
}

// Decision is what a strategy decision function returns for one bar.
// A zero-value decision (ActionHold) opens nothing.
type Decision struct {
	Action           Action
	Confidence       float64
	PredictedMovePct float64
}

// Hold is the no-trade decision. Filter rejection is a normal return
// value, not an error.
func Hold() Decision { return Decision{Action: ActionHold} }
