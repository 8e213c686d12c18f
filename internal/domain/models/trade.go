package models

import "time"

// Side of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitTakeProfit     ExitReason = "take_profit"
	ExitStopLoss       ExitReason = "stop_loss"
	ExitSignalReversal ExitReason = "signal_reversal"
	ExitEndOfData      ExitReason = "end_of_data"
)

// Trade is one closed round trip. Appended to the ledger when a position
// closes and never mutated afterwards.
type Trade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	Side       Side
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	PnL        float64
	PnLPct     float64
	ExitReason ExitReason
}

// Ledger is the immutable sequence of closed trades from one simulator run.
type Ledger []Trade

// EquityCurve is the per-bar account equity of one simulator run, starting
// at the configured initial capital.
type EquityCurve []float64
