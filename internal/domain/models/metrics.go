package models

// PerformanceMetrics is the immutable result of scoring one fold's trade
// ledger and equity curve.
type PerformanceMetrics struct {
	Accuracy     float64
	Precision    float64
	Recall       float64
	SharpeRatio  float64
	MaxDrawdown  float64 // fraction of peak equity, >= 0
	WinRate      float64
	ProfitFactor float64
	TotalReturn  float64 // fraction of initial capital
	TotalTrades  int
}
