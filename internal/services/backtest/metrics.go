package backtest

import (
	"math"

	"github.com/montanaflynn/stats"

	"StratGate/internal/domain/models"
)

const tradingDaysPerYear = 252

// computeMetrics scores one run's ledger and equity curve. Classification
// rates are filled in separately by the simulator's signal grader.
func computeMetrics(ledger models.Ledger, equity models.EquityCurve, initialCapital float64) models.PerformanceMetrics {
	m := models.PerformanceMetrics{TotalTrades: len(ledger)}

	if len(equity) > 0 && initialCapital > 0 {
		m.TotalReturn = (equity[len(equity)-1] - initialCapital) / initialCapital
	}
	m.SharpeRatio = annualizedSharpe(equity)
	m.MaxDrawdown = maxDrawdown(equity)

	if len(ledger) == 0 {
		return m
	}

	var wins int
	var grossProfit, grossLoss float64
	for _, t := range ledger {
		if t.PnL > 0 {
			wins++
			grossProfit += t.PnL
		} else {
			grossLoss -= t.PnL
		}
	}
	m.WinRate = float64(wins) / float64(len(ledger))
	m.ProfitFactor = grossProfit / math.Max(grossLoss, 1e-9)
	return m
}

// annualizedSharpe computes the Sharpe ratio of per-bar equity returns,
// annualized for daily bars. A flat curve scores zero.
func annualizedSharpe(equity models.EquityCurve) float64 {
	if len(equity) < 3 {
		return 0
	}
	rets := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] > 0 {
			rets = append(rets, equity[i]/equity[i-1]-1)
		}
	}
	if len(rets) < 2 {
		return 0
	}
	mean, err := stats.Mean(rets)
	if err != nil {
		return 0
	}
	sd, err := stats.StandardDeviationSample(rets)
	if err != nil || sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown is the largest fraction lost from a running equity peak.
func maxDrawdown(equity models.EquityCurve) float64 {
	var peak, dd float64
	for _, eq := range equity {
		if eq > peak {
			peak = eq
		}
		if peak > 0 {
			if d := (peak - eq) / peak; d > dd {
				dd = d
			}
		}
	}
	return dd
}
