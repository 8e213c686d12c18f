package validation

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"StratGate/internal/domain/models"
	"StratGate/pkg/config"
)

// GapAnalyzer scores the divergence between cross-validated performance
// and the walk-forward sequence. It is a pure function of its inputs:
// identical results always produce an identical report.
type GapAnalyzer struct {
	cfg config.Scoring
}

func NewGapAnalyzer(cfg config.Scoring) *GapAnalyzer {
	return &GapAnalyzer{cfg: cfg}
}

// Analyze compares the aggregate against the time-ordered walk-forward
// sequence and produces the overfitting assessment.
func (g *GapAnalyzer) Analyze(agg *models.AggregateResult, wf *models.OrderedResult) (models.GapReport, error) {
	if agg == nil || wf == nil || len(wf.PerFold) == 0 {
		return models.GapReport{}, fmt.Errorf("gap analysis requires aggregate and at least one walk-forward fold")
	}

	accGaps := make([]float64, len(wf.PerFold))
	sharpeGaps := make([]float64, len(wf.PerFold))
	for i, m := range wf.PerFold {
		accGaps[i] = agg.MeanAccuracy - m.Accuracy
		sharpeGaps[i] = agg.Mean.SharpeRatio - m.SharpeRatio
	}

	meanAccGap, _ := stats.Mean(accGaps)
	meanSharpeGap, _ := stats.Mean(sharpeGaps)
	trend := g.classifyTrend(accGaps)
	score := g.score(meanAccGap, meanSharpeGap, trend)

	return models.GapReport{
		AccuracyGap:             meanAccGap,
		SharpeGap:               meanSharpeGap,
		GapTrend:                trend,
		OverfittingScore:        score,
		PredictedDegradationPct: g.predictDegradation(accGaps),
		ConfidenceInterval:      confidenceInterval(accGaps),
		Recommendation:          g.recommend(score),
	}, nil
}

// classifyTrend fits a linear regression over the gap sequence in time
// order. A growing gap means performance is degrading as the retraining
// cadence elapses.
func (g *GapAnalyzer) classifyTrend(gaps []float64) models.GapTrend {
	if len(gaps) < 3 {
		return models.TrendStable
	}

	series := make(stats.Series, len(gaps))
	for i, y := range gaps {
		series[i] = stats.Coordinate{X: float64(i), Y: y}
	}
	fitted, err := stats.LinearRegression(series)
	if err != nil || len(fitted) < 2 {
		return models.TrendStable
	}
	slope := (fitted[len(fitted)-1].Y - fitted[0].Y) / (fitted[len(fitted)-1].X - fitted[0].X)

	switch {
	case math.Abs(slope) < g.cfg.SlopeThreshold:
		return models.TrendStable
	case slope > 0:
		return models.TrendIncreasing
	default:
		return models.TrendDecreasing
	}
}

// score combines the gap components on a 0..100 scale. A strongly negative
// accuracy gap (walk-forward beating the backtest) is penalized as a
// leakage suspect rather than rewarded.
func (g *GapAnalyzer) score(accGap, sharpeGap float64, trend models.GapTrend) float64 {
	score := 0.0

	if accGap > 0 {
		score += math.Min(accGap*100, g.cfg.AccuracyGapCap)
	} else if accGap < g.cfg.LeakageGapBelow {
		score += g.cfg.LeakagePenalty
	}

	if sharpeGap > 0 {
		score += math.Min(sharpeGap*10, g.cfg.SharpeGapCap)
	}

	switch trend {
	case models.TrendIncreasing:
		score += g.cfg.TrendPenalty
	case models.TrendDecreasing:
		score -= g.cfg.TrendBonus
	}

	return math.Max(0, math.Min(100, score))
}

// predictDegradation projects the gap one step past the last observed fold
// using exponentially weighted smoothing; recent folds matter more.
func (g *GapAnalyzer) predictDegradation(gaps []float64) float64 {
	if len(gaps) == 0 {
		return 0
	}

	weights := make([]float64, len(gaps))
	var sum float64
	for i := range gaps {
		x := -2.0
		if len(gaps) > 1 {
			x = -2.0 + 2.0*float64(i)/float64(len(gaps)-1)
		}
		weights[i] = math.Exp(x)
		sum += weights[i]
	}

	var weighted float64
	for i, gap := range gaps {
		weighted += gap * weights[i] / sum
	}
	return weighted * g.cfg.DegradationGrowth
}

// confidenceInterval is the 95% t-interval for the mean accuracy gap.
func confidenceInterval(gaps []float64) models.ConfidenceInterval {
	if len(gaps) < 2 {
		return models.ConfidenceInterval{}
	}
	mean, _ := stats.Mean(gaps)
	sd, _ := stats.StandardDeviation(gaps)
	margin := tCritical95(len(gaps)-1) * sd / math.Sqrt(float64(len(gaps)))
	return models.ConfidenceInterval{Lower: mean - margin, Upper: mean + margin}
}

// tCritical95 returns the two-sided 95% critical value of Student's t for
// the given degrees of freedom, falling back to the normal value for large
// samples.
func tCritical95(df int) float64 {
	table := []float64{
		12.706, 4.303, 3.182, 2.776, 2.571, 2.447, 2.365, 2.306, 2.262, 2.228,
		2.201, 2.179, 2.160, 2.145, 2.131, 2.120, 2.110, 2.101, 2.093, 2.086,
		2.080, 2.074, 2.069, 2.064, 2.060, 2.056, 2.052, 2.048, 2.045, 2.042,
	}
	if df <= 0 {
		return table[0]
	}
	if df <= len(table) {
		return table[df-1]
	}
	return 1.96
}

func (g *GapAnalyzer) recommend(score float64) models.Recommendation {
	switch {
	case score < g.cfg.SafeBelow:
		return models.RecommendSafe
	case score > g.cfg.RejectAbove:
		return models.RecommendReject
	default:
		return models.RecommendCaution
	}
}
