package models

import "time"

// FoldFailure records a fold excluded from aggregate statistics.
type FoldFailure struct {
	FoldID int
	Reason string
}

// AggregateResult is the cross-fold summary produced by purged
// cross-validation. Excluded folds are counted explicitly, never averaged
// in as zero.
type AggregateResult struct {
	PerFold                []PerformanceMetrics
	Mean                   PerformanceMetrics
	MeanAccuracy           float64
	StdAccuracy            float64
	MinAccuracy            float64
	MaxAccuracy            float64
	CoefficientOfVariation float64
	Stable                 bool
	ExcludedFolds          int
	Exclusions             []FoldFailure
}

// OrderedResult is the time-ordered walk-forward sequence. Ordering is
// semantically meaningful: fold i tested strictly earlier data than fold
// i+1.
type OrderedResult struct {
	PerFold       []PerformanceMetrics
	InSample      []PerformanceMetrics
	Efficiency    float64 // mean out-of-sample Sharpe / mean in-sample Sharpe
	ExcludedFolds int
	Exclusions    []FoldFailure
}

// GapTrend classifies how the in-sample/out-of-sample gap evolves over the
// walk-forward sequence.
type GapTrend string

const (
	TrendIncreasing GapTrend = "increasing"
	TrendDecreasing GapTrend = "decreasing"
	TrendStable     GapTrend = "stable"
)

// Recommendation is the deployment verdict derived from the overfitting
// score.
type Recommendation string

const (
	RecommendSafe    Recommendation = "safe"
	RecommendCaution Recommendation = "caution"
	RecommendReject  Recommendation = "reject"
)

// ConfidenceInterval bounds the mean accuracy gap.
type ConfidenceInterval struct {
	Lower float64
	Upper float64
}

// GapReport is the overfitting assessment for one full validation run.
// Plain value object; deterministic for identical inputs.
type GapReport struct {
	AccuracyGap             float64
	SharpeGap               float64
	GapTrend                GapTrend
	OverfittingScore        float64 // [0, 100]
	PredictedDegradationPct float64
	ConfidenceInterval      ConfidenceInterval
	Recommendation          Recommendation
}

// SymbolResult is the full validation outcome for one symbol.
type SymbolResult struct {
	Symbol         string
	Bars           int
	Aggregate      AggregateResult
	WalkForward    OrderedResult
	Gap            GapReport
	BestParameters map[string]float64 // set when the optimizer ran
	BestFitness    float64
	Elapsed        time.Duration
}

// SymbolFailure is an isolated per-symbol error inside a portfolio run.
type SymbolFailure struct {
	Symbol   string
	Reason   string
	TimedOut bool
}

// PortfolioResult aggregates a multi-symbol run. Partial results with a
// failure list are always returned; the orchestrator errors only when zero
// symbols produced usable folds.
type PortfolioResult struct {
	RunID              string
	StartedAt          time.Time
	Elapsed            time.Duration
	Symbols            []SymbolResult
	Failures           []SymbolFailure
	PortfolioReturn    float64 // capital-weighted
	CorrelationOrder   []string
	Correlations       [][]float64
	BestSymbol         string
	WorstSymbol        string
	RecommendedSymbols []string
}
