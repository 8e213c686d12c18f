package validation

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"StratGate/internal/domain/models"
	"StratGate/internal/domain/repository"
	"StratGate/internal/domain/service"
	"StratGate/internal/services/backtest"
	"StratGate/internal/services/indicator"
	"StratGate/pkg/config"
	"StratGate/pkg/logger"
)

// ErrInvalidFoldConfig is returned when embargo, test, and train sizes
// cannot produce a single usable fold. It fires at fold-generation time,
// before any simulation runs.
var ErrInvalidFoldConfig = errors.New("invalid fold configuration")

// CrossValidator generates combinatorial, embargoed train/test folds and
// aggregates per-fold simulator metrics into a stability verdict.
type CrossValidator struct {
	cfg config.Validation
	sim *backtest.Simulator
	log *logger.Logger
	rec repository.Metrics
}

func NewCrossValidator(cfg config.Validation, sim *backtest.Simulator, log *logger.Logger, rec repository.Metrics) *CrossValidator {
	return &CrossValidator{cfg: cfg, sim: sim, log: log, rec: rec}
}

// GenerateFolds partitions n bars into NSplits contiguous groups and emits
// one fold per test group. The train range is the larger contiguous side
// of the test group, purged by embargo = ceil(embargo_pct * n) bars at the
// shared boundary. Folds whose purged train range falls below the minimum
// train fraction are skipped; zero usable folds is a configuration error.
func (cv *CrossValidator) GenerateFolds(n int) ([]models.Fold, error) {
	if cv.cfg.NSplits < 2 {
		return nil, fmt.Errorf("%w: n_splits %d < 2", ErrInvalidFoldConfig, cv.cfg.NSplits)
	}
	if n < cv.cfg.NSplits*2 {
		return nil, fmt.Errorf("%w: %d bars cannot fill %d groups", ErrInvalidFoldConfig, n, cv.cfg.NSplits)
	}
	if frac := 1.0 / float64(cv.cfg.NSplits); frac > cv.cfg.TestSizePct+1e-9 {
		return nil, fmt.Errorf("%w: test group fraction %.3f exceeds test_size_pct %.3f", ErrInvalidFoldConfig, frac, cv.cfg.TestSizePct)
	}

	embargo := int(math.Ceil(cv.cfg.EmbargoPct * float64(n)))
	bounds := groupBounds(n, cv.cfg.NSplits)
	minTrain := int(math.Ceil(cv.cfg.MinTrainPct * float64(n)))

	folds := make([]models.Fold, 0, cv.cfg.NSplits)
	for k := 0; k < cv.cfg.NSplits; k++ {
		testStart, testEnd := bounds[k], bounds[k+1]

		leftEnd := testStart - embargo
		if leftEnd < 0 {
			leftEnd = 0
		}
		rightStart := testEnd + embargo
		if rightStart > n {
			rightStart = n
		}

		f := models.Fold{ID: len(folds), TestStart: testStart, TestEnd: testEnd, Embargo: embargo}
		if leftEnd >= n-rightStart {
			f.TrainStart, f.TrainEnd = 0, leftEnd
		} else {
			f.TrainStart, f.TrainEnd = rightStart, n
		}

		if f.TrainLen() < minTrain {
			if cv.log != nil {
				cv.log.Warn("fold skipped, train range below minimum",
					logger.Int("test_group", k),
					logger.Int("train_len", f.TrainLen()),
					logger.Int("min_train", minTrain),
				)
			}
			continue
		}
		folds = append(folds, f)
	}

	if len(folds) == 0 {
		return nil, fmt.Errorf("%w: embargo %d and min_train_pct %.2f leave no usable folds for %d bars",
			ErrInvalidFoldConfig, embargo, cv.cfg.MinTrainPct, n)
	}
	return folds, nil
}

// Validate runs every generated fold through the simulator and aggregates
// stability statistics. Failed folds are excluded with a recorded reason,
// never averaged in as zero; an error is returned only when zero folds
// produced metrics.
func (cv *CrossValidator) Validate(symbol string, series models.Series, cache *indicator.Cache, predictor service.Predictor, decide service.DecisionFunc) (*models.AggregateResult, error) {
	folds, err := cv.GenerateFolds(len(series))
	if err != nil {
		return nil, err
	}

	agg := &models.AggregateResult{}
	for _, f := range folds {
		res, err := cv.sim.Run(symbol, series, cache, predictor, decide, f.TestStart, f.TestEnd)
		if err != nil {
			agg.ExcludedFolds++
			agg.Exclusions = append(agg.Exclusions, models.FoldFailure{FoldID: f.ID, Reason: err.Error()})
			if cv.log != nil {
				cv.log.Warn("fold excluded", logger.String("symbol", symbol), logger.Int("fold", f.ID), logger.Error(err))
			}
			if cv.rec != nil {
				cv.rec.RecordFold(symbol, "excluded")
			}
			continue
		}
		agg.PerFold = append(agg.PerFold, res.Metrics)
		if cv.rec != nil {
			cv.rec.RecordFold(symbol, "completed")
		}
	}

	if len(agg.PerFold) == 0 {
		return nil, fmt.Errorf("all %d folds failed for %s: %s", len(folds), symbol, agg.Exclusions[0].Reason)
	}

	agg.Mean = meanMetrics(agg.PerFold)

	accs := make([]float64, len(agg.PerFold))
	for i, m := range agg.PerFold {
		accs[i] = m.Accuracy
	}
	agg.MeanAccuracy, _ = stats.Mean(accs)
	agg.MinAccuracy, _ = stats.Min(accs)
	agg.MaxAccuracy, _ = stats.Max(accs)
	if len(accs) > 1 {
		agg.StdAccuracy, _ = stats.StandardDeviationSample(accs)
	}
	if agg.MeanAccuracy > 0 {
		agg.CoefficientOfVariation = agg.StdAccuracy / agg.MeanAccuracy
	}
	agg.Stable = agg.CoefficientOfVariation < cv.cfg.Scoring.StableCV &&
		agg.MeanAccuracy > cv.cfg.Scoring.StableAccuracy

	return agg, nil
}

// groupBounds returns NSplits+1 boundaries of contiguous near-equal groups.
func groupBounds(n, splits int) []int {
	bounds := make([]int, splits+1)
	base, rem := n/splits, n%splits
	for i := 1; i <= splits; i++ {
		bounds[i] = bounds[i-1] + base
		if i <= rem {
			bounds[i]++
		}
	}
	return bounds
}

func meanMetrics(folds []models.PerformanceMetrics) models.PerformanceMetrics {
	var m models.PerformanceMetrics
	if len(folds) == 0 {
		return m
	}
	for _, f := range folds {
		m.Accuracy += f.Accuracy
		m.Precision += f.Precision
		m.Recall += f.Recall
		m.SharpeRatio += f.SharpeRatio
		m.MaxDrawdown += f.MaxDrawdown
		m.WinRate += f.WinRate
		m.ProfitFactor += f.ProfitFactor
		m.TotalReturn += f.TotalReturn
		m.TotalTrades += f.TotalTrades
	}
	n := float64(len(folds))
	m.Accuracy /= n
	m.Precision /= n
	m.Recall /= n
	m.SharpeRatio /= n
	m.MaxDrawdown /= n
	m.WinRate /= n
	m.ProfitFactor /= n
	m.TotalReturn /= n
	return m
}
