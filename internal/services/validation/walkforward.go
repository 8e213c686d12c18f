package validation

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"StratGate/internal/domain/models"
	"StratGate/internal/domain/repository"
	"StratGate/internal/domain/service"
	"StratGate/internal/services/backtest"
	"StratGate/internal/services/indicator"
	"StratGate/pkg/config"
	"StratGate/pkg/logger"
)

// WalkForward evaluates a strategy over sequential rolling train/test
// folds, mimicking periodic retraining. Fold order is meaningful: fold i
// tested strictly earlier data than fold i+1.
type WalkForward struct {
	cfg config.Validation
	sim *backtest.Simulator
	log *logger.Logger
	rec repository.Metrics
}

func NewWalkForward(cfg config.Validation, sim *backtest.Simulator, log *logger.Logger, rec repository.Metrics) *WalkForward {
	return &WalkForward{cfg: cfg, sim: sim, log: log, rec: rec}
}

// GenerateFolds emits rolling folds of (train_window, test_window) stepped
// forward by step bars. Step must be at least test_window so no
// out-of-sample bar is counted twice.
func (wf *WalkForward) GenerateFolds(n int) ([]models.Fold, error) {
	if wf.cfg.TrainWindow <= 0 || wf.cfg.TestWindow <= 0 || wf.cfg.Step <= 0 {
		return nil, fmt.Errorf("%w: windows must be positive", ErrInvalidFoldConfig)
	}
	if wf.cfg.Step < wf.cfg.TestWindow {
		return nil, fmt.Errorf("%w: step %d < test_window %d would overlap test ranges",
			ErrInvalidFoldConfig, wf.cfg.Step, wf.cfg.TestWindow)
	}
	if n < wf.cfg.TrainWindow+wf.cfg.TestWindow {
		return nil, fmt.Errorf("%w: %d bars < train_window %d + test_window %d",
			ErrInvalidFoldConfig, n, wf.cfg.TrainWindow, wf.cfg.TestWindow)
	}

	var folds []models.Fold
	for start := 0; start+wf.cfg.TrainWindow+wf.cfg.TestWindow <= n; start += wf.cfg.Step {
		trainEnd := start + wf.cfg.TrainWindow
		folds = append(folds, models.Fold{
			ID:         len(folds),
			TrainStart: start,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    trainEnd + wf.cfg.TestWindow,
		})
	}
	return folds, nil
}

// Evaluate runs every rolling fold twice, once over the training range for
// the in-sample baseline and once over the test range, and reports the
// out-of-sample efficiency. A fold failing either leg is excluded whole.
func (wf *WalkForward) Evaluate(symbol string, series models.Series, cache *indicator.Cache, predictor service.Predictor, decide service.DecisionFunc) (*models.OrderedResult, error) {
	folds, err := wf.GenerateFolds(len(series))
	if err != nil {
		return nil, err
	}

	out := &models.OrderedResult{}
	for _, f := range folds {
		inRes, err := wf.sim.Run(symbol, series, cache, predictor, decide, f.TrainStart, f.TrainEnd)
		if err == nil {
			var oosRes *backtest.Result
			oosRes, err = wf.sim.Run(symbol, series, cache, predictor, decide, f.TestStart, f.TestEnd)
			if err == nil {
				out.InSample = append(out.InSample, inRes.Metrics)
				out.PerFold = append(out.PerFold, oosRes.Metrics)
				if wf.rec != nil {
					wf.rec.RecordFold(symbol, "completed")
				}
				continue
			}
		}

		out.ExcludedFolds++
		out.Exclusions = append(out.Exclusions, models.FoldFailure{FoldID: f.ID, Reason: err.Error()})
		if wf.log != nil {
			wf.log.Warn("walk-forward fold excluded", logger.String("symbol", symbol), logger.Int("fold", f.ID), logger.Error(err))
		}
		if wf.rec != nil {
			wf.rec.RecordFold(symbol, "excluded")
		}
	}

	if len(out.PerFold) == 0 {
		return nil, fmt.Errorf("all %d walk-forward folds failed for %s: %s", len(folds), symbol, out.Exclusions[0].Reason)
	}

	out.Efficiency = efficiency(out.InSample, out.PerFold)
	return out, nil
}

// efficiency is mean out-of-sample Sharpe over mean in-sample Sharpe.
// Values above 0.6 indicate the edge survives out of sample.
func efficiency(inSample, outOfSample []models.PerformanceMetrics) float64 {
	is := make([]float64, len(inSample))
	for i, m := range inSample {
		is[i] = m.SharpeRatio
	}
	oos := make([]float64, len(outOfSample))
	for i, m := range outOfSample {
		oos[i] = m.SharpeRatio
	}
	isMean, _ := stats.Mean(is)
	oosMean, _ := stats.Mean(oos)
	if isMean == 0 {
		return 0
	}
	return oosMean / isMean
}
