package usecase

import (
	"context"
	"fmt"
	"time"

	"StratGate/internal/domain/models"
	"StratGate/internal/domain/repository"
	"StratGate/internal/domain/service"
	"StratGate/internal/services/backtest"
	"StratGate/internal/services/indicator"
	"StratGate/internal/services/optimizer"
	"StratGate/internal/services/validation"
	"StratGate/pkg/config"
	"StratGate/pkg/logger"
)

// Pipeline runs the full validation sequence for one symbol: feature
// cache, purged cross-validation, walk-forward, gap analysis, and an
// optional parameter optimization pass.
type Pipeline struct {
	cfg config.Validation
	sim *backtest.Simulator
	cv  *validation.CrossValidator
	wf  *validation.WalkForward
	gap *validation.GapAnalyzer
	log *logger.Logger
	rec repository.Metrics
}

func NewPipeline(cfg config.Validation, log *logger.Logger, rec repository.Metrics) *Pipeline {
	sim := backtest.NewSimulator(backtest.ExecutionFromValidation(cfg), log)
	return &Pipeline{
		cfg: cfg,
		sim: sim,
		cv:  validation.NewCrossValidator(cfg, sim, log, rec),
		wf:  validation.NewWalkForward(cfg, sim, log, rec),
		gap: validation.NewGapAnalyzer(cfg.Scoring),
		log: log,
		rec: rec,
	}
}

// DefaultParamRanges bounds the strategy parameters the optimizer may
// tune.
func DefaultParamRanges() map[string]optimizer.ParamRange {
	return map[string]optimizer.ParamRange{
		"min_confidence":       {Min: 0.50, Max: 0.95},
		"min_movement_pct":     {Min: 0.25, Max: 5.0},
		"stop_loss_atr_mult":   {Min: 1.0, Max: 4.0},
		"take_profit_atr_mult": {Min: 1.5, Max: 6.0},
	}
}

// ValidateSymbol runs every validation stage for one symbol and returns
// the combined result. Fold-level failures inside each stage are already
// excluded there; an error here means the stage produced nothing usable.
func (p *Pipeline) ValidateSymbol(ctx context.Context, symbol string, series models.Series, extractor service.FeatureExtractor, predictor service.Predictor, decide service.DecisionFunc) (models.SymbolResult, error) {
	started := time.Now()

	if err := series.Validate(); err != nil {
		return models.SymbolResult{}, fmt.Errorf("series for %s: %w", symbol, err)
	}

	cache, err := indicator.Build(series, extractor)
	if err != nil {
		return models.SymbolResult{}, fmt.Errorf("build feature cache for %s: %w", symbol, err)
	}

	if err := ctx.Err(); err != nil {
		return models.SymbolResult{}, err
	}
	agg, err := p.cv.Validate(symbol, series, cache, predictor, decide)
	if err != nil {
		return models.SymbolResult{}, fmt.Errorf("cross-validation for %s: %w", symbol, err)
	}

	if err := ctx.Err(); err != nil {
		return models.SymbolResult{}, err
	}
	wf, err := p.wf.Evaluate(symbol, series, cache, predictor, decide)
	if err != nil {
		return models.SymbolResult{}, fmt.Errorf("walk-forward for %s: %w", symbol, err)
	}

	gap, err := p.gap.Analyze(agg, wf)
	if err != nil {
		return models.SymbolResult{}, fmt.Errorf("gap analysis for %s: %w", symbol, err)
	}

	result := models.SymbolResult{
		Symbol:      symbol,
		Bars:        len(series),
		Aggregate:   *agg,
		WalkForward: *wf,
		Gap:         gap,
	}

	if p.cfg.Optimize {
		best, err := p.optimize(ctx, symbol, series, cache, predictor, decide)
		if err != nil {
			// Optimization is best-effort on top of a valid result.
			if p.log != nil {
				p.log.Warn("optimization failed", logger.String("symbol", symbol), logger.Error(err))
			}
		} else {
			result.BestParameters = best.BestParams
			result.BestFitness = best.BestFitness
		}
	}

	result.Elapsed = time.Since(started)
	if p.rec != nil {
		p.rec.RecordSimulation(symbol, result.Elapsed.Seconds())
	}
	if p.log != nil {
		p.log.Info("symbol validated",
			logger.String("symbol", symbol),
			logger.Int("bars", len(series)),
			logger.Float64("mean_accuracy", agg.MeanAccuracy),
			logger.Float64("overfitting_score", gap.OverfittingScore),
			logger.String("recommendation", string(gap.Recommendation)),
			logger.Duration("elapsed", result.Elapsed),
		)
	}
	return result, nil
}

// optimize tunes the execution-model parameters against the full series
// with a composite fitness of Sharpe, win rate, and drawdown.
func (p *Pipeline) optimize(ctx context.Context, symbol string, series models.Series, cache *indicator.Cache, predictor service.Predictor, decide service.DecisionFunc) (*optimizer.Result, error) {
	gen, err := optimizer.NewGenetic(p.cfg, DefaultParamRanges(), p.log, p.rec)
	if err != nil {
		return nil, err
	}

	w := p.cfg.FitnessWeights
	fitness := func(params map[string]float64) (float64, error) {
		exec := backtest.ExecutionFromValidation(p.cfg)
		if v, ok := params["min_confidence"]; ok {
			exec.MinConfidence = v
		}
		if v, ok := params["min_movement_pct"]; ok {
			exec.MinMovementPct = v
		}
		if v, ok := params["stop_loss_atr_mult"]; ok {
			exec.StopLossATRMult = v
		}
		if v, ok := params["take_profit_atr_mult"]; ok {
			exec.TakeProfitATRMult = v
		}

		res, err := backtest.NewSimulator(exec, nil).Run(symbol, series, cache, predictor, decide, 0, len(series))
		if err != nil {
			return 0, err
		}
		m := res.Metrics
		if m.TotalTrades == 0 {
			return -1, nil // a strategy that never trades is not an optimum
		}
		return m.SharpeRatio*w.Sharpe + m.WinRate*w.WinRate - m.MaxDrawdown*w.Drawdown, nil
	}

	return gen.Optimize(ctx, symbol, fitness)
}
