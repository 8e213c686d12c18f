package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"StratGate/internal/domain/models"
	"StratGate/internal/domain/repository"
	"StratGate/internal/domain/service"
	"StratGate/pkg/config"
	"StratGate/pkg/logger"
	"StratGate/pkg/pool"
)

// Orchestrator fans the validation pipeline out over many symbols with
// bounded parallelism. Symbol failures are isolated: one bad series never
// takes down the portfolio run.
type Orchestrator struct {
	cfg      config.Validation
	provider repository.SeriesProvider
	pipeline *Pipeline
	store    repository.ReportStore
	pub      repository.Publisher
	log      *logger.Logger
	rec      repository.Metrics
}

func NewOrchestrator(cfg config.Validation, provider repository.SeriesProvider, pipeline *Pipeline, store repository.ReportStore, pub repository.Publisher, log *logger.Logger, rec repository.Metrics) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		provider: provider,
		pipeline: pipeline,
		store:    store,
		pub:      pub,
		log:      log,
		rec:      rec,
	}
}

type symbolOutcome struct {
	result  models.SymbolResult
	returns []float64
}

// Run validates every symbol and assembles the portfolio view. It returns
// an error only when zero symbols produced a usable result; partial
// failures are surfaced in the Failures list instead.
func (o *Orchestrator) Run(ctx context.Context, symbols []string, start, end time.Time, tf repository.Timeframe, extractor service.FeatureExtractor, predictor service.Predictor, decide service.DecisionFunc) (*models.PortfolioResult, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols given")
	}

	startedAt := time.Now()
	runID := uuid.NewString()
	if o.log != nil {
		o.log.Info("portfolio run started",
			logger.String("run_id", runID),
			logger.Strings("symbols", symbols),
			logger.Int("workers", o.cfg.Workers),
		)
	}

	outcomes := pool.Run(ctx, o.cfg.Workers, symbols, func(ctx context.Context, symbol string) (symbolOutcome, error) {
		symCtx := ctx
		if o.cfg.SymbolTimeout > 0 {
			var cancel context.CancelFunc
			symCtx, cancel = context.WithTimeout(ctx, o.cfg.SymbolTimeout)
			defer cancel()
		}

		series, err := o.provider.Fetch(symCtx, symbol, start, end, tf)
		if err != nil {
			return symbolOutcome{}, fmt.Errorf("fetch %s: %w", symbol, err)
		}

		result, err := o.pipeline.ValidateSymbol(symCtx, symbol, series, extractor, predictor, decide)
		if err != nil {
			return symbolOutcome{}, err
		}
		return symbolOutcome{result: result, returns: simpleReturns(series)}, nil
	})

	res := &models.PortfolioResult{RunID: runID, StartedAt: startedAt}
	var returnsBySymbol [][]float64
	for i, out := range outcomes {
		symbol := symbols[i]
		if out.Err != nil {
			timedOut := errors.Is(out.Err, context.DeadlineExceeded)
			res.Failures = append(res.Failures, models.SymbolFailure{
				Symbol:   symbol,
				Reason:   out.Err.Error(),
				TimedOut: timedOut,
			})
			if o.rec != nil {
				outcome := "failed"
				if timedOut {
					outcome = "timed_out"
				}
				o.rec.RecordSymbol(symbol, outcome)
			}
			if o.log != nil {
				o.log.Error("symbol failed", logger.String("run_id", runID), logger.String("symbol", symbol), logger.Error(out.Err))
			}
			continue
		}
		res.Symbols = append(res.Symbols, out.Value.result)
		returnsBySymbol = append(returnsBySymbol, out.Value.returns)
		if o.rec != nil {
			o.rec.RecordSymbol(symbol, "ok")
		}
	}

	if len(res.Symbols) == 0 {
		return nil, fmt.Errorf("all %d symbols failed, first: %s", len(symbols), res.Failures[0].Reason)
	}

	o.summarize(res, returnsBySymbol)
	res.Elapsed = time.Since(startedAt)

	o.persist(ctx, res)
	return res, nil
}

// summarize fills the cross-symbol portfolio statistics. Capital is
// allocated equally, so the portfolio return is the mean of per-symbol
// cross-validated returns.
func (o *Orchestrator) summarize(res *models.PortfolioResult, returnsBySymbol [][]float64) {
	var totalReturn float64
	bestSharpe, worstSharpe := 0.0, 0.0

	for i, sr := range res.Symbols {
		m := sr.Aggregate.Mean
		totalReturn += m.TotalReturn

		if i == 0 || m.SharpeRatio > bestSharpe {
			bestSharpe = m.SharpeRatio
			res.BestSymbol = sr.Symbol
		}
		if i == 0 || m.SharpeRatio < worstSharpe {
			worstSharpe = m.SharpeRatio
			res.WorstSymbol = sr.Symbol
		}

		// A strategy that never trades has nothing to recommend, no
		// matter how clean its gap report looks.
		if sr.Gap.Recommendation != models.RecommendReject &&
			m.TotalTrades > 0 &&
			m.TotalTrades >= o.cfg.RecommendMinTrades &&
			m.WinRate >= o.cfg.RecommendMinWinRate {
			res.RecommendedSymbols = append(res.RecommendedSymbols, sr.Symbol)
		}
	}
	res.PortfolioReturn = totalReturn / float64(len(res.Symbols))

	res.CorrelationOrder = make([]string, len(res.Symbols))
	for i, sr := range res.Symbols {
		res.CorrelationOrder[i] = sr.Symbol
	}
	res.Correlations = correlationMatrix(returnsBySymbol)
}

// correlationMatrix is the pairwise Pearson correlation of per-symbol
// return series, truncated to the shortest common length.
func correlationMatrix(series [][]float64) [][]float64 {
	n := len(series)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			k := len(series[i])
			if len(series[j]) < k {
				k = len(series[j])
			}
			if k < 2 {
				continue
			}
			c, err := stats.Correlation(series[i][:k], series[j][:k])
			if err != nil {
				continue
			}
			m[i][j], m[j][i] = c, c
		}
	}
	return m
}

func (o *Orchestrator) persist(ctx context.Context, res *models.PortfolioResult) {
	if o.store != nil {
		for _, sr := range res.Symbols {
			if err := o.store.SaveSymbolResult(ctx, res.RunID, sr); err != nil && o.log != nil {
				o.log.Error("persist symbol result", logger.String("symbol", sr.Symbol), logger.Error(err))
			}
		}
		if err := o.store.SavePortfolio(ctx, *res); err != nil && o.log != nil {
			o.log.Error("persist portfolio", logger.String("run_id", res.RunID), logger.Error(err))
		}
	}
	if o.pub != nil {
		for _, sr := range res.Symbols {
			if err := o.pub.PublishSymbolResult(ctx, res.RunID, sr); err != nil && o.log != nil {
				o.log.Error("publish symbol result", logger.String("symbol", sr.Symbol), logger.Error(err))
			}
		}
		if err := o.pub.PublishPortfolio(ctx, *res); err != nil && o.log != nil {
			o.log.Error("publish portfolio", logger.String("run_id", res.RunID), logger.Error(err))
		}
	}
}

// simpleReturns is the per-bar close-to-close return series used for the
// correlation matrix.
func simpleReturns(series models.Series) []float64 {
	out := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1].Close > 0 {
			out = append(out, series[i].Close/series[i-1].Close-1)
		}
	}
	return out
}
