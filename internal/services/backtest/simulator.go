package backtest

import (
	"fmt"
	"math"

	"StratGate/internal/domain/models"
	"StratGate/internal/domain/service"
	"StratGate/internal/services/indicator"
	"StratGate/pkg/config"
	"StratGate/pkg/logger"
)

// DivergenceError is raised when capital goes negative or a numeric
// invariant breaks mid-simulation. It is fatal to the fold being run and
// carries the offending bar index.
type DivergenceError struct {
	Index  int
	Reason string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("simulation diverged at bar %d: %s", e.Index, e.Reason)
}

// ExecutionConfig is the simulator's execution model. Costs are applied on
// both legs of every trade.
type ExecutionConfig struct {
	InitialCapital    float64
	MinConfidence     float64
	MinMovementPct    float64
	StopLossATRMult   float64
	TakeProfitATRMult float64
	SlippagePct       float64
	CommissionPct     float64
	MaxNotionalPct    float64

	// ATRFeature names the cached feature used to size protective exits.
	// When the feature is absent or non-positive, a 2% of price fallback
	// keeps the stop finite.
	ATRFeature string

	// LabelHorizon is the forward-return window, in bars, used to grade
	// signal direction for the classification metrics.
	LabelHorizon int
}

// ExecutionFromValidation maps the validation config onto the simulator's
// execution model.
func ExecutionFromValidation(v config.Validation) ExecutionConfig {
	return ExecutionConfig{
		InitialCapital:    v.InitialCapital,
		MinConfidence:     v.MinConfidence,
		MinMovementPct:    v.MinMovementPct,
		StopLossATRMult:   v.StopLossATRMult,
		TakeProfitATRMult: v.TakeProfitATRMult,
		SlippagePct:       v.SlippagePct,
		CommissionPct:     v.CommissionPct,
		MaxNotionalPct:    v.MaxNotionalPct,
		ATRFeature:        indicator.FeatATR14,
		LabelHorizon:      5,
	}
}

// Result bundles one simulator run's outputs.
type Result struct {
	Ledger  models.Ledger
	Equity  models.EquityCurve
	Metrics models.PerformanceMetrics
}

// position is the simulator's only mutable trading state. At most one is
// open at any bar (no pyramiding).
type position struct {
	side       models.Side
	entryIndex int
	entryPrice float64
	quantity   float64
	stopPrice  float64
	takePrice  float64
}

// Simulator walks a series bar by bar, consulting a decision function
// driven by cached features and a prediction source, and applies the
// execution model. A Simulator is stateless across runs and safe for
// concurrent use.
type Simulator struct {
	cfg ExecutionConfig
	log *logger.Logger
}

func NewSimulator(cfg ExecutionConfig, log *logger.Logger) *Simulator {
	if cfg.ATRFeature == "" {
		cfg.ATRFeature = indicator.FeatATR14
	}
	if cfg.LabelHorizon <= 0 {
		cfg.LabelHorizon = 5
	}
	return &Simulator{cfg: cfg, log: log}
}

// Run simulates indices [lo, hi) of series in strictly increasing order.
// The decision function at index sees only cache.At(index); protective
// exits are checked against each bar's high/low before the decision
// function runs. A range that leaves no tradable bars after warmup is a
// hard error, not a zero-trade result.
func (s *Simulator) Run(symbol string, series models.Series, cache *indicator.Cache, predictor service.Predictor, decide service.DecisionFunc, lo, hi int) (*Result, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: empty series", indicator.ErrInsufficientHistory)
	}
	if cache.Len() != len(series) {
		return nil, fmt.Errorf("cache covers %d bars, series has %d", cache.Len(), len(series))
	}
	if lo < cache.Warmup() {
		lo = cache.Warmup()
	}
	if hi > len(series) {
		hi = len(series)
	}
	if lo >= hi {
		return nil, fmt.Errorf("%w: no tradable bars in [%d, %d) after warmup %d", indicator.ErrInsufficientHistory, lo, hi, cache.Warmup())
	}

	capital := s.cfg.InitialCapital
	var pos *position
	ledger := make(models.Ledger, 0, 16)
	equity := make(models.EquityCurve, 0, hi-lo)
	var cls classifier

	for i := lo; i < hi; i++ {
		bar := series[i]

		// Protective exits take priority over signal-driven exits. A bar
		// allows at most one state transition, so a bar that closes a
		// position never also opens one.
		closedThisBar := false
		if pos != nil {
			if price, reason, hit := pos.protectiveExit(bar); hit {
				capital += s.closePosition(&ledger, pos, series, i, price, reason)
				pos = nil
				closedThisBar = true
			}
		}

		features, err := cache.At(i)
		if err != nil {
			return nil, err
		}

		pred, err := predictor.Predict(symbol, i, features)
		if err != nil {
			return nil, &DivergenceError{Index: i, Reason: fmt.Sprintf("predict: %v", err)}
		}

		dec := decide(i, features, pred)
		gated := dec.Action != models.ActionHold &&
			dec.Confidence >= s.cfg.MinConfidence &&
			math.Abs(dec.PredictedMovePct) >= s.cfg.MinMovementPct

		if gated {
			cls.observe(dec.Action, series, i, s.cfg.LabelHorizon)
		}

		switch {
		case pos == nil && gated && !closedThisBar:
			if p, ok := s.openPosition(capital, bar, features, dec.Action, i); ok {
				capital -= p.entryCommission(s.cfg.CommissionPct)
				pos = p
			}
		case pos != nil && gated && opposes(pos.side, dec.Action):
			capital += s.closePosition(&ledger, pos, series, i, bar.Close, models.ExitSignalReversal)
			pos = nil
		}

		eq := capital
		if pos != nil {
			eq += pos.unrealized(bar.Close)
		}
		if math.IsNaN(eq) || math.IsInf(eq, 0) {
			return nil, &DivergenceError{Index: i, Reason: "equity is not finite"}
		}
		if eq <= 0 {
			return nil, &DivergenceError{Index: i, Reason: fmt.Sprintf("equity %.4f is not positive", eq)}
		}
		equity = append(equity, eq)
	}

	if pos != nil {
		last := hi - 1
		capital += s.closePosition(&ledger, pos, series, last, series[last].Close, models.ExitEndOfData)
		equity[len(equity)-1] = capital
	}

	metrics := computeMetrics(ledger, equity, s.cfg.InitialCapital)
	metrics.Accuracy, metrics.Precision, metrics.Recall = cls.rates()
	return &Result{Ledger: ledger, Equity: equity, Metrics: metrics}, nil
}

// openPosition sizes and opens a trade at the bar close with slippage.
// Returns false when available capital cannot cover cost plus commission.
func (s *Simulator) openPosition(capital float64, bar models.Bar, features models.FeatureVector, action models.Action, index int) (*position, bool) {
	side := models.SideLong
	exec := bar.Close * (1 + s.cfg.SlippagePct)
	if action == models.ActionSell {
		side = models.SideShort
		exec = bar.Close * (1 - s.cfg.SlippagePct)
	}

	qty := capital * s.cfg.MaxNotionalPct / exec
	if qty <= 0 {
		return nil, false
	}
	notional := qty * exec
	if notional+notional*s.cfg.CommissionPct > capital {
		return nil, false
	}

	atr, ok := features.Get(s.cfg.ATRFeature)
	if !ok || atr <= 0 {
		atr = bar.Close * 0.02
	}

	p := &position{
		side:       side,
		entryIndex: index,
		entryPrice: exec,
		quantity:   qty,
	}
	if side == models.SideLong {
		p.stopPrice = exec - s.cfg.StopLossATRMult*atr
		p.takePrice = exec + s.cfg.TakeProfitATRMult*atr
	} else {
		p.stopPrice = exec + s.cfg.StopLossATRMult*atr
		p.takePrice = exec - s.cfg.TakeProfitATRMult*atr
	}
	return p, true
}

// closePosition applies exit slippage, appends the trade with its full
// round-trip PnL (both commissions), and returns the cash delta for
// capital. The entry commission was already deducted from capital at
// entry, so the delta excludes it while the recorded PnL does not.
func (s *Simulator) closePosition(ledger *models.Ledger, pos *position, series models.Series, index int, price float64, reason models.ExitReason) float64 {
	exec := price * (1 - s.cfg.SlippagePct)
	if pos.side == models.SideShort {
		exec = price * (1 + s.cfg.SlippagePct)
	}

	gross := (exec - pos.entryPrice) * pos.quantity
	if pos.side == models.SideShort {
		gross = (pos.entryPrice - exec) * pos.quantity
	}
	exitCommission := exec * pos.quantity * s.cfg.CommissionPct
	entryCommission := pos.entryCommission(s.cfg.CommissionPct)
	pnl := gross - exitCommission - entryCommission

	notional := pos.entryPrice * pos.quantity
	trade := models.Trade{
		EntryTime:  series[pos.entryIndex].Time,
		ExitTime:   series[index].Time,
		Side:       pos.side,
		EntryPrice: pos.entryPrice,
		ExitPrice:  exec,
		Quantity:   pos.quantity,
		PnL:        pnl,
		PnLPct:     pnl / notional,
		ExitReason: reason,
	}
	*ledger = append(*ledger, trade)

	if s.log != nil {
		s.log.Debug("position closed",
			logger.String("symbol_side", string(pos.side)),
			logger.String("reason", string(reason)),
			logger.Int("bar", index),
			logger.Float64("pnl", pnl),
		)
	}
	return pnl + entryCommission
}

func (p *position) entryCommission(commissionPct float64) float64 {
	return p.entryPrice * p.quantity * commissionPct
}

func (p *position) unrealized(mark float64) float64 {
	if p.side == models.SideLong {
		return (mark - p.entryPrice) * p.quantity
	}
	return (p.entryPrice - mark) * p.quantity
}

// protectiveExit checks stop then target against the bar's extremes. Stops
// win ties because intrabar ordering is unknown and the conservative
// assumption is the adverse move happened first.
func (p *position) protectiveExit(bar models.Bar) (price float64, reason models.ExitReason, hit bool) {
	if p.side == models.SideLong {
		if bar.Low <= p.stopPrice {
			return p.stopPrice, models.ExitStopLoss, true
		}
		if bar.High >= p.takePrice {
			return p.takePrice, models.ExitTakeProfit, true
		}
		return 0, "", false
	}
	if bar.High >= p.stopPrice {
		return p.stopPrice, models.ExitStopLoss, true
	}
	if bar.Low <= p.takePrice {
		return p.takePrice, models.ExitTakeProfit, true
	}
	return 0, "", false
}

func opposes(side models.Side, action models.Action) bool {
	return (side == models.SideLong && action == models.ActionSell) ||
		(side == models.SideShort && action == models.ActionBuy)
}

// classifier grades gated signal direction against the realized forward
// return. Signals whose horizon extends past the series end are ungraded.
type classifier struct {
	tp, fp, fn, tn int
}

func (c *classifier) observe(action models.Action, series models.Series, index, horizon int) {
	j := index + horizon
	if j >= len(series) || series[index].Close <= 0 {
		return
	}
	up := series[j].Close > series[index].Close
	switch {
	case action == models.ActionBuy && up:
		c.tp++
	case action == models.ActionBuy && !up:
		c.fp++
	case action == models.ActionSell && up:
		c.fn++
	case action == models.ActionSell && !up:
		c.tn++
	}
}

func (c *classifier) rates() (accuracy, precision, recall float64) {
	total := c.tp + c.fp + c.fn + c.tn
	if total > 0 {
		accuracy = float64(c.tp+c.tn) / float64(total)
	}
	if c.tp+c.fp > 0 {
		precision = float64(c.tp) / float64(c.tp+c.fp)
	}
	if c.tp+c.fn > 0 {
		recall = float64(c.tp) / float64(c.tp+c.fn)
	}
	return
}
