package indicator

import (
	"fmt"
	"math"

	"StratGate/internal/domain/models"
)

// Feature names produced by the built-in extractor.
const (
	FeatSMA20   = "sma_20"
	FeatEMA20   = "ema_20"
	FeatRSI14   = "rsi_14"
	FeatATR14   = "atr_14"
	FeatMom10   = "mom_10"
	FeatVol20   = "vol_20"
	FeatVolumeZ = "volume_z_20"
)

// BuiltinExtractor computes a standard technical feature set over the full
// series in a single pass per indicator. It is pure and deterministic.
type BuiltinExtractor struct {
	SMAPeriod  int
	EMAPeriod  int
	RSIPeriod  int
	ATRPeriod  int
	MomPeriod  int
	VolPeriod  int
	VolumeZWin int
}

// NewBuiltinExtractor returns the default configuration.
func NewBuiltinExtractor() *BuiltinExtractor {
	return &BuiltinExtractor{
		SMAPeriod:  20,
		EMAPeriod:  20,
		RSIPeriod:  14,
		ATRPeriod:  14,
		MomPeriod:  10,
		VolPeriod:  20,
		VolumeZWin: 20,
	}
}

// Warmup is the longest lookback among the configured indicators.
func (e *BuiltinExtractor) Warmup() int {
	w := e.SMAPeriod
	for _, p := range []int{e.EMAPeriod, e.RSIPeriod + 1, e.ATRPeriod + 1, e.MomPeriod, e.VolPeriod + 1, e.VolumeZWin} {
		if p > w {
			w = p
		}
	}
	return w
}

// Compute returns one feature vector per bar. Rows before Warmup carry
// partially filled values and must not be read by consumers.
func (e *BuiltinExtractor) Compute(series models.Series) ([]models.FeatureVector, error) {
	n := len(series)
	if n == 0 {
		return nil, fmt.Errorf("empty series")
	}

	closes := series.Closes()
	sma := rollingMean(closes, e.SMAPeriod)
	ema := ewma(closes, e.EMAPeriod)
	rsi := relativeStrength(closes, e.RSIPeriod)
	atr := averageTrueRange(series, e.ATRPeriod)
	mom := momentum(closes, e.MomPeriod)
	vol := rollingLogVol(closes, e.VolPeriod)
	volz := volumeZScore(series, e.VolumeZWin)

	rows := make([]models.FeatureVector, n)
	for i := 0; i < n; i++ {
		rows[i] = models.FeatureVector{
			FeatSMA20:   sma[i],
			FeatEMA20:   ema[i],
			FeatRSI14:   rsi[i],
			FeatATR14:   atr[i],
			FeatMom10:   mom[i],
			FeatVol20:   vol[i],
			FeatVolumeZ: volz[i],
		}
	}
	return rows, nil
}

func rollingMean(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	sum := 0.0
	for i, x := range xs {
		sum += x
		if i >= period {
			sum -= xs[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

func ewma(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}

// relativeStrength implements Wilder's RSI.
func relativeStrength(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) <= period {
		return out
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiFrom(avgGain, avgLoss)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// averageTrueRange implements Wilder's ATR.
func averageTrueRange(series models.Series, period int) []float64 {
	out := make([]float64, len(series))
	if len(series) <= period {
		return out
	}
	tr := make([]float64, len(series))
	tr[0] = series[0].High - series[0].Low
	for i := 1; i < len(series); i++ {
		hl := series[i].High - series[i].Low
		hc := math.Abs(series[i].High - series[i-1].Close)
		lc := math.Abs(series[i].Low - series[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out[period] = atr
	for i := period + 1; i < len(series); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}
	return out
}

func momentum(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := period; i < len(closes); i++ {
		if closes[i-period] > 0 {
			out[i] = (closes[i] - closes[i-period]) / closes[i-period]
		}
	}
	return out
}

// rollingLogVol is the sample standard deviation of log returns over the
// trailing window.
func rollingLogVol(closes []float64, window int) []float64 {
	out := make([]float64, len(closes))
	rets := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 && closes[i] > 0 {
			rets[i] = math.Log(closes[i] / closes[i-1])
		}
	}
	for i := window; i < len(closes); i++ {
		var sum, sum2 float64
		for j := i - window + 1; j <= i; j++ {
			sum += rets[j]
			sum2 += rets[j] * rets[j]
		}
		n := float64(window)
		mean := sum / n
		variance := (sum2 - n*mean*mean) / (n - 1)
		if variance < 0 {
			variance = 0
		}
		out[i] = math.Sqrt(variance)
	}
	return out
}

func volumeZScore(series models.Series, window int) []float64 {
	out := make([]float64, len(series))
	for i := window; i < len(series); i++ {
		var sum, sum2 float64
		for j := i - window; j < i; j++ {
			sum += series[j].Volume
			sum2 += series[j].Volume * series[j].Volume
		}
		n := float64(window)
		mean := sum / n
		variance := (sum2 - n*mean*mean) / (n - 1)
		if variance <= 0 {
			continue
		}
		out[i] = (series[i].Volume - mean) / math.Sqrt(variance)
	}
	return out
}
