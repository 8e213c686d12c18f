package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinWarmup(t *testing.T) {
	e := NewBuiltinExtractor()
	assert.Equal(t, 21, e.Warmup())
}

func TestBuiltinRowCount(t *testing.T) {
	e := NewBuiltinExtractor()
	series := syntheticSeries(120)
	rows, err := e.Compute(series)
	require.NoError(t, err)
	require.Len(t, rows, 120)

	for i := e.Warmup(); i < len(rows); i++ {
		for _, name := range []string{FeatSMA20, FeatEMA20, FeatRSI14, FeatATR14, FeatMom10, FeatVol20, FeatVolumeZ} {
			v, ok := rows[i].Get(name)
			require.True(t, ok, "row %d missing %s", i, name)
			assert.False(t, math.IsNaN(v), "row %d %s is NaN", i, name)
			assert.False(t, math.IsInf(v, 0), "row %d %s is Inf", i, name)
		}
	}
}

func TestBuiltinEmptySeries(t *testing.T) {
	e := NewBuiltinExtractor()
	_, err := e.Compute(nil)
	assert.Error(t, err)
}

func TestRollingMean(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	out := rollingMean(xs, 3)
	assert.Equal(t, 0.0, out[1])
	assert.InDelta(t, 2.0, out[2], 1e-12)
	assert.InDelta(t, 3.0, out[3], 1e-12)
	assert.InDelta(t, 4.0, out[4], 1e-12)
}

func TestRSIBounds(t *testing.T) {
	series := syntheticSeries(200)
	out := relativeStrength(series.Closes(), 14)
	for i := 15; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i], 0.0)
		assert.LessOrEqual(t, out[i], 100.0)
	}
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	out := relativeStrength(closes, 14)
	assert.Equal(t, 100.0, out[14])
	assert.Equal(t, 100.0, out[29])
}

func TestATRPositive(t *testing.T) {
	series := syntheticSeries(100)
	out := averageTrueRange(series, 14)
	for i := 14; i < len(out); i++ {
		assert.Greater(t, out[i], 0.0)
	}
}

func TestMomentum(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 110}
	out := momentum(closes, 5)
	assert.InDelta(t, 0.10, out[5], 1e-12)
}
