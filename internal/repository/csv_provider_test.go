package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StratGate/internal/domain/models"
	"StratGate/internal/domain/repository"
	"StratGate/pkg/cache"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func sampleCSV(n int) string {
	out := "time,open,high,low,close,volume\n"
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		d := base.AddDate(0, 0, i)
		out += fmt.Sprintf("%s,100,101,99,100.5,1500\n", d.Format("2006-01-02"))
	}
	return out
}

func TestCSVProviderFetch(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "BTCUSDT_1d.csv", sampleCSV(30))

	p := NewCSVProvider(dir)
	series, err := p.Fetch(context.Background(), "BTCUSDT", time.Time{}, time.Time{}, repository.TF1d)
	require.NoError(t, err)
	require.Len(t, series, 30)
	assert.Equal(t, 100.5, series[0].Close)
	assert.True(t, series[1].Time.After(series[0].Time))
}

func TestCSVProviderRangeFilter(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "ETHUSDT.csv", sampleCSV(30))

	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 19, 0, 0, 0, 0, time.UTC)

	p := NewCSVProvider(dir)
	series, err := p.Fetch(context.Background(), "ETHUSDT", start, end, repository.TF1d)
	require.NoError(t, err)
	assert.Len(t, series, 10)
}

func TestCSVProviderRejectsMalformedSeries(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "BAD.csv", "time,open,high,low,close,volume\n"+
		"2024-03-02,100,101,99,100,10\n"+
		"2024-03-01,100,101,99,100,10\n") // out of order

	p := NewCSVProvider(dir)
	_, err := p.Fetch(context.Background(), "BAD", time.Time{}, time.Time{}, repository.TF1d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not after")
}

func TestCSVProviderMissingFile(t *testing.T) {
	p := NewCSVProvider(t.TempDir())
	_, err := p.Fetch(context.Background(), "NOPE", time.Time{}, time.Time{}, repository.TF1d)
	assert.Error(t, err)
}

type countingProvider struct {
	inner repository.SeriesProvider
	calls int
}

func (c *countingProvider) Fetch(ctx context.Context, symbol string, start, end time.Time, tf repository.Timeframe) (models.Series, error) {
	c.calls++
	return c.inner.Fetch(ctx, symbol, start, end, tf)
}

func TestCachedProviderAvoidsRefetch(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "SOLUSDT.csv", sampleCSV(20))

	counting := &countingProvider{inner: NewCSVProvider(dir)}
	cached := NewCachedProvider(counting, cache.NewMemoryCache(), time.Minute, nil)

	ctx := context.Background()
	a, err := cached.Fetch(ctx, "SOLUSDT", time.Time{}, time.Time{}, repository.TF1d)
	require.NoError(t, err)
	b, err := cached.Fetch(ctx, "SOLUSDT", time.Time{}, time.Time{}, repository.TF1d)
	require.NoError(t, err)

	assert.Equal(t, 1, counting.calls)
	assert.Equal(t, len(a), len(b))
	assert.Equal(t, a[0].Close, b[0].Close)
}

func TestCachedProviderDistinctRanges(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "SOLUSDT.csv", sampleCSV(20))

	counting := &countingProvider{inner: NewCSVProvider(dir)}
	cached := NewCachedProvider(counting, cache.NewMemoryCache(), time.Minute, nil)

	ctx := context.Background()
	_, err := cached.Fetch(ctx, "SOLUSDT", time.Time{}, time.Time{}, repository.TF1d)
	require.NoError(t, err)
	_, err = cached.Fetch(ctx, "SOLUSDT", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), time.Time{}, repository.TF1d)
	require.NoError(t, err)

	assert.Equal(t, 2, counting.calls)
}
