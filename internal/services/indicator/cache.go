package indicator

import (
	"errors"
	"fmt"

	"StratGate/internal/domain/models"
	"StratGate/internal/domain/service"
)

// ErrInsufficientHistory is returned when an index falls before the warmup
// period or a series is too short for the requested computation. It is
// always fatal to the requesting fold; values are never padded with zeros.
var ErrInsufficientHistory = errors.New("insufficient history")

// Cache holds the precomputed feature matrix for one series. Features are
// computed exactly once at construction; lookups are O(1) slice reads.
// Read-only after Build, safe to share across folds within one symbol's
// pipeline.
type Cache struct {
	warmup int
	rows   []models.FeatureVector
}

// Build invokes the extractor once over the full series and stores one
// FeatureVector per bar. Recomputing features per backtest step would turn
// an O(n) evaluation into O(n^2); the cache restores O(n).
func Build(series models.Series, fe service.FeatureExtractor) (*Cache, error) {
	warmup := fe.Warmup()
	if warmup < 0 {
		return nil, fmt.Errorf("extractor reported negative warmup %d", warmup)
	}
	if len(series) <= warmup {
		return nil, fmt.Errorf("%w: %d bars, warmup %d", ErrInsufficientHistory, len(series), warmup)
	}

	rows, err := fe.Compute(series)
	if err != nil {
		return nil, fmt.Errorf("compute features: %w", err)
	}
	if len(rows) != len(series) {
		return nil, fmt.Errorf("extractor returned %d rows for %d bars", len(rows), len(series))
	}

	return &Cache{warmup: warmup, rows: rows}, nil
}

// Warmup returns the first valid index.
func (c *Cache) Warmup() int { return c.warmup }

// Len returns the number of bars covered by the cache.
func (c *Cache) Len() int { return len(c.rows) }

// At returns the feature vector for index. Indices before the warmup
// period are undefined and rejected rather than silently zeroed.
func (c *Cache) At(index int) (models.FeatureVector, error) {
	if index < c.warmup || index >= len(c.rows) {
		return nil, fmt.Errorf("%w: index %d outside [%d, %d)", ErrInsufficientHistory, index, c.warmup, len(c.rows))
	}
	return c.rows[index], nil
}
