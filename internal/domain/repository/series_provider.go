package repository

import (
	"context"
	"time"

	"StratGate/internal/domain/models"
)

// SeriesProvider fetches historical bars for one symbol. Implementations
// must return bars sorted ascending by timestamp with no duplicates; the
// engine rejects, and does not silently fix, malformed input.
type SeriesProvider interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time, tf Timeframe) (models.Series, error)
}
