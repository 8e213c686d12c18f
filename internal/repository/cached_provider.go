package repository

import (
	"context"
	"time"

	"StratGate/internal/domain/models"
	"StratGate/internal/domain/repository"
	"StratGate/pkg/cache"
	"StratGate/pkg/logger"
)

// CachedProvider decorates a SeriesProvider with a cache layer so
// repeated runs over the same symbol and range do not refetch. Cached
// series are validated again on the way out; a poisoned entry falls back
// to the source.
type CachedProvider struct {
	inner repository.SeriesProvider
	cache cache.Service
	ttl   time.Duration
	log   *logger.Logger
}

func NewCachedProvider(inner repository.SeriesProvider, c cache.Service, ttl time.Duration, log *logger.Logger) *CachedProvider {
	return &CachedProvider{inner: inner, cache: c, ttl: ttl, log: log}
}

func (p *CachedProvider) Fetch(ctx context.Context, symbol string, start, end time.Time, tf repository.Timeframe) (models.Series, error) {
	key := seriesKey(symbol, start, end, tf)

	var cached models.Series
	if err := p.cache.Get(ctx, key, &cached); err == nil {
		if cached.Validate() == nil && len(cached) > 0 {
			return cached, nil
		}
		if p.log != nil {
			p.log.Warn("dropping invalid cached series", logger.String("key", key))
		}
		_ = p.cache.Delete(ctx, key)
	}

	series, err := p.inner.Fetch(ctx, symbol, start, end, tf)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, key, series, p.ttl); err != nil && p.log != nil {
		p.log.Warn("series cache write failed", logger.String("key", key), logger.Error(err))
	}
	return series, nil
}

func seriesKey(symbol string, start, end time.Time, tf repository.Timeframe) string {
	return cache.GenerateKeyWithParams("series", symbol, tf, start.Unix(), end.Unix())
}
