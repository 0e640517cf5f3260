// SPDX-License-Identifier: MIT

package guide

import (
	"context"
	"sync"
	"time"

	"github.com/aircheckd/aircheck/internal/log"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// SeriesCachePersistence stores the cached series list so it survives
// restarts. Implementations may be nil-safe no-ops.
type SeriesCachePersistence interface {
	LoadSeriesCache() ([]Series, time.Time, error)
	SaveSeriesCache(series []Series, expiresAt time.Time) error
}

// SeriesCache serves the series directory with a TTL, collapsing concurrent
// refreshes and degrading to the last known value on upstream failure.
type SeriesCache struct {
	client  *Client
	persist SeriesCachePersistence
	ttl     time.Duration
	logger  zerolog.Logger
	now     func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	value     []Series
	expiresAt time.Time
}

// NewSeriesCache creates a cache. persist may be nil.
func NewSeriesCache(client *Client, persist SeriesCachePersistence, ttl time.Duration) *SeriesCache {
	sc := &SeriesCache{
		client:  client,
		persist: persist,
		ttl:     ttl,
		logger:  log.WithComponent("guide.cache"),
		now:     time.Now,
	}
	if sc.ttl <= 0 {
		sc.ttl = time.Hour
	}
	if persist != nil {
		if value, expiresAt, err := persist.LoadSeriesCache(); err == nil && value != nil {
			sc.value = value
			sc.expiresAt = expiresAt
		}
	}
	return sc
}

// Get returns the series list, refreshing from upstream when the cached
// value has expired. On refresh failure the stale value is served when one
// exists; otherwise the error is returned.
func (sc *SeriesCache) Get(ctx context.Context) ([]Series, error) {
	sc.mu.Lock()
	if sc.value != nil && sc.expiresAt.After(sc.now()) {
		value := sc.value
		sc.mu.Unlock()
		return value, nil
	}
	stale := sc.value
	sc.mu.Unlock()

	fresh, err, _ := sc.group.Do("series", func() (any, error) {
		series, err := sc.client.SeriesList(ctx)
		if err != nil {
			return nil, err
		}
		expiresAt := sc.now().Add(sc.ttl)
		sc.mu.Lock()
		sc.value = series
		sc.expiresAt = expiresAt
		sc.mu.Unlock()
		if sc.persist != nil {
			if err := sc.persist.SaveSeriesCache(series, expiresAt); err != nil {
				sc.logger.Warn().Err(err).Msg("failed to persist series cache")
			}
		}
		return series, nil
	})
	if err != nil {
		if stale != nil {
			sc.logger.Warn().Err(err).Msg("series refresh failed, serving stale cache")
			return stale, nil
		}
		return nil, err
	}
	return fresh.([]Series), nil
}
