package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	icache "SignalDesk/internal/service/cache"
	applogger "SignalDesk/pkg/logger"
)

const catalogCacheKey = "catalog"

// SignalCatalog is the read model of currently eligible signals. Staleness up
// to one TTL is acceptable; while a commitment is being tracked the catalog
// is paused and serves only its cache, to keep rate-limit pressure off the
// single pending trade.
type SignalCatalog struct {
	api    drepo.PlatformAPI
	cache  *icache.TTLCache
	ttl    time.Duration
	paused atomic.Bool
	logger *applogger.Logger
}

// NewSignalCatalog creates the catalog read model.
func NewSignalCatalog(api drepo.PlatformAPI, ttl time.Duration, l *applogger.Logger) *SignalCatalog {
	return &SignalCatalog{
		api:    api,
		cache:  icache.NewTTLCache(),
		ttl:    ttl,
		logger: l,
	}
}

// SetPaused pauses or resumes background refreshing. Paused reads serve the
// cache regardless of age and never hit the platform.
func (c *SignalCatalog) SetPaused(p bool) {
	c.paused.Store(p)
}

// ListEligible returns the current offer set, refreshing from the platform
// when the cache has expired and the catalog is not paused.
func (c *SignalCatalog) ListEligible(ctx context.Context) (models.Catalog, error) {
	if v, ok := c.cache.Get(catalogCacheKey); ok {
		return v.(models.Catalog), nil
	}
	if c.paused.Load() {
		// Expired cache while paused: signals cannot be confirmed anyway,
		// an empty catalog is an honest answer.
		return models.Catalog{}, nil
	}
	return c.refresh(ctx)
}

// Lookup finds a signal by id in the cached offer set.
func (c *SignalCatalog) Lookup(ctx context.Context, signalID string) (models.Signal, bool, error) {
	cat, err := c.ListEligible(ctx)
	if err != nil {
		return models.Signal{}, false, err
	}
	for _, s := range cat.Signals {
		if s.ID == signalID {
			return s, true, nil
		}
	}
	return models.Signal{}, false, nil
}

// Invalidate drops the cache so the next read refetches.
func (c *SignalCatalog) Invalidate() {
	c.cache.Delete(catalogCacheKey)
}

func (c *SignalCatalog) refresh(ctx context.Context) (models.Catalog, error) {
	cat, err := c.api.ListEligibleSignals(ctx)
	if err != nil {
		c.logger.Warn("catalog refresh failed", applogger.Error(err))
		return models.Catalog{}, err
	}
	c.cache.Set(catalogCacheKey, cat, c.ttl)
	c.logger.Debug("catalog refreshed", applogger.Int("signals", len(cat.Signals)))
	return cat, nil
}
