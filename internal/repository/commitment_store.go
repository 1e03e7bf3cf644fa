package repository

import (
	"context"
	"errors"
	"fmt"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	pkgcache "SignalDesk/pkg/cache"
)

var activeCommitmentKey = pkgcache.GenerateKey("commitment", "active")

// CacheCommitmentStore persists the active commitment through pkg/cache, so a
// restarted process reattaches to a pending trade instead of dropping it.
// With the layered cache this survives process restarts via Redis; with the
// memory cache it covers orchestrator reconstruction within one process.
type CacheCommitmentStore struct {
	cache pkgcache.Service
}

// NewCacheCommitmentStore creates a commitment store on top of a cache service.
func NewCacheCommitmentStore(c pkgcache.Service) drepo.CommitmentStore {
	return &CacheCommitmentStore{cache: c}
}

func (s *CacheCommitmentStore) Save(ctx context.Context, c models.Commitment) error {
	if !c.Active() {
		return fmt.Errorf("commitment store: refusing to save non-pending commitment %q", c.ID)
	}
	// No TTL: the entry lives until settled or cleared. The server remains
	// the source of truth; a stale entry is corrected on reattachment.
	if err := s.cache.Set(ctx, activeCommitmentKey, c, 0); err != nil {
		return fmt.Errorf("commitment store save: %w", err)
	}
	return nil
}

func (s *CacheCommitmentStore) Load(ctx context.Context) (models.Commitment, bool, error) {
	var c models.Commitment
	err := s.cache.Get(ctx, activeCommitmentKey, &c)
	if err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return models.Commitment{}, false, nil
		}
		return models.Commitment{}, false, fmt.Errorf("commitment store load: %w", err)
	}
	return c, c.ID != "", nil
}

func (s *CacheCommitmentStore) Clear(ctx context.Context) error {
	return s.cache.Delete(ctx, activeCommitmentKey)
}
