package repository

import (
	"context"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	pkgcache "SignalDesk/pkg/cache"
	"SignalDesk/pkg/scheduler"
)

var walletSnapshotKey = pkgcache.GenerateKey("wallet", "snapshot")

// WalletCache holds the cached WalletSnapshot. It is mutated only by a fresh
// platform fetch or by the reconciler's overlay; whichever carries the later
// FetchedAt wins, so a settlement overlay is never clobbered by an older
// in-flight fetch.
type WalletCache struct {
	api   drepo.PlatformAPI
	cache pkgcache.Service
	clock scheduler.Clock

	mu   sync.RWMutex
	snap models.WalletSnapshot
}

// NewWalletCache creates the wallet read model. cache may be nil when no
// write-through persistence is wanted.
func NewWalletCache(api drepo.PlatformAPI, c pkgcache.Service, clock scheduler.Clock) *WalletCache {
	return &WalletCache{api: api, cache: c, clock: clock}
}

// Current returns the cached snapshot, refreshing from the platform when it
// is older than maxStale.
func (w *WalletCache) Current(ctx context.Context, maxStale time.Duration) (models.WalletSnapshot, error) {
	w.mu.RLock()
	snap := w.snap
	w.mu.RUnlock()

	if !snap.FetchedAt.IsZero() && w.clock.Now().Sub(snap.FetchedAt) <= maxStale {
		return snap, nil
	}
	return w.Refresh(ctx)
}

// Refresh fetches the authoritative snapshot. A snapshot older than the one
// already cached (e.g. a slow fetch racing the reconciler overlay) is
// discarded in favor of the cached one.
func (w *WalletCache) Refresh(ctx context.Context) (models.WalletSnapshot, error) {
	fresh, err := w.api.GetWalletSnapshot(ctx)
	if err != nil {
		w.mu.RLock()
		defer w.mu.RUnlock()
		return w.snap, err
	}
	if fresh.FetchedAt.IsZero() {
		fresh.FetchedAt = w.clock.Now()
	}

	w.mu.Lock()
	if fresh.NewerThan(w.snap) {
		w.snap = fresh
	}
	snap := w.snap
	w.mu.Unlock()

	w.persist(ctx, snap)
	return snap, nil
}

// Overlay replaces the movement balance with the settlement's authoritative
// figure. It applies only if at is not older than the cached snapshot.
func (w *WalletCache) Overlay(ctx context.Context, movementAfter float64, at time.Time) models.WalletSnapshot {
	w.mu.Lock()
	if !w.snap.FetchedAt.After(at) {
		w.snap.TotalBalance += movementAfter - w.snap.MovementBalance
		w.snap.MovementBalance = movementAfter
		w.snap.FetchedAt = at
	}
	snap := w.snap
	w.mu.Unlock()

	w.persist(ctx, snap)
	return snap
}

// Snapshot returns the cached value without refreshing.
func (w *WalletCache) Snapshot() models.WalletSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snap
}

func (w *WalletCache) persist(ctx context.Context, snap models.WalletSnapshot) {
	if w.cache == nil {
		return
	}
	// Best effort; the platform remains the source of truth.
	_ = w.cache.Set(ctx, walletSnapshotKey, snap, time.Hour)
}
