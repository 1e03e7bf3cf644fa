package usecase

import (
	"context"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
)

func catalogOf(ids ...string) models.Catalog {
	cat := models.Catalog{FetchedAt: time.Now()}
	for _, id := range ids {
		cat.Signals = append(cat.Signals, models.Signal{
			ID:            id,
			CommitPercent: 10,
			TimeRemaining: time.Hour,
			FetchedAt:     cat.FetchedAt,
		})
	}
	return cat
}

func TestCatalogServesCacheWithinTTL(t *testing.T) {
	api := newFakeAPI()
	api.listFn = func(context.Context) (models.Catalog, error) {
		return catalogOf("s-1", "s-2"), nil
	}
	c := NewSignalCatalog(api, time.Minute, testLogger(t))

	for i := 0; i < 3; i++ {
		cat, err := c.ListEligible(context.Background())
		if err != nil {
			t.Fatalf("ListEligible: %v", err)
		}
		if len(cat.Signals) != 2 {
			t.Fatalf("signals = %d, want 2", len(cat.Signals))
		}
	}
	if got := api.callCount("list"); got != 1 {
		t.Fatalf("platform fetched %d times within TTL, want 1", got)
	}
}

func TestCatalogPausedServesEmptyWhenExpired(t *testing.T) {
	api := newFakeAPI()
	api.listFn = func(context.Context) (models.Catalog, error) {
		return catalogOf("s-1"), nil
	}
	c := NewSignalCatalog(api, time.Minute, testLogger(t))
	c.SetPaused(true)

	cat, err := c.ListEligible(context.Background())
	if err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	if len(cat.Signals) != 0 {
		t.Fatalf("paused catalog with no cache returned %d signals, want 0", len(cat.Signals))
	}
	if api.callCount("list") != 0 {
		t.Fatalf("paused catalog hit the platform")
	}
}

func TestCatalogPausedStillServesCache(t *testing.T) {
	api := newFakeAPI()
	api.listFn = func(context.Context) (models.Catalog, error) {
		return catalogOf("s-1"), nil
	}
	c := NewSignalCatalog(api, time.Minute, testLogger(t))

	if _, err := c.ListEligible(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	c.SetPaused(true)

	cat, err := c.ListEligible(context.Background())
	if err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	if len(cat.Signals) != 1 {
		t.Fatalf("cached signals should survive pausing, got %d", len(cat.Signals))
	}
	if api.callCount("list") != 1 {
		t.Fatalf("platform fetched %d times, want 1", api.callCount("list"))
	}
}

func TestCatalogInvalidateForcesRefetch(t *testing.T) {
	api := newFakeAPI()
	api.listFn = func(context.Context) (models.Catalog, error) {
		return catalogOf("s-1"), nil
	}
	c := NewSignalCatalog(api, time.Minute, testLogger(t))

	if _, err := c.ListEligible(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	c.Invalidate()
	if _, err := c.ListEligible(context.Background()); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if api.callCount("list") != 2 {
		t.Fatalf("platform fetched %d times after invalidate, want 2", api.callCount("list"))
	}
}

func TestCatalogLookup(t *testing.T) {
	api := newFakeAPI()
	api.listFn = func(context.Context) (models.Catalog, error) {
		return catalogOf("s-1", "s-2"), nil
	}
	c := NewSignalCatalog(api, time.Minute, testLogger(t))

	s, ok, err := c.Lookup(context.Background(), "s-2")
	if err != nil || !ok {
		t.Fatalf("Lookup s-2: ok=%v err=%v", ok, err)
	}
	if s.ID != "s-2" {
		t.Fatalf("wrong signal %q", s.ID)
	}

	_, ok, err = c.Lookup(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Lookup missing: %v", err)
	}
	if ok {
		t.Fatalf("missing signal reported found")
	}
}
