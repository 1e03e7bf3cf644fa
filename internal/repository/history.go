package repository

import (
	"context"
	"sync"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
)

// HistoryView is the trade-history read model: seeded from the platform,
// then settled commitments are prepended locally so the dashboard shows a
// result the moment it is reconciled, one fetch interval ahead of upstream.
type HistoryView struct {
	api drepo.PlatformAPI

	mu     sync.RWMutex
	items  []models.Commitment
	total  int64
	seeded bool
}

func NewHistoryView(api drepo.PlatformAPI) *HistoryView {
	return &HistoryView{api: api}
}

// Refresh reloads the first page from the platform. Local prepends are
// discarded; upstream truth wins.
func (h *HistoryView) Refresh(ctx context.Context, pageSize int) error {
	page, err := h.api.ListHistory(ctx, 1, pageSize)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.items = page.Items
	h.total = page.Total
	h.seeded = true
	h.mu.Unlock()
	return nil
}

// Prepend inserts a freshly settled commitment at the head, dropping any
// entry with the same usage id first so reapplication cannot duplicate.
func (h *HistoryView) Prepend(c models.Commitment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.items[:0]
	for _, it := range h.items {
		if it.ID != c.ID {
			kept = append(kept, it)
		}
	}
	h.items = append([]models.Commitment{c}, kept...)
	h.total++
}

// Page serves from the local view when it covers the request, falling back
// to the platform for deeper pages.
func (h *HistoryView) Page(ctx context.Context, page, pageSize int) (models.HistoryPage, error) {
	h.mu.RLock()
	seeded := h.seeded
	items := h.items
	total := h.total
	h.mu.RUnlock()

	if seeded && page == 1 && len(items) >= pageSize {
		return models.HistoryPage{Items: items[:pageSize], Total: total}, nil
	}
	if seeded && page == 1 {
		return models.HistoryPage{Items: items, Total: total}, nil
	}
	return h.api.ListHistory(ctx, page, pageSize)
}
