package usecase

import (
	"context"
	"fmt"
	"sync"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	irepo "SignalDesk/internal/repository"
	applogger "SignalDesk/pkg/logger"
)

// OutcomeReconciler applies a terminal outcome exactly once: finalize the
// commitment, overlay the wallet snapshot, prepend history, clear the
// persisted active commitment, and archive. A second apply with the same
// usage id and outcome is a no-op.
type OutcomeReconciler struct {
	wallets *irepo.WalletCache
	history *irepo.HistoryView
	store   drepo.CommitmentStore
	archive drepo.Archive // nil when archiving is disabled
	metrics drepo.Metrics
	logger  *applogger.Logger

	mu      sync.Mutex
	applied map[string]models.Outcome
}

// NewOutcomeReconciler creates the reconciler. archive may be nil.
func NewOutcomeReconciler(w *irepo.WalletCache, h *irepo.HistoryView, store drepo.CommitmentStore, archive drepo.Archive, m drepo.Metrics, l *applogger.Logger) *OutcomeReconciler {
	return &OutcomeReconciler{
		wallets: w,
		history: h,
		store:   store,
		archive: archive,
		metrics: m,
		logger:  l,
		applied: make(map[string]models.Outcome),
	}
}

// Apply reconciles a settled commitment. It returns true when the outcome was
// applied by this call, false when it had already been applied.
func (r *OutcomeReconciler) Apply(ctx context.Context, cm models.Commitment) (bool, error) {
	if !cm.Outcome.Terminal() {
		return false, fmt.Errorf("reconcile %s: outcome %s is not terminal", cm.ID, cm.Outcome)
	}

	r.mu.Lock()
	if prev, ok := r.applied[cm.ID]; ok && prev == cm.Outcome {
		r.mu.Unlock()
		return false, nil
	}
	r.applied[cm.ID] = cm.Outcome
	r.mu.Unlock()

	if cm.SettledAt.IsZero() {
		cm.SettledAt = cm.SettlesAt
	}

	// The settlement already tells us the movement balance; no extra wallet
	// fetch just to learn it.
	r.wallets.Overlay(ctx, cm.MovementBalanceAfter, cm.SettledAt)
	r.history.Prepend(cm)

	if err := r.store.Clear(ctx); err != nil {
		r.logger.Warn("failed to clear persisted commitment", applogger.Error(err))
	}
	if r.archive != nil {
		if err := r.archive.Append(ctx, cm); err != nil {
			// Archive is best effort; the read models already reflect truth.
			r.metrics.RecordError("archive")
			r.logger.Warn("archive append failed", applogger.Error(err))
		}
	}

	r.metrics.RecordSettlement(string(cm.Outcome))
	r.logger.Info("commitment settled",
		applogger.String("usage_id", cm.ID),
		applogger.String("outcome", string(cm.Outcome)),
		applogger.Any("result_amount", cm.ResultAmount),
	)
	return true, nil
}
