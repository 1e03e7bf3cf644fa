package usecase

import (
	"context"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	irepo "SignalDesk/internal/repository"
	applogger "SignalDesk/pkg/logger"
)

const (
	walletMaxStale  = 15 * time.Second
	historyPageSize = 20
)

// EventSink receives lifecycle events for fan-out (WebSocket, Kafka).
type EventSink interface {
	Emit(ev models.LifecycleEvent)
}

// Orchestrator owns the commitment lifecycle state machine:
//
//	READY -> WAITING -> SETTLING -> RESULT_SHOWN -> READY
//
// At most one commitment is tracked at a time. Every timer belongs to a
// phase and is cancelled on phase exit; poll responses for anything but the
// tracked commitment are discarded.
type Orchestrator struct {
	catalog    *SignalCatalog
	confirmer  *Confirmer
	countdown  *CountdownClock
	poller     *SettlementPoller
	reconciler *OutcomeReconciler
	wallets    *irepo.WalletCache
	history    *irepo.HistoryView
	store      drepo.CommitmentStore
	metrics    drepo.Metrics
	logger     *applogger.Logger
	sink       EventSink

	mu         sync.Mutex
	base       context.Context
	phase      Phase
	commitment *models.Commitment
	remaining  time.Duration
	pollIdle   bool
	confirming bool
}

// NewOrchestrator wires the lifecycle components together. sink may be nil.
func NewOrchestrator(
	catalog *SignalCatalog,
	confirmer *Confirmer,
	countdown *CountdownClock,
	poller *SettlementPoller,
	reconciler *OutcomeReconciler,
	wallets *irepo.WalletCache,
	history *irepo.HistoryView,
	store drepo.CommitmentStore,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	sink EventSink,
) *Orchestrator {
	return &Orchestrator{
		catalog:    catalog,
		confirmer:  confirmer,
		countdown:  countdown,
		poller:     poller,
		reconciler: reconciler,
		wallets:    wallets,
		history:    history,
		store:      store,
		metrics:    metrics,
		logger:     logger,
		sink:       sink,
		base:       context.Background(),
		phase:      PhaseReady,
	}
}

// Start initializes the orchestrator. A persisted pending commitment is
// reattached: WAITING if the settlement instant is still ahead, SETTLING with
// an immediate poll otherwise. Never silently dropped.
func (o *Orchestrator) Start(ctx context.Context) error {
	// Phase timers and their polls outlive any single request, so all
	// phase-lifetime work derives from this context, never a handler's.
	o.mu.Lock()
	o.base = ctx
	o.mu.Unlock()

	if _, err := o.wallets.Refresh(ctx); err != nil {
		o.logger.Warn("initial wallet fetch failed", applogger.Error(err))
	}
	if err := o.history.Refresh(ctx, historyPageSize); err != nil {
		o.logger.Warn("initial history fetch failed", applogger.Error(err))
	}

	cm, found, err := o.store.Load(ctx)
	if err != nil {
		o.logger.Warn("commitment store load failed", applogger.Error(err))
	}
	if !found || !cm.Active() {
		o.enterReady()
		return nil
	}

	o.logger.Info("reattaching to pending commitment",
		applogger.String("usage_id", cm.ID),
		applogger.Any("settles_at", cm.SettlesAt),
	)

	o.mu.Lock()
	o.commitment = &cm
	o.mu.Unlock()
	o.catalog.SetPaused(true)

	if cm.RemainingUntilSettlement(o.now()) > 0 {
		o.enterWaiting(cm)
	} else {
		o.enterSettling()
	}
	return nil
}

// State returns the externally visible snapshot.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := State{
		Phase:        o.phase,
		Wallet:       o.wallets.Snapshot(),
		Remaining:    o.remaining,
		PollAttempts: o.poller.Attempts(),
		PollIdle:     o.pollIdle,
	}
	if o.commitment != nil {
		cm := *o.commitment
		st.Commitment = &cm
	}
	return st
}

// Eligibility evaluates the gate against the current wallet.
func (o *Orchestrator) Eligibility(ctx context.Context, accountActive bool) (Verdict, error) {
	wallet, err := o.wallets.Current(ctx, walletMaxStale)
	if err != nil {
		return Verdict{}, err
	}
	return o.confirmer.gate.CanCommit(wallet, accountActive), nil
}

// Confirm commits a stake to signalID and, on success, transitions to
// WAITING. A rate-limited confirm is swallowed: state is unchanged and the
// returned state reflects READY.
func (o *Orchestrator) Confirm(ctx context.Context, signalID string, accountActive bool) (State, error) {
	o.mu.Lock()
	if o.phase != PhaseReady || o.confirming {
		reason := "another commitment is still pending"
		if o.phase == PhaseResultShown {
			reason = "previous result has not been acknowledged"
		}
		o.mu.Unlock()
		return o.State(), &ConfirmationError{Reason: reason}
	}
	o.confirming = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.confirming = false
		o.mu.Unlock()
	}()

	sig, ok, err := o.catalog.Lookup(ctx, signalID)
	if err != nil {
		return o.State(), &ConfirmationError{Reason: "could not load signals", Err: err}
	}
	if !ok {
		return o.State(), &ConfirmationError{Reason: "signal is no longer offered"}
	}
	if sig.Expired(o.now()) {
		return o.State(), &ConfirmationError{Reason: "signal availability window has closed"}
	}

	wallet, err := o.wallets.Current(ctx, walletMaxStale)
	if err != nil {
		return o.State(), &ConfirmationError{Reason: "could not load wallet", Err: err}
	}

	cm, err := o.confirmer.Confirm(ctx, sig, wallet, accountActive, false)
	if err != nil {
		return o.State(), err
	}

	if err := o.store.Save(ctx, cm); err != nil {
		o.logger.Warn("failed to persist commitment", applogger.Error(err))
	}

	o.mu.Lock()
	o.commitment = &cm
	o.pollIdle = false
	o.mu.Unlock()
	o.catalog.SetPaused(true)

	o.emit(models.LifecycleEvent{
		Type:     models.EventCommitmentConfirmed,
		UsageID:  cm.ID,
		SignalID: cm.SignalID,
		Amount:   cm.CommittedAmount,
		At:       o.now(),
	})

	o.enterWaiting(cm)
	return o.State(), nil
}

// Acknowledge dismisses a shown result and returns to READY.
func (o *Orchestrator) Acknowledge(usageID string) error {
	o.mu.Lock()
	if o.phase != PhaseResultShown {
		o.mu.Unlock()
		return &ConfirmationError{Reason: "no result awaiting acknowledgement"}
	}
	if o.commitment != nil && usageID != "" && o.commitment.ID != usageID {
		o.mu.Unlock()
		return &ConfirmationError{Reason: "acknowledgement does not match the shown result"}
	}
	o.commitment = nil
	o.mu.Unlock()

	o.enterReady()
	return nil
}

// Resume restarts polling after a budget exhaustion left the poller idle.
func (o *Orchestrator) Resume() {
	o.mu.Lock()
	if o.phase != PhaseSettling || !o.pollIdle || o.commitment == nil {
		o.mu.Unlock()
		return
	}
	o.pollIdle = false
	o.mu.Unlock()
	o.enterSettling()
}

// Signals exposes the catalog for the HTTP layer.
func (o *Orchestrator) Signals(ctx context.Context) (models.Catalog, error) {
	return o.catalog.ListEligible(ctx)
}

// Wallet exposes the cached wallet snapshot, refreshing when stale.
func (o *Orchestrator) Wallet(ctx context.Context) (models.WalletSnapshot, error) {
	return o.wallets.Current(ctx, walletMaxStale)
}

// History exposes the history read model.
func (o *Orchestrator) History(ctx context.Context, page, pageSize int) (models.HistoryPage, error) {
	return o.history.Page(ctx, page, pageSize)
}

// Shutdown cancels all phase timers. The persisted commitment survives for
// the next reattachment.
func (o *Orchestrator) Shutdown() {
	o.countdown.Stop()
	o.poller.Stop()
}

func (o *Orchestrator) enterReady() {
	o.mu.Lock()
	o.phase = PhaseReady
	o.remaining = 0
	o.pollIdle = false
	o.mu.Unlock()

	o.metrics.RecordPhase(string(PhaseReady))
	o.catalog.SetPaused(false)
	o.catalog.Invalidate()
	o.emitPhase(PhaseReady)

	// READY entry refreshes the read models; failures only delay display.
	ctx := o.lifetime()
	go func() {
		if _, err := o.catalog.ListEligible(ctx); err != nil {
			o.logger.Warn("catalog fetch on ready failed", applogger.Error(err))
		}
		if err := o.history.Refresh(ctx, historyPageSize); err != nil {
			o.logger.Warn("history fetch on ready failed", applogger.Error(err))
		}
	}()
}

func (o *Orchestrator) enterWaiting(cm models.Commitment) {
	o.mu.Lock()
	o.phase = PhaseWaiting
	o.remaining = cm.RemainingUntilSettlement(o.now())
	o.mu.Unlock()

	o.metrics.RecordPhase(string(PhaseWaiting))
	o.emitPhase(PhaseWaiting)

	o.countdown.Start(cm.SettlesAt,
		func(remaining time.Duration) {
			o.mu.Lock()
			stale := o.commitment == nil || o.commitment.ID != cm.ID
			o.remaining = remaining
			o.mu.Unlock()
			if stale {
				return
			}
			o.emit(models.LifecycleEvent{
				Type:      models.EventCountdownTick,
				UsageID:   cm.ID,
				Remaining: int64(remaining / time.Second),
				At:        o.now(),
			})
		},
		func() {
			o.mu.Lock()
			stale := o.commitment == nil || o.commitment.ID != cm.ID
			o.mu.Unlock()
			if stale {
				return
			}
			o.enterSettling()
		},
	)
}

func (o *Orchestrator) enterSettling() {
	o.mu.Lock()
	if o.commitment == nil {
		o.mu.Unlock()
		return
	}
	cm := *o.commitment
	o.phase = PhaseSettling
	o.remaining = 0
	o.mu.Unlock()

	o.metrics.RecordPhase(string(PhaseSettling))
	o.emitPhase(PhaseSettling)

	ctx := o.lifetime()
	o.poller.Start(ctx, cm,
		func(settled models.Commitment) { o.onTerminal(ctx, settled) },
		func() {
			o.mu.Lock()
			if o.commitment != nil && o.commitment.ID == cm.ID {
				o.pollIdle = true
			}
			o.mu.Unlock()
		},
	)
}

func (o *Orchestrator) onTerminal(ctx context.Context, settled models.Commitment) {
	o.mu.Lock()
	if o.commitment == nil || o.commitment.ID != settled.ID {
		// Stale response from a torn-down phase; never applied.
		o.mu.Unlock()
		return
	}
	// Carry over fields the status endpoint does not echo.
	if settled.SignalID == "" {
		settled.SignalID = o.commitment.SignalID
	}
	if settled.ConfirmedAt.IsZero() {
		settled.ConfirmedAt = o.commitment.ConfirmedAt
	}
	if settled.SettlesAt.IsZero() {
		settled.SettlesAt = o.commitment.SettlesAt
	}
	o.mu.Unlock()

	applied, err := o.reconciler.Apply(ctx, settled)
	if err != nil {
		o.logger.Error("reconcile failed", applogger.Error(err))
		return
	}

	o.mu.Lock()
	o.commitment = &settled
	o.phase = PhaseResultShown
	o.mu.Unlock()

	o.metrics.RecordPhase(string(PhaseResultShown))
	if applied {
		o.emit(models.LifecycleEvent{
			Type:     models.EventCommitmentSettled,
			UsageID:  settled.ID,
			SignalID: settled.SignalID,
			Outcome:  settled.Outcome,
			Amount:   settled.ResultAmount,
			At:       o.now(),
		})
	}
	o.emitPhase(PhaseResultShown)
}

func (o *Orchestrator) emitPhase(p Phase) {
	o.emit(models.LifecycleEvent{Type: models.EventPhaseChanged, Phase: string(p), At: o.now()})
}

func (o *Orchestrator) emit(ev models.LifecycleEvent) {
	if o.sink != nil {
		o.sink.Emit(ev)
	}
}

// lifetime returns the context phase work runs under: the one handed to
// Start, which tracks the process, not whichever request triggered the
// transition.
func (o *Orchestrator) lifetime() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.base
}

func (o *Orchestrator) now() time.Time {
	return o.countdown.clock.Now()
}
