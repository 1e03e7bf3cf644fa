package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
	irepo "SignalDesk/internal/repository"
	pkgcache "SignalDesk/pkg/cache"
	"SignalDesk/pkg/scheduler"
)

type recordingSink struct {
	mu     sync.Mutex
	events []models.LifecycleEvent
}

func (s *recordingSink) Emit(ev models.LifecycleEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) ofType(tp models.LifecycleEventType) []models.LifecycleEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LifecycleEvent
	for _, ev := range s.events {
		if ev.Type == tp {
			out = append(out, ev)
		}
	}
	return out
}

type orchFixture struct {
	api  *fakeAPI
	m    *scheduler.Manual
	sink *recordingSink
	orch *Orchestrator
}

// newOrchFixture builds an orchestrator on a manual scheduler. cache backs
// the commitment store; passing the same cache across fixtures simulates a
// process restart with shared persistence.
func newOrchFixture(t *testing.T, api *fakeAPI, cache pkgcache.Service) *orchFixture {
	t.Helper()
	m := scheduler.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	l := testLogger(t)
	sink := &recordingSink{}

	gate := NewGate(250)
	catalog := NewSignalCatalog(api, 30*time.Second, l)
	confirmer := NewConfirmer(api, gate, nopMetrics{}, l)
	countdown := NewCountdownClock(m, m, time.Second)
	poller := NewSettlementPoller(api, m, m, testPolicy(), nopMetrics{}, l)
	wallets := irepo.NewWalletCache(api, nil, m)
	history := irepo.NewHistoryView(api)
	store := irepo.NewCacheCommitmentStore(cache)
	reconciler := NewOutcomeReconciler(wallets, history, store, nil, nopMetrics{}, l)

	orch := NewOrchestrator(catalog, confirmer, countdown, poller, reconciler,
		wallets, history, store, nopMetrics{}, l, sink)
	return &orchFixture{api: api, m: m, sink: sink, orch: orch}
}

// scriptedAPI wires the standard happy-path platform: one signal, a wallet,
// and a status endpoint that flips to terminal when told to.
func scriptedAPI(m func() time.Time, settlesIn time.Duration) (*fakeAPI, *struct {
	mu       sync.Mutex
	terminal *models.Commitment
}) {
	outcome := &struct {
		mu       sync.Mutex
		terminal *models.Commitment
	}{}

	api := newFakeAPI()
	api.listFn = func(context.Context) (models.Catalog, error) {
		now := m()
		return models.Catalog{
			Signals: []models.Signal{{
				ID:            "s-1",
				Title:         "Momentum",
				Kind:          models.KindDaily,
				CommitPercent: 10,
				TimeRemaining: time.Hour,
				FetchedAt:     now,
			}},
			Limits:    models.SignalLimits{DailyRemaining: 3, MaxConcurrent: 1},
			FetchedAt: now,
		}, nil
	}
	api.walletFn = func(context.Context) (models.WalletSnapshot, error) {
		return wallet(1000, m()), nil
	}
	api.confirmFn = func(_ context.Context, signalID string) (models.Commitment, error) {
		now := m()
		return models.Commitment{
			ID:              "u-1",
			SignalID:        signalID,
			CommittedAmount: 100,
			ConfirmedAt:     now,
			SettlesAt:       now.Add(settlesIn),
			Outcome:         models.OutcomePending,
		}, nil
	}
	api.statusFn = func(_ context.Context, id string) (models.Commitment, error) {
		outcome.mu.Lock()
		defer outcome.mu.Unlock()
		if outcome.terminal != nil {
			return *outcome.terminal, nil
		}
		return models.Commitment{ID: id, Outcome: models.OutcomePending}, nil
	}
	return api, outcome
}

func TestOrchestratorFullLifecycle(t *testing.T) {
	cache := pkgcache.NewMemoryCache()
	var fx *orchFixture
	api, outcome := scriptedAPI(func() time.Time { return fx.m.Now() }, 30*time.Second)
	fx = newOrchFixture(t, api, cache)
	ctx := context.Background()

	if err := fx.orch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st := fx.orch.State(); st.Phase != PhaseReady {
		t.Fatalf("initial phase = %s, want READY", st.Phase)
	}

	st, err := fx.orch.Confirm(ctx, "s-1", true)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if st.Phase != PhaseWaiting {
		t.Fatalf("phase after confirm = %s, want WAITING", st.Phase)
	}
	if st.Commitment == nil || st.Commitment.ID != "u-1" {
		t.Fatalf("commitment not tracked: %+v", st.Commitment)
	}
	if st.Remaining != 30*time.Second {
		t.Fatalf("remaining = %v, want 30s", st.Remaining)
	}

	// Countdown runs down to the settlement instant, then polling begins.
	fx.m.Advance(10 * time.Second)
	if st := fx.orch.State(); st.Phase != PhaseWaiting || st.Remaining != 20*time.Second {
		t.Fatalf("mid-countdown state = %s remaining %v", st.Phase, st.Remaining)
	}
	fx.m.Advance(20 * time.Second)
	if st := fx.orch.State(); st.Phase != PhaseSettling {
		t.Fatalf("phase at settlement instant = %s, want SETTLING", st.Phase)
	}
	if api.callCount("status") == 0 {
		t.Fatalf("no poll issued on entering SETTLING")
	}

	// Two pending polls later the outcome lands.
	fx.m.Advance(10 * time.Second)
	outcome.mu.Lock()
	outcome.terminal = &models.Commitment{
		ID:                   "u-1",
		Outcome:              models.OutcomeProfit,
		CommittedAmount:      100,
		ResultAmount:         15,
		ProfitPercent:        15,
		MovementBalanceAfter: 1115,
		SettledAt:            fx.m.Now(),
	}
	outcome.mu.Unlock()
	fx.m.Advance(5 * time.Second)

	st = fx.orch.State()
	if st.Phase != PhaseResultShown {
		t.Fatalf("phase after terminal poll = %s, want RESULT_SHOWN", st.Phase)
	}
	if st.Commitment.Outcome != models.OutcomeProfit {
		t.Fatalf("outcome = %s", st.Commitment.Outcome)
	}
	if st.Wallet.MovementBalance != 1115 {
		t.Fatalf("wallet overlay missing: movement = %v", st.Wallet.MovementBalance)
	}

	settledEvents := fx.sink.ofType(models.EventCommitmentSettled)
	if len(settledEvents) != 1 {
		t.Fatalf("settled events = %d, want 1", len(settledEvents))
	}

	if err := fx.orch.Acknowledge("u-1"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	st = fx.orch.State()
	if st.Phase != PhaseReady {
		t.Fatalf("phase after ack = %s, want READY", st.Phase)
	}
	if st.Commitment != nil {
		t.Fatalf("commitment still tracked after ack")
	}
}

func TestOrchestratorCountdownTickEvents(t *testing.T) {
	var fx *orchFixture
	api, _ := scriptedAPI(func() time.Time { return fx.m.Now() }, 3*time.Second)
	fx = newOrchFixture(t, api, pkgcache.NewMemoryCache())
	ctx := context.Background()

	if err := fx.orch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := fx.orch.Confirm(ctx, "s-1", true); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	fx.m.Advance(3 * time.Second)

	ticks := fx.sink.ofType(models.EventCountdownTick)
	wantRemaining := []int64{3, 2, 1, 0}
	if len(ticks) != len(wantRemaining) {
		t.Fatalf("tick events = %d, want %d", len(ticks), len(wantRemaining))
	}
	for i, ev := range ticks {
		if ev.Remaining != wantRemaining[i] {
			t.Fatalf("tick %d remaining = %d, want %d", i, ev.Remaining, wantRemaining[i])
		}
		if ev.UsageID != "u-1" {
			t.Fatalf("tick carries usage %q", ev.UsageID)
		}
	}
}

func TestOrchestratorRejectsConfirmWhilePending(t *testing.T) {
	var fx *orchFixture
	api, _ := scriptedAPI(func() time.Time { return fx.m.Now() }, 30*time.Second)
	fx = newOrchFixture(t, api, pkgcache.NewMemoryCache())
	ctx := context.Background()

	if err := fx.orch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := fx.orch.Confirm(ctx, "s-1", true); err != nil {
		t.Fatalf("first Confirm: %v", err)
	}
	confirms := api.callCount("confirm")

	_, err := fx.orch.Confirm(ctx, "s-1", true)
	var cerr *ConfirmationError
	if !errors.As(err, &cerr) {
		t.Fatalf("want ConfirmationError, got %v", err)
	}
	if api.callCount("confirm") != confirms {
		t.Fatalf("second confirm reached the platform")
	}
}

func TestOrchestratorConfirmRateLimitedLeavesStateUnchanged(t *testing.T) {
	var fx *orchFixture
	api, _ := scriptedAPI(func() time.Time { return fx.m.Now() }, 30*time.Second)
	api.confirmFn = func(context.Context, string) (models.Commitment, error) {
		return models.Commitment{}, models.ErrRateLimited
	}
	fx = newOrchFixture(t, api, pkgcache.NewMemoryCache())
	ctx := context.Background()

	if err := fx.orch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st, err := fx.orch.Confirm(ctx, "s-1", true)
	if !errors.Is(err, models.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	if st.Phase != PhaseReady || st.Commitment != nil {
		t.Fatalf("state changed on swallowed rate limit: %+v", st)
	}
}

func TestOrchestratorReattachesWithFutureSettlement(t *testing.T) {
	cache := pkgcache.NewMemoryCache()

	// First process confirms and dies without settling.
	var fx1 *orchFixture
	api1, _ := scriptedAPI(func() time.Time { return fx1.m.Now() }, 30*time.Second)
	fx1 = newOrchFixture(t, api1, cache)
	ctx := context.Background()
	if err := fx1.orch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := fx1.orch.Confirm(ctx, "s-1", true); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	fx1.orch.Shutdown()

	// Second process finds the persisted commitment with time still ahead.
	var fx2 *orchFixture
	api2, _ := scriptedAPI(func() time.Time { return fx2.m.Now() }, 30*time.Second)
	fx2 = newOrchFixture(t, api2, cache)
	if err := fx2.orch.Start(ctx); err != nil {
		t.Fatalf("reattach Start: %v", err)
	}
	st := fx2.orch.State()
	if st.Phase != PhaseWaiting {
		t.Fatalf("reattached phase = %s, want WAITING", st.Phase)
	}
	if st.Commitment == nil || st.Commitment.ID != "u-1" {
		t.Fatalf("reattached commitment = %+v", st.Commitment)
	}
}

func TestOrchestratorReattachesPastSettlementPollsImmediately(t *testing.T) {
	cache := pkgcache.NewMemoryCache()

	var fx1 *orchFixture
	api1, _ := scriptedAPI(func() time.Time { return fx1.m.Now() }, 30*time.Second)
	fx1 = newOrchFixture(t, api1, cache)
	ctx := context.Background()
	if err := fx1.orch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := fx1.orch.Confirm(ctx, "s-1", true); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	fx1.orch.Shutdown()

	// The new process comes up after the settlement instant already passed.
	var fx2 *orchFixture
	api2, _ := scriptedAPI(func() time.Time { return fx2.m.Now() }, 30*time.Second)
	fx2 = newOrchFixture(t, api2, cache)
	fx2.m.Advance(5 * time.Minute)
	if err := fx2.orch.Start(ctx); err != nil {
		t.Fatalf("reattach Start: %v", err)
	}
	if st := fx2.orch.State(); st.Phase != PhaseSettling {
		t.Fatalf("reattached phase = %s, want SETTLING", st.Phase)
	}
	fx2.m.Advance(0)
	if api2.callCount("status") == 0 {
		t.Fatalf("no immediate poll after reattaching past the settlement instant")
	}
}

func TestOrchestratorDiscardsStaleTerminalResponse(t *testing.T) {
	var fx *orchFixture
	api, outcome := scriptedAPI(func() time.Time { return fx.m.Now() }, time.Second)
	fx = newOrchFixture(t, api, pkgcache.NewMemoryCache())
	ctx := context.Background()

	if err := fx.orch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := fx.orch.Confirm(ctx, "s-1", true); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	// A terminal response for some other commitment id must never apply.
	outcome.mu.Lock()
	outcome.terminal = &models.Commitment{
		ID:                   "u-other",
		Outcome:              models.OutcomeProfit,
		MovementBalanceAfter: 9999,
	}
	outcome.mu.Unlock()

	fx.m.Advance(2 * time.Second)
	st := fx.orch.State()
	if st.Phase != PhaseSettling {
		t.Fatalf("stale terminal advanced the phase to %s", st.Phase)
	}
	if st.Wallet.MovementBalance == 9999 {
		t.Fatalf("stale terminal overlaid the wallet")
	}
}

func TestOrchestratorPollExhaustionAndResume(t *testing.T) {
	var fx *orchFixture
	api, outcome := scriptedAPI(func() time.Time { return fx.m.Now() }, time.Second)
	fx = newOrchFixture(t, api, pkgcache.NewMemoryCache())
	ctx := context.Background()

	if err := fx.orch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := fx.orch.Confirm(ctx, "s-1", true); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	// Outcome never lands; the wall-clock budget runs out.
	fx.m.Advance(10 * time.Minute)
	st := fx.orch.State()
	if st.Phase != PhaseSettling {
		t.Fatalf("phase after exhaustion = %s, want SETTLING still", st.Phase)
	}
	if !st.PollIdle {
		t.Fatalf("poll idle flag not set after budget exhaustion")
	}
	if st.Commitment == nil || st.Commitment.Outcome != models.OutcomePending {
		t.Fatalf("commitment dropped on exhaustion: %+v", st.Commitment)
	}

	// Resume restarts the loop and the outcome can still land.
	outcome.mu.Lock()
	outcome.terminal = &models.Commitment{
		ID:                   "u-1",
		Outcome:              models.OutcomeLoss,
		CommittedAmount:      100,
		ResultAmount:         -100,
		MovementBalanceAfter: 900,
		SettledAt:            fx.m.Now(),
	}
	outcome.mu.Unlock()

	fx.orch.Resume()
	fx.m.Advance(0)
	st = fx.orch.State()
	if st.Phase != PhaseResultShown {
		t.Fatalf("phase after resume = %s, want RESULT_SHOWN", st.Phase)
	}
	if st.Commitment.Outcome != models.OutcomeLoss {
		t.Fatalf("outcome = %s, want LOSS", st.Commitment.Outcome)
	}
}

// Phase timers and their polls must keep running after the HTTP request that
// triggered a transition is gone; echo cancels a request's context the moment
// the handler returns.
func TestOrchestratorPhaseWorkOutlivesRequestContext(t *testing.T) {
	var fx *orchFixture
	api, outcome := scriptedAPI(func() time.Time { return fx.m.Now() }, time.Second)
	fx = newOrchFixture(t, api, pkgcache.NewMemoryCache())

	if err := fx.orch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	reqCtx, cancel := context.WithCancel(context.Background())
	if _, err := fx.orch.Confirm(reqCtx, "s-1", true); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	cancel()

	// Polling runs its full budget even though the confirming request died.
	fx.m.Advance(10 * time.Minute)
	if api.callCount("status") == 0 {
		t.Fatalf("no polls issued after the request context was canceled")
	}
	st := fx.orch.State()
	if st.Phase != PhaseSettling || !st.PollIdle {
		t.Fatalf("phase = %s pollIdle = %v, want idle SETTLING", st.Phase, st.PollIdle)
	}

	// A resume triggered over HTTP has no live request context either; the
	// restarted poll loop must still reach the platform and land the outcome.
	outcome.mu.Lock()
	outcome.terminal = &models.Commitment{
		ID:                   "u-1",
		Outcome:              models.OutcomeProfit,
		CommittedAmount:      100,
		ResultAmount:         15,
		MovementBalanceAfter: 1115,
		SettledAt:            fx.m.Now(),
	}
	outcome.mu.Unlock()

	fx.orch.Resume()
	fx.m.Advance(0)
	if st := fx.orch.State(); st.Phase != PhaseResultShown {
		t.Fatalf("resumed polling never delivered the outcome: phase %s", st.Phase)
	}

	// The READY-entry refresh after an acknowledgement is a background fetch;
	// it too must survive the acknowledging request.
	before := api.callCount("history")
	if err := fx.orch.Acknowledge("u-1"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for api.callCount("history") <= before {
		if time.Now().After(deadline) {
			t.Fatalf("history refresh never ran after acknowledgement")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOrchestratorAcknowledgeGuards(t *testing.T) {
	var fx *orchFixture
	api, outcome := scriptedAPI(func() time.Time { return fx.m.Now() }, time.Second)
	fx = newOrchFixture(t, api, pkgcache.NewMemoryCache())
	ctx := context.Background()

	if err := fx.orch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := fx.orch.Acknowledge("u-1"); err == nil {
		t.Fatalf("ack in READY must fail")
	}

	if _, err := fx.orch.Confirm(ctx, "s-1", true); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	outcome.mu.Lock()
	outcome.terminal = &models.Commitment{
		ID: "u-1", Outcome: models.OutcomeProfit, MovementBalanceAfter: 1115,
	}
	outcome.mu.Unlock()
	fx.m.Advance(2 * time.Second)

	if err := fx.orch.Acknowledge("u-wrong"); err == nil {
		t.Fatalf("ack with mismatched usage id must fail")
	}
	if err := fx.orch.Acknowledge("u-1"); err != nil {
		t.Fatalf("matching ack failed: %v", err)
	}
}
