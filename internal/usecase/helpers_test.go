package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
	applogger "SignalDesk/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// fakeAPI is a scriptable PlatformAPI. Unset functions return zero values.
// Calls on a dead context fail before reaching the scripted handler, the way
// the HTTP client fails before the request leaves the process.
type fakeAPI struct {
	mu        sync.Mutex
	calls     map[string]int
	listFn    func(ctx context.Context) (models.Catalog, error)
	confirmFn func(ctx context.Context, signalID string) (models.Commitment, error)
	statusFn  func(ctx context.Context, usageID string) (models.Commitment, error)
	historyFn func(ctx context.Context, page, pageSize int) (models.HistoryPage, error)
	walletFn  func(ctx context.Context) (models.WalletSnapshot, error)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(map[string]int)}
}

func (f *fakeAPI) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeAPI) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) ListEligibleSignals(ctx context.Context) (models.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return models.Catalog{}, err
	}
	f.count("list")
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return models.Catalog{}, nil
}

func (f *fakeAPI) ConfirmSignal(ctx context.Context, signalID string) (models.Commitment, error) {
	if err := ctx.Err(); err != nil {
		return models.Commitment{}, err
	}
	f.count("confirm")
	if f.confirmFn != nil {
		return f.confirmFn(ctx, signalID)
	}
	return models.Commitment{}, nil
}

func (f *fakeAPI) GetCommitmentStatus(ctx context.Context, usageID string) (models.Commitment, error) {
	if err := ctx.Err(); err != nil {
		return models.Commitment{}, err
	}
	f.count("status")
	if f.statusFn != nil {
		return f.statusFn(ctx, usageID)
	}
	return models.Commitment{}, nil
}

func (f *fakeAPI) ListHistory(ctx context.Context, page, pageSize int) (models.HistoryPage, error) {
	if err := ctx.Err(); err != nil {
		return models.HistoryPage{}, err
	}
	f.count("history")
	if f.historyFn != nil {
		return f.historyFn(ctx, page, pageSize)
	}
	return models.HistoryPage{}, nil
}

func (f *fakeAPI) GetWalletSnapshot(ctx context.Context) (models.WalletSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.WalletSnapshot{}, err
	}
	f.count("wallet")
	if f.walletFn != nil {
		return f.walletFn(ctx)
	}
	return models.WalletSnapshot{}, nil
}

// nopMetrics satisfies repository.Metrics for tests.
type nopMetrics struct{}

func (nopMetrics) RecordPhase(string)            {}
func (nopMetrics) RecordPoll(string)             {}
func (nopMetrics) RecordSettlement(string)       {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}

func wallet(movement float64, at time.Time) models.WalletSnapshot {
	return models.WalletSnapshot{
		MainBalance:     1000,
		MovementBalance: movement,
		TotalBalance:    1000 + movement,
		FetchedAt:       at,
	}
}
