package repository

import (
	"context"

	"SignalDesk/internal/domain/models"
)

// PlatformAPI is the upstream trading platform, REST-shaped. Any call may
// fail with models.ErrRateLimited; callers treat that as transient.
type PlatformAPI interface {
	ListEligibleSignals(ctx context.Context) (models.Catalog, error)
	ConfirmSignal(ctx context.Context, signalID string) (models.Commitment, error)
	GetCommitmentStatus(ctx context.Context, usageID string) (models.Commitment, error)
	ListHistory(ctx context.Context, page, pageSize int) (models.HistoryPage, error)
	GetWalletSnapshot(ctx context.Context) (models.WalletSnapshot, error)
}

// CommitmentStore persists the active pending commitment so a reconstructed
// orchestrator can reattach instead of dropping it.
type CommitmentStore interface {
	Save(ctx context.Context, c models.Commitment) error
	Load(ctx context.Context) (models.Commitment, bool, error)
	Clear(ctx context.Context) error
}

// Publisher emits lifecycle events for downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev models.LifecycleEvent) error
	Close() error
}

// Archive is an append-only store of settled commitments.
type Archive interface {
	Append(ctx context.Context, c models.Commitment) error
	Health(ctx context.Context) error
	Close() error
}

// Metrics records orchestrator observability signals.
type Metrics interface {
	RecordPhase(phase string)
	RecordPoll(result string)
	RecordSettlement(outcome string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
