package usecase

import (
	"time"

	"SignalDesk/internal/domain/models"
)

// Phase is the orchestrator's lifecycle phase.
type Phase string

const (
	PhaseReady       Phase = "READY"
	PhaseWaiting     Phase = "WAITING"
	PhaseSettling    Phase = "SETTLING"
	PhaseResultShown Phase = "RESULT_SHOWN"
)

// State is the externally visible orchestrator snapshot. UI bindings render
// from this value instead of re-deriving phase from scattered flags.
type State struct {
	Phase        Phase                 `json:"phase"`
	Commitment   *models.Commitment    `json:"commitment,omitempty"`
	Wallet       models.WalletSnapshot `json:"wallet"`
	Remaining    time.Duration         `json:"remaining"`
	PollAttempts int                   `json:"poll_attempts"`
	PollIdle     bool                  `json:"poll_idle"` // budget exhausted, resumable
}
