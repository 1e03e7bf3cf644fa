package usecase

import (
	"fmt"

	"SignalDesk/internal/domain/models"
)

// Gate decides whether the account may commit to a signal. It is a pure
// predicate: re-evaluated on every catalog render and re-checked inside the
// confirmer, so a stale verdict never survives a network round trip.
type Gate struct {
	MinMovementBalance float64
}

// NewGate creates a gate with the configured minimum movement balance.
func NewGate(minMovementBalance float64) Gate {
	return Gate{MinMovementBalance: minMovementBalance}
}

// Verdict is the gate's answer plus a human-readable reason when blocked.
type Verdict struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// CanCommit checks balance first, then activation, in that priority order.
func (g Gate) CanCommit(wallet models.WalletSnapshot, accountActive bool) Verdict {
	if wallet.MovementBalance < g.MinMovementBalance {
		return Verdict{Reason: fmt.Sprintf("insufficient balance: movement balance below %.0f", g.MinMovementBalance)}
	}
	if !accountActive {
		return Verdict{Reason: "account not activated for trading"}
	}
	return Verdict{Eligible: true}
}
