package usecase

import (
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
)

func TestGateCanCommit(t *testing.T) {
	gate := NewGate(250)
	now := time.Now()

	tests := []struct {
		name     string
		movement float64
		active   bool
		eligible bool
		reason   string
	}{
		{"sufficient and active", 250, true, true, ""},
		{"above minimum", 1000, true, true, ""},
		{"below minimum", 249.99, true, false, "insufficient balance: movement balance below 250"},
		{"zero balance", 0, true, false, "insufficient balance: movement balance below 250"},
		{"inactive account", 500, false, false, "account not activated for trading"},
		{"balance outranks activation", 100, false, false, "insufficient balance: movement balance below 250"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := gate.CanCommit(wallet(tt.movement, now), tt.active)
			if v.Eligible != tt.eligible {
				t.Fatalf("eligible = %v, want %v", v.Eligible, tt.eligible)
			}
			if v.Reason != tt.reason {
				t.Fatalf("reason = %q, want %q", v.Reason, tt.reason)
			}
		})
	}
}

func TestGateExactMinimumIsEligible(t *testing.T) {
	gate := NewGate(250)
	v := gate.CanCommit(models.WalletSnapshot{MovementBalance: 250}, true)
	if !v.Eligible {
		t.Fatalf("exact minimum should be eligible, got reason %q", v.Reason)
	}
}
