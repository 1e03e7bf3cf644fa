package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	applogger "SignalDesk/pkg/logger"
)

// ConfirmationError is a user-visible confirm failure. State stays READY and
// no commitment is created.
type ConfirmationError struct {
	Reason string
	Err    error
}

func (e *ConfirmationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("confirmation failed: %s: %v", e.Reason, e.Err)
	}
	return "confirmation failed: " + e.Reason
}

func (e *ConfirmationError) Unwrap() error { return e.Err }

// Confirmer turns a user's selection into a server commitment and freezes the
// returned terms.
type Confirmer struct {
	api     drepo.PlatformAPI
	gate    Gate
	metrics drepo.Metrics
	logger  *applogger.Logger
}

// NewConfirmer creates a commitment confirmer.
func NewConfirmer(api drepo.PlatformAPI, gate Gate, m drepo.Metrics, l *applogger.Logger) *Confirmer {
	return &Confirmer{api: api, gate: gate, metrics: m, logger: l}
}

// DisplayStake computes the stake shown for user confirmation. It is display
// only; the server's committed amount is the ground truth.
func DisplayStake(wallet models.WalletSnapshot, s models.Signal) float64 {
	return wallet.MovementBalance * s.CommitPercent / 100
}

// Confirm runs the preconditions and the confirm call. hasActive must be the
// orchestrator's single-flight flag; it is rejected here before any network
// round trip.
func (c *Confirmer) Confirm(ctx context.Context, s models.Signal, wallet models.WalletSnapshot, accountActive, hasActive bool) (models.Commitment, error) {
	if hasActive {
		return models.Commitment{}, &ConfirmationError{Reason: "another commitment is still pending"}
	}
	if v := c.gate.CanCommit(wallet, accountActive); !v.Eligible {
		return models.Commitment{}, &ConfirmationError{Reason: v.Reason}
	}

	display := DisplayStake(wallet, s)

	cm, err := c.api.ConfirmSignal(ctx, s.ID)
	if err != nil {
		if errors.Is(err, models.ErrRateLimited) {
			// Low-frequency user action: swallowed, not surfaced as a hard
			// error. The caller leaves state unchanged.
			c.metrics.RecordError("confirm_rate_limited")
			return models.Commitment{}, err
		}
		c.metrics.RecordError("confirm")
		return models.Commitment{}, &ConfirmationError{Reason: "signal could not be confirmed", Err: err}
	}

	// The server's figure wins. A drift just means the balance moved between
	// display and confirmation; worth a log line, never a substitution.
	if math.Abs(cm.CommittedAmount-display) > 0.01 {
		c.logger.Warn("committed amount differs from displayed stake",
			applogger.String("usage_id", cm.ID),
			applogger.Any("display", display),
			applogger.Any("committed", cm.CommittedAmount),
		)
	}

	c.logger.Info("commitment confirmed",
		applogger.String("usage_id", cm.ID),
		applogger.String("signal_id", cm.SignalID),
		applogger.Any("amount", cm.CommittedAmount),
	)
	return cm, nil
}
