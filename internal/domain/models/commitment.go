package models

import (
	"errors"
	"fmt"
	"time"
)

// Outcome is the settlement result of a commitment. It starts PENDING and
// transitions at most once to PROFIT or LOSS, never back.
type Outcome string

const (
	OutcomePending Outcome = "PENDING"
	OutcomeProfit  Outcome = "PROFIT"
	OutcomeLoss    Outcome = "LOSS"
)

// ErrRateLimited marks a transient "too many requests" response from the
// platform. Callers back off and retry; it is never an application error.
var ErrRateLimited = errors.New("platform: rate limited")

// ParseOutcome maps a wire value to an Outcome. Unknown values are a data
// error, not a silent PENDING.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(s) {
	case OutcomePending, OutcomeProfit, OutcomeLoss:
		return Outcome(s), nil
	default:
		return "", fmt.Errorf("unrecognized outcome %q", s)
	}
}

// Terminal reports whether the outcome is final.
func (o Outcome) Terminal() bool {
	return o == OutcomeProfit || o == OutcomeLoss
}

// Commitment (a "usage" at the platform boundary) is the frozen record of a
// confirmed signal. CommittedAmount is the server's figure computed once at
// confirmation time; the client never recomputes it.
type Commitment struct {
	ID              string    `json:"usage_id"`
	SignalID        string    `json:"signal_id"`
	CommittedAmount float64   `json:"committed_amount"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
	SettlesAt       time.Time `json:"settles_at"`
	Outcome         Outcome   `json:"outcome"`

	// Populated only once Outcome is terminal.
	ResultAmount         float64   `json:"result_amount,omitempty"`
	ProfitPercent        float64   `json:"profit_percent,omitempty"`
	MovementBalanceAfter float64   `json:"movement_balance_after,omitempty"`
	SettledAt            time.Time `json:"settled_at,omitempty"`
}

// Active reports whether the commitment is still awaiting settlement.
func (c Commitment) Active() bool {
	return c.ID != "" && c.Outcome == OutcomePending
}

// RemainingUntilSettlement returns the time left before the settlement
// instant, clamped at zero. Always derived from the absolute SettlesAt so
// reattaching clients cannot drift.
func (c Commitment) RemainingUntilSettlement(now time.Time) time.Duration {
	if d := c.SettlesAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// HistoryPage is one page of settled commitments, newest first.
type HistoryPage struct {
	Items []Commitment `json:"items"`
	Total int64        `json:"total"`
}
