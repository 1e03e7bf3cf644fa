package models

import "time"

// LifecycleEventType enumerates the events the orchestrator emits.
type LifecycleEventType string

const (
	EventPhaseChanged        LifecycleEventType = "phase_changed"
	EventCountdownTick       LifecycleEventType = "countdown_tick"
	EventCommitmentConfirmed LifecycleEventType = "commitment_confirmed"
	EventCommitmentSettled   LifecycleEventType = "commitment_settled"
)

// LifecycleEvent is pushed to dashboard clients over WebSocket and, when
// configured, published to Kafka for downstream consumers.
type LifecycleEvent struct {
	Type      LifecycleEventType `json:"type"`
	Phase     string             `json:"phase,omitempty"`
	UsageID   string             `json:"usage_id,omitempty"`
	SignalID  string             `json:"signal_id,omitempty"`
	Remaining int64              `json:"remaining_seconds,omitempty"`
	Outcome   Outcome            `json:"outcome,omitempty"`
	Amount    float64            `json:"amount,omitempty"`
	At        time.Time          `json:"at"`
}
