package models

import "time"

// SignalKind classifies how a signal is framed to the user. It affects
// eligibility display only, never the commitment lifecycle.
type SignalKind string

const (
	KindDaily    SignalKind = "DAILY"
	KindReferral SignalKind = "REFERRAL"
	KindWelcome  SignalKind = "WELCOME"
)

// Signal is a server-offered, time-boxed opportunity to stake a percentage of
// the movement balance. The client only ever observes snapshots; TimeRemaining
// is re-fetched, never extrapolated past one refresh interval.
type Signal struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Kind          SignalKind    `json:"kind"`
	CommitPercent float64       `json:"commit_percent"` // 0-100, fraction of movement balance to stake
	Slot          string        `json:"slot"`           // availability slot descriptor, display only
	TimeRemaining time.Duration `json:"time_remaining"`
	FetchedAt     time.Time     `json:"fetched_at"`
}

// Expired reports whether the availability window has closed relative to now,
// given the snapshot the signal was fetched with.
func (s Signal) Expired(now time.Time) bool {
	return now.Sub(s.FetchedAt) >= s.TimeRemaining
}

// SignalLimits carries per-account offer limits returned with the catalog.
type SignalLimits struct {
	DailyRemaining int `json:"daily_remaining"`
	MaxConcurrent  int `json:"max_concurrent"`
}

// Catalog is one fetch of the current offer set.
type Catalog struct {
	Signals   []Signal     `json:"signals"`
	Limits    SignalLimits `json:"limits"`
	FetchedAt time.Time    `json:"fetched_at"`
}
