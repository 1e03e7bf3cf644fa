package models

import "time"

// TransferLock marks a wallet whose outbound transfers are temporarily held.
type TransferLock struct {
	IsLocked   bool      `json:"is_locked"`
	LockEndsAt time.Time `json:"lock_ends_at"`
}

// WalletSnapshot is the cached view of account balances. It is mutated only
// by a fresh fetch from the platform or by the reconciler overlaying a
// terminal outcome's movement balance. The authoritative value always wins on
// the next fetch; FetchedAt orders overlay vs. fetch races.
type WalletSnapshot struct {
	MainBalance     float64       `json:"main_balance"`
	MovementBalance float64       `json:"movement_balance"`
	TotalBalance    float64       `json:"total_balance"`
	TransferLock    *TransferLock `json:"transfer_lock,omitempty"`
	FetchedAt       time.Time     `json:"fetched_at"`
}

// NewerThan reports whether this snapshot is fresher than other.
func (w WalletSnapshot) NewerThan(other WalletSnapshot) bool {
	return w.FetchedAt.After(other.FetchedAt)
}
