package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	applogger "SignalDesk/pkg/logger"
	"SignalDesk/pkg/scheduler"
)

// RetryPolicy bounds a poll-until-terminal loop. Backoff is per attempt: one
// rate-limited response lengthens only the next interval, and a normal
// response resets it.
type RetryPolicy struct {
	Interval        time.Duration
	BackoffInterval time.Duration
	MaxAttempts     int
	Budget          time.Duration
}

// NextDelay returns the delay before the next attempt given how the last one
// ended.
func (p RetryPolicy) NextDelay(rateLimited bool) time.Duration {
	if rateLimited {
		return p.BackoffInterval
	}
	return p.Interval
}

// SettlementPoller repeatedly asks for the outcome of one commitment after
// its settlement instant. Exhausting the attempt or wall-clock budget stops
// polling silently; the commitment stays PENDING server-side and a later
// reattachment resumes progress.
type SettlementPoller struct {
	api     drepo.PlatformAPI
	sched   scheduler.Scheduler
	clock   scheduler.Clock
	policy  RetryPolicy
	metrics drepo.Metrics
	logger  *applogger.Logger

	mu        sync.Mutex
	handle    scheduler.Handle
	running   bool
	attempts  int
	startedAt time.Time
}

// NewSettlementPoller creates a poller with the given retry policy.
func NewSettlementPoller(api drepo.PlatformAPI, sched scheduler.Scheduler, clock scheduler.Clock, policy RetryPolicy, m drepo.Metrics, l *applogger.Logger) *SettlementPoller {
	return &SettlementPoller{api: api, sched: sched, clock: clock, policy: policy, metrics: m, logger: l}
}

// Start begins polling for cm's outcome. The first poll never happens before
// cm.SettlesAt. onTerminal receives the settled commitment; onExhausted fires
// when the bound is hit without a terminal outcome.
func (p *SettlementPoller) Start(ctx context.Context, cm models.Commitment, onTerminal func(models.Commitment), onExhausted func()) {
	p.mu.Lock()
	p.stopLocked()
	p.running = true
	p.attempts = 0
	p.startedAt = p.clock.Now()
	delay := cm.RemainingUntilSettlement(p.clock.Now())
	p.handle = p.sched.Schedule(delay, func() {
		p.attempt(ctx, cm, onTerminal, onExhausted)
	})
	p.mu.Unlock()
}

// Attempts returns how many polls have been issued since Start.
func (p *SettlementPoller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Running reports whether a poll loop is live.
func (p *SettlementPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stop cancels the loop immediately. The server-side commitment is
// unaffected; a fresh Start may reattach later.
func (p *SettlementPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *SettlementPoller) stopLocked() {
	if p.handle != nil {
		p.handle.Stop()
		p.handle = nil
	}
	p.running = false
}

func (p *SettlementPoller) attempt(ctx context.Context, cm models.Commitment, onTerminal func(models.Commitment), onExhausted func()) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	if p.attempts >= p.policy.MaxAttempts ||
		(p.policy.Budget > 0 && p.clock.Now().Sub(p.startedAt) >= p.policy.Budget) {
		p.stopLocked()
		p.mu.Unlock()
		p.logger.Info("settlement polling budget exhausted, leaving commitment pending",
			applogger.String("usage_id", cm.ID))
		if onExhausted != nil {
			onExhausted()
		}
		return
	}
	p.attempts++
	p.mu.Unlock()

	status, err := p.api.GetCommitmentStatus(ctx, cm.ID)
	rateLimited := false
	switch {
	case err == nil && status.Outcome.Terminal():
		p.metrics.RecordPoll("terminal")
		p.mu.Lock()
		p.stopLocked()
		p.mu.Unlock()
		if onTerminal != nil {
			onTerminal(status)
		}
		return
	case err == nil:
		p.metrics.RecordPoll("pending")
	case errors.Is(err, models.ErrRateLimited):
		rateLimited = true
		p.metrics.RecordPoll("rate_limited")
	default:
		// Transient failure: skip this attempt, stay on schedule.
		p.metrics.RecordPoll("error")
		p.logger.Warn("settlement poll failed", applogger.String("usage_id", cm.ID), applogger.Error(err))
	}

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.handle = p.sched.Schedule(p.policy.NextDelay(rateLimited), func() {
		p.attempt(ctx, cm, onTerminal, onExhausted)
	})
	p.mu.Unlock()
}
