package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
)

// Downstream consumes lifecycle events (WebSocket hub, Kafka publisher).
type Downstream interface {
	Deliver(ctx context.Context, ev models.LifecycleEvent) error
}

// EventPipeline sits between the orchestrator and its downstreams. It
// validates, throttles countdown ticks, and buffers events when a downstream
// is unavailable so a Kafka hiccup never stalls the lifecycle.
type EventPipeline struct {
	downstreams []Downstream
	metrics     domrepo.Metrics
	maxTickRate int // ticks per second forwarded per usage id
	bufSize     int
	bufCh       chan models.LifecycleEvent
	stopCh      chan struct{}
	started     bool
	mu          sync.Mutex
	lastTick    map[string]time.Time
}

type PipelineOption func(*EventPipeline)

// WithMaxTickRate caps countdown tick events forwarded per second per usage.
func WithMaxTickRate(n int) PipelineOption {
	return func(p *EventPipeline) {
		if n > 0 {
			p.maxTickRate = n
		}
	}
}

// WithBufferSize sets the retry buffer size for failed deliveries.
func WithBufferSize(n int) PipelineOption {
	return func(p *EventPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewEventPipeline creates a pipeline over the given downstreams.
func NewEventPipeline(metrics domrepo.Metrics, downstreams []Downstream, opts ...PipelineOption) *EventPipeline {
	p := &EventPipeline{
		downstreams: downstreams,
		metrics:     metrics,
		maxTickRate: 1,
		bufSize:     256,
		bufCh:       make(chan models.LifecycleEvent, 256),
		stopCh:      make(chan struct{}),
		lastTick:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan models.LifecycleEvent, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered events.
func (p *EventPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case ev := <-p.bufCh:
				if err := p.deliver(ctx, ev); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- ev:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *EventPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Emit implements usecase.EventSink. Delivery failures buffer the event;
// the caller is never blocked or failed.
func (p *EventPipeline) Emit(ev models.LifecycleEvent) {
	if err := validateEvent(ev); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return
	}
	if ev.Type == models.EventCountdownTick && !p.allowTick(ev.UsageID, ev.At) {
		return
	}

	if err := p.deliver(context.Background(), ev); err != nil {
		p.metrics.RecordError("pipeline_deliver")
		select {
		case p.bufCh <- ev:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
	}
}

func (p *EventPipeline) deliver(ctx context.Context, ev models.LifecycleEvent) error {
	var firstErr error
	for _, d := range p.downstreams {
		if err := d.Deliver(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func validateEvent(ev models.LifecycleEvent) error {
	if ev.Type == "" {
		return fmt.Errorf("event type empty")
	}
	if ev.At.IsZero() {
		return fmt.Errorf("event time zero")
	}
	return nil
}

func (p *EventPipeline) allowTick(usageID string, now time.Time) bool {
	if p.maxTickRate <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastTick[usageID]
	if !last.IsZero() && now.Sub(last) < time.Second/time.Duration(p.maxTickRate) {
		return false
	}
	p.lastTick[usageID] = now
	return true
}
