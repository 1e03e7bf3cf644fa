package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
)

type recordingMetrics struct {
	mu      sync.Mutex
	latency map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{latency: make(map[string]int)}
}

func (m *recordingMetrics) RecordPhase(string)      {}
func (m *recordingMetrics) RecordPoll(string)       {}
func (m *recordingMetrics) RecordSettlement(string) {}
func (m *recordingMetrics) RecordError(string)      {}

func (m *recordingMetrics) RecordLatency(op string, seconds float64) {
	m.mu.Lock()
	m.latency[op]++
	m.mu.Unlock()
}

func (m *recordingMetrics) latencyCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latency[op]
}

func TestClientRecordsWalletLatency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/wallet" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"main_balance":1000,"movement_balance":500,"total_balance":1500}`))
	}))
	defer srv.Close()

	m := newRecordingMetrics()
	c := New(srv.URL, "test-key", 5*time.Second, m)

	snap, err := c.GetWalletSnapshot(context.Background())
	if err != nil {
		t.Fatalf("GetWalletSnapshot: %v", err)
	}
	if snap.MovementBalance != 500 {
		t.Fatalf("movement balance = %v, want 500", snap.MovementBalance)
	}
	if got := m.latencyCount("platform_wallet"); got != 1 {
		t.Fatalf("wallet latency observations = %d, want 1", got)
	}
}

func TestClientMapsTooManyRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	m := newRecordingMetrics()
	c := New(srv.URL, "test-key", 5*time.Second, m)

	_, err := c.GetCommitmentStatus(context.Background(), "u-1")
	if !errors.Is(err, models.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	// The round trip still happened, so it is still observed.
	if got := m.latencyCount("platform_status"); got != 1 {
		t.Fatalf("status latency observations = %d, want 1", got)
	}
}
