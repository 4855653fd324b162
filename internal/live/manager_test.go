package live

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sadopc/alertlog/internal/feed"
	"github.com/sadopc/alertlog/internal/mockserver"
)

// ============================================================================
// Backoff
// ============================================================================

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 30 * time.Second}
	want := []time.Duration{1, 2, 4, 8, 16, 30, 30}
	for n, w := range want {
		if got := b.Delay(n, 0.5); got != w*time.Second {
			t.Fatalf("Delay(%d) = %v, want %v", n, got, w*time.Second)
		}
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := DefaultBackoff()
	lo := b.Delay(0, 0)
	hi := b.Delay(0, 0.999999)
	if lo < 799*time.Millisecond || lo > 800*time.Millisecond {
		t.Fatalf("low jitter = %v", lo)
	}
	if hi < 1199*time.Millisecond || hi > 1200*time.Millisecond {
		t.Fatalf("high jitter = %v", hi)
	}
	if mid := b.Delay(0, 0.5); mid != time.Second {
		t.Fatalf("centre = %v", mid)
	}
}

// ============================================================================
// Manager
// ============================================================================

type recorder struct {
	mu      sync.Mutex
	records []feed.LogRecord
	states  []bool
}

func (r *recorder) onRecord(rec feed.LogRecord) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

func (r *recorder) onState(v bool) {
	r.mu.Lock()
	r.states = append(r.states, v)
	r.mu.Unlock()
}

func (r *recorder) recordCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func startManager(t *testing.T) (*Manager, *mockserver.Server, *recorder) {
	t.Helper()
	srv := mockserver.New()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	rec := &recorder{}
	m := New("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/logs", Options{
		Backoff:  Backoff{Initial: 20 * time.Millisecond, Max: 100 * time.Millisecond},
		OnRecord: rec.onRecord,
		OnState:  rec.onState,
	})
	go m.Run(context.Background())
	t.Cleanup(func() { m.Close() })
	waitFor(t, "connect", m.Connected)
	waitFor(t, "server registration", func() bool { return srv.Clients() == 1 })
	return m, srv, rec
}

func TestReceivesPushes(t *testing.T) {
	_, srv, rec := startManager(t)

	srv.Broadcast(feed.LogRecord{ID: "p1", Category: feed.CategoryCall, Content: "ring", CreatedAt: time.Now()})
	waitFor(t, "push", func() bool { return rec.recordCount() == 1 })

	rec.mu.Lock()
	got := rec.records[0]
	rec.mu.Unlock()
	if got.ID != "p1" || got.IsFavorite {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestMalformedPushKeepsChannelOpen(t *testing.T) {
	m, srv, rec := startManager(t)

	srv.BroadcastRaw([]byte(`{"content":"no id"}`))
	srv.BroadcastRaw([]byte(`not json`))
	srv.Broadcast(feed.LogRecord{ID: "ok", CreatedAt: time.Now()})

	waitFor(t, "valid push", func() bool { return rec.recordCount() == 1 })
	if !m.Connected() {
		t.Fatal("malformed frames closed the channel")
	}
}

func TestSendRoundTrip(t *testing.T) {
	m, srv, rec := startManager(t)

	if err := m.Send(Outbound{Type: feed.CategorySMS, Content: "hello"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "echo", func() bool { return rec.recordCount() == 1 })
	if logs := srv.Logs(); len(logs) != 1 || logs[0].Content != "hello" {
		t.Fatalf("server logs = %+v", logs)
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	m := New("ws://127.0.0.1:1/ws/logs", Options{})
	if err := m.Send(Outbound{Type: feed.CategoryCall, Content: "x"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestReconnectsAfterDrop(t *testing.T) {
	m, srv, rec := startManager(t)

	srv.DropClients()
	waitFor(t, "disconnect", func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.states) >= 2
	})
	waitFor(t, "reconnect", func() bool { return m.Connected() && srv.Clients() == 1 })

	rec.mu.Lock()
	states := append([]bool(nil), rec.states...)
	rec.mu.Unlock()
	if !states[0] || states[1] {
		t.Fatalf("state sequence = %v", states)
	}
}

func TestCloseStopsRun(t *testing.T) {
	m := New("ws://127.0.0.1:1/ws/logs", Options{
		Backoff: Backoff{Initial: time.Hour, Max: time.Hour},
	})
	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	m.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the pending reconnect")
	}
	if err := m.Run(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Run after Close = %v", err)
	}
}

func TestContextCancelDisconnects(t *testing.T) {
	srv := mockserver.New()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	m := New("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/logs", Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	waitFor(t, "connect", m.Connected)

	cancel()
	<-done
	if m.Connected() {
		t.Fatal("still connected after cancel")
	}
}
