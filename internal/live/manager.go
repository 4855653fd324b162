// Package live keeps the single push channel to the log service open and
// turns its frames into records.
package live

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/sadopc/alertlog/internal/feed"
)

var (
	ErrNotConnected = errors.New("live channel not connected")
	ErrClosed       = errors.New("live channel closed")
	ErrRunning      = errors.New("live channel already running")
)

const writeTimeout = 5 * time.Second

// Outbound is a record the client asks the server to create.
type Outbound struct {
	Type    feed.Category `json:"type"`
	Content string        `json:"content"`
}

type Options struct {
	HandshakeTimeout time.Duration
	Backoff          Backoff
	// OnRecord receives every decoded push, from the read goroutine.
	OnRecord func(feed.LogRecord)
	// OnState is called with true on open and false on loss.
	OnState func(connected bool)
}

// Manager owns one WebSocket connection and reconnects it with backoff
// until closed.
type Manager struct {
	url  string
	opts Options
	rnd  func() float64
	log  *log.Entry

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	closed  bool
	stopped chan struct{}

	writeMu   sync.Mutex
	connected atomic.Bool
}

func New(url string, opts Options) *Manager {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.Backoff.Initial <= 0 || opts.Backoff.Max <= 0 {
		opts.Backoff = DefaultBackoff()
	}
	return &Manager{
		url:  url,
		opts: opts,
		rnd:  rand.Float64,
		log:  log.WithField("component", "live"),
	}
}

func (m *Manager) Connected() bool { return m.connected.Load() }

// Run dials the endpoint and keeps the channel open until ctx is cancelled
// or Close is called. Connection failures are logged and retried, never
// returned.
func (m *Manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.cancel != nil {
		m.mu.Unlock()
		return ErrRunning
	}
	m.cancel = cancel
	stopped := make(chan struct{})
	m.stopped = stopped
	m.mu.Unlock()
	defer close(stopped)

	attempt := 0
	for {
		conn, err := m.dial(ctx)
		if err == nil {
			attempt = 0
			m.serve(ctx, conn)
		} else if ctx.Err() == nil {
			m.log.WithError(err).WithField("attempt", attempt+1).Warn("live channel connect failed")
		}
		if ctx.Err() != nil {
			return nil
		}

		delay := m.opts.Backoff.Delay(attempt, m.rnd())
		attempt++
		m.log.WithField("delay", delay).Debug("reconnect scheduled")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: m.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", m.url, err)
	}
	return conn, nil
}

// serve reads frames until the connection drops or ctx ends.
func (m *Manager) serve(ctx context.Context, conn *websocket.Conn) {
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	m.setConnected(true)
	m.log.Info("live channel open")

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	defer func() {
		close(done)
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		conn.Close()
		m.setConnected(false)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				m.log.WithError(err).Warn("live channel lost")
			}
			return
		}
		rec, err := feed.DecodeRecord(data)
		if err != nil {
			m.log.WithError(err).Warn("dropping malformed push")
			continue
		}
		if m.opts.OnRecord != nil {
			m.opts.OnRecord(rec)
		}
	}
}

func (m *Manager) setConnected(v bool) {
	if m.connected.Swap(v) == v {
		return
	}
	if m.opts.OnState != nil {
		m.opts.OnState(v)
	}
}

// Send writes v as one JSON frame. It fails with ErrNotConnected while the
// channel is down; nothing is queued.
func (m *Manager) Send(v any) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close stops Run, closing the connection and any pending reconnect
// timer. It waits for Run to return.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	cancel := m.cancel
	stopped := m.stopped
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-stopped
	return nil
}
