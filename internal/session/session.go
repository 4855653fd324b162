// Package session wires the store, live channel, selection and gateway into
// one object whose lifetime is bounded by Open and Close.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sadopc/alertlog/internal/config"
	"github.com/sadopc/alertlog/internal/feed"
	"github.com/sadopc/alertlog/internal/gateway"
	"github.com/sadopc/alertlog/internal/live"
	"github.com/sadopc/alertlog/internal/remote"
)

var (
	// ErrNoMore means the feed is exhausted; nothing was requested.
	ErrNoMore = errors.New("no more history")
	// ErrFetchInFlight means another page fetch holds the slot.
	ErrFetchInFlight = errors.New("fetch already in flight")
	// ErrDiscarded means a reload or close overtook the fetch.
	ErrDiscarded = errors.New("fetch result discarded")
	ErrClosed    = errors.New("session closed")
	ErrEmpty     = errors.New("empty content")
)

type Options struct {
	// Offline skips the live channel, for one-shot commands.
	Offline bool
	// OnRecord is called after a pushed record has been stored.
	OnRecord func(feed.LogRecord)
	OnState  func(connected bool)
}

type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	store     *feed.LogStore
	selection *feed.Selection
	remote    *remote.Client
	gateway   *gateway.Gateway
	live      *live.Manager
	gen       atomic.Uint64
	log       *log.Entry
}

// Open builds a session from cfg and starts the live channel unless
// opts.Offline is set. It does not fetch; call FetchMore or Reload.
func Open(ctx context.Context, cfg *config.Config, opts Options) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ctx:       ctx,
		cancel:    cancel,
		store:     feed.NewLogStore(cfg.Server.PageSize),
		selection: feed.NewSelection(),
		remote:    remote.New(cfg.Server.BaseURL, cfg.Timeouts.Request.Duration),
		log:       log.WithField("component", "session"),
	}
	s.gateway = gateway.New(s.remote, s.store)

	if !opts.Offline {
		s.live = live.New(cfg.Server.LiveURL, live.Options{
			HandshakeTimeout: cfg.Timeouts.Connect.Duration,
			Backoff: live.Backoff{
				Initial: cfg.Reconnect.Initial.Duration,
				Max:     cfg.Reconnect.Max.Duration,
				Jitter:  cfg.Reconnect.Jitter,
			},
			OnRecord: func(rec feed.LogRecord) {
				if ctx.Err() != nil {
					return
				}
				s.store.IngestLive(rec)
				if opts.OnRecord != nil {
					opts.OnRecord(rec)
				}
			},
			OnState: opts.OnState,
		})
		go func() {
			if err := s.live.Run(ctx); err != nil {
				s.log.WithError(err).Error("live channel stopped")
			}
		}()
	}
	return s
}

// Close tears the session down: the live channel and its reconnect timer
// stop, and in-flight fetches are cancelled and discarded.
func (s *Session) Close() {
	s.once.Do(func() {
		s.cancel()
		if s.live != nil {
			s.live.Close()
		}
	})
}

func (s *Session) Store() *feed.LogStore      { return s.store }
func (s *Session) Selection() *feed.Selection { return s.selection }
func (s *Session) Gateway() *gateway.Gateway  { return s.gateway }
func (s *Session) Context() context.Context   { return s.ctx }

func (s *Session) Connected() bool {
	return s.live != nil && s.live.Connected()
}

// FetchMore requests the next history page. At most one fetch runs at a
// time; ErrNoMore and ErrFetchInFlight are no-op signals. It returns the
// number of records received.
func (s *Session) FetchMore(ctx context.Context) (int, error) {
	if s.ctx.Err() != nil {
		return 0, ErrClosed
	}
	offset, ok := s.store.BeginFetch()
	if !ok {
		if !s.store.HasMore() {
			return 0, ErrNoMore
		}
		return 0, ErrFetchInFlight
	}
	gen := s.gen.Load()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	recs, served, err := s.remote.FetchPage(ctx, offset, s.store.PageSize())
	if s.ctx.Err() != nil {
		s.store.AbortFetch()
		return 0, ErrClosed
	}
	if s.gen.Load() != gen {
		return 0, ErrDiscarded
	}
	if err != nil {
		s.store.AbortFetch()
		return 0, fmt.Errorf("fetch page at %d: %w", offset, err)
	}
	s.store.FinishFetch(recs, served)
	s.log.WithFields(log.Fields{"offset": offset, "served": served}).Debug("page ingested")
	return len(recs), nil
}

// FetchAll pages until the feed is exhausted.
func (s *Session) FetchAll(ctx context.Context) error {
	for {
		_, err := s.FetchMore(ctx)
		if errors.Is(err, ErrNoMore) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Reload discards all known records and fetches the first page again.
// Any fetch still in flight is discarded when it completes. The selection
// is left to the caller to prune.
func (s *Session) Reload(ctx context.Context) (int, error) {
	s.gen.Add(1)
	s.store.Reset()
	return s.FetchMore(ctx)
}

func (s *Session) Sections(f feed.Filter, now time.Time) []feed.Section {
	return feed.Project(s.store.Records(), f, now)
}

func (s *Session) VisibleIDs(f feed.Filter, now time.Time) []string {
	return feed.VisibleIDs(s.Sections(f, now))
}

// Send asks the server to create a record over the live channel.
func (s *Session) Send(category feed.Category, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmpty
	}
	if s.live == nil {
		return live.ErrNotConnected
	}
	return s.live.Send(live.Outbound{Type: category, Content: content})
}

// WaitConnected blocks until the live channel is open or ctx ends.
func (s *Session) WaitConnected(ctx context.Context) error {
	if s.live == nil {
		return live.ErrNotConnected
	}
	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()
	for !s.live.Connected() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ctx.Done():
			return ErrClosed
		case <-tick.C:
		}
	}
	return nil
}
