package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sadopc/alertlog/internal/config"
	"github.com/sadopc/alertlog/internal/feed"
	"github.com/sadopc/alertlog/internal/mockserver"
)

func testConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.Server.BaseURL = url
	cfg.Server.LiveURL = "ws" + strings.TrimPrefix(url, "http") + "/ws/logs"
	cfg.Reconnect.Initial = config.Duration{Duration: 20 * time.Millisecond}
	cfg.Reconnect.Max = config.Duration{Duration: 100 * time.Millisecond}
	return cfg
}

func openTest(t *testing.T, opts Options) (*Session, *mockserver.Server) {
	t.Helper()
	srv := mockserver.New()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	s := Open(context.Background(), testConfig(ts.URL), opts)
	t.Cleanup(s.Close)
	return s, srv
}

func TestFetchMorePages(t *testing.T) {
	s, srv := openTest(t, Options{Offline: true})
	srv.Seed(45)
	ctx := context.Background()

	n, err := s.FetchMore(ctx)
	if err != nil || n != 30 {
		t.Fatalf("first page: n=%d err=%v", n, err)
	}
	n, err = s.FetchMore(ctx)
	if err != nil || n != 15 {
		t.Fatalf("second page: n=%d err=%v", n, err)
	}
	if _, err := s.FetchMore(ctx); !errors.Is(err, ErrNoMore) {
		t.Fatalf("third fetch err = %v, want ErrNoMore", err)
	}
	if s.Store().Len() != 45 || s.Store().HasMore() {
		t.Fatalf("len=%d hasMore=%v", s.Store().Len(), s.Store().HasMore())
	}
	if srv.FetchCount() != 2 {
		t.Fatalf("requests = %d, want 2", srv.FetchCount())
	}
}

func TestFetchMoreSingleFlight(t *testing.T) {
	s, srv := openTest(t, Options{Offline: true})
	srv.Seed(10)
	release := srv.HoldFetches()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := s.FetchMore(context.Background()); err != nil {
			t.Errorf("held fetch: %v", err)
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for srv.FetchCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := s.FetchMore(context.Background()); !errors.Is(err, ErrFetchInFlight) {
		t.Fatalf("concurrent fetch err = %v, want ErrFetchInFlight", err)
	}
	release()
	wg.Wait()

	if srv.FetchCount() != 1 {
		t.Fatalf("requests = %d, want 1", srv.FetchCount())
	}
	if s.Store().Len() != 10 {
		t.Fatalf("len = %d", s.Store().Len())
	}
}

func TestFetchFailureKeepsState(t *testing.T) {
	s, srv := openTest(t, Options{Offline: true})
	srv.Seed(5)
	srv.SetFaults(mockserver.Faults{RejectFetch: true})

	if _, err := s.FetchMore(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !s.Store().HasMore() || s.Store().Loading() || s.Store().Offset() != 0 {
		t.Fatal("failed fetch changed pagination state")
	}

	srv.SetFaults(mockserver.Faults{})
	if n, err := s.FetchMore(context.Background()); err != nil || n != 5 {
		t.Fatalf("retry: n=%d err=%v", n, err)
	}
}

func TestCloseDiscardsInFlightFetch(t *testing.T) {
	s, srv := openTest(t, Options{Offline: true})
	srv.Seed(5)
	release := srv.HoldFetches()
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := s.FetchMore(context.Background())
		done <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for srv.FetchCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	s.Close()
	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if s.Store().Len() != 0 {
		t.Fatal("closed session ingested a page")
	}
	if _, err := s.FetchMore(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("fetch after close = %v", err)
	}
}

func TestReload(t *testing.T) {
	s, srv := openTest(t, Options{Offline: true})
	srv.Seed(3)
	ctx := context.Background()

	if _, err := s.FetchMore(ctx); err != nil {
		t.Fatal(err)
	}
	srv.Put(feed.LogRecord{ID: "new", CreatedAt: time.Now().Add(time.Hour)})
	n, err := s.Reload(ctx)
	if err != nil || n != 4 {
		t.Fatalf("reload: n=%d err=%v", n, err)
	}
	if s.Store().Records()[0].ID != "new" {
		t.Fatal("reload did not refetch from the top")
	}
}

func TestFetchAll(t *testing.T) {
	s, srv := openTest(t, Options{Offline: true})
	srv.Seed(95)
	if err := s.FetchAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Store().Len() != 95 {
		t.Fatalf("len = %d", s.Store().Len())
	}
}

func TestLivePushAndSend(t *testing.T) {
	pushed := make(chan feed.LogRecord, 4)
	s, srv := openTest(t, Options{OnRecord: func(r feed.LogRecord) { pushed <- r }})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.WaitConnected(ctx); err != nil {
		t.Fatal(err)
	}
	for srv.Clients() == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Send(feed.CategorySMS, "hi there"); err != nil {
		t.Fatal(err)
	}
	select {
	case r := <-pushed:
		if r.Content != "hi there" {
			t.Fatalf("push = %+v", r)
		}
	case <-ctx.Done():
		t.Fatal("no push received")
	}
	if s.Store().Len() != 1 {
		t.Fatal("push not ingested")
	}

	if err := s.Send(feed.CategorySMS, "   "); !errors.Is(err, ErrEmpty) {
		t.Fatalf("blank send err = %v", err)
	}
}

func TestSectionsAndVisibleIDs(t *testing.T) {
	s, srv := openTest(t, Options{Offline: true})
	y, m, d := time.Now().Date()
	now := time.Date(y, m, d, 12, 0, 0, 0, time.Local)
	srv.Put(
		feed.LogRecord{ID: "c1", Category: feed.CategoryCall, CreatedAt: now},
		feed.LogRecord{ID: "s1", Category: feed.CategorySMS, CreatedAt: now.Add(-time.Minute)},
		feed.LogRecord{ID: "c2", Category: feed.CategoryCall, CreatedAt: now.Add(-48 * time.Hour)},
	)
	if _, err := s.FetchMore(context.Background()); err != nil {
		t.Fatal(err)
	}

	ids := s.VisibleIDs(feed.Filter{Category: feed.CategoryCall}, now)
	if len(ids) != 2 || ids[0] != "c1" || ids[1] != "c2" {
		t.Fatalf("visible = %v", ids)
	}
	secs := s.Sections(feed.Filter{}, now)
	if len(secs) != 2 || secs[0].Label != feed.LabelToday {
		t.Fatalf("sections = %+v", secs)
	}
}
