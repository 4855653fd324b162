package mockserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sadopc/alertlog/internal/feed"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getPage(t *testing.T, base string, query string) []feed.LogRecord {
	t.Helper()
	resp, err := http.Get(base + "/logs" + query)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /logs%s = %d", query, resp.StatusCode)
	}
	var recs []feed.LogRecord
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		t.Fatal(err)
	}
	return recs
}

func TestSeedNewestFirst(t *testing.T) {
	s, ts := newTestServer(t)
	s.Seed(45)

	first := getPage(t, ts.URL, "")
	if len(first) != feed.DefaultPageSize {
		t.Fatalf("default page = %d, want %d", len(first), feed.DefaultPageSize)
	}
	for i := 1; i < len(first); i++ {
		if first[i].CreatedAt.After(first[i-1].CreatedAt) {
			t.Fatalf("page not newest first at %d", i)
		}
	}

	second := getPage(t, ts.URL, "?skip=30&limit=30")
	if len(second) != 15 {
		t.Fatalf("second page = %d, want 15", len(second))
	}
	if s.FetchCount() != 2 {
		t.Fatalf("fetch count = %d", s.FetchCount())
	}
}

func TestListRejectsBadLimit(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/logs?limit=500")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestFavoriteAndDelete(t *testing.T) {
	s, ts := newTestServer(t)
	s.Put(feed.LogRecord{ID: "a", Category: feed.CategorySMS, CreatedAt: time.Now()})

	if resp := do(t, http.MethodPatch, ts.URL+"/logs/a/favorite", `{"isFavorite":true}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("favorite = %d", resp.StatusCode)
	}
	if !s.Logs()[0].IsFavorite {
		t.Fatal("favorite not stored")
	}
	if resp := do(t, http.MethodPatch, ts.URL+"/logs/zzz/favorite", `{"isFavorite":true}`); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown favorite = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPatch, ts.URL+"/logs/a/favorite", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing flag = %d", resp.StatusCode)
	}

	s.SetFaults(Faults{RejectFavorite: true})
	if resp := do(t, http.MethodPatch, ts.URL+"/logs/a/favorite", `{"isFavorite":false}`); resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("injected failure = %d", resp.StatusCode)
	}
	s.SetFaults(Faults{})

	if resp := do(t, http.MethodDelete, ts.URL+"/logs/a", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete = %d", resp.StatusCode)
	}
	if len(s.Logs()) != 0 {
		t.Fatal("record not deleted")
	}
}

func TestBulkDeleteConfirmLimit(t *testing.T) {
	s, ts := newTestServer(t)
	now := time.Now()
	s.Put(
		feed.LogRecord{ID: "a", CreatedAt: now},
		feed.LogRecord{ID: "b", CreatedAt: now.Add(-time.Second)},
		feed.LogRecord{ID: "c", CreatedAt: now.Add(-2 * time.Second)},
	)
	s.SetFaults(Faults{ConfirmLimit: 2})

	resp := do(t, http.MethodPost, ts.URL+"/logs/bulk-delete", `{"ids":["a","b","c"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bulk delete = %d", resp.StatusCode)
	}
	var body struct {
		DeletedIDs []string `json:"deletedIds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.DeletedIDs) != 2 || body.DeletedIDs[0] != "a" || body.DeletedIDs[1] != "b" {
		t.Fatalf("deletedIds = %v", body.DeletedIDs)
	}
	if logs := s.Logs(); len(logs) != 1 || logs[0].ID != "c" {
		t.Fatalf("remaining = %+v", logs)
	}

	if resp := do(t, http.MethodPost, ts.URL+"/logs/bulk-delete", `{"ids":[]}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty ids = %d", resp.StatusCode)
	}
}

func TestImport(t *testing.T) {
	s, ts := newTestServer(t)
	body := `{"logs":[{"id":"x","type":"call","content":"hi","createdAt":"2024-03-01T10:00:00"},{"content":"no id"}]}`
	resp := do(t, http.MethodPost, ts.URL+"/logs/import", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import = %d", resp.StatusCode)
	}
	logs := s.Logs()
	if len(logs) != 1 || logs[0].ID != "x" {
		t.Fatalf("imported = %+v", logs)
	}

	if resp := do(t, http.MethodPost, ts.URL+"/logs/import", `{"logs":{}}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("non-array import = %d", resp.StatusCode)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	s, ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/logs"

	a, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.Clients() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	msg := map[string]string{"type": "SMS", "content": "hello", "appName": ""}
	if err := a.WriteJSON(msg); err != nil {
		t.Fatal(err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		rec, err := feed.DecodeRecord(data)
		if err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if rec.Content != "hello" || rec.Category != feed.CategorySMS || rec.ID == "" {
			t.Fatalf("unexpected push %+v", rec)
		}
	}
	if len(s.Logs()) != 1 {
		t.Fatal("pushed record not stored")
	}
}

func TestHoldFetches(t *testing.T) {
	s, ts := newTestServer(t)
	s.Seed(3)
	release := s.HoldFetches()

	done := make(chan int, 1)
	go func() {
		resp, err := http.Get(ts.URL + "/logs")
		if err != nil {
			done <- -1
			return
		}
		defer resp.Body.Close()
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		done <- resp.StatusCode
	}()

	select {
	case <-done:
		t.Fatal("fetch returned while held")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	if code := <-done; code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
}
