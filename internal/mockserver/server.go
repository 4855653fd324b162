// Package mockserver is an in-memory stand-in for the log service. It
// serves the same HTTP and WebSocket contract and is used by the tests and
// by `alertlog mock-server` for local development.
package mockserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/sadopc/alertlog/internal/feed"
)

// Faults lets tests make the server misbehave.
type Faults struct {
	RejectFavorite bool
	RejectDelete   bool
	RejectImport   bool
	RejectFetch    bool
	// ConfirmLimit caps how many ids a bulk delete confirms; 0 means all.
	ConfirmLimit int
}

type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type Server struct {
	mu      sync.Mutex
	logs    []feed.LogRecord
	faults  Faults
	clients map[*client]struct{}
	fetches int
	gate    chan struct{}

	router   *mux.Router
	upgrader websocket.Upgrader
	log      *log.Entry
	now      func() time.Time
}

func New() *Server {
	s := &Server{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.WithField("component", "mockserver"),
		now: time.Now,
	}

	r := mux.NewRouter()
	r.HandleFunc("/logs", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/logs/bulk-delete", s.handleBulkDelete).Methods(http.MethodPost)
	r.HandleFunc("/logs/import", s.handleImport).Methods(http.MethodPost)
	r.HandleFunc("/logs/{id}/favorite", s.handleFavorite).Methods(http.MethodPatch)
	r.HandleFunc("/logs/{id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/ws/logs", s.handleWS)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) SetFaults(f Faults) {
	s.mu.Lock()
	s.faults = f
	s.mu.Unlock()
}

// HoldFetches makes GET /logs block until the returned release func is
// called.
func (s *Server) HoldFetches() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.gate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// FetchCount is the number of GET /logs requests received.
func (s *Server) FetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

var (
	seedCategories = []feed.Category{feed.CategoryCall, feed.CategorySMS, feed.CategoryApp}
	seedApps       = []string{"KakaoTalk", "Instagram", "Facebook", "YouTube"}
)

// Seed inserts n deterministic sample records spaced 10s apart, newest at
// now.
func (s *Server) Seed(n int) {
	now := s.now().UTC()
	recs := make([]feed.LogRecord, n)
	for i := range recs {
		at := now.Add(-time.Duration(i*10) * time.Second)
		r := feed.LogRecord{
			ID:         uuid.NewString(),
			Category:   seedCategories[i%len(seedCategories)],
			Content:    fmt.Sprintf("Sample log message %d", i+1),
			OccurredAt: at,
			CreatedAt:  at,
			IsFavorite: i%5 == 0,
		}
		if r.Category == feed.CategoryApp {
			r.SourceApp = seedApps[(i/3)%len(seedApps)]
		}
		recs[i] = r
	}
	s.mu.Lock()
	s.logs = append(s.logs, recs...)
	s.sortLocked()
	s.mu.Unlock()
}

// Put stores records without broadcasting them.
func (s *Server) Put(recs ...feed.LogRecord) {
	s.mu.Lock()
	s.logs = append(s.logs, recs...)
	s.sortLocked()
	s.mu.Unlock()
}

// Logs returns the stored records, newest first.
func (s *Server) Logs() []feed.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]feed.LogRecord, len(s.logs))
	copy(out, s.logs)
	return out
}

func (s *Server) sortLocked() {
	sort.SliceStable(s.logs, func(i, j int) bool {
		return s.logs[i].CreatedAt.After(s.logs[j].CreatedAt)
	})
}

func (s *Server) find(id string) int {
	for i, r := range s.logs {
		if r.ID == id {
			return i
		}
	}
	return -1
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	skip, err := intParam(r, "skip", 0)
	if err != nil || skip < 0 {
		writeError(w, http.StatusUnprocessableEntity, "skip must be >= 0")
		return
	}
	limit, err := intParam(r, "limit", feed.DefaultPageSize)
	if err != nil || limit < 1 || limit > 100 {
		writeError(w, http.StatusUnprocessableEntity, "limit must be within 1..100")
		return
	}

	s.mu.Lock()
	s.fetches++
	gate := s.gate
	fail := s.faults.RejectFetch
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if fail {
		writeError(w, http.StatusServiceUnavailable, "fetch disabled")
		return
	}

	s.mu.Lock()
	end := skip + limit
	if skip > len(s.logs) {
		skip = len(s.logs)
	}
	if end > len(s.logs) {
		end = len(s.logs)
	}
	page := make([]feed.LogRecord, end-skip)
	copy(page, s.logs[skip:end])
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		IsFavorite *bool `json:"isFavorite"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IsFavorite == nil {
		writeError(w, http.StatusBadRequest, "isFavorite must be a boolean")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faults.RejectFavorite {
		writeError(w, http.StatusInternalServerError, "favorite disabled")
		return
	}
	i := s.find(id)
	if i < 0 {
		writeError(w, http.StatusNotFound, "log not found")
		return
	}
	s.logs[i].IsFavorite = *body.IsFavorite
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "isFavorite": *body.IsFavorite})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faults.RejectDelete {
		writeError(w, http.StatusInternalServerError, "delete disabled")
		return
	}
	i := s.find(id)
	if i < 0 {
		writeError(w, http.StatusNotFound, "log not found")
		return
	}
	s.logs = append(s.logs[:i], s.logs[i+1:]...)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids must be a non-empty list")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := []string{}
	for _, id := range body.IDs {
		if s.faults.ConfirmLimit > 0 && len(deleted) >= s.faults.ConfirmLimit {
			break
		}
		if i := s.find(id); i >= 0 {
			s.logs = append(s.logs[:i], s.logs[i+1:]...)
			deleted = append(deleted, id)
		}
	}
	if len(deleted) == 0 {
		writeError(w, http.StatusNotFound, "no logs deleted")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deletedCount": len(deleted), "deletedIds": deleted})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Logs []json.RawMessage `json:"logs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "logs must be an array")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faults.RejectImport {
		writeError(w, http.StatusInternalServerError, "import disabled")
		return
	}
	imported := 0
	for _, raw := range body.Logs {
		rec, err := feed.DecodeRecord(raw)
		if err != nil {
			continue
		}
		if s.find(rec.ID) >= 0 {
			continue
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = s.now().UTC()
		}
		s.logs = append(s.logs, rec)
		imported++
	}
	s.sortLocked()
	writeJSON(w, http.StatusOK, map[string]any{"imported": imported})
}

type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	AppName string `json:"appName"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c := &client{conn: conn}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.log.Debug("client connected")

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		conn.Close()
		s.log.Debug("client disconnected")
	}()

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if _, ok := err.(*json.SyntaxError); ok {
				continue
			}
			return
		}
		now := s.now().UTC()
		rec := feed.LogRecord{
			ID:         uuid.NewString(),
			Category:   feed.Category(msg.Type),
			Content:    msg.Content,
			SourceApp:  msg.AppName,
			OccurredAt: now,
			CreatedAt:  now,
		}
		s.Put(rec)
		s.Broadcast(rec)
	}
}

// Broadcast pushes rec to every connected client.
func (s *Server) Broadcast(rec feed.LogRecord) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.write(rec); err != nil {
			s.log.WithError(err).Debug("broadcast failed")
		}
	}
}

// BroadcastRaw pushes an arbitrary text frame, for malformed-input tests.
func (s *Server) BroadcastRaw(data []byte) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.mu.Lock()
		_ = c.conn.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()
	}
}

// Clients is the number of open WebSocket connections.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// DropClients closes every WebSocket connection from the server side.
func (s *Server) DropClients() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		c.conn.Close()
	}
}
