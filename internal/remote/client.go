package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/sadopc/alertlog/internal/feed"
)

// TransportError means the request could not complete: dial failure,
// timeout, cancelled context or an unreadable response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// RejectionError is a non-2xx answer from the server.
type RejectionError struct {
	Op     string
	Status int
	Body   string
}

func (e *RejectionError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: server returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.Status, e.Body)
}

// IsRejection reports whether err is a server rejection.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// Client talks to the log service's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	log     *log.Entry
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.WithField("component", "remote"),
	}
}

// WithHTTPClient swaps the underlying client, mainly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	l := c.log.WithFields(log.Fields{"op": op, "request_id": reqID})
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		l.WithError(err).Warn("request failed")
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	l.WithFields(log.Fields{"status": resp.StatusCode, "elapsed": time.Since(start)}).Debug("request done")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RejectionError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, feed.ErrMalformed, err)
	}
	return nil
}

// FetchPage returns up to limit records starting at skip, newest first.
// Items that fail to decode are dropped and logged; the returned count of
// raw items is what advances the pagination cursor.
func (c *Client) FetchPage(ctx context.Context, skip, limit int) (records []feed.LogRecord, raw int, err error) {
	q := url.Values{}
	q.Set("skip", fmt.Sprint(skip))
	q.Set("limit", fmt.Sprint(limit))

	var items []json.RawMessage
	if err := c.do(ctx, "fetch logs", http.MethodGet, "/logs?"+q.Encode(), nil, &items); err != nil {
		return nil, 0, err
	}
	records = make([]feed.LogRecord, 0, len(items))
	for _, item := range items {
		r, err := feed.DecodeRecord(item)
		if err != nil {
			c.log.WithError(err).Warn("dropping malformed page item")
			continue
		}
		records = append(records, r)
	}
	return records, len(items), nil
}

type favoriteRequest struct {
	IsFavorite bool `json:"isFavorite"`
}

func (c *Client) SetFavorite(ctx context.Context, id string, fav bool) error {
	return c.do(ctx, "set favorite", http.MethodPatch, "/logs/"+url.PathEscape(id)+"/favorite", favoriteRequest{IsFavorite: fav}, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete log", http.MethodDelete, "/logs/"+url.PathEscape(id), nil, nil)
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type bulkDeleteResponse struct {
	DeletedIDs []string `json:"deletedIds"`
}

// BulkDelete returns the ids the server confirmed deleted.
func (c *Client) BulkDelete(ctx context.Context, ids []string) ([]string, error) {
	var resp bulkDeleteResponse
	if err := c.do(ctx, "bulk delete", http.MethodPost, "/logs/bulk-delete", bulkDeleteRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return resp.DeletedIDs, nil
}

type importRequest struct {
	Logs json.RawMessage `json:"logs"`
}

// Import posts a raw JSON array of records as-is.
func (c *Client) Import(ctx context.Context, logs json.RawMessage) error {
	return c.do(ctx, "import logs", http.MethodPost, "/logs/import", importRequest{Logs: logs}, nil)
}
