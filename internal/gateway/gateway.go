// Package gateway performs remote mutations and applies them to the local
// store only after the server confirms them.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sadopc/alertlog/internal/feed"
)

// ErrUnknownRecord is returned for an id the local store does not hold.
var ErrUnknownRecord = errors.New("unknown record")

// Remote is the subset of the HTTP client the gateway needs.
type Remote interface {
	SetFavorite(ctx context.Context, id string, fav bool) error
	Delete(ctx context.Context, id string) error
	BulkDelete(ctx context.Context, ids []string) ([]string, error)
	Import(ctx context.Context, logs json.RawMessage) error
}

// BulkResult describes a bulk delete. Deleted holds the ids the server
// confirmed; Unconfirmed the requested ids it did not.
type BulkResult struct {
	Requested   []string
	Deleted     []string
	Unconfirmed []string
}

// Partial reports that the server confirmed only some of the requested ids.
func (r BulkResult) Partial() bool { return len(r.Unconfirmed) > 0 }

type Gateway struct {
	remote Remote
	store  *feed.LogStore
	log    *log.Entry
}

func New(remote Remote, store *feed.LogStore) *Gateway {
	return &Gateway{
		remote: remote,
		store:  store,
		log:    log.WithField("component", "gateway"),
	}
}

// ToggleFavorite flips the favorite flag of id and returns the new value.
func (g *Gateway) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	rec, ok := g.store.Get(id)
	if !ok {
		return false, fmt.Errorf("toggle favorite %s: %w", id, ErrUnknownRecord)
	}
	want := !rec.IsFavorite
	if err := g.remote.SetFavorite(ctx, id, want); err != nil {
		return rec.IsFavorite, err
	}
	g.store.ApplyMutation(feed.Mutation{Kind: feed.MutationFavorite, ID: id, IsFavorite: want})
	return want, nil
}

func (g *Gateway) Delete(ctx context.Context, id string) error {
	if err := g.remote.Delete(ctx, id); err != nil {
		return err
	}
	g.store.ApplyMutation(feed.Mutation{Kind: feed.MutationDelete, ID: id})
	return nil
}

// BulkDelete removes ids on the server and then locally removes only those
// the server reports as deleted. A failed request leaves the store as is.
func (g *Gateway) BulkDelete(ctx context.Context, ids []string) (BulkResult, error) {
	res := BulkResult{Requested: append([]string(nil), ids...)}
	if len(ids) == 0 {
		return res, nil
	}
	confirmed, err := g.remote.BulkDelete(ctx, ids)
	if err != nil {
		res.Unconfirmed = res.Requested
		return res, err
	}

	got := make(map[string]struct{}, len(confirmed))
	for _, id := range confirmed {
		got[id] = struct{}{}
	}
	for _, id := range res.Requested {
		if _, ok := got[id]; ok {
			res.Deleted = append(res.Deleted, id)
		} else {
			res.Unconfirmed = append(res.Unconfirmed, id)
		}
	}

	if len(res.Deleted) > 0 {
		g.store.ApplyMutation(feed.Mutation{Kind: feed.MutationBulkDelete, IDs: res.Deleted})
	}
	if res.Partial() {
		g.log.WithFields(log.Fields{
			"requested":   len(res.Requested),
			"deleted":     len(res.Deleted),
			"unconfirmed": res.Unconfirmed,
		}).Warn("bulk delete partially confirmed")
	}
	return res, nil
}

// Import uploads a restore file verbatim. The store is not touched; callers
// reload to see the imported records.
func (g *Gateway) Import(ctx context.Context, raw json.RawMessage) error {
	return g.remote.Import(ctx, raw)
}
