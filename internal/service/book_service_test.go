package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alanyoungcy/polysync/internal/domain"
	"github.com/alanyoungcy/polysync/internal/platform/polymarket"
)

// fakeBookSource serves scripted book payloads per token.
type fakeBookSource struct {
	books map[string]string // tokenID -> response body
	errs  map[string]error
}

func (f *fakeBookSource) GetBook(ctx context.Context, tokenID string, depth int) (polymarket.APIBook, error) {
	if err := f.errs[tokenID]; err != nil {
		return polymarket.APIBook{}, err
	}
	body, ok := f.books[tokenID]
	if !ok {
		return polymarket.APIBook{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, domain.ErrNotFound)
	}
	var book polymarket.APIBook
	if err := json.Unmarshal([]byte(body), &book); err != nil {
		return polymarket.APIBook{}, err
	}
	book.Raw = json.RawMessage(body)
	return book, nil
}

// fakeBookStore is an in-memory append-only domain.BookStore.
type fakeBookStore struct {
	snaps     []domain.BookSnapshot
	appendErr error
}

func (f *fakeBookStore) Append(ctx context.Context, snap domain.BookSnapshot) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	snap.ID = int64(len(f.snaps) + 1)
	snap.CreatedAt = time.Now()
	f.snaps = append(f.snaps, snap)
	return nil
}

func (f *fakeBookStore) Latest(ctx context.Context, marketID, tokenID string) ([]domain.BookSnapshot, error) {
	latest := map[string]domain.BookSnapshot{}
	for _, s := range f.snaps {
		if s.MarketID != marketID {
			continue
		}
		if tokenID != "" && s.TokenID != tokenID {
			continue
		}
		if cur, ok := latest[s.TokenID]; !ok || s.ID > cur.ID {
			latest[s.TokenID] = s
		}
	}
	var out []domain.BookSnapshot
	for _, s := range latest {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeBookStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.BookSnapshot, error) {
	var out []domain.BookSnapshot
	for _, s := range f.snaps {
		if s.CreatedAt.Before(cutoff) {
			out = append(out, s)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeBookStore) DeleteByID(ctx context.Context, ids []int64) (int64, error) {
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var kept []domain.BookSnapshot
	var deleted int64
	for _, s := range f.snaps {
		if drop[s.ID] {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	f.snaps = kept
	return deleted, nil
}

func (f *fakeBookStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.snaps)), nil
}

// fakeBookCache records SetLatest calls.
type fakeBookCache struct {
	latest map[string]domain.BookSnapshot
	setErr error
}

func (f *fakeBookCache) SetLatest(ctx context.Context, snap domain.BookSnapshot) error {
	if f.setErr != nil {
		return f.setErr
	}
	if f.latest == nil {
		f.latest = map[string]domain.BookSnapshot{}
	}
	f.latest[snap.TokenID] = snap
	return nil
}

func (f *fakeBookCache) GetLatest(ctx context.Context, tokenID string) (domain.BookSnapshot, error) {
	snap, ok := f.latest[tokenID]
	if !ok {
		return domain.BookSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func TestBookService_Ingest(t *testing.T) {
	source := &fakeBookSource{books: map[string]string{
		"tok-1": `{
			"market": "0xcond",
			"asset_id": "tok-1",
			"timestamp": "1709294400000",
			"bids": [["0.40","50"],["0.45","100"]],
			"asks": [{"price":"0.60","size":"20"},{"price":"0.55","size":"80"}],
			"tick_size": "0.01",
			"min_order_size": "5",
			"neg_risk": true
		}`,
	}}
	store := &fakeBookStore{}
	cache := &fakeBookCache{}

	svc := NewBookService(source, store, cache, nil)

	snap, err := svc.Ingest(context.Background(), "m1", "tok-1")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if snap.MarketID != "m1" || snap.TokenID != "tok-1" {
		t.Errorf("snapshot keys = %s/%s", snap.MarketID, snap.TokenID)
	}
	// Bids best-first descending, asks ascending, both shapes resolved.
	if len(snap.Bids) != 2 || snap.Bids[0].Price != 0.45 {
		t.Errorf("bids = %v, want best 0.45 first", snap.Bids)
	}
	if len(snap.Asks) != 2 || snap.Asks[0].Price != 0.55 {
		t.Errorf("asks = %v, want best 0.55 first", snap.Asks)
	}
	if snap.Timestamp == nil {
		t.Error("venue timestamp not carried")
	}
	if !snap.NegRisk || snap.TickSize != 0.01 || snap.MinOrderSize != 5 {
		t.Errorf("metadata = %+v", snap)
	}
	if len(snap.Raw) == 0 {
		t.Error("raw payload not retained")
	}

	if len(store.snaps) != 1 {
		t.Fatalf("store rows = %d, want 1", len(store.snaps))
	}
	if _, ok := cache.latest["tok-1"]; !ok {
		t.Error("latest snapshot not cached")
	}
}

func TestBookService_Ingest_NotFoundPassthrough(t *testing.T) {
	svc := NewBookService(&fakeBookSource{}, &fakeBookStore{}, nil, nil)

	_, err := svc.Ingest(context.Background(), "m1", "no-such-token")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestBookService_Ingest_MalformedLevels(t *testing.T) {
	source := &fakeBookSource{books: map[string]string{
		"tok-1": `{"asset_id": "tok-1", "bids": {"not": "an array"}, "asks": []}`,
	}}
	store := &fakeBookStore{}

	svc := NewBookService(source, store, nil, nil)

	_, err := svc.Ingest(context.Background(), "m1", "tok-1")
	if !errors.Is(err, domain.ErrMalformedData) {
		t.Fatalf("error = %v, want ErrMalformedData", err)
	}
	if len(store.snaps) != 0 {
		t.Error("malformed book must not be stored")
	}
}

func TestBookService_Ingest_StoreFailure(t *testing.T) {
	source := &fakeBookSource{books: map[string]string{
		"tok-1": `{"asset_id": "tok-1", "bids": [], "asks": []}`,
	}}
	store := &fakeBookStore{appendErr: errors.New("disk full")}
	cache := &fakeBookCache{}

	svc := NewBookService(source, store, cache, nil)

	if _, err := svc.Ingest(context.Background(), "m1", "tok-1"); err == nil {
		t.Fatal("expected append error to surface")
	}
	if len(cache.latest) != 0 {
		t.Error("cache must not be written when the append fails")
	}
}

func TestBookService_Ingest_CacheFailureNonFatal(t *testing.T) {
	source := &fakeBookSource{books: map[string]string{
		"tok-1": `{"asset_id": "tok-1", "bids": [["0.5","1"]], "asks": []}`,
	}}
	store := &fakeBookStore{}
	cache := &fakeBookCache{setErr: errors.New("redis down")}

	svc := NewBookService(source, store, cache, nil)

	if _, err := svc.Ingest(context.Background(), "m1", "tok-1"); err != nil {
		t.Fatalf("cache failure must not fail the ingest: %v", err)
	}
	if len(store.snaps) != 1 {
		t.Error("durable row missing")
	}
}
