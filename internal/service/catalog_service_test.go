package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/alanyoungcy/polysync/internal/domain"
	"github.com/alanyoungcy/polysync/internal/platform/polymarket"
)

// fakeCatalogSource serves scripted event pages keyed by offset.
type fakeCatalogSource struct {
	pages   map[int][]polymarket.APIEvent
	pageErr map[int]error
	queries []polymarket.ListQuery
}

func (f *fakeCatalogSource) ListMarkets(ctx context.Context, q polymarket.ListQuery) ([]polymarket.APIMarket, error) {
	return nil, nil
}

func (f *fakeCatalogSource) ListEvents(ctx context.Context, q polymarket.ListQuery) ([]polymarket.APIEvent, error) {
	f.queries = append(f.queries, q)
	if err := f.pageErr[q.Offset]; err != nil {
		return nil, err
	}
	return f.pages[q.Offset], nil
}

// fakeMarketStore is an in-memory domain.MarketStore.
type fakeMarketStore struct {
	markets   map[string]domain.Market
	upsertErr map[string]error
	existsErr error
}

func newFakeMarketStore() *fakeMarketStore {
	return &fakeMarketStore{markets: map[string]domain.Market{}, upsertErr: map[string]error{}}
}

func (f *fakeMarketStore) Upsert(ctx context.Context, m domain.Market) error {
	if err := f.upsertErr[m.ID]; err != nil {
		return err
	}
	f.markets[m.ID] = m
	return nil
}

func (f *fakeMarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	for _, m := range markets {
		if err := f.Upsert(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeMarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	m, ok := f.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMarketStore) GetBySlug(ctx context.Context, slug string) (domain.Market, error) {
	for _, m := range f.markets {
		if m.Slug == slug {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (f *fakeMarketStore) Exists(ctx context.Context, id string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.markets[id]
	return ok, nil
}

func (f *fakeMarketStore) GetByToken(ctx context.Context, tokenID string) (domain.Market, error) {
	for _, m := range f.markets {
		for _, tok := range m.TokenIDs {
			if tok == tokenID {
				return m, nil
			}
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (f *fakeMarketStore) List(ctx context.Context, filter domain.MarketFilter) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range f.markets {
		if filter.ActiveOnly && (!m.Active || m.Closed) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMarketStore) Delete(ctx context.Context, id string) (bool, error) {
	_, ok := f.markets[id]
	delete(f.markets, id)
	return ok, nil
}

func (f *fakeMarketStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.markets)), nil
}

// fakeEventStore is an in-memory domain.EventStore.
type fakeEventStore struct {
	events map[string]domain.Event
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: map[string]domain.Event{}}
}

func (f *fakeEventStore) Upsert(ctx context.Context, e domain.Event) error {
	f.events[e.ID] = e
	return nil
}

func (f *fakeEventStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	return e, nil
}

func (f *fakeEventStore) List(ctx context.Context, limit int) ([]domain.Event, error) {
	var out []domain.Event
	for _, e := range f.events {
		out = append(out, e)
	}
	return out, nil
}

// fakeAdmin records maintenance calls.
type fakeAdmin struct {
	cleared bool
	stats   domain.CatalogStats
}

func (f *fakeAdmin) ClearAll(ctx context.Context) error {
	f.cleared = true
	return nil
}

func (f *fakeAdmin) Stats(ctx context.Context) (domain.CatalogStats, error) {
	return f.stats, nil
}

// fakeMarketCache is an in-memory domain.MarketCache with call counters.
type fakeMarketCache struct {
	entries map[string]domain.Market
	hits    int
	fills   int
}

func newFakeMarketCache() *fakeMarketCache {
	return &fakeMarketCache{entries: map[string]domain.Market{}}
}

func (f *fakeMarketCache) Set(ctx context.Context, m domain.Market) error {
	f.entries[m.ID] = m
	f.fills++
	return nil
}

func (f *fakeMarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	m, ok := f.entries[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	f.hits++
	return m, nil
}

func (f *fakeMarketCache) GetByToken(ctx context.Context, tokenID string) (domain.Market, error) {
	for _, m := range f.entries {
		for _, tok := range m.TokenIDs {
			if tok == tokenID {
				f.hits++
				return m, nil
			}
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (f *fakeMarketCache) Invalidate(ctx context.Context, id string) error {
	delete(f.entries, id)
	return nil
}

// mustEvent decodes an APIEvent from literal JSON.
func mustEvent(t *testing.T, payload string) polymarket.APIEvent {
	t.Helper()
	var ev polymarket.APIEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		t.Fatalf("decode event fixture: %v", err)
	}
	return ev
}

func TestCatalogService_SyncCatalog_NewKnownSplit(t *testing.T) {
	ev := mustEvent(t, `{
		"id": "ev1", "title": "Event One",
		"markets": [
			{"id": "m1", "question": "A?", "active": true},
			{"id": "m2", "question": "B?", "active": true}
		]
	}`)

	source := &fakeCatalogSource{pages: map[int][]polymarket.APIEvent{0: {ev}}}
	markets := newFakeMarketStore()
	markets.markets["m1"] = domain.Market{ID: "m1"} // already known

	svc := NewCatalogService(source, markets, newFakeEventStore(), &fakeAdmin{}, nil,
		CatalogOptions{PageSize: 100}, nil)

	res, err := svc.SyncCatalog(context.Background())
	if err != nil {
		t.Fatalf("SyncCatalog: %v", err)
	}

	if res.Events != 1 {
		t.Errorf("Events = %d, want 1", res.Events)
	}
	if res.Fetched != 2 || res.New != 1 || res.Known != 1 || res.Failed != 0 {
		t.Errorf("counters = %+v, want fetched=2 new=1 known=1 failed=0", res)
	}
	if len(res.Markets) != 2 {
		t.Errorf("Markets len = %d, want 2", len(res.Markets))
	}
	if _, ok := markets.markets["m2"]; !ok {
		t.Error("m2 not upserted")
	}
}

func TestCatalogService_SyncCatalog_Pagination(t *testing.T) {
	full := make([]polymarket.APIEvent, 0, 2)
	for i := 0; i < 2; i++ {
		full = append(full, mustEvent(t, fmt.Sprintf(`{"id": "ev%d", "markets": []}`, i)))
	}
	partial := []polymarket.APIEvent{mustEvent(t, `{"id": "ev9", "markets": []}`)}

	source := &fakeCatalogSource{pages: map[int][]polymarket.APIEvent{0: full, 2: partial}}
	svc := NewCatalogService(source, newFakeMarketStore(), newFakeEventStore(), &fakeAdmin{}, nil,
		CatalogOptions{PageSize: 2}, nil)

	res, err := svc.SyncCatalog(context.Background())
	if err != nil {
		t.Fatalf("SyncCatalog: %v", err)
	}

	if res.Events != 3 {
		t.Errorf("Events = %d, want 3", res.Events)
	}
	if len(source.queries) != 2 {
		t.Fatalf("queries = %d, want 2 (stop on short page)", len(source.queries))
	}
	if source.queries[1].Offset != 2 {
		t.Errorf("second offset = %d, want 2", source.queries[1].Offset)
	}
}

func TestCatalogService_SyncCatalog_FaultIsolation(t *testing.T) {
	ev := mustEvent(t, `{
		"id": "ev1",
		"markets": [{"id": "bad"}, {"id": "good"}]
	}`)

	source := &fakeCatalogSource{pages: map[int][]polymarket.APIEvent{0: {ev}}}
	markets := newFakeMarketStore()
	markets.upsertErr["bad"] = errors.New("constraint violation")

	svc := NewCatalogService(source, markets, newFakeEventStore(), &fakeAdmin{}, nil,
		CatalogOptions{PageSize: 100}, nil)

	res, err := svc.SyncCatalog(context.Background())
	if err != nil {
		t.Fatalf("SyncCatalog: %v", err)
	}

	if res.Failed != 1 {
		t.Errorf("Failed = %d, want 1", res.Failed)
	}
	if _, ok := markets.markets["good"]; !ok {
		t.Error("sibling market was not written after a failed one")
	}
}

func TestCatalogService_SyncCatalog_ExistsErrorStillUpserts(t *testing.T) {
	ev := mustEvent(t, `{
		"id": "ev1",
		"markets": [{"id": "m1", "question": "A?", "active": true}]
	}`)

	source := &fakeCatalogSource{pages: map[int][]polymarket.APIEvent{0: {ev}}}
	markets := newFakeMarketStore()
	markets.existsErr = errors.New("connection reset")

	svc := NewCatalogService(source, markets, newFakeEventStore(), &fakeAdmin{}, nil,
		CatalogOptions{PageSize: 100}, nil)

	res, err := svc.SyncCatalog(context.Background())
	if err != nil {
		t.Fatalf("SyncCatalog: %v", err)
	}

	// The new/known split is observability only; a broken exists check must
	// not block the write.
	if _, ok := markets.markets["m1"]; !ok {
		t.Error("market not upserted after exists-check error")
	}
	if len(res.Markets) != 1 {
		t.Errorf("Markets len = %d, want 1", len(res.Markets))
	}
	if res.New != 0 || res.Known != 0 || res.Failed != 1 {
		t.Errorf("counters = %+v, want new=0 known=0 failed=1 (unclassifiable)", res)
	}
}

func TestCatalogService_SyncCatalog_MidPaginationError(t *testing.T) {
	full := []polymarket.APIEvent{
		mustEvent(t, `{"id": "ev1", "markets": []}`),
		mustEvent(t, `{"id": "ev2", "markets": []}`),
	}

	source := &fakeCatalogSource{
		pages:   map[int][]polymarket.APIEvent{0: full},
		pageErr: map[int]error{2: &domain.VenueError{Status: 500, Body: "boom"}},
	}
	svc := NewCatalogService(source, newFakeMarketStore(), newFakeEventStore(), &fakeAdmin{}, nil,
		CatalogOptions{PageSize: 2}, nil)

	res, err := svc.SyncCatalog(context.Background())
	if err != nil {
		t.Fatalf("mid-pagination failure must not fail the sweep: %v", err)
	}
	if res.Events != 2 {
		t.Errorf("Events = %d, want the 2 from the good page", res.Events)
	}
}

func TestCatalogService_SyncCatalog_FirstPageError(t *testing.T) {
	source := &fakeCatalogSource{
		pageErr: map[int]error{0: errors.New("dial tcp: refused")},
	}
	svc := NewCatalogService(source, newFakeMarketStore(), newFakeEventStore(), &fakeAdmin{}, nil,
		CatalogOptions{PageSize: 100}, nil)

	if _, err := svc.SyncCatalog(context.Background()); err == nil {
		t.Fatal("expected error when nothing could be fetched")
	}
}

func TestCatalogService_GetMarket_CacheFirst(t *testing.T) {
	markets := newFakeMarketStore()
	markets.markets["m1"] = domain.Market{ID: "m1", Question: "A?"}
	cache := newFakeMarketCache()

	svc := NewCatalogService(&fakeCatalogSource{}, markets, newFakeEventStore(), &fakeAdmin{}, cache,
		CatalogOptions{}, nil)

	// First read misses the cache and fills it.
	if _, err := svc.GetMarket(context.Background(), "m1"); err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if cache.fills != 1 {
		t.Errorf("cache fills = %d, want 1", cache.fills)
	}

	// Second read is served from the cache.
	if _, err := svc.GetMarket(context.Background(), "m1"); err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1", cache.hits)
	}

	if _, err := svc.GetMarket(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestCatalogService_GetMarketByToken(t *testing.T) {
	markets := newFakeMarketStore()
	markets.markets["m1"] = domain.Market{ID: "m1", Question: "A?", TokenIDs: []string{"tok-a", "tok-b"}}
	cache := newFakeMarketCache()

	svc := NewCatalogService(&fakeCatalogSource{}, markets, newFakeEventStore(), &fakeAdmin{}, cache,
		CatalogOptions{}, nil)

	m, err := svc.GetMarketByToken(context.Background(), "tok-b")
	if err != nil {
		t.Fatalf("GetMarketByToken: %v", err)
	}
	if m.ID != "m1" {
		t.Errorf("resolved market = %s, want m1", m.ID)
	}
	if cache.fills != 1 {
		t.Errorf("cache fills = %d, want 1", cache.fills)
	}

	// Second read is served from the cache.
	if _, err := svc.GetMarketByToken(context.Background(), "tok-b"); err != nil {
		t.Fatalf("GetMarketByToken: %v", err)
	}
	if cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1", cache.hits)
	}

	if _, err := svc.GetMarketByToken(context.Background(), "tok-zzz"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestCatalogService_DeleteMarket(t *testing.T) {
	markets := newFakeMarketStore()
	markets.markets["m1"] = domain.Market{ID: "m1"}

	svc := NewCatalogService(&fakeCatalogSource{}, markets, newFakeEventStore(), &fakeAdmin{}, nil,
		CatalogOptions{}, nil)

	existed, err := svc.DeleteMarket(context.Background(), "m1")
	if err != nil || !existed {
		t.Fatalf("DeleteMarket(m1) = %v, %v, want true, nil", existed, err)
	}

	existed, err = svc.DeleteMarket(context.Background(), "m1")
	if err != nil || existed {
		t.Fatalf("DeleteMarket(gone) = %v, %v, want false, nil", existed, err)
	}
}
