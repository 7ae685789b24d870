package report

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/polysync/internal/domain"
)

type fakeMarketReader struct {
	markets map[string]domain.Market
}

func (f *fakeMarketReader) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	m, ok := f.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

type fakeBookReader struct {
	snaps []domain.BookSnapshot
}

func (f *fakeBookReader) Latest(ctx context.Context, marketID, tokenID string) ([]domain.BookSnapshot, error) {
	var out []domain.BookSnapshot
	for _, s := range f.snaps {
		if s.MarketID != marketID {
			continue
		}
		if tokenID != "" && s.TokenID != tokenID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func fixtureMarket() domain.Market {
	return domain.Market{
		ID:       "m1",
		Question: "Will it rain tomorrow?",
		Slug:     "will-it-rain",
		TokenIDs: []string{"tok-yes", "tok-no"},
		Outcomes: []string{"Yes", "No"},
	}
}

func fixtureSnapshot() domain.BookSnapshot {
	return domain.BookSnapshot{
		ID:       1,
		MarketID: "m1",
		TokenID:  "tok-yes",
		Bids: []domain.PriceLevel{
			{Price: 0.45, Size: 100},
			{Price: 0.40, Size: 50},
		},
		Asks: []domain.PriceLevel{
			{Price: 0.55, Size: 80},
			{Price: 0.60, Size: 20},
		},
		TickSize:  0.01,
		CreatedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestReporter_PrintBook(t *testing.T) {
	markets := &fakeMarketReader{markets: map[string]domain.Market{"m1": fixtureMarket()}}
	books := &fakeBookReader{snaps: []domain.BookSnapshot{fixtureSnapshot()}}

	var buf bytes.Buffer
	r := New(markets, books, 10)
	if err := r.PrintBook(context.Background(), &buf, "m1", ""); err != nil {
		t.Fatalf("PrintBook: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Will it rain tomorrow?",
		"tok-yes (Yes)",
		"Best bid: 0.4500 (size 100.00)",
		"Best ask: 0.5500 (size 80.00)",
		"Spread: 0.1000 (22.22% of best bid)",
		"mid: 0.5000",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n---\n%s", want, out)
		}
	}
}

func TestReporter_PrintBook_Overflow(t *testing.T) {
	snap := fixtureSnapshot()
	for i := 0; i < 15; i++ {
		snap.Bids = append(snap.Bids, domain.PriceLevel{Price: 0.30 - float64(i)*0.01, Size: 1})
	}

	markets := &fakeMarketReader{markets: map[string]domain.Market{"m1": fixtureMarket()}}
	books := &fakeBookReader{snaps: []domain.BookSnapshot{snap}}

	var buf bytes.Buffer
	r := New(markets, books, 5)
	if err := r.PrintBook(context.Background(), &buf, "m1", ""); err != nil {
		t.Fatalf("PrintBook: %v", err)
	}

	if !strings.Contains(buf.String(), "... and 12 more levels") {
		t.Errorf("overflow line missing:\n%s", buf.String())
	}
}

func TestReporter_PrintBook_NoData(t *testing.T) {
	markets := &fakeMarketReader{markets: map[string]domain.Market{"m1": fixtureMarket()}}

	var buf bytes.Buffer
	r := New(markets, &fakeBookReader{}, 10)
	if err := r.PrintBook(context.Background(), &buf, "m1", ""); err != nil {
		t.Fatalf("no data must not be an error: %v", err)
	}
	if !strings.Contains(buf.String(), "no order book data") {
		t.Errorf("output = %q, want a no-data message", buf.String())
	}
}

func TestReporter_PrintBook_UnknownMarket(t *testing.T) {
	var buf bytes.Buffer
	r := New(&fakeMarketReader{}, &fakeBookReader{}, 10)
	if err := r.PrintBook(context.Background(), &buf, "nope", ""); err != nil {
		t.Fatalf("unknown market must not be an error: %v", err)
	}
	if !strings.Contains(buf.String(), "not found") {
		t.Errorf("output = %q, want a not-found message", buf.String())
	}
}

func TestReporter_PrintBook_EmptySide(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Asks = nil

	markets := &fakeMarketReader{markets: map[string]domain.Market{"m1": fixtureMarket()}}
	books := &fakeBookReader{snaps: []domain.BookSnapshot{snap}}

	var buf bytes.Buffer
	r := New(markets, books, 10)
	if err := r.PrintBook(context.Background(), &buf, "m1", ""); err != nil {
		t.Fatalf("PrintBook: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "Best ask: none") {
		t.Errorf("one-sided book should report missing ask:\n%s", out)
	}
	if !strings.Contains(out, "Spread: n/a") {
		t.Errorf("one-sided book should report no spread:\n%s", out)
	}
}

func TestReporter_ExportJSON(t *testing.T) {
	markets := &fakeMarketReader{markets: map[string]domain.Market{"m1": fixtureMarket()}}
	books := &fakeBookReader{snaps: []domain.BookSnapshot{fixtureSnapshot()}}

	var buf bytes.Buffer
	r := New(markets, books, 10)
	if err := r.ExportJSON(context.Background(), &buf, "m1", "tok-yes"); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	var doc struct {
		MarketID string `json:"market_id"`
		Books    []struct {
			TokenID string              `json:"token_id"`
			Outcome string              `json:"outcome"`
			Bids    []domain.PriceLevel `json:"bids"`
		} `json:"books"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}

	if doc.MarketID != "m1" || len(doc.Books) != 1 {
		t.Fatalf("export = %+v", doc)
	}
	if doc.Books[0].Outcome != "Yes" || len(doc.Books[0].Bids) != 2 {
		t.Errorf("book entry = %+v", doc.Books[0])
	}
}

func TestReporter_ExportJSON_UnknownMarketFails(t *testing.T) {
	var buf bytes.Buffer
	r := New(&fakeMarketReader{}, &fakeBookReader{}, 10)
	if err := r.ExportJSON(context.Background(), &buf, "nope", ""); err == nil {
		t.Fatal("export of an unknown market must fail")
	}
}

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	PrintStats(&buf, domain.CatalogStats{
		TotalMarkets: 10, ActiveMarkets: 4, ClosedMarkets: 6,
		TotalSnapshots: 123, TotalVolume: 4567.89,
	})
	out := buf.String()

	for _, want := range []string{"10", "4", "6", "123", "4567.89"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
}
