package book

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/alanyoungcy/polysync/internal/domain"
)

func TestParseLevels_PairShape(t *testing.T) {
	raw := json.RawMessage(`[["0.45","100"],["0.40","50"]]`)

	levels, err := ParseLevels(raw)
	if err != nil {
		t.Fatalf("ParseLevels: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("len = %d, want 2", len(levels))
	}
	if levels[0].Price != 0.45 || levels[0].Size != 100 {
		t.Errorf("levels[0] = %+v, want {0.45 100}", levels[0])
	}
}

func TestParseLevels_ObjectShape(t *testing.T) {
	raw := json.RawMessage(`[{"price":"0.55","size":"80"},{"price":0.60,"size":20}]`)

	levels, err := ParseLevels(raw)
	if err != nil {
		t.Fatalf("ParseLevels: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("len = %d, want 2", len(levels))
	}
	if levels[1].Price != 0.60 || levels[1].Size != 20 {
		t.Errorf("levels[1] = %+v, want {0.6 20}", levels[1])
	}
}

func TestParseLevels_SkipsMalformedElements(t *testing.T) {
	raw := json.RawMessage(`[["0.45","100"], "garbage", [1], {"px": 3}, ["0.40","50"]]`)

	levels, err := ParseLevels(raw)
	if err != nil {
		t.Fatalf("ParseLevels: %v", err)
	}
	if len(levels) != 2 {
		t.Errorf("len = %d, want 2 (malformed elements dropped)", len(levels))
	}
}

func TestParseLevels_RejectsPartialShapes(t *testing.T) {
	// Elements that are close to a valid shape must not decay into phantom
	// zero-filled levels.
	tests := []struct {
		name string
		raw  string
	}{
		{"short pair", `[[1]]`},
		{"long pair", `[[0.1, 2, 3]]`},
		{"empty pair", `[[]]`},
		{"object wrong keys", `[{"px": 3}]`},
		{"object missing size", `[{"price": 0.5}]`},
		{"object missing price", `[{"size": 10}]`},
		{"pair non-numeric member", `[["0.5", "lots"]]`},
		{"all together", `[[1], {"px": 3}, [0.1, 2, 3]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			levels, err := ParseLevels(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("ParseLevels: %v", err)
			}
			if len(levels) != 0 {
				t.Errorf("len = %d, want 0 (got %v)", len(levels), levels)
			}
		})
	}
}

func TestParseLevels_NotAnArray(t *testing.T) {
	_, err := ParseLevels(json.RawMessage(`{"bids": []}`))
	if !errors.Is(err, domain.ErrMalformedData) {
		t.Fatalf("error = %v, want ErrMalformedData", err)
	}
}

func TestParseLevels_EmptyAndNull(t *testing.T) {
	for _, raw := range []json.RawMessage{nil, json.RawMessage(`null`), json.RawMessage(`[]`)} {
		levels, err := ParseLevels(raw)
		if err != nil {
			t.Fatalf("ParseLevels(%s): %v", raw, err)
		}
		if len(levels) != 0 {
			t.Errorf("ParseLevels(%s) = %v, want empty", raw, levels)
		}
	}
}

func TestSort_Monotonic(t *testing.T) {
	bids := []domain.PriceLevel{{Price: 0.40, Size: 50}, {Price: 0.45, Size: 100}, {Price: 0.42, Size: 10}}
	asks := []domain.PriceLevel{{Price: 0.60, Size: 20}, {Price: 0.55, Size: 80}}

	SortBids(bids)
	SortAsks(asks)

	for i := 1; i < len(bids); i++ {
		if bids[i].Price > bids[i-1].Price {
			t.Errorf("bids not descending at %d: %v", i, bids)
		}
	}
	for i := 1; i < len(asks); i++ {
		if asks[i].Price < asks[i-1].Price {
			t.Errorf("asks not ascending at %d: %v", i, asks)
		}
	}
}

func TestTruncate(t *testing.T) {
	levels := []domain.PriceLevel{{Price: 1}, {Price: 2}, {Price: 3}}

	if got := Truncate(levels, 2); len(got) != 2 {
		t.Errorf("Truncate(3, 2) len = %d, want 2", len(got))
	}
	if got := Truncate(levels, 0); len(got) != 3 {
		t.Errorf("Truncate(3, 0) len = %d, want 3 (no limit)", len(got))
	}
	if got := Truncate(levels, 10); len(got) != 3 {
		t.Errorf("Truncate(3, 10) len = %d, want 3", len(got))
	}
}

func TestSummary_Fixture(t *testing.T) {
	bids := []domain.PriceLevel{{Price: 0.45, Size: 100}, {Price: 0.40, Size: 50}}
	asks := []domain.PriceLevel{{Price: 0.55, Size: 80}, {Price: 0.60, Size: 20}}

	s := Summarize(bids, asks)

	if s.BestBid != 0.45 || s.BestAsk != 0.55 {
		t.Fatalf("best bid/ask = %v/%v, want 0.45/0.55", s.BestBid, s.BestAsk)
	}
	if s.BestBidSize != 100 || s.BestAskSize != 80 {
		t.Errorf("best sizes = %v/%v, want 100/80", s.BestBidSize, s.BestAskSize)
	}

	mid, ok := s.Mid()
	if !ok || mid != 0.50 {
		t.Errorf("Mid() = %v, %v, want 0.50, true", mid, ok)
	}

	spread, ok := s.Spread()
	if !ok || math.Abs(spread-0.10) > 1e-9 {
		t.Errorf("Spread() = %v, %v, want 0.10, true", spread, ok)
	}

	pct, ok := s.SpreadPct()
	if !ok || math.Abs(pct-22.2222222222) > 1e-6 {
		t.Errorf("SpreadPct() = %v, %v, want ~22.22, true", pct, ok)
	}
}

func TestSummary_EmptySides(t *testing.T) {
	onlyBids := Summarize([]domain.PriceLevel{{Price: 0.45, Size: 1}}, nil)
	if !onlyBids.HasBid || onlyBids.HasAsk {
		t.Fatalf("flags = %+v, want bid only", onlyBids)
	}
	if _, ok := onlyBids.Mid(); ok {
		t.Error("Mid() available with one side")
	}
	if _, ok := onlyBids.Spread(); ok {
		t.Error("Spread() available with one side")
	}

	empty := Summarize(nil, nil)
	if empty.HasBid || empty.HasAsk {
		t.Fatalf("flags = %+v, want none", empty)
	}
	if _, ok := empty.SpreadPct(); ok {
		t.Error("SpreadPct() available on empty book")
	}
}

func TestSummary_SpreadPctZeroBid(t *testing.T) {
	s := Summarize(
		[]domain.PriceLevel{{Price: 0, Size: 10}},
		[]domain.PriceLevel{{Price: 0.05, Size: 10}},
	)
	if _, ok := s.SpreadPct(); ok {
		t.Error("SpreadPct() must be unavailable when best bid is 0")
	}
}
