// Package book normalizes raw order-book payloads into canonical,
// price-sorted levels and derives summary figures from them.
package book

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/alanyoungcy/polysync/internal/domain"
)

// levelNum accepts a price or size encoded as a JSON number or a numeric
// string. The CLOB API has shipped both over time.
type levelNum float64

func (n *levelNum) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = levelNum(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = levelNum(f)
	return nil
}

// parseLevel decodes one level element. The pair shape must have exactly two
// decodable members and the object shape must carry both keys; anything looser
// would fabricate a zero price or size.
func parseLevel(e json.RawMessage) (domain.PriceLevel, bool) {
	var parts []json.RawMessage
	if err := json.Unmarshal(e, &parts); err == nil {
		if len(parts) != 2 {
			return domain.PriceLevel{}, false
		}
		var price, size levelNum
		if json.Unmarshal(parts[0], &price) != nil || json.Unmarshal(parts[1], &size) != nil {
			return domain.PriceLevel{}, false
		}
		return domain.PriceLevel{Price: float64(price), Size: float64(size)}, true
	}

	var obj struct {
		Price *levelNum `json:"price"`
		Size  *levelNum `json:"size"`
	}
	if err := json.Unmarshal(e, &obj); err != nil || obj.Price == nil || obj.Size == nil {
		return domain.PriceLevel{}, false
	}
	return domain.PriceLevel{Price: float64(*obj.Price), Size: float64(*obj.Size)}, true
}

// ParseLevels decodes one side of a raw book payload. Each element may be a
// two-element [price, size] array or a {"price","size"} object, with numbers
// or numeric strings. Elements matching neither shape are dropped; only a
// payload that is not a JSON array at all is malformed.
func ParseLevels(raw json.RawMessage) ([]domain.PriceLevel, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("book: %w: levels are not an array", domain.ErrMalformedData)
	}

	levels := make([]domain.PriceLevel, 0, len(elems))
	for _, e := range elems {
		if lvl, ok := parseLevel(e); ok {
			levels = append(levels, lvl)
		}
	}

	return levels, nil
}

// SortBids orders bids best-first: descending by price.
func SortBids(levels []domain.PriceLevel) {
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Price > levels[j].Price
	})
}

// SortAsks orders asks best-first: ascending by price.
func SortAsks(levels []domain.PriceLevel) {
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Price < levels[j].Price
	})
}

// Truncate returns at most n levels. n <= 0 means no limit. Storage always
// keeps full depth; truncation is a display concern.
func Truncate(levels []domain.PriceLevel, n int) []domain.PriceLevel {
	if n <= 0 || len(levels) <= n {
		return levels
	}
	return levels[:n]
}

// Summary carries the top of a normalized book. HasBid/HasAsk distinguish a
// genuinely empty side from a zero price.
type Summary struct {
	BestBid     float64
	BestBidSize float64
	BestAsk     float64
	BestAskSize float64
	HasBid      bool
	HasAsk      bool
}

// Summarize derives a Summary from sorted (best-first) bid and ask levels.
func Summarize(bids, asks []domain.PriceLevel) Summary {
	var s Summary
	if len(bids) > 0 {
		s.BestBid = bids[0].Price
		s.BestBidSize = bids[0].Size
		s.HasBid = true
	}
	if len(asks) > 0 {
		s.BestAsk = asks[0].Price
		s.BestAskSize = asks[0].Size
		s.HasAsk = true
	}
	return s
}

// Mid returns the midpoint price. Unavailable unless both sides are present.
func (s Summary) Mid() (float64, bool) {
	if !s.HasBid || !s.HasAsk {
		return 0, false
	}
	return (s.BestBid + s.BestAsk) / 2, true
}

// Spread returns the bid/ask spread. Unavailable unless both sides are
// present.
func (s Summary) Spread() (float64, bool) {
	if !s.HasBid || !s.HasAsk {
		return 0, false
	}
	return s.BestAsk - s.BestBid, true
}

// SpreadPct returns the spread as a percentage of the best bid. Unavailable
// when either side is missing or the best bid is not a positive price.
func (s Summary) SpreadPct() (float64, bool) {
	spread, ok := s.Spread()
	if !ok || s.BestBid <= 0 {
		return 0, false
	}
	return spread / s.BestBid * 100, true
}
