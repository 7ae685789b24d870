package domain

import (
	"encoding/json"
	"time"
)

// PriceLevel is a single price+size entry in an order book. Both values are
// non-negative; the raw venue shapes (pair arrays, objects, string numbers)
// are resolved into this canonical form once, at ingestion.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// BookSnapshot is one stored order-book observation for a (market, token)
// pair. Snapshots are append-only: rows are inserted, never updated, and the
// "current" book is a derived read (latest timestamp, then highest ID).
type BookSnapshot struct {
	// ID is the storage-assigned sequence number, 0 until persisted.
	ID       int64
	MarketID string
	TokenID  string

	// Bids and Asks hold the full depth in canonical form; display
	// truncation happens at read time.
	Bids []PriceLevel
	Asks []PriceLevel

	// Timestamp is the venue-supplied snapshot time, nil when absent.
	Timestamp *time.Time

	TickSize     float64
	MinOrderSize float64
	NegRisk      bool

	Raw json.RawMessage

	CreatedAt time.Time
}
