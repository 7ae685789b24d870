package domain

import (
	"encoding/json"
	"time"
)

// Market represents a Polymarket prediction market as discovered through the
// Gamma catalog. The Raw field always holds exactly one venue response for
// this market; upserts replace the row wholesale rather than merging fields.
type Market struct {
	ID          string
	Question    string
	Slug        string
	ConditionID string
	Description string

	Active          bool
	Closed          bool
	Archived        bool
	Restricted      bool
	Featured        bool
	EnableOrderBook bool

	Volume    float64
	Liquidity float64
	Volume24h float64
	Volume1wk float64
	Volume1mo float64
	Volume1yr float64

	TickSize     float64
	MinOrderSize float64

	// TokenIDs and Outcomes are index-aligned: TokenIDs[i] is the tradeable
	// token for outcome label Outcomes[i].
	TokenIDs []string
	Outcomes []string

	StartDate string
	EndDate   string

	Raw json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event groups one or more related markets as exposed by the Gamma catalog.
type Event struct {
	ID          string
	Ticker      string
	Slug        string
	Title       string
	Description string

	Active   bool
	Closed   bool
	Archived bool

	MarketIDs []string

	Raw json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CatalogStats summarises the contents of the catalog store.
type CatalogStats struct {
	TotalMarkets    int64
	ActiveMarkets   int64
	ClosedMarkets   int64
	ArchivedMarkets int64
	TotalSnapshots  int64
	TotalVolume     float64
}
