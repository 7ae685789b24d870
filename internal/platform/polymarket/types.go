package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polysync/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string. Gamma sends
// volume/liquidity figures in both encodings depending on the endpoint.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// stringList unmarshals a JSON string array that Gamma may deliver either as
// a real array or as a stringified array ("[\"Yes\",\"No\"]"). A payload
// matching neither shape leaves the list empty rather than failing the whole
// market record.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*l = nil
		return nil
	}
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		*l = nil
		return nil
	}
	*l = arr
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID              string     `json:"id"`
	Question        string     `json:"question"`
	Slug            string     `json:"slug"`
	ConditionID     string     `json:"conditionId"`
	Description     string     `json:"description"`
	Outcomes        stringList `json:"outcomes"`
	Active          flexBool   `json:"active"`
	Closed          flexBool   `json:"closed"`
	Archived        flexBool   `json:"archived"`
	Restricted      flexBool   `json:"restricted"`
	Featured        flexBool   `json:"featured"`
	StartDate       string     `json:"startDate"`
	EndDate         string     `json:"endDate"`
	CreatedAt       string     `json:"createdAt"`
	UpdatedAt       string     `json:"updatedAt"`
	Volume          flexFloat  `json:"volume"`
	Liquidity       flexFloat  `json:"liquidity"`
	Volume24h       flexFloat  `json:"volume24hr"`
	Volume1wk       flexFloat  `json:"volume1wk"`
	Volume1mo       flexFloat  `json:"volume1mo"`
	Volume1yr       flexFloat  `json:"volume1yr"`
	EnableOrderBook bool       `json:"enableOrderBook"`
	TickSize        flexFloat  `json:"orderPriceMinTickSize"`
	MinOrderSize    flexFloat  `json:"orderMinSize"`
	ClobTokenIDs    stringList `json:"clobTokenIds"`

	// Raw is the verbatim venue JSON this record was decoded from.
	Raw json.RawMessage `json:"-"`
}

func (m *APIMarket) UnmarshalJSON(data []byte) error {
	type alias APIMarket
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = APIMarket(a)
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// APIEvent represents an event as returned by the Gamma API. An event groups
// one or more related markets, delivered inline.
type APIEvent struct {
	ID          string      `json:"id"`
	Ticker      string      `json:"ticker"`
	Slug        string      `json:"slug"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Active      flexBool    `json:"active"`
	Closed      flexBool    `json:"closed"`
	Archived    flexBool    `json:"archived"`
	Markets     []APIMarket `json:"markets"`
	CreatedAt   string      `json:"createdAt"`
	UpdatedAt   string      `json:"updatedAt"`

	// Raw is the verbatim venue JSON this record was decoded from.
	Raw json.RawMessage `json:"-"`
}

func (e *APIEvent) UnmarshalJSON(data []byte) error {
	type alias APIEvent
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = APIEvent(a)
	e.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIBook is an order-book snapshot from the CLOB /book endpoint. Bids and
// Asks are kept raw here: depending on API version the levels arrive as
// [price, size] pairs or as {"price","size"} objects, and the book package
// resolves both shapes into canonical levels exactly once.
type APIBook struct {
	Market       string          `json:"market"`
	AssetID      string          `json:"asset_id"`
	Timestamp    string          `json:"timestamp"`
	Bids         json.RawMessage `json:"bids"`
	Asks         json.RawMessage `json:"asks"`
	MinOrderSize flexFloat       `json:"min_order_size"`
	TickSize     flexFloat       `json:"tick_size"`
	NegRisk      bool            `json:"neg_risk"`

	// Raw is the verbatim response body, set by the client after decode.
	Raw json.RawMessage `json:"-"`
}

// VenueTime parses the venue timestamp, which is sent as unix milliseconds
// (occasionally seconds) in a string. Nil when absent or unparseable.
func (b *APIBook) VenueTime() *time.Time {
	if b.Timestamp == "" {
		return nil
	}
	n, err := strconv.ParseInt(b.Timestamp, 10, 64)
	if err != nil {
		if t, err := time.Parse(time.RFC3339, b.Timestamp); err == nil {
			return &t
		}
		return nil
	}
	var t time.Time
	if n > 1e12 {
		t = time.UnixMilli(n)
	} else {
		t = time.Unix(n, 0)
	}
	return &t
}

// --------------------------------------------------------------------------
// Conversion helpers: API types -> domain types
// --------------------------------------------------------------------------

// ToDomainMarket converts a Gamma APIMarket to a domain.Market. The verbatim
// venue JSON captured at decode time is retained on the record.
func (m *APIMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		ID:              m.ID,
		Question:        m.Question,
		Slug:            m.Slug,
		ConditionID:     m.ConditionID,
		Description:     m.Description,
		Active:          bool(m.Active),
		Closed:          bool(m.Closed),
		Archived:        bool(m.Archived),
		Restricted:      bool(m.Restricted),
		Featured:        bool(m.Featured),
		EnableOrderBook: m.EnableOrderBook,
		Volume:          float64(m.Volume),
		Liquidity:       float64(m.Liquidity),
		Volume24h:       float64(m.Volume24h),
		Volume1wk:       float64(m.Volume1wk),
		Volume1mo:       float64(m.Volume1mo),
		Volume1yr:       float64(m.Volume1yr),
		TickSize:        float64(m.TickSize),
		MinOrderSize:    float64(m.MinOrderSize),
		TokenIDs:        m.ClobTokenIDs,
		Outcomes:        m.Outcomes,
		StartDate:       m.StartDate,
		EndDate:         m.EndDate,
		Raw:             m.Raw,
	}
	if t, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
		dm.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, m.UpdatedAt); err == nil {
		dm.UpdatedAt = t
	}
	return dm
}

// ToDomainEvent converts a Gamma APIEvent to a domain.Event. The embedded
// markets are referenced by id; their full records are upserted separately.
func (e *APIEvent) ToDomainEvent() domain.Event {
	de := domain.Event{
		ID:          e.ID,
		Ticker:      e.Ticker,
		Slug:        e.Slug,
		Title:       e.Title,
		Description: e.Description,
		Active:      bool(e.Active),
		Closed:      bool(e.Closed),
		Archived:    bool(e.Archived),
		Raw:         e.Raw,
	}
	for i := range e.Markets {
		if e.Markets[i].ID != "" {
			de.MarketIDs = append(de.MarketIDs, e.Markets[i].ID)
		}
	}
	if t, err := time.Parse(time.RFC3339, e.CreatedAt); err == nil {
		de.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, e.UpdatedAt); err == nil {
		de.UpdatedAt = t
	}
	return de
}
