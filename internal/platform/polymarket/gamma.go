package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/polysync/internal/domain"
)

// ListQuery selects a page of markets or events from the Gamma API. Zero
// values for Active/Closed leave the corresponding filter unset.
type ListQuery struct {
	Active    *bool
	Closed    *bool
	Limit     int
	Offset    int
	Ascending bool
	TagID     int
}

func (q ListQuery) values() url.Values {
	params := url.Values{}
	if q.Active != nil {
		params.Set("active", strconv.FormatBool(*q.Active))
	}
	if q.Closed != nil {
		params.Set("closed", strconv.FormatBool(*q.Closed))
	}
	limit := q.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("ascending", strconv.FormatBool(q.Ascending))
	if q.TagID > 0 {
		params.Set("tag_id", strconv.Itoa(q.TagID))
	}
	return params
}

// maxPageSize is the largest page the Gamma API serves per request.
const maxPageSize = 100

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market and event discovery and metadata.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListMarkets returns one page of markets matching the query. Raw venue
// JSON for each market is retained on the returned records.
func (g *GammaClient) ListMarkets(ctx context.Context, q ListQuery) ([]APIMarket, error) {
	path := "/markets?" + q.values().Encode()

	body, err := g.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	return apiMarkets, nil
}

// GetMarket returns a single market by its Gamma ID.
func (g *GammaClient) GetMarket(ctx context.Context, id string) (APIMarket, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(id))

	body, err := g.doGet(ctx, path)
	if err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: get market %s: %w", id, err)
	}

	var apiMarket APIMarket
	if err := json.Unmarshal(body, &apiMarket); err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}

	return apiMarket, nil
}

// ListEvents returns one page of events matching the query, with their
// member markets embedded. Results are ordered by id so offset pagination
// is stable across pages.
func (g *GammaClient) ListEvents(ctx context.Context, q ListQuery) ([]APIEvent, error) {
	params := q.values()
	params.Set("order", "id")
	path := "/events?" + params.Encode()

	body, err := g.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list events: %w", err)
	}

	var events []APIEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode events: %w", err)
	}

	return events, nil
}

// searchResponse is the /public-search envelope. Either list may be absent.
type searchResponse struct {
	Markets []APIMarket `json:"markets"`
	Events  []APIEvent  `json:"events"`
}

// SearchMarkets runs a free-text query against the Gamma public search and
// returns the matching markets. Event hits contribute their member markets;
// events returned as bare stubs are fetched individually to recover them.
// Tag and profile hits are excluded. limitPerType caps each result type,
// defaulting to the venue page size.
func (g *GammaClient) SearchMarkets(ctx context.Context, query string, limitPerType int) ([]APIMarket, error) {
	if limitPerType <= 0 || limitPerType > maxPageSize {
		limitPerType = maxPageSize
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("search_tags", "false")
	params.Set("search_profiles", "false")
	params.Set("limit_per_type", strconv.Itoa(limitPerType))

	body, err := g.doGet(ctx, "/public-search?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: search %q: %w", query, err)
	}

	var res searchResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode search results: %w", err)
	}

	var markets []APIMarket
	seen := map[string]bool{}
	add := func(m APIMarket) {
		if m.ID == "" || seen[m.ID] {
			return
		}
		seen[m.ID] = true
		markets = append(markets, m)
	}

	for _, m := range res.Markets {
		add(m)
	}
	for i := range res.Events {
		ev := &res.Events[i]
		if len(ev.Markets) == 0 && ev.ID != "" {
			// Search returns some events as stubs without their markets.
			full, err := g.GetEvent(ctx, ev.ID)
			if err != nil {
				return nil, err
			}
			ev = &full
		}
		for _, m := range ev.Markets {
			add(m)
		}
	}
	return markets, nil
}

// GetEvent returns a single event by its Gamma ID, member markets included.
func (g *GammaClient) GetEvent(ctx context.Context, id string) (APIEvent, error) {
	path := fmt.Sprintf("/events/%s", url.PathEscape(id))

	body, err := g.doGet(ctx, path)
	if err != nil {
		return APIEvent{}, fmt.Errorf("polymarket/gamma: get event %s: %w", id, err)
	}

	var event APIEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return APIEvent{}, fmt.Errorf("polymarket/gamma: decode event: %w", err)
	}

	return event, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "gamma GET " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: "gamma read " + path, Err: err}
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
