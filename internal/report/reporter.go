// Package report renders stored order books and catalog aggregates for the
// CLI. Everything in here is read-only.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/alanyoungcy/polysync/internal/book"
	"github.com/alanyoungcy/polysync/internal/domain"
)

// MarketReader resolves market metadata for display.
type MarketReader interface {
	GetMarket(ctx context.Context, id string) (domain.Market, error)
}

// BookReader resolves the latest stored snapshots.
type BookReader interface {
	Latest(ctx context.Context, marketID, tokenID string) ([]domain.BookSnapshot, error)
}

// Reporter renders order-book snapshots and catalog statistics.
type Reporter struct {
	markets MarketReader
	books   BookReader
	depth   int // displayed levels per side
}

// New creates a Reporter. depth <= 0 falls back to 10 displayed levels.
func New(markets MarketReader, books BookReader, depth int) *Reporter {
	if depth <= 0 {
		depth = 10
	}
	return &Reporter{
		markets: markets,
		books:   books,
		depth:   depth,
	}
}

// PrintBook writes a human-readable rendering of the latest book(s) for a
// market. An unknown market or a market without snapshots is reported as a
// plain message, not an error.
func (r *Reporter) PrintBook(ctx context.Context, w io.Writer, marketID, tokenID string) error {
	m, err := r.markets.GetMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			fmt.Fprintf(w, "market %s not found\n", marketID)
			return nil
		}
		return fmt.Errorf("report: resolve market %s: %w", marketID, err)
	}

	snaps, err := r.books.Latest(ctx, marketID, tokenID)
	if err != nil {
		return fmt.Errorf("report: load snapshots for %s: %w", marketID, err)
	}
	if len(snaps) == 0 {
		fmt.Fprintf(w, "no order book data for market %s\n", marketID)
		return nil
	}

	fmt.Fprintf(w, "Market: %s\n", m.Question)
	fmt.Fprintf(w, "ID:     %s   slug: %s\n", m.ID, m.Slug)

	for i := range snaps {
		fmt.Fprintln(w)
		r.renderSnapshot(w, &m, &snaps[i])
	}
	return nil
}

// renderSnapshot writes one token's book: ranked ask and bid tables, the top
// of book, and the spread analysis.
func (r *Reporter) renderSnapshot(w io.Writer, m *domain.Market, snap *domain.BookSnapshot) {
	label := outcomeLabel(m, snap.TokenID)
	if label != "" {
		fmt.Fprintf(w, "Token %s (%s)\n", snap.TokenID, label)
	} else {
		fmt.Fprintf(w, "Token %s\n", snap.TokenID)
	}

	ts := snap.CreatedAt
	if snap.Timestamp != nil {
		ts = *snap.Timestamp
	}
	fmt.Fprintf(w, "As of %s   tick %.4g   min size %.4g", ts.Format(time.RFC3339), snap.TickSize, snap.MinOrderSize)
	if snap.NegRisk {
		fmt.Fprint(w, "   neg-risk")
	}
	fmt.Fprintln(w)

	r.renderSide(w, "ASKS (lowest first)", snap.Asks)
	r.renderSide(w, "BIDS (highest first)", snap.Bids)

	s := book.Summarize(snap.Bids, snap.Asks)
	if s.HasAsk {
		fmt.Fprintf(w, "Best ask: %.4f (size %.2f)\n", s.BestAsk, s.BestAskSize)
	} else {
		fmt.Fprintln(w, "Best ask: none")
	}
	if s.HasBid {
		fmt.Fprintf(w, "Best bid: %.4f (size %.2f)\n", s.BestBid, s.BestBidSize)
	} else {
		fmt.Fprintln(w, "Best bid: none")
	}

	if spread, ok := s.Spread(); ok {
		mid, _ := s.Mid()
		if pct, ok := s.SpreadPct(); ok {
			fmt.Fprintf(w, "Spread: %.4f (%.2f%% of best bid)   mid: %.4f\n", spread, pct, mid)
		} else {
			fmt.Fprintf(w, "Spread: %.4f   mid: %.4f\n", spread, mid)
		}
	} else {
		fmt.Fprintln(w, "Spread: n/a (one-sided or empty book)")
	}
}

// renderSide writes one ranked side table, truncated to the display depth
// with an overflow line.
func (r *Reporter) renderSide(w io.Writer, title string, levels []domain.PriceLevel) {
	fmt.Fprintln(w, title)
	if len(levels) == 0 {
		fmt.Fprintln(w, "  (empty)")
		return
	}

	shown := book.Truncate(levels, r.depth)

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tPRICE\tSIZE\tVALUE\t")
	for _, lvl := range shown {
		fmt.Fprintf(tw, "\t%.4f\t%.2f\t%.2f\t\n", lvl.Price, lvl.Size, lvl.Price*lvl.Size)
	}
	tw.Flush()

	if rest := len(levels) - len(shown); rest > 0 {
		fmt.Fprintf(w, "  ... and %d more levels\n", rest)
	}
}

// outcomeLabel maps a token id to its outcome label through the market's
// index-aligned lists.
func outcomeLabel(m *domain.Market, tokenID string) string {
	for i, tok := range m.TokenIDs {
		if tok == tokenID && i < len(m.Outcomes) {
			return m.Outcomes[i]
		}
	}
	return ""
}

// bookExport is the JSON document written by ExportJSON.
type bookExport struct {
	MarketID   string                `json:"market_id"`
	Question   string                `json:"question"`
	Slug       string                `json:"slug"`
	ExportedAt time.Time             `json:"exported_at"`
	Books      []bookExportSnapshot  `json:"books"`
}

type bookExportSnapshot struct {
	TokenID   string              `json:"token_id"`
	Outcome   string              `json:"outcome,omitempty"`
	Timestamp *time.Time          `json:"timestamp,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	Bids      []domain.PriceLevel `json:"bids"`
	Asks      []domain.PriceLevel `json:"asks"`
	TickSize  float64             `json:"tick_size"`
	NegRisk   bool                `json:"neg_risk"`
}

// ExportJSON writes the latest book(s) for a market as a single JSON
// document. Unlike PrintBook, a missing market is an error here: an export
// must not silently produce an empty file.
func (r *Reporter) ExportJSON(ctx context.Context, w io.Writer, marketID, tokenID string) error {
	m, err := r.markets.GetMarket(ctx, marketID)
	if err != nil {
		return fmt.Errorf("report: resolve market %s: %w", marketID, err)
	}

	snaps, err := r.books.Latest(ctx, marketID, tokenID)
	if err != nil {
		return fmt.Errorf("report: load snapshots for %s: %w", marketID, err)
	}

	doc := bookExport{
		MarketID:   m.ID,
		Question:   m.Question,
		Slug:       m.Slug,
		ExportedAt: time.Now().UTC(),
		Books:      make([]bookExportSnapshot, 0, len(snaps)),
	}
	for _, snap := range snaps {
		doc.Books = append(doc.Books, bookExportSnapshot{
			TokenID:   snap.TokenID,
			Outcome:   outcomeLabel(&m, snap.TokenID),
			Timestamp: snap.Timestamp,
			CreatedAt: snap.CreatedAt,
			Bids:      snap.Bids,
			Asks:      snap.Asks,
			TickSize:  snap.TickSize,
			NegRisk:   snap.NegRisk,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("report: encode export: %w", err)
	}
	return nil
}

// PrintStats writes the catalog aggregate counts.
func PrintStats(w io.Writer, stats domain.CatalogStats) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "markets\t%d\n", stats.TotalMarkets)
	fmt.Fprintf(tw, "  active\t%d\n", stats.ActiveMarkets)
	fmt.Fprintf(tw, "  closed\t%d\n", stats.ClosedMarkets)
	fmt.Fprintf(tw, "  archived\t%d\n", stats.ArchivedMarkets)
	fmt.Fprintf(tw, "snapshots\t%d\n", stats.TotalSnapshots)
	fmt.Fprintf(tw, "total volume\t%.2f\n", stats.TotalVolume)
	tw.Flush()
}

// PrintMarkets writes a one-line-per-market table.
func PrintMarkets(w io.Writer, markets []domain.Market) {
	if len(markets) == 0 {
		fmt.Fprintln(w, "no markets")
		return
	}
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tACTIVE\tCLOSED\tVOLUME\tQUESTION")
	for _, m := range markets {
		fmt.Fprintf(tw, "%s\t%t\t%t\t%.0f\t%s\n", m.ID, m.Active, m.Closed, m.Volume, m.Question)
	}
	tw.Flush()
}

// PrintMarket writes a full single-market record.
func PrintMarket(w io.Writer, m domain.Market) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", m.ID)
	fmt.Fprintf(tw, "question\t%s\n", m.Question)
	fmt.Fprintf(tw, "slug\t%s\n", m.Slug)
	fmt.Fprintf(tw, "condition\t%s\n", m.ConditionID)
	fmt.Fprintf(tw, "active\t%t\tclosed\t%t\tarchived\t%t\n", m.Active, m.Closed, m.Archived)
	fmt.Fprintf(tw, "order book\t%t\ttick\t%.4g\tmin size\t%.4g\n", m.EnableOrderBook, m.TickSize, m.MinOrderSize)
	fmt.Fprintf(tw, "volume\t%.2f\tliquidity\t%.2f\t24h\t%.2f\n", m.Volume, m.Liquidity, m.Volume24h)
	for i, tok := range m.TokenIDs {
		label := ""
		if i < len(m.Outcomes) {
			label = m.Outcomes[i]
		}
		fmt.Fprintf(tw, "token[%d]\t%s\t%s\n", i, tok, label)
	}
	fmt.Fprintf(tw, "updated\t%s\n", m.UpdatedAt.Format(time.RFC3339))
	tw.Flush()
}
