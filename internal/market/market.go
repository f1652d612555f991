// Package market assembles price tables and reports from the ESI and EVE Tycoon
// collaborators. Every call is sequential; rate limiting lives in the clients.
package market

import (
	"context"
	"fmt"

	"eve-industry/internal/engine"
	"eve-industry/internal/esi"
	"eve-industry/internal/logger"
	"eve-industry/internal/sde"
)

// StatsSource returns regional market statistics for one type, or nil when the
// service has none.
type StatsSource interface {
	MarketStats(ctx context.Context, regionID, typeID int32) (*esi.MarketStats, error)
}

// ItemResolver turns item names into type IDs and volumes.
type ItemResolver interface {
	TypeIDs(ctx context.Context, names []string) (map[string]int32, error)
	TypeVolume(ctx context.Context, typeID int32) (float64, error)
}

// AdjustedProvider returns the adjusted prices used for job installation cost.
type AdjustedProvider interface {
	AdjustedPrices(ctx context.Context) (map[int32]float64, error)
}

// QuoteRow is one item of a price request. Stats is nil for items without a type ID.
type QuoteRow struct {
	Item  sde.Item
	Stats *esi.MarketStats
}

// Quote projects the row onto the two sides used for pricing.
func (r QuoteRow) Quote() engine.PriceQuote {
	q := engine.PriceQuote{TypeID: r.Item.TypeID, Name: r.Item.Name, Volume: r.Item.Volume}
	if r.Stats != nil {
		q.Buy = r.Stats.BuyAvgFivePercent
		q.Sell = r.Stats.SellAvgFivePercent
	}
	return q
}

// QuoteTable is the result of a price request for one region.
type QuoteTable struct {
	RegionID int32
	Rows     []QuoteRow
	Skipped  []engine.SkippedRow // items the stats service had nothing for
}

// Quotes returns the market view of every row in order.
func (t *QuoteTable) Quotes() []engine.PriceQuote {
	return Quotes(t.Rows)
}

// Quotes projects rows onto price quotes.
func Quotes(rows []QuoteRow) []engine.PriceQuote {
	out := make([]engine.PriceQuote, len(rows))
	for i, r := range rows {
		out[i] = r.Quote()
	}
	return out
}

// BuildPriceTable requests statistics for every item in order. Items without a
// type ID are kept with empty statistics; items the service returns nothing for
// are left out and listed in Skipped. Any collaborator error aborts the request.
func BuildPriceTable(ctx context.Context, src StatsSource, regionID int32, items []sde.Item) (*QuoteTable, error) {
	t := &QuoteTable{RegionID: regionID, Rows: make([]QuoteRow, 0, len(items))}
	for i, item := range items {
		if item.TypeID == 0 {
			t.Rows = append(t.Rows, QuoteRow{Item: item})
			continue
		}
		stats, err := src.MarketStats(ctx, regionID, item.TypeID)
		if err != nil {
			return nil, fmt.Errorf("market stats for %s (%d): %w", item.Name, item.TypeID, err)
		}
		if stats == nil {
			logger.Warn("Market", fmt.Sprintf("no stats for %s (%d) in region %d", item.Name, item.TypeID, regionID))
			t.Skipped = append(t.Skipped, engine.SkippedRow{Row: i, TypeID: item.TypeID, Name: item.Name, Reason: "no market statistics"})
			continue
		}
		t.Rows = append(t.Rows, QuoteRow{Item: item, Stats: stats})
	}
	logger.Info("Market", fmt.Sprintf("priced %d/%d items in region %d", len(t.Rows), len(items), regionID))
	return t, nil
}

// ResolveItems looks up type IDs and volumes for names. Blank and repeated names
// are dropped; names the universe does not know are kept with type ID 0.
func ResolveItems(ctx context.Context, r ItemResolver, names []string) ([]sde.Item, error) {
	seen := make(map[string]bool, len(names))
	unique := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		unique = append(unique, n)
	}
	if len(unique) == 0 {
		return nil, nil
	}

	ids, err := r.TypeIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("resolve type ids: %w", err)
	}

	items := make([]sde.Item, 0, len(unique))
	for _, name := range unique {
		id, ok := ids[name]
		if !ok {
			logger.Warn("Items", fmt.Sprintf("unknown item %q", name))
			items = append(items, sde.Item{Name: name})
			continue
		}
		vol, err := r.TypeVolume(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("volume of %s (%d): %w", name, id, err)
		}
		items = append(items, sde.Item{TypeID: id, Name: name, Volume: vol})
	}
	return items, nil
}

// ApplyAdjusted returns a copy of table with adjusted prices from the provider;
// items the provider does not list get an adjusted price of 0.
func ApplyAdjusted(ctx context.Context, p AdjustedProvider, table *engine.PriceTable) (*engine.PriceTable, error) {
	adjusted, err := p.AdjustedPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("adjusted prices: %w", err)
	}
	return table.WithAdjusted(adjusted), nil
}
