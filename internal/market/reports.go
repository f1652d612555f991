package market

import (
	"context"
	"fmt"

	"eve-industry/internal/engine"
	"eve-industry/internal/esi"
	"eve-industry/internal/logger"
	"eve-industry/internal/sde"
)

// HistorySource returns daily market history, oldest first.
type HistorySource interface {
	History(ctx context.Context, regionID, typeID int32) ([]esi.HistoryEntry, error)
}

// NameResolver maps type IDs back to names.
type NameResolver interface {
	TypeNames(ctx context.Context, ids []int32) (map[int32]string, error)
}

// StockReport values a pasted inventory against recent market history.
type StockReport struct {
	RegionID int32
	Days     int
	Rows     []engine.StockRow
	Skipped  []engine.SkippedRow
}

// Total is the summed current value of all rows.
func (r *StockReport) Total() float64 {
	var total float64
	for _, row := range r.Rows {
		total += row.Value()
	}
	return total
}

// DailyPrices converts market history into the engine's daily price series.
func DailyPrices(history []esi.HistoryEntry) []engine.DailyPrice {
	out := make([]engine.DailyPrice, len(history))
	for i, h := range history {
		out[i] = engine.DailyPrice{Average: h.Average, Highest: h.Highest, Lowest: h.Lowest}
	}
	return out
}

// BuildStockReport resolves each line's type ID and summarises its last days of
// history. Unknown names and items without history are listed in Skipped.
func BuildStockReport(ctx context.Context, items ItemResolver, history HistorySource, regionID int32, lines []engine.StockLine, days int) (*StockReport, error) {
	if days <= 0 {
		days = engine.DefaultHistoryDays
	}
	rep := &StockReport{RegionID: regionID, Days: days}
	if len(lines) == 0 {
		return rep, nil
	}

	names := make([]string, len(lines))
	for i, l := range lines {
		names[i] = l.Name
	}
	ids, err := items.TypeIDs(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("resolve type ids: %w", err)
	}

	for i, l := range lines {
		id, ok := ids[l.Name]
		if !ok {
			rep.Skipped = append(rep.Skipped, engine.SkippedRow{Row: i, Name: l.Name, Reason: "unknown item"})
			continue
		}
		entries, err := history.History(ctx, regionID, id)
		if err != nil {
			return nil, fmt.Errorf("history for %s (%d): %w", l.Name, id, err)
		}
		summary, ok := engine.SummarizeHistory(DailyPrices(entries), days)
		if !ok {
			rep.Skipped = append(rep.Skipped, engine.SkippedRow{Row: i, TypeID: id, Name: l.Name, Reason: "no market history"})
			continue
		}
		rep.Rows = append(rep.Rows, engine.StockRow{Name: l.Name, Quantity: l.Quantity, HistorySummary: summary})
	}
	logger.Info("Stock", fmt.Sprintf("valued %d/%d lines over %d days", len(rep.Rows), len(lines), days))
	return rep, nil
}

// BreakdownSources are the collaborators needed to price one product's materials.
type BreakdownSources struct {
	Items   ItemResolver
	Names   NameResolver
	Stats   StatsSource
	Recipes sde.RecipeSource
}

// BuildBreakdown finds the manufacturing recipe of product, prices each material
// at its regional sell average and returns the cost distribution.
func BuildBreakdown(ctx context.Context, src BreakdownSources, product string, regionID int32, meBPO, meStructure float64) (*engine.Breakdown, error) {
	ids, err := src.Items.TypeIDs(ctx, []string{product})
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", product, err)
	}
	id, ok := ids[product]
	if !ok {
		return nil, fmt.Errorf("unknown item %q", product)
	}

	recipe, err := src.Recipes.Recipe(ctx, id, sde.ActivityManufacturing)
	if err != nil {
		return nil, fmt.Errorf("recipe for %s: %w", product, err)
	}
	recipe.Name = product

	matIDs := make([]int32, len(recipe.Materials))
	for i, m := range recipe.Materials {
		matIDs[i] = m.TypeID
	}
	sell := make(map[int32]float64, len(matIDs))
	for _, mid := range matIDs {
		stats, err := src.Stats.MarketStats(ctx, regionID, mid)
		if err != nil {
			return nil, fmt.Errorf("market stats for material %d: %w", mid, err)
		}
		if stats != nil && stats.SellAvgFivePercent != nil {
			sell[mid] = *stats.SellAvgFivePercent
		}
	}
	names, err := src.Names.TypeNames(ctx, matIDs)
	if err != nil {
		return nil, fmt.Errorf("material names: %w", err)
	}

	return engine.MaterialBreakdown(recipe, func(id int32) float64 { return sell[id] }, names, meBPO, meStructure), nil
}
