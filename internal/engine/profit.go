package engine

import (
	"fmt"
	"sort"
)

// DefaultTopN is the report truncation used when none is given.
const DefaultTopN = 20

// ProfitRecord joins a production cost with the market quote of the same item.
// Profit and margin are 0 on a side without a market price (HasBuy/HasSell false),
// and margins are 0 when the total cost is 0.
type ProfitRecord struct {
	ProductionCost
	BuyPrice      float64 `json:"buyAvgFivePercent"`
	SellPrice     float64 `json:"sellAvgFivePercent"`
	HasBuy        bool    `json:"has_buy"`
	HasSell       bool    `json:"has_sell"`
	SellProfit    float64 `json:"sell_profit_isk"`
	BuyProfit     float64 `json:"buy_profit_isk"`
	SellMarginPct float64 `json:"sell_margin_percent"`
	BuyMarginPct  float64 `json:"buy_margin_percent"`
}

// ProfitAnalysis is the full ranked join, its top-N view and the rows that found no partner.
type ProfitAnalysis struct {
	Records []ProfitRecord // sorted by SellMarginPct descending, stable
	Top     []ProfitRecord // first N of Records
	Dropped []SkippedRow
}

func marginPct(profit, cost float64) float64 {
	if cost == 0 {
		return 0
	}
	return profit / cost * 100
}

func newProfitRecord(c ProductionCost, q PriceQuote) ProfitRecord {
	rec := ProfitRecord{ProductionCost: c}
	if sell, ok := q.SellPrice(); ok {
		rec.SellPrice, rec.HasSell = sell, true
		rec.SellProfit = sell - c.TotalCost
		rec.SellMarginPct = marginPct(rec.SellProfit, c.TotalCost)
	}
	if buy, ok := q.BuyPrice(); ok {
		rec.BuyPrice, rec.HasBuy = buy, true
		rec.BuyProfit = buy - c.TotalCost
		rec.BuyMarginPct = marginPct(rec.BuyProfit, c.TotalCost)
	}
	return rec
}

// AnalyzeProfit inner-joins costs and quotes on item ID (cost order first, then
// quote order for repeated IDs), ranks by sell margin and keeps the first topN
// (DefaultTopN when topN <= 0) in Top.
func AnalyzeProfit(costs []ProductionCost, quotes []PriceQuote, topN int) *ProfitAnalysis {
	if topN <= 0 {
		topN = DefaultTopN
	}

	byID := make(map[int32][]int, len(quotes))
	for i, q := range quotes {
		byID[q.TypeID] = append(byID[q.TypeID], i)
	}

	res := &ProfitAnalysis{Records: make([]ProfitRecord, 0, len(costs))}
	matched := make(map[int32]bool, len(costs))
	for i, c := range costs {
		idx, ok := byID[c.TypeID]
		if !ok {
			res.Dropped = append(res.Dropped, SkippedRow{Row: i, TypeID: c.TypeID, Name: c.Name, Reason: "no market quote"})
			continue
		}
		matched[c.TypeID] = true
		for _, j := range idx {
			res.Records = append(res.Records, newProfitRecord(c, quotes[j]))
		}
	}
	for i, q := range quotes {
		if !matched[q.TypeID] {
			res.Dropped = append(res.Dropped, SkippedRow{Row: i, TypeID: q.TypeID, Name: q.Name, Reason: "no production cost"})
		}
	}

	sort.SliceStable(res.Records, func(i, j int) bool {
		return res.Records[i].SellMarginPct > res.Records[j].SellMarginPct
	})

	n := topN
	if n > len(res.Records) {
		n = len(res.Records)
	}
	res.Top = res.Records[:n]
	return res
}

// String summarises the analysis for log lines.
func (a *ProfitAnalysis) String() string {
	return fmt.Sprintf("%d joined, %d dropped, top %d", len(a.Records), len(a.Dropped), len(a.Top))
}
