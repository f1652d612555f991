package engine

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnknownPricingMethod is returned when a price source names a method outside PricingMethod.
var ErrUnknownPricingMethod = errors.New("unknown pricing method")

// ErrInvalidParameter marks an economic or simulation parameter outside its domain.
var ErrInvalidParameter = errors.New("invalid parameter")

// PriceQuote is the market view of one item. Nil fields mean no market data,
// which is distinct from a price of exactly zero.
type PriceQuote struct {
	TypeID   int32    `json:"item_id"`
	Name     string   `json:"name"`
	Volume   float64  `json:"volume_m3"`
	Buy      *float64 `json:"buy_price,omitempty"`
	Sell     *float64 `json:"sell_price,omitempty"`
	Adjusted *float64 `json:"adjusted_price,omitempty"`
}

// BuyPrice returns the buy-side average and whether it is known.
func (q PriceQuote) BuyPrice() (float64, bool) {
	if q.Buy == nil {
		return 0, false
	}
	return *q.Buy, true
}

// SellPrice returns the sell-side average and whether it is known.
func (q PriceQuote) SellPrice() (float64, bool) {
	if q.Sell == nil {
		return 0, false
	}
	return *q.Sell, true
}

// Float returns a pointer to v, for building quotes and entries.
func Float(v float64) *float64 {
	return &v
}

// PriceEntry is one row of a canonical price table.
type PriceEntry struct {
	TypeID   int32    `json:"item_id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Adjusted *float64 `json:"adjusted_price,omitempty"`
}

// PriceTable is an ordered set of price entries, unique by item ID.
type PriceTable struct {
	entries []PriceEntry
	index   map[int32]int
}

// NewPriceTable builds a table from entries. A repeated item ID replaces the earlier
// value but keeps the position of the last occurrence.
func NewPriceTable(entries []PriceEntry) *PriceTable {
	last := make(map[int32]int, len(entries))
	for i, e := range entries {
		last[e.TypeID] = i
	}
	t := &PriceTable{
		entries: make([]PriceEntry, 0, len(last)),
		index:   make(map[int32]int, len(last)),
	}
	for i, e := range entries {
		if last[e.TypeID] != i {
			continue
		}
		t.index[e.TypeID] = len(t.entries)
		t.entries = append(t.entries, e)
	}
	return t
}

// Entries returns the rows in table order. The slice must not be modified.
func (t *PriceTable) Entries() []PriceEntry {
	if t == nil {
		return nil
	}
	return t.entries
}

// Len returns the number of items in the table.
func (t *PriceTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Lookup returns the entry for an item.
func (t *PriceTable) Lookup(typeID int32) (PriceEntry, bool) {
	if t == nil {
		return PriceEntry{}, false
	}
	i, ok := t.index[typeID]
	if !ok {
		return PriceEntry{}, false
	}
	return t.entries[i], true
}

// Primary returns the unit price used for material cost, 0 when absent.
func (t *PriceTable) Primary(typeID int32) float64 {
	e, _ := t.Lookup(typeID)
	return e.Price
}

// TaxReference returns the price used for EIV: adjusted if present, else primary, else 0.
func (t *PriceTable) TaxReference(typeID int32) float64 {
	e, ok := t.Lookup(typeID)
	if !ok {
		return 0
	}
	if e.Adjusted != nil {
		return *e.Adjusted
	}
	return e.Price
}

// WithAdjusted returns a copy whose every entry carries an adjusted price from
// adjusted, or 0 when the item is missing from it.
func (t *PriceTable) WithAdjusted(adjusted map[int32]float64) *PriceTable {
	out := make([]PriceEntry, t.Len())
	for i, e := range t.Entries() {
		e.Adjusted = Float(adjusted[e.TypeID])
		out[i] = e
	}
	return NewPriceTable(out)
}

// PricingMethod selects which price column of a source feeds the combined table.
type PricingMethod string

const (
	MethodBuy        PricingMethod = "Buy"
	MethodSell       PricingMethod = "Sell"
	MethodProduction PricingMethod = "Production"
	MethodCustom     PricingMethod = "Custom"
)

// Column is the flat-file column the method reads its price from.
func (m PricingMethod) Column() string {
	switch m {
	case MethodBuy:
		return "buyAvgFivePercent"
	case MethodSell:
		return "sellAvgFivePercent"
	case MethodProduction:
		return "Total_production_price"
	case MethodCustom:
		return "Price"
	}
	return ""
}

// ParsePricingMethod accepts a method name case-insensitively.
func ParsePricingMethod(s string) (PricingMethod, error) {
	for _, m := range []PricingMethod{MethodBuy, MethodSell, MethodProduction, MethodCustom} {
		if strings.EqualFold(strings.TrimSpace(s), string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want Buy, Sell, Production or Custom)", ErrUnknownPricingMethod, s)
}

// PricedRow is a source row before combination; Price nil means the row has no price.
type PricedRow struct {
	TypeID int32
	Name   string
	Price  *float64
}

// PriceSource is one input to CombinePrices.
type PriceSource struct {
	Label  string
	Method PricingMethod
	Rows   []PricedRow
}

// QuoteSource projects market quotes onto the Buy or Sell side.
func QuoteSource(label string, method PricingMethod, quotes []PriceQuote) PriceSource {
	rows := make([]PricedRow, 0, len(quotes))
	for _, q := range quotes {
		var p *float64
		switch method {
		case MethodBuy:
			p = q.Buy
		case MethodSell:
			p = q.Sell
		}
		rows = append(rows, PricedRow{TypeID: q.TypeID, Name: q.Name, Price: p})
	}
	return PriceSource{Label: label, Method: method, Rows: rows}
}

// ProductionSource uses computed per-unit total cost as the price.
func ProductionSource(label string, costs []ProductionCost) PriceSource {
	rows := make([]PricedRow, 0, len(costs))
	for _, c := range costs {
		rows = append(rows, PricedRow{TypeID: c.TypeID, Name: c.Name, Price: Float(c.TotalCost)})
	}
	return PriceSource{Label: label, Method: MethodProduction, Rows: rows}
}

// CustomSource wraps hand-maintained prices.
func CustomSource(label string, rows []PricedRow) PriceSource {
	return PriceSource{Label: label, Method: MethodCustom, Rows: rows}
}

// CombinePrices merges sources in order into one table. Rows without a price or
// item ID are dropped; a later source overrides an earlier one for the same item.
func CombinePrices(sources []PriceSource) (*PriceTable, error) {
	var entries []PriceEntry
	for _, src := range sources {
		if src.Method.Column() == "" {
			return nil, fmt.Errorf("source %q: %w: %q", src.Label, ErrUnknownPricingMethod, src.Method)
		}
		for _, r := range src.Rows {
			if r.Price == nil || r.TypeID == 0 {
				continue
			}
			entries = append(entries, PriceEntry{TypeID: r.TypeID, Name: r.Name, Price: *r.Price})
		}
	}
	return NewPriceTable(entries), nil
}

// roundISK rounds a per-unit ISK amount to cents, half to even.
func roundISK(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).RoundBank(2).Float64()
	return f
}
