package tabular

import (
	"encoding/json"
	"fmt"
	"strconv"

	"eve-industry/internal/engine"
	"eve-industry/internal/esi"
	"eve-industry/internal/logger"
	"eve-industry/internal/market"
	"eve-industry/internal/sde"
)

// Column names shared with the spreadsheets the files are also opened in.
const (
	ColName     = "name"
	ColItemID   = "item_id"
	ColVolume   = "volume_m3"
	ColPrice    = "price"
	ColAdjusted = "adjusted_price"

	ColBPOName   = "BPO_name"
	ColBPOID     = "BPO_id"
	ColMaterials = "materials"
	ColBaseTime  = "base_time"
	ColQuantity  = "quantity"

	ColEIV          = "EIV_value"
	ColMaterialCost = "Material_cost"
	ColJobCost      = "Job_cost"
	ColTotalCost    = "Total_production_price"
)

var itemColumns = []string{ColName, ColItemID, ColVolume}

var quoteColumns = []string{
	ColName, ColItemID, ColVolume,
	"buyVolume", "sellVolume", "buyOrders", "sellOrders",
	"sellOutliers", "buyOutliers", "buyThreshold", "sellThreshold",
	"buyAvgFivePercent", "sellAvgFivePercent",
}

var recipeColumns = []string{ColName, ColItemID, ColVolume, ColBPOName, ColBPOID, ColMaterials, ColBaseTime, ColQuantity}

var costColumns = []string{ColName, ColItemID, ColEIV, ColMaterialCost, ColJobCost, ColTotalCost}

var profitColumns = append(append([]string{}, costColumns...),
	"buyAvgFivePercent", "sellAvgFivePercent",
	"sell_profit_isk", "buy_profit_isk", "sell_margin_percent", "buy_margin_percent")

func skip(t *Table, i int, err error) engine.SkippedRow {
	id, _, _ := t.Int(i, ColItemID)
	return engine.SkippedRow{Row: i, TypeID: int32(id), Name: t.Get(i, ColName), Reason: err.Error()}
}

func typeID(t *Table, i int) (int32, error) {
	id, _, err := t.Int(i, ColItemID)
	if err != nil {
		return 0, err
	}
	return int32(id), nil
}

// ReadItems reads an item list. Only the name column is required.
func ReadItems(path string) ([]sde.Item, error) {
	t, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := t.Require(ColName); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	items := make([]sde.Item, 0, len(t.Rows))
	for i := range t.Rows {
		name := t.Get(i, ColName)
		if name == "" {
			continue
		}
		id, err := typeID(t, i)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		vol, _, err := t.Float(i, ColVolume)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		items = append(items, sde.Item{TypeID: id, Name: name, Volume: vol})
	}
	return items, nil
}

// WriteItems writes name, item_id and volume_m3; unresolved items get an empty id.
func WriteItems(path string, items []sde.Item) error {
	t := New(itemColumns...)
	for _, it := range items {
		vol := formatFloat(it.Volume)
		if it.TypeID == 0 {
			vol = ""
		}
		t.Append(it.Name, formatID(it.TypeID), vol)
	}
	return t.WriteFile(path)
}

// WriteQuotes writes a price request result with the EVE Tycoon statistic columns.
func WriteQuotes(path string, rows []market.QuoteRow) error {
	t := New(quoteColumns...)
	for _, r := range rows {
		rec := []string{r.Item.Name, formatID(r.Item.TypeID), formatFloat(r.Item.Volume)}
		if s := r.Stats; s != nil {
			rec = append(rec,
				strconv.FormatInt(s.BuyVolume, 10), strconv.FormatInt(s.SellVolume, 10),
				strconv.FormatInt(s.BuyOrders, 10), strconv.FormatInt(s.SellOrders, 10),
				strconv.FormatInt(s.SellOutliers, 10), strconv.FormatInt(s.BuyOutliers, 10),
				formatFloat(s.BuyThreshold), formatFloat(s.SellThreshold),
				formatOptional(s.BuyAvgFivePercent), formatOptional(s.SellAvgFivePercent))
		} else {
			rec = append(rec, make([]string, len(quoteColumns)-3)...)
		}
		t.Append(rec...)
	}
	return t.WriteFile(path)
}

// ReadQuotes reads a file written by WriteQuotes. Rows with an item id always get
// statistics; unparseable rows are skipped.
func ReadQuotes(path string) ([]market.QuoteRow, []engine.SkippedRow, error) {
	t, err := ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if err := t.Require(ColName, ColItemID); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	var rows []market.QuoteRow
	var skipped []engine.SkippedRow
	for i := range t.Rows {
		row, err := quoteRow(t, i)
		if err != nil {
			skipped = append(skipped, skip(t, i, err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

func quoteRow(t *Table, i int) (market.QuoteRow, error) {
	id, err := typeID(t, i)
	if err != nil {
		return market.QuoteRow{}, err
	}
	vol, _, err := t.Float(i, ColVolume)
	if err != nil {
		return market.QuoteRow{}, err
	}
	row := market.QuoteRow{Item: sde.Item{TypeID: id, Name: t.Get(i, ColName), Volume: vol}}
	if id == 0 {
		return row, nil
	}

	s := &esi.MarketStats{}
	ints := []struct {
		col string
		dst *int64
	}{
		{"buyVolume", &s.BuyVolume}, {"sellVolume", &s.SellVolume},
		{"buyOrders", &s.BuyOrders}, {"sellOrders", &s.SellOrders},
		{"buyOutliers", &s.BuyOutliers}, {"sellOutliers", &s.SellOutliers},
	}
	for _, f := range ints {
		if *f.dst, _, err = t.Int(i, f.col); err != nil {
			return market.QuoteRow{}, err
		}
	}
	if s.BuyThreshold, _, err = t.Float(i, "buyThreshold"); err != nil {
		return market.QuoteRow{}, err
	}
	if s.SellThreshold, _, err = t.Float(i, "sellThreshold"); err != nil {
		return market.QuoteRow{}, err
	}
	if s.BuyAvgFivePercent, err = optionalFloat(t, i, "buyAvgFivePercent"); err != nil {
		return market.QuoteRow{}, err
	}
	if s.SellAvgFivePercent, err = optionalFloat(t, i, "sellAvgFivePercent"); err != nil {
		return market.QuoteRow{}, err
	}
	row.Stats = s
	return row, nil
}

func optionalFloat(t *Table, i int, col string) (*float64, error) {
	v, ok, err := t.Float(i, col)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// ReadRecipes reads a recipe file whose materials column holds a JSON list of
// {"type_id", "quantity"} objects. Rows that cannot be parsed are skipped and
// listed; a missing quantity means one unit per run.
func ReadRecipes(path string, activity sde.Activity) ([]sde.Recipe, []engine.SkippedRow, error) {
	t, err := ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if err := t.Require(ColName, ColItemID, ColMaterials); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	var recipes []sde.Recipe
	var skipped []engine.SkippedRow
	for i := range t.Rows {
		r, err := recipeRow(t, i, activity)
		if err != nil {
			logger.Warn("Recipes", fmt.Sprintf("%s row %d: %v", path, i+1, err))
			skipped = append(skipped, skip(t, i, err))
			continue
		}
		recipes = append(recipes, r)
	}
	return recipes, skipped, nil
}

func recipeRow(t *Table, i int, activity sde.Activity) (sde.Recipe, error) {
	id, err := typeID(t, i)
	if err != nil {
		return sde.Recipe{}, err
	}
	r := sde.Recipe{TypeID: id, Name: t.Get(i, ColName), BlueprintName: t.Get(i, ColBPOName), Activity: activity}
	if err := json.Unmarshal([]byte(t.Get(i, ColMaterials)), &r.Materials); err != nil {
		return sde.Recipe{}, fmt.Errorf("materials: %w", err)
	}
	if r.Volume, _, err = t.Float(i, ColVolume); err != nil {
		return sde.Recipe{}, err
	}
	bpo, _, err := t.Int(i, ColBPOID)
	if err != nil {
		return sde.Recipe{}, err
	}
	r.BlueprintTypeID = int32(bpo)
	if r.BaseTime, _, err = t.Int(i, ColBaseTime); err != nil {
		return sde.Recipe{}, err
	}
	qty, ok, err := t.Int(i, ColQuantity)
	if err != nil {
		return sde.Recipe{}, err
	}
	if !ok {
		qty = 1
	}
	r.OutputQuantity = qty
	return r, nil
}

// WriteRecipes writes recipes in the layout ReadRecipes accepts.
func WriteRecipes(path string, recipes []sde.Recipe) error {
	t := New(recipeColumns...)
	for _, r := range recipes {
		mats := r.Materials
		if mats == nil {
			mats = []sde.BlueprintMaterial{}
		}
		b, err := json.Marshal(mats)
		if err != nil {
			return err
		}
		t.Append(r.Name, formatID(r.TypeID), formatFloat(r.Volume), r.BlueprintName, formatID(r.BlueprintTypeID),
			string(b), strconv.FormatInt(r.BaseTime, 10), strconv.FormatInt(r.Output(), 10))
	}
	return t.WriteFile(path)
}

// ReadPriceSource reads the price column selected by method from any flat file
// carrying name and item_id. Empty prices become rows without a price.
func ReadPriceSource(path string, method engine.PricingMethod) (engine.PriceSource, error) {
	col := method.Column()
	if col == "" {
		return engine.PriceSource{}, fmt.Errorf("%s: %w: %q", path, engine.ErrUnknownPricingMethod, method)
	}
	t, err := ReadFile(path)
	if err != nil {
		return engine.PriceSource{}, err
	}
	if err := t.Require(ColName, ColItemID, col); err != nil {
		return engine.PriceSource{}, fmt.Errorf("%s: %w", path, err)
	}

	rows := make([]engine.PricedRow, 0, len(t.Rows))
	for i := range t.Rows {
		id, err := typeID(t, i)
		if err != nil {
			logger.Warn("Prices", fmt.Sprintf("%s row %d: %v", path, i+1, err))
			continue
		}
		p, err := optionalFloat(t, i, col)
		if err != nil {
			logger.Warn("Prices", fmt.Sprintf("%s row %d: %v", path, i+1, err))
		}
		rows = append(rows, engine.PricedRow{TypeID: id, Name: t.Get(i, ColName), Price: p})
	}
	return engine.PriceSource{Label: path, Method: method, Rows: rows}, nil
}

// ReadPriceTable reads a combined price table. The adjusted_price column is optional.
func ReadPriceTable(path string) (*engine.PriceTable, error) {
	t, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := t.Require(ColName, ColItemID, ColPrice); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	entries := make([]engine.PriceEntry, 0, len(t.Rows))
	for i := range t.Rows {
		id, err := typeID(t, i)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		price, ok, err := t.Float(i, ColPrice)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		if !ok || id == 0 {
			continue
		}
		adj, err := optionalFloat(t, i, ColAdjusted)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		entries = append(entries, engine.PriceEntry{TypeID: id, Name: t.Get(i, ColName), Price: price, Adjusted: adj})
	}
	return engine.NewPriceTable(entries), nil
}

// WritePriceTable writes name, item_id, price and, when any entry has one, adjusted_price.
func WritePriceTable(path string, table *engine.PriceTable) error {
	withAdjusted := false
	for _, e := range table.Entries() {
		if e.Adjusted != nil {
			withAdjusted = true
			break
		}
	}
	cols := []string{ColName, ColItemID, ColPrice}
	if withAdjusted {
		cols = append(cols, ColAdjusted)
	}
	t := New(cols...)
	for _, e := range table.Entries() {
		rec := []string{e.Name, formatID(e.TypeID), formatFloat(e.Price)}
		if withAdjusted {
			rec = append(rec, formatOptional(e.Adjusted))
		}
		t.Append(rec...)
	}
	return t.WriteFile(path)
}

// ReadProductionCosts reads a file written by WriteProductionCosts.
func ReadProductionCosts(path string) ([]engine.ProductionCost, error) {
	t, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := t.Require(ColName, ColItemID, ColTotalCost); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	costs := make([]engine.ProductionCost, 0, len(t.Rows))
	for i := range t.Rows {
		id, err := typeID(t, i)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		c := engine.ProductionCost{TypeID: id, Name: t.Get(i, ColName)}
		fields := []struct {
			col string
			dst *float64
		}{
			{ColEIV, &c.EIV}, {ColMaterialCost, &c.MaterialCost}, {ColJobCost, &c.JobCost}, {ColTotalCost, &c.TotalCost},
		}
		for _, f := range fields {
			if *f.dst, _, err = t.Float(i, f.col); err != nil {
				return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
			}
		}
		costs = append(costs, c)
	}
	return costs, nil
}

func costCells(c engine.ProductionCost) []string {
	return []string{c.Name, formatID(c.TypeID), formatFloat(c.EIV), formatFloat(c.MaterialCost), formatFloat(c.JobCost), formatFloat(c.TotalCost)}
}

// WriteProductionCosts writes per-unit costs in input order.
func WriteProductionCosts(path string, costs []engine.ProductionCost) error {
	t := New(costColumns...)
	for _, c := range costs {
		t.Append(costCells(c)...)
	}
	return t.WriteFile(path)
}

// WriteProfit writes the full ranked profit table. A side without a market price
// is written as empty cells.
func WriteProfit(path string, records []engine.ProfitRecord) error {
	t := New(profitColumns...)
	for _, r := range records {
		side := func(has bool, v float64) string {
			if !has {
				return ""
			}
			return formatFloat(v)
		}
		rec := costCells(r.ProductionCost)
		rec = append(rec,
			side(r.HasBuy, r.BuyPrice), side(r.HasSell, r.SellPrice),
			side(r.HasSell, r.SellProfit), side(r.HasBuy, r.BuyProfit),
			formatFloat(r.SellMarginPct), formatFloat(r.BuyMarginPct))
		t.Append(rec...)
	}
	return t.WriteFile(path)
}

// WriteSkipped writes a skip manifest next to a stage output.
func WriteSkipped(path string, rows []engine.SkippedRow) error {
	t := New("row", ColItemID, ColName, "reason")
	for _, r := range rows {
		t.Append(strconv.Itoa(r.Row), formatID(r.TypeID), r.Name, r.Reason)
	}
	return t.WriteFile(path)
}

// ReadStrategies reads selling strategies from name, price and demand_rate columns.
func ReadStrategies(path string) ([]engine.Strategy, error) {
	t, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := t.Require(ColName, ColPrice, "demand_rate"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	out := make([]engine.Strategy, 0, len(t.Rows))
	for i := range t.Rows {
		price, _, err := t.Float(i, ColPrice)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		rate, _, err := t.Float(i, "demand_rate")
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		out = append(out, engine.Strategy{Name: t.Get(i, ColName), Price: price, DemandRate: rate})
	}
	return out, nil
}
