package tabular

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve-industry/internal/engine"
	"eve-industry/internal/esi"
	"eve-industry/internal/market"
	"eve-industry/internal/sde"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimLeft(content, "\n")), 0o644))
	return path
}

func TestTable_RequireAndCells(t *testing.T) {
	tbl, err := Read(strings.NewReader("\ufeffname, item_id ,price\nTritanium,34.0,4.5\nShort\n"))
	require.NoError(t, err)

	assert.NoError(t, tbl.Require("name", "item_id", "price"))
	err = tbl.Require("name", "adjusted_price", "quantity")
	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "adjusted_price, quantity")

	id, ok, err := tbl.Int(0, "item_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(34), id)

	_, ok, err = tbl.Float(1, "price")
	assert.NoError(t, err)
	assert.False(t, ok, "short row reads as empty")

	_, err = Read(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestItems_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "items.csv")
	items := []sde.Item{{TypeID: 34, Name: "Tritanium", Volume: 0.01}, {Name: "Unknown"}}
	require.NoError(t, WriteItems(path, items))

	got, err := ReadItems(path)
	require.NoError(t, err)
	assert.Equal(t, items, got)
}

func TestReadItems_NamesOnly(t *testing.T) {
	got, err := ReadItems(writeCSV(t, "name\nTritanium\n\nPyerite\n"))
	require.NoError(t, err)
	assert.Equal(t, []sde.Item{{Name: "Tritanium"}, {Name: "Pyerite"}}, got)
}

func TestQuotes_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.csv")
	rows := []market.QuoteRow{
		{Item: sde.Item{TypeID: 34, Name: "Tritanium", Volume: 0.01}, Stats: &esi.MarketStats{
			BuyVolume: 100, SellVolume: 200, BuyOrders: 3, SellOrders: 4,
			BuyThreshold: 1.5, SellThreshold: 9,
			BuyAvgFivePercent: engine.Float(4.5), SellAvgFivePercent: engine.Float(5.25),
		}},
		{Item: sde.Item{Name: "Mystery"}},
		{Item: sde.Item{TypeID: 35, Name: "Pyerite"}, Stats: &esi.MarketStats{SellAvgFivePercent: engine.Float(10)}},
	}
	require.NoError(t, WriteQuotes(path, rows))

	got, skipped, err := ReadQuotes(path)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, rows, got)
}

func TestReadRecipes_SkipsMalformed(t *testing.T) {
	path := writeCSV(t, `
name,item_id,volume_m3,BPO_name,BPO_id,materials,base_time,quantity
Widget,100,5,,200,"[{""type_id"": 34, ""quantity"": 10}]",600,2
Broken,101,5,,201,not json,600,1
Gadget,102,1,,202,"[{""type_id"": 35, ""quantity"": 1}]",60,
`)
	recipes, skipped, err := ReadRecipes(path, sde.ActivityReaction)
	require.NoError(t, err)
	require.Len(t, recipes, 2)

	w := recipes[0]
	assert.Equal(t, int32(100), w.TypeID)
	assert.Equal(t, int32(200), w.BlueprintTypeID)
	assert.Equal(t, []sde.BlueprintMaterial{{TypeID: 34, Quantity: 10}}, w.Materials)
	assert.Equal(t, int64(2), w.OutputQuantity)
	assert.Equal(t, sde.ActivityReaction, w.Activity)
	assert.Equal(t, int64(1), recipes[1].OutputQuantity, "missing quantity defaults to one")

	require.Len(t, skipped, 1)
	assert.Equal(t, 1, skipped[0].Row)
	assert.Equal(t, int32(101), skipped[0].TypeID)
}

func TestRecipes_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipes.csv")
	in := []sde.Recipe{{
		TypeID: 100, Name: "Widget", Volume: 5, BlueprintTypeID: 200,
		Materials: []sde.BlueprintMaterial{{TypeID: 34, Quantity: 10}},
		BaseTime:  600, OutputQuantity: 2, Activity: sde.ActivityManufacturing,
	}}
	require.NoError(t, WriteRecipes(path, in))
	out, skipped, err := ReadRecipes(path, sde.ActivityManufacturing)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, in, out)
}

func TestReadPriceSource(t *testing.T) {
	path := writeCSV(t, `
name,item_id,volume_m3,buyAvgFivePercent,sellAvgFivePercent
Tritanium,34,0.01,4.5,5
Pyerite,35,0.01,,11
Mystery,,1,,
`)
	src, err := ReadPriceSource(path, engine.MethodBuy)
	require.NoError(t, err)
	require.Len(t, src.Rows, 3)
	assert.Equal(t, 4.5, *src.Rows[0].Price)
	assert.Nil(t, src.Rows[1].Price)

	table, err := engine.CombinePrices([]engine.PriceSource{src})
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())

	_, err = ReadPriceSource(path, engine.MethodProduction)
	assert.ErrorIs(t, err, ErrMissingColumns)

	_, err = ReadPriceSource(path, engine.PricingMethod("Median"))
	assert.ErrorIs(t, err, engine.ErrUnknownPricingMethod)
}

func TestPriceTable_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	table := engine.NewPriceTable([]engine.PriceEntry{
		{TypeID: 34, Name: "Tritanium", Price: 4.5, Adjusted: engine.Float(4)},
		{TypeID: 35, Name: "Pyerite", Price: 11, Adjusted: engine.Float(0)},
	})
	require.NoError(t, WritePriceTable(path, table))

	got, err := ReadPriceTable(path)
	require.NoError(t, err)
	assert.Equal(t, table.Entries(), got.Entries())

	plain := writeCSV(t, "name,item_id,price\nTritanium,34,4.5\n")
	got, err = ReadPriceTable(plain)
	require.NoError(t, err)
	assert.Equal(t, 4.5, got.TaxReference(34), "no adjusted column falls back to price")
}

func TestProductionCosts_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "costs.csv")
	costs := []engine.ProductionCost{{TypeID: 100, Name: "Widget", EIV: 575, MaterialCost: 550, JobCost: 107.81, TotalCost: 657.81}}
	require.NoError(t, WriteProductionCosts(path, costs))
	got, err := ReadProductionCosts(path)
	require.NoError(t, err)
	assert.Equal(t, costs, got)

	src, err := ReadPriceSource(path, engine.MethodProduction)
	require.NoError(t, err)
	assert.Equal(t, 657.81, *src.Rows[0].Price)
}

func TestWriteProfit_EmptySideCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profit.csv")
	recs := []engine.ProfitRecord{{
		ProductionCost: engine.ProductionCost{TypeID: 100, Name: "Widget", TotalCost: 100},
		SellPrice:      120, HasSell: true, SellProfit: 20, SellMarginPct: 20,
	}}
	require.NoError(t, WriteProfit(path, recs))

	tbl, err := ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, tbl.Require("sell_profit_isk", "buy_margin_percent"))
	assert.Equal(t, "", tbl.Get(0, "buyAvgFivePercent"))
	assert.Equal(t, "", tbl.Get(0, "buy_profit_isk"))
	assert.Equal(t, "20", tbl.Get(0, "sell_margin_percent"))
}

func TestReadStrategies(t *testing.T) {
	got, err := ReadStrategies(writeCSV(t, "name,price,demand_rate\nfast,90,12\nslow,120,3.5\n"))
	require.NoError(t, err)
	assert.Equal(t, []engine.Strategy{{Name: "fast", Price: 90, DemandRate: 12}, {Name: "slow", Price: 120, DemandRate: 3.5}}, got)
}

func TestWriteSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skipped.csv")
	require.NoError(t, WriteSkipped(path, []engine.SkippedRow{{Row: 2, TypeID: 5, Name: "x", Reason: "empty material list"}}))
	tbl, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "empty material list", tbl.Get(0, "reason"))
}
