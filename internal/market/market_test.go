package market

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve-industry/internal/engine"
	"eve-industry/internal/esi"
	"eve-industry/internal/sde"
)

type fakeStats struct {
	stats map[int32]*esi.MarketStats
	err   error
	calls []int32
}

func (f *fakeStats) MarketStats(_ context.Context, _, typeID int32) (*esi.MarketStats, error) {
	f.calls = append(f.calls, typeID)
	if f.err != nil {
		return nil, f.err
	}
	return f.stats[typeID], nil
}

type fakeUniverse struct {
	ids     map[string]int32
	volumes map[int32]float64
	names   map[int32]string
	history map[int32][]esi.HistoryEntry
}

func (f *fakeUniverse) TypeIDs(_ context.Context, names []string) (map[string]int32, error) {
	out := make(map[string]int32)
	for _, n := range names {
		if id, ok := f.ids[n]; ok {
			out[n] = id
		}
	}
	return out, nil
}

func (f *fakeUniverse) TypeVolume(_ context.Context, id int32) (float64, error) {
	return f.volumes[id], nil
}

func (f *fakeUniverse) TypeNames(_ context.Context, ids []int32) (map[int32]string, error) {
	out := make(map[int32]string)
	for _, id := range ids {
		if n, ok := f.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (f *fakeUniverse) History(_ context.Context, _, typeID int32) ([]esi.HistoryEntry, error) {
	return f.history[typeID], nil
}

type fakeAdjusted map[int32]float64

func (f fakeAdjusted) AdjustedPrices(context.Context) (map[int32]float64, error) {
	return f, nil
}

type fakeRecipes map[int32]*sde.Recipe

func (f fakeRecipes) Recipe(_ context.Context, id int32, _ sde.Activity) (*sde.Recipe, error) {
	r, ok := f[id]
	if !ok {
		return nil, sde.ErrNoRecipe
	}
	cp := *r
	return &cp, nil
}

func TestBuildPriceTable(t *testing.T) {
	src := &fakeStats{stats: map[int32]*esi.MarketStats{
		34: {BuyAvgFivePercent: engine.Float(4.5), SellAvgFivePercent: engine.Float(5.1)},
		36: {SellAvgFivePercent: engine.Float(60)},
	}}
	items := []sde.Item{
		{TypeID: 34, Name: "Tritanium", Volume: 0.01},
		{Name: "Mystery"},
		{TypeID: 35, Name: "Pyerite"},
		{TypeID: 36, Name: "Mexallon"},
	}

	table, err := BuildPriceTable(context.Background(), src, 10000002, items)
	require.NoError(t, err)

	assert.Equal(t, []int32{34, 35, 36}, src.calls, "items without id are not requested")
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "Tritanium", table.Rows[0].Item.Name)
	assert.Nil(t, table.Rows[1].Stats, "unresolved item kept with empty stats")
	assert.Equal(t, "Mexallon", table.Rows[2].Item.Name)
	require.Len(t, table.Skipped, 1)
	assert.Equal(t, int32(35), table.Skipped[0].TypeID)
	assert.Equal(t, 2, table.Skipped[0].Row)

	quotes := table.Quotes()
	buy, ok := quotes[0].BuyPrice()
	assert.True(t, ok)
	assert.Equal(t, 4.5, buy)
	_, ok = quotes[2].BuyPrice()
	assert.False(t, ok)
	_, ok = quotes[1].SellPrice()
	assert.False(t, ok)
}

func TestBuildPriceTable_CollaboratorFailureAborts(t *testing.T) {
	src := &fakeStats{err: esi.ErrUnavailable}
	_, err := BuildPriceTable(context.Background(), src, 1, []sde.Item{{TypeID: 34, Name: "Tritanium"}})
	assert.True(t, errors.Is(err, esi.ErrUnavailable))
}

func TestResolveItems(t *testing.T) {
	u := &fakeUniverse{
		ids:     map[string]int32{"Tritanium": 34, "Pyerite": 35},
		volumes: map[int32]float64{34: 0.01, 35: 0.01},
	}
	items, err := ResolveItems(context.Background(), u, []string{"Tritanium", "", "Unobtainium", "Pyerite", "Tritanium"})
	require.NoError(t, err)
	assert.Equal(t, []sde.Item{
		{TypeID: 34, Name: "Tritanium", Volume: 0.01},
		{Name: "Unobtainium"},
		{TypeID: 35, Name: "Pyerite", Volume: 0.01},
	}, items)
}

func TestApplyAdjusted(t *testing.T) {
	table := engine.NewPriceTable([]engine.PriceEntry{
		{TypeID: 1, Name: "a", Price: 10},
		{TypeID: 2, Name: "b", Price: 20},
	})
	out, err := ApplyAdjusted(context.Background(), fakeAdjusted{1: 9}, table)
	require.NoError(t, err)
	assert.Equal(t, 9.0, out.TaxReference(1))
	assert.Equal(t, 0.0, out.TaxReference(2), "missing adjusted price becomes 0")
	assert.Equal(t, 20.0, out.Primary(2))
	assert.Equal(t, 20.0, table.TaxReference(2), "input table untouched")
}

func TestBuildStockReport(t *testing.T) {
	u := &fakeUniverse{
		ids: map[string]int32{"Tritanium": 34, "Pyerite": 35},
		history: map[int32][]esi.HistoryEntry{
			34: {
				{Average: 4, Highest: 5, Lowest: 3},
				{Average: 6, Highest: 7, Lowest: 5},
			},
		},
	}
	lines := []engine.StockLine{{Name: "Tritanium", Quantity: 1000}, {Name: "Pyerite", Quantity: 5}, {Name: "Nothing", Quantity: 1}}

	rep, err := BuildStockReport(context.Background(), u, u, 10000002, lines, 0)
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultHistoryDays, rep.Days)
	require.Len(t, rep.Rows, 1)
	row := rep.Rows[0]
	assert.Equal(t, 6.0, row.Current)
	assert.Equal(t, 7.0, row.Max)
	assert.Equal(t, 3.0, row.Min)
	assert.Equal(t, 5.0, row.Avg)
	assert.Equal(t, 6000.0, rep.Total())

	require.Len(t, rep.Skipped, 2)
	assert.Equal(t, "no market history", rep.Skipped[0].Reason)
	assert.Equal(t, "unknown item", rep.Skipped[1].Reason)
}

func TestBuildBreakdown(t *testing.T) {
	u := &fakeUniverse{
		ids:   map[string]int32{"Widget": 100},
		names: map[int32]string{34: "Tritanium"},
	}
	stats := &fakeStats{stats: map[int32]*esi.MarketStats{
		34: {SellAvgFivePercent: engine.Float(5)},
		35: {SellAvgFivePercent: engine.Float(10)},
	}}
	recipes := fakeRecipes{100: {
		TypeID:   100,
		Activity: sde.ActivityManufacturing,
		Materials: []sde.BlueprintMaterial{
			{TypeID: 34, Quantity: 100},
			{TypeID: 35, Quantity: 10},
		},
	}}

	b, err := BuildBreakdown(context.Background(), BreakdownSources{Items: u, Names: u, Stats: stats, Recipes: recipes}, "Widget", 10000002, 0.1, 0)
	require.NoError(t, err)
	assert.Equal(t, "Widget", b.Product)
	assert.Equal(t, 450.0+90.0, b.Total)
	require.Len(t, b.Slices, 2)
	assert.Equal(t, "Tritanium", b.Slices[0].Name)
	assert.Equal(t, "ID 35", b.Slices[1].Name)

	_, err = BuildBreakdown(context.Background(), BreakdownSources{Items: u, Names: u, Stats: stats, Recipes: fakeRecipes{}}, "Widget", 1, 0, 0)
	assert.ErrorIs(t, err, sde.ErrNoRecipe)
}
