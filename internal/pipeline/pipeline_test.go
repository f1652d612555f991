package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve-industry/internal/engine"
	"eve-industry/internal/esi"
	"eve-industry/internal/sde"
	"eve-industry/internal/tabular"
)

type stubStats map[int32]*esi.MarketStats

func (s stubStats) MarketStats(_ context.Context, _, typeID int32) (*esi.MarketStats, error) {
	return s[typeID], nil
}

type failingStats struct{}

func (failingStats) MarketStats(context.Context, int32, int32) (*esi.MarketStats, error) {
	return nil, esi.ErrUnavailable
}

type stubAdjusted map[int32]float64

func (s stubAdjusted) AdjustedPrices(context.Context) (map[int32]float64, error) {
	return s, nil
}

func stats(buy, sell float64) *esi.MarketStats {
	return &esi.MarketStats{BuyAvgFivePercent: engine.Float(buy), SellAvgFivePercent: engine.Float(sell)}
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimLeft(content, "\n")), 0o644))
	return path
}

func fixture(t *testing.T) (string, *Definition) {
	t.Helper()
	dir := t.TempDir()
	write(t, dir, "materials.csv", "name,item_id,volume_m3\nTritanium,34,0.01\nPyerite,35,0.01\n")
	write(t, dir, "products.csv", "name,item_id,volume_m3\nWidget,100,5\n")
	write(t, dir, "fuel.csv", "name,item_id,Price\nFuel Block,4051,20\n")
	write(t, dir, "recipes.csv", `
name,item_id,volume_m3,BPO_name,BPO_id,materials,base_time,quantity
Widget,100,5,,200,"[{""type_id"": 34, ""quantity"": 100}, {""type_id"": 35, ""quantity"": 10}]",600,1
Broken,101,5,,201,oops,600,1
`)

	def := `
name: widgets
region_id: 10000002
output_dir: ` + filepath.Join(dir, "out") + `
stages:
  - name: material_prices
    kind: fetch
    items: ` + filepath.Join(dir, "materials.csv") + `
    output: market/materials.csv
  - name: all_prices
    kind: combine
    sources:
      - from: material_prices
        method: Buy
      - path: ` + filepath.Join(dir, "fuel.csv") + `
        method: Custom
    adjusted: true
    output: industry/all_prices.csv
  - name: widget_costs
    kind: produce
    recipes: ` + filepath.Join(dir, "recipes.csv") + `
    prices: all_prices
    industry:
      system_cost_index: 0.1
      structure_discount: 0
      scc_tax: 0
    output: industry/costs.csv
  - name: product_prices
    kind: fetch
    items: ` + filepath.Join(dir, "products.csv") + `
  - name: profit
    kind: profit
    costs: widget_costs
    quotes: product_prices
    top_n: 5
    output: analysis/profit.csv
`
	d, err := Parse(strings.NewReader(def))
	require.NoError(t, err)
	return dir, d
}

func TestRunner_Run(t *testing.T) {
	dir, def := fixture(t)
	r := &Runner{
		Stats: stubStats{
			34:  stats(5, 6),
			35:  stats(10, 11),
			100: stats(700, 800),
		},
		Adjusted: stubAdjusted{34: 4},
		Industry: engine.DefaultProductionParams(),
		TopN:     engine.DefaultTopN,
	}

	run, err := r.Run(context.Background(), def)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, run.ID)
	require.Len(t, run.Stages, 5)

	prices := run.Outputs["all_prices"].Prices
	assert.Equal(t, 3, prices.Len())
	assert.Equal(t, 0.0, prices.TaxReference(35), "unlisted item gets adjusted 0")

	prod := run.Outputs["widget_costs"].Production
	require.Len(t, prod.Costs, 1)
	c := prod.Costs[0]
	assert.Equal(t, 600.0, c.MaterialCost)
	assert.Equal(t, 400.0, c.EIV)
	assert.Equal(t, 40.0, c.JobCost)
	assert.Equal(t, 640.0, c.TotalCost)
	require.Len(t, prod.Skipped, 1, "malformed recipe row listed")
	assert.Equal(t, 1, run.Stages[2].Skipped)

	a := run.Outputs["profit"].Profit
	require.Len(t, a.Top, 1)
	assert.Equal(t, 160.0, a.Top[0].SellProfit)
	assert.Equal(t, 25.0, a.Top[0].SellMarginPct)

	out := filepath.Join(dir, "out")
	for _, f := range []string{"market/materials.csv", "industry/all_prices.csv", "industry/costs.csv", "industry/costs.skipped.csv", "analysis/profit.csv"} {
		assert.FileExists(t, filepath.Join(out, f))
	}
	assert.Equal(t, "", run.Stages[3].Output, "stage without output is not persisted")

	// Written files feed later runs by path.
	costs, err := tabular.ReadProductionCosts(filepath.Join(out, "industry/costs.csv"))
	require.NoError(t, err)
	assert.Equal(t, prod.Costs, costs)
}

func TestRunner_CollaboratorFailureAborts(t *testing.T) {
	_, def := fixture(t)
	r := &Runner{Stats: failingStats{}, Adjusted: stubAdjusted{}, Industry: engine.DefaultProductionParams()}

	run, err := r.Run(context.Background(), def)
	assert.ErrorIs(t, err, esi.ErrUnavailable)
	assert.Contains(t, err.Error(), "material_prices")
	assert.Empty(t, run.Stages)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown key": `
name: x
stages:
  - name: a
    kind: fetch
    items: a.csv
    colour: red
`,
		"unknown kind": `
stages:
  - name: a
    kind: dance
`,
		"duplicate": `
stages:
  - {name: a, kind: fetch, items: a.csv}
  - {name: a, kind: fetch, items: b.csv}
`,
		"method cannot read stage": `
stages:
  - {name: a, kind: fetch, items: a.csv}
  - name: b
    kind: combine
    sources: [{from: a, method: Production}]
`,
		"forward reference": `
stages:
  - name: b
    kind: combine
    sources: [{from: a, method: Buy}]
  - {name: a, kind: fetch, items: a.csv}
`,
		"profit wrong kind": `
stages:
  - {name: a, kind: fetch, items: a.csv}
  - {name: p, kind: profit, costs: a, quotes: a}
`,
		"empty": ``,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}

	_, err := Parse(strings.NewReader(`
stages:
  - {name: a, kind: fetch, items: a.csv}
  - name: b
    kind: combine
    sources: [{from: a, method: Median}]
`))
	assert.ErrorIs(t, err, engine.ErrUnknownPricingMethod)

	_, err = Parse(strings.NewReader(`
stages:
  - name: p
    kind: produce
    recipes: r.csv
    prices: p.csv
    industry: {activity: invention}
`))
	assert.ErrorIs(t, err, sde.ErrUnknownActivity)
}

func TestIndustryOverrides_Apply(t *testing.T) {
	var nilOverrides *IndustryOverrides
	base := engine.DefaultProductionParams()
	got, err := nilOverrides.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, base, got)

	me := 0.1
	got, err = (&IndustryOverrides{MEBPO: &me, Activity: "11"}).Apply(base)
	require.NoError(t, err)
	assert.Equal(t, 0.1, got.MEBPO)
	assert.Equal(t, sde.ActivityReaction, got.Activity)
	assert.Equal(t, base.SCCTax, got.SCCTax)

	bad := 1.5
	_, err = (&IndustryOverrides{MEStructure: &bad}).Apply(base)
	assert.ErrorIs(t, err, engine.ErrInvalidParameter)
}
