package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve-industry/internal/engine"
	"eve-industry/internal/tabular"
)

// marketServers starts fake ESI and EVE Tycoon endpoints and points the config at them.
func marketServers(t *testing.T) {
	t.Helper()
	stats := map[string]map[string]float64{
		"34":  {"buyAvgFivePercent": 5, "sellAvgFivePercent": 6},
		"35":  {"buyAvgFivePercent": 10, "sellAvgFivePercent": 11},
		"100": {"buyAvgFivePercent": 700, "sellAvgFivePercent": 800},
	}

	tycoon := http.NewServeMux()
	tycoon.HandleFunc("GET /stats/{region}/{id}", func(w http.ResponseWriter, r *http.Request) {
		s, ok := stats[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(s)
	})
	tycoon.HandleFunc("GET /history/{region}/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "34" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[
			{"date": "2026-10-01", "average": 4, "highest": 4.5, "lowest": 3.5, "volume": 10, "orderCount": 3},
			{"date": "2026-10-02", "average": 6, "highest": 6.5, "lowest": 5.5, "volume": 10, "orderCount": 3}
		]`))
	})
	ts := httptest.NewServer(tycoon)
	t.Cleanup(ts.Close)

	esiMux := http.NewServeMux()
	esiMux.HandleFunc("GET /markets/prices/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"type_id": 34, "adjusted_price": 4, "average_price": 5}]`))
	})
	esiMux.HandleFunc("POST /universe/ids/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"inventory_types": [{"id": 34, "name": "Tritanium"}]}`))
	})
	es := httptest.NewServer(esiMux)
	t.Cleanup(es.Close)

	t.Setenv("EVEIND_MARKET_STATS_BASE", ts.URL)
	t.Setenv("EVEIND_MARKET_ESI_BASE", es.URL)
	t.Setenv("EVEIND_MARKET_REQUEST_DELAY", "0")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand("test")
	cmd.SetArgs(append(args, "-q"))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCommands_ProductionChain(t *testing.T) {
	marketServers(t)
	dir := t.TempDir()
	materials := writeFile(t, dir, "materials.csv", "name,item_id,volume_m3\nTritanium,34,0.01\nPyerite,35,0.01\n")
	products := writeFile(t, dir, "products.csv", "name,item_id,volume_m3\nWidget,100,5\n")
	fuel := writeFile(t, dir, "fuel.csv", "name,item_id,Price\nFuel Block,4051,20\n")
	recipes := writeFile(t, dir, "recipes.csv", "name,item_id,volume_m3,BPO_name,BPO_id,materials,base_time,quantity\n"+
		`Widget,100,5,,200,"[{""type_id"": 34, ""quantity"": 100}, {""type_id"": 35, ""quantity"": 10}]",600,1`+"\n")
	path := func(name string) string { return filepath.Join(dir, name) }

	_, err := execute(t, "", "prices", materials, path("mat_quotes.csv"))
	require.NoError(t, err)
	_, err = execute(t, "", "prices", products, path("prod_quotes.csv"))
	require.NoError(t, err)

	_, err = execute(t, "", "combine",
		"--source", "Buy="+path("mat_quotes.csv"),
		"--source", "Custom="+fuel,
		"--out", path("prices.csv"), "--adjusted")
	require.NoError(t, err)
	prices, err := tabular.ReadPriceTable(path("prices.csv"))
	require.NoError(t, err)
	assert.Equal(t, 3, prices.Len())
	assert.Equal(t, 4.0, prices.TaxReference(34))

	out, err := execute(t, "", "produce", recipes, path("prices.csv"), path("costs.csv"),
		"--system-cost-index", "0.1", "--structure-discount", "0", "--scc-tax", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Widget")
	costs, err := tabular.ReadProductionCosts(path("costs.csv"))
	require.NoError(t, err)
	require.Len(t, costs, 1)
	assert.Equal(t, 600.0, costs[0].MaterialCost)
	assert.Equal(t, 40.0, costs[0].JobCost)
	assert.Equal(t, 640.0, costs[0].TotalCost)

	out, err = execute(t, "", "profit", path("costs.csv"), path("prod_quotes.csv"), "--out", path("profit.csv"))
	require.NoError(t, err)
	assert.Contains(t, out, "160.00")
	assert.Contains(t, out, "1 joined, 0 without a partner")
	assert.FileExists(t, path("profit.csv"))
}

func TestCombine_UnknownMethod(t *testing.T) {
	_, err := execute(t, "", "combine", "--source", "Median=x.csv", "--out", filepath.Join(t.TempDir(), "p.csv"))
	assert.ErrorIs(t, err, engine.ErrUnknownPricingMethod)

	_, err = execute(t, "", "combine", "--source", "Buy", "--out", filepath.Join(t.TempDir(), "p.csv"))
	assert.ErrorContains(t, err, "Method=path")
}

func TestAllocate(t *testing.T) {
	t.Setenv("EVEIND_ALLOCATION_TRIALS", "40")
	t.Setenv("EVEIND_ALLOCATION_ALLOCATION_TRIALS", "20")
	t.Setenv("EVEIND_ALLOCATION_CI_TRIALS", "20")
	strategies := writeFile(t, t.TempDir(), "strategies.csv", "name,Price,demand_rate\nfast,90,50\nslow,120,2\n")

	out, err := execute(t, "", "allocate", strategies, "--inventory", "100", "--unit-cost", "50", "--horizon", "10", "--step", "0.5", "--ci", "fast")
	require.NoError(t, err)
	assert.Contains(t, out, "fast")
	assert.Contains(t, out, "slow")
	assert.Contains(t, out, "expected profit")
	assert.Contains(t, out, "fast cumulative profit")

	_, err = execute(t, "", "allocate", strategies, "--ci", "nobody")
	assert.ErrorContains(t, err, `no strategy named "nobody"`)
}

func TestStock_FromStdin(t *testing.T) {
	marketServers(t)

	out, err := execute(t, "Tritanium 1,000\nNonsense 5\nno quantity here\n", "stock", "-", "--days", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Tritanium")
	assert.Contains(t, out, "total value")
	assert.Contains(t, out, "Nonsense")
}

func TestRun_Pipeline(t *testing.T) {
	marketServers(t)
	dir := t.TempDir()
	items := writeFile(t, dir, "materials.csv", "name,item_id,volume_m3\nTritanium,34,0.01\n")
	def := writeFile(t, dir, "pipeline.yaml", `
name: minerals
output_dir: `+filepath.Join(dir, "out")+`
stages:
  - name: quotes
    kind: fetch
    items: `+items+`
    output: quotes.csv
  - name: prices
    kind: combine
    sources: [{from: quotes, method: Sell}]
    output: prices.csv
`)

	out, err := execute(t, "", "run", def)
	require.NoError(t, err)
	assert.Contains(t, out, "minerals")
	assert.FileExists(t, filepath.Join(dir, "out", "prices.csv"))

	_, err = execute(t, "", "run", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
