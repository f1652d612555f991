// Package report renders analysis results as console tables.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"eve-industry/internal/engine"
	"eve-industry/internal/market"
)

// Options controls one rendering. A zero value writes every row to stdout.
type Options struct {
	TopN  int
	Title string
	Out   io.Writer
}

func (o Options) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

func (o Options) limit(n int) int {
	if o.TopN > 0 && o.TopN < n {
		return o.TopN
	}
	return n
}

func (o Options) title(w io.Writer, fallback string) {
	t := o.Title
	if t == "" {
		t = fallback
	}
	fmt.Fprintf(w, "\n%s\n", t)
}

// ISK formats an amount with thousands separators and two decimals.
func ISK(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	s := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	if v < 0 && s != "0.00" {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteString(frac)
	return b.String()
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func orDash(has bool, s string) string {
	if !has {
		return "-"
	}
	return s
}

// Profit renders the ranked profit table, best sell margin first.
func Profit(opts Options, a *engine.ProfitAnalysis) error {
	w := opts.out()
	opts.title(w, "Production profit")

	rows := a.Top
	if opts.TopN > 0 {
		rows = a.Records[:opts.limit(len(a.Records))]
	}

	table := tablewriter.NewWriter(w)
	table.Header("#", "Item", "Cost", "Sell", "Sell profit", "Sell margin", "Buy", "Buy profit", "Buy margin")
	for i, r := range rows {
		if err := table.Append(
			strconv.Itoa(i+1),
			r.Name,
			ISK(r.TotalCost),
			orDash(r.HasSell, ISK(r.SellPrice)),
			orDash(r.HasSell, ISK(r.SellProfit)),
			orDash(r.HasSell, pct(r.SellMarginPct)),
			orDash(r.HasBuy, ISK(r.BuyPrice)),
			orDash(r.HasBuy, ISK(r.BuyProfit)),
			orDash(r.HasBuy, pct(r.BuyMarginPct)),
		); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "  %d joined, %d without a partner\n", len(a.Records), len(a.Dropped))
	return nil
}

// Production renders per-unit production costs in input order.
func Production(opts Options, res *engine.ProductionResult) error {
	w := opts.out()
	opts.title(w, "Production cost per unit")

	table := tablewriter.NewWriter(w)
	table.Header("Item", "ID", "EIV", "Materials", "Job", "Total")
	for _, c := range res.Costs[:opts.limit(len(res.Costs))] {
		if err := table.Append(c.Name, strconv.Itoa(int(c.TypeID)), ISK(c.EIV), ISK(c.MaterialCost), ISK(c.JobCost), ISK(c.TotalCost)); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	if len(res.Skipped) > 0 {
		return Skipped(Options{Out: w, Title: "Skipped recipes"}, res.Skipped)
	}
	return nil
}

// Skipped lists rows left out of a batch.
func Skipped(opts Options, rows []engine.SkippedRow) error {
	w := opts.out()
	opts.title(w, "Skipped")

	table := tablewriter.NewWriter(w)
	table.Header("Row", "ID", "Name", "Reason")
	for _, r := range rows {
		if err := table.Append(strconv.Itoa(r.Row), strconv.Itoa(int(r.TypeID)), r.Name, r.Reason); err != nil {
			return err
		}
	}
	return table.Render()
}

func hours(v float64) string {
	if math.IsInf(v, 1) {
		return "never"
	}
	return fmt.Sprintf("%.1f", v)
}

// Strategies renders single-strategy simulation results.
func Strategies(opts Options, results []engine.StrategyResult) error {
	w := opts.out()
	opts.title(w, "Strategy simulation")

	table := tablewriter.NewWriter(w)
	table.Header("Strategy", "Expected profit", "Std dev", "Steps to sell out")
	for _, r := range results {
		if err := table.Append(r.Strategy, ISK(r.ExpectedProfit), ISK(r.ProfitStd), hours(r.ExpectedTimeToSellout)); err != nil {
			return err
		}
	}
	return table.Render()
}

// Allocation renders the inventory split chosen by the optimizer.
func Allocation(opts Options, strategies []engine.Strategy, res *engine.AllocationResult) error {
	w := opts.out()
	opts.title(w, "Optimal allocation")

	table := tablewriter.NewWriter(w)
	table.Header("Strategy", "Price", "Demand/step", "Share", "Units")
	for i, s := range strategies {
		if err := table.Append(s.Name, ISK(s.Price), fmt.Sprintf("%.2f", s.DemandRate),
			fmt.Sprintf("%.0f%%", res.Allocations[i]*100), strconv.FormatInt(res.Units[i], 10)); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "  expected profit %s ± %s\n", ISK(res.ExpectedProfit), ISK(res.ProfitStd))
	return nil
}

// Breakdown renders a material cost distribution.
func Breakdown(opts Options, b *engine.Breakdown) error {
	w := opts.out()
	opts.title(w, fmt.Sprintf("Cost distribution: %s", b.Product))

	if len(b.Slices) == 0 {
		fmt.Fprintln(w, "  no priced materials")
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.Header("Material", "Quantity", "Cost", "Share")
	for _, s := range b.Slices {
		qty := strconv.FormatInt(s.Quantity, 10)
		if s.Name == engine.OtherMaterials {
			qty = ""
		}
		if err := table.Append(s.Name, qty, ISK(s.Cost), fmt.Sprintf("%.1f%%", s.Share*100)); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "  total %s ISK\n", ISK(b.Total))
	return nil
}

// gaugeWidth is the number of cells on each side of the average marker.
const gaugeWidth = 10

// Gauge draws a position in [-1, 1] as a text bar centred on the average.
func Gauge(pos float64) string {
	pos = math.Max(-1, math.Min(1, pos))
	cells := []rune(strings.Repeat("·", 2*gaugeWidth+1))
	cells[gaugeWidth] = '|'
	n := int(math.Round(math.Abs(pos) * gaugeWidth))
	for i := 1; i <= n; i++ {
		if pos > 0 {
			cells[gaugeWidth+i] = '+'
		} else {
			cells[gaugeWidth-i] = '-'
		}
	}
	return string(cells)
}

// Stock renders a stock valuation with a price position gauge per line.
func Stock(opts Options, rep *market.StockReport) error {
	w := opts.out()
	opts.title(w, fmt.Sprintf("Stock report (%d days)", rep.Days))

	table := tablewriter.NewWriter(w)
	table.Header("Name", "Qty", "Min", "Avg", "Max", "Current", "Diff", "Market", "Value")
	for _, r := range rep.Rows[:opts.limit(len(rep.Rows))] {
		if err := table.Append(r.Name, strconv.FormatInt(r.Quantity, 10),
			ISK(r.Min), ISK(r.Avg), ISK(r.Max), ISK(r.Current),
			fmt.Sprintf("%+.1f%%", r.DiffPercent()), Gauge(r.Indicator()), ISK(r.Value())); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "  total value %s ISK\n", ISK(rep.Total()))
	if len(rep.Skipped) > 0 {
		return Skipped(Options{Out: w, Title: "Not valued"}, rep.Skipped)
	}
	return nil
}

// Band renders the cumulative profit confidence band, one row per step.
func Band(opts Options, band *engine.ProfitBand) error {
	w := opts.out()
	opts.title(w, "Cumulative profit, 95% band")

	table := tablewriter.NewWriter(w)
	table.Header("Step", "Low", "Mean", "High")
	for t := range band.Mean[:opts.limit(len(band.Mean))] {
		if err := table.Append(strconv.Itoa(t+1), ISK(band.Low[t]), ISK(band.Mean[t]), ISK(band.High[t])); err != nil {
			return err
		}
	}
	return table.Render()
}
