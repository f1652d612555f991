package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"eve-industry/internal/engine"
	"eve-industry/internal/logger"
	"eve-industry/internal/market"
	"eve-industry/internal/report"
	"eve-industry/internal/sde"
	"eve-industry/internal/tabular"
)

func newProduceCommand(a *app) *cobra.Command {
	var (
		meStructure, meBPO, costIndex, facilityTax, discount, scc float64
		activity                                                  string
	)
	cmd := &cobra.Command{
		Use:   "produce <recipes.csv> <prices.csv> <out.csv>",
		Short: "Compute fully loaded production costs",
		Long: `Computes material cost, estimated item value and job cost for every recipe
against a combined price table. Flags override the industry section of the config.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := a.cfg.ProductionParams()
			if err != nil {
				return err
			}
			f := cmd.Flags()
			for name, dst := range map[string]*float64{
				"me-structure":       &params.MEStructure,
				"me-bpo":             &params.MEBPO,
				"system-cost-index":  &params.SystemCostIndex,
				"facility-tax":       &params.FacilityTax,
				"structure-discount": &params.StructureDiscount,
				"scc-tax":            &params.SCCTax,
			} {
				if f.Changed(name) {
					*dst, _ = f.GetFloat64(name)
				}
			}
			if f.Changed("activity") {
				if params.Activity, err = sde.ParseActivity(activity); err != nil {
					return err
				}
			}
			if err := params.Validate(); err != nil {
				return err
			}

			recipes, malformed, err := tabular.ReadRecipes(args[0], params.Activity)
			if err != nil {
				return err
			}
			prices, err := tabular.ReadPriceTable(args[1])
			if err != nil {
				return err
			}
			res, err := engine.CalculateProduction(recipes, prices, params)
			if err != nil {
				return err
			}
			res.Skipped = append(malformed, res.Skipped...)

			if err := tabular.WriteProductionCosts(args[2], res.Costs); err != nil {
				return err
			}
			if len(res.Skipped) > 0 {
				if err := tabular.WriteSkipped(skippedPath(args[2]), res.Skipped); err != nil {
					return err
				}
			}
			logger.Success("Produce", fmt.Sprintf("%d costs written to %s, %d skipped", len(res.Costs), args[2], len(res.Skipped)))
			return report.Production(a.reportOptions(cmd), res)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&meStructure, "me-structure", 0, "structure material bonus, 0..1")
	f.Float64Var(&meBPO, "me-bpo", 0, "blueprint material efficiency, 0..1")
	f.Float64Var(&costIndex, "system-cost-index", 0, "system cost index")
	f.Float64Var(&facilityTax, "facility-tax", 0, "facility tax")
	f.Float64Var(&discount, "structure-discount", 0, "structure job cost discount")
	f.Float64Var(&scc, "scc-tax", 0, "SCC surcharge")
	f.StringVar(&activity, "activity", "", "manufacturing or reaction")
	return cmd
}

func skippedPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".skipped.csv"
}

func newProfitCommand(a *app) *cobra.Command {
	var (
		out  string
		topN int
	)
	cmd := &cobra.Command{
		Use:   "profit <costs.csv> <quotes.csv>",
		Short: "Rank products by buy and sell margin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			costs, err := tabular.ReadProductionCosts(args[0])
			if err != nil {
				return err
			}
			rows, unreadable, err := tabular.ReadQuotes(args[1])
			if err != nil {
				return err
			}
			if len(unreadable) > 0 {
				logger.Warn("Profit", fmt.Sprintf("%s: %d unreadable quote rows", args[1], len(unreadable)))
			}
			if topN <= 0 {
				topN = a.cfg.Report.TopN
			}
			analysis := engine.AnalyzeProfit(costs, market.Quotes(rows), topN)

			if out != "" {
				if err := tabular.WriteProfit(out, analysis.Records); err != nil {
					return err
				}
				logger.Success("Profit", fmt.Sprintf("%d records written to %s", len(analysis.Records), out))
			}
			opts := a.reportOptions(cmd)
			opts.TopN = topN
			return report.Profit(opts, analysis)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "also write every joined record to this CSV")
	cmd.Flags().IntVar(&topN, "top", 0, "rows to show (default from config)")
	return cmd
}

func newBreakdownCommand(a *app) *cobra.Command {
	var (
		region             int32
		meBPO, meStructure float64
	)
	cmd := &cobra.Command{
		Use:   "breakdown <product name>",
		Short: "Show how material cost splits across inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if region == 0 {
				region = a.cfg.Market.RegionID
			}
			if !cmd.Flags().Changed("me-bpo") {
				meBPO = a.cfg.Industry.MEBPO
			}
			if !cmd.Flags().Changed("me-structure") {
				meStructure = a.cfg.Industry.MEStructure
			}
			recipes, closeSrc, err := a.recipeSource()
			if err != nil {
				return err
			}
			defer closeSrc()

			client := a.esi()
			b, err := market.BuildBreakdown(cmd.Context(), market.BreakdownSources{
				Items:   client,
				Names:   client,
				Stats:   a.tycoon(),
				Recipes: recipes,
			}, args[0], region, meBPO, meStructure)
			if err != nil {
				return err
			}
			opts := a.reportOptions(cmd)
			opts.Title = fmt.Sprintf("%s material cost", args[0])
			return report.Breakdown(opts, b)
		},
	}
	cmd.Flags().Int32Var(&region, "region", 0, "region ID (default from config)")
	cmd.Flags().Float64Var(&meBPO, "me-bpo", 0, "blueprint material efficiency, 0..1")
	cmd.Flags().Float64Var(&meStructure, "me-structure", 0, "structure material bonus, 0..1")
	return cmd
}

func newStockCommand(a *app) *cobra.Command {
	var (
		region int32
		days   int
	)
	cmd := &cobra.Command{
		Use:   "stock <inventory.txt|->",
		Short: "Value a pasted inventory against recent market history",
		Long: `Reads "name quantity" lines, as copied from the in-game inventory, and compares each item's latest average price with its recent range.
Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if region == 0 {
				region = a.cfg.Market.RegionID
			}
			text, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			lines, unparsed := engine.ParseStockList(text)
			for _, s := range unparsed {
				logger.Warn("Stock", fmt.Sprintf("line %d: %s", s.Row+1, s.Reason))
			}
			rep, err := market.BuildStockReport(cmd.Context(), a.esi(), a.tycoon(), region, lines, days)
			if err != nil {
				return err
			}
			return report.Stock(a.reportOptions(cmd), rep)
		},
	}
	cmd.Flags().Int32Var(&region, "region", 0, "region ID (default from config)")
	cmd.Flags().IntVar(&days, "days", engine.DefaultHistoryDays, "days of history to compare against")
	return cmd
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}
