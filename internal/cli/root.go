// Package cli wires the eve-industry commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"eve-industry/internal/config"
	"eve-industry/internal/esi"
	"eve-industry/internal/logger"
	"eve-industry/internal/report"
	"eve-industry/internal/sde"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	version    string
	configPath string
	quiet      bool
	cfg        *config.Config
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	logger.SetQuiet(a.quiet)
	if !a.quiet {
		logger.Banner(a.version)
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) esi() *esi.Client {
	return esi.NewClient(a.cfg.ESIOptions())
}

func (a *app) tycoon() *esi.TycoonClient {
	return esi.NewTycoonClient(a.cfg.TycoonOptions())
}

func (a *app) reportOptions(cmd *cobra.Command) report.Options {
	return report.Options{TopN: a.cfg.Report.TopN, Out: cmd.OutOrStdout()}
}

// recipeSource opens the configured Fuzzwork dump, preferring the SQLite file.
func (a *app) recipeSource() (sde.RecipeSource, func() error, error) {
	if path := a.cfg.SDE.FuzzworkDB; path != "" {
		db, err := sde.OpenFuzzworkDB(path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
	tables, err := sde.LoadFuzzwork(a.cfg.SDE.FuzzworkDir)
	if err != nil {
		return nil, nil, err
	}
	return tables, func() error { return nil }, nil
}

// NewRootCommand creates the eve-industry command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version}
	root := &cobra.Command{
		Use:   "eve-industry",
		Short: "Production cost, profit and stock analysis for EVE Online",
		Long: `eve-industry prices items on a regional market, computes fully loaded
production costs from blueprints and reactions, ranks products by margin and
simulates how to split inventory across selling strategies.

Examples:
  eve-industry items data/items/names.csv data/items/moon_materials.csv
  eve-industry prices data/items/moon_materials.csv data/market/jita_moon.csv
  eve-industry combine --source Buy=data/market/jita_moon.csv --source Custom=data/market/fuel.csv --out data/industry/prices.csv --adjusted
  eve-industry produce data/BPO/comp.csv data/industry/prices.csv data/industry/costs.csv --activity reaction
  eve-industry profit data/industry/costs.csv data/market/jita_comp.csv
  eve-industry run pipelines/t2_reactions.yaml`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./config.yaml)")
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "only print warnings, errors and reports")

	root.AddCommand(newItemsCommand(a))
	root.AddCommand(newPricesCommand(a))
	root.AddCommand(newAdjustedCommand(a))
	root.AddCommand(newRecipesCommand(a))
	root.AddCommand(newCombineCommand(a))
	root.AddCommand(newProduceCommand(a))
	root.AddCommand(newProfitCommand(a))
	root.AddCommand(newAllocateCommand(a))
	root.AddCommand(newBreakdownCommand(a))
	root.AddCommand(newStockCommand(a))
	root.AddCommand(newRunCommand(a))

	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute(version string) {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
