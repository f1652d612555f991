package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"eve-industry/internal/engine"
	"eve-industry/internal/logger"
	"eve-industry/internal/market"
	"eve-industry/internal/sde"
	"eve-industry/internal/tabular"
)

func newItemsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "items <names.csv> <out.csv>",
		Short: "Resolve item names to type IDs and volumes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := tabular.ReadItems(args[0])
			if err != nil {
				return err
			}
			names := make([]string, len(in))
			for i, it := range in {
				names[i] = it.Name
			}
			items, err := market.ResolveItems(cmd.Context(), a.esi(), names)
			if err != nil {
				return err
			}
			if err := tabular.WriteItems(args[1], items); err != nil {
				return err
			}
			logger.Success("Items", fmt.Sprintf("%d items written to %s", len(items), args[1]))
			return nil
		},
	}
}

func newPricesCommand(a *app) *cobra.Command {
	var region int32
	cmd := &cobra.Command{
		Use:   "prices <items.csv> <out.csv>",
		Short: "Fetch regional market statistics for an item list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if region == 0 {
				region = a.cfg.Market.RegionID
			}
			items, err := tabular.ReadItems(args[0])
			if err != nil {
				return err
			}
			table, err := market.BuildPriceTable(cmd.Context(), a.tycoon(), region, items)
			if err != nil {
				return err
			}
			if err := tabular.WriteQuotes(args[1], table.Rows); err != nil {
				return err
			}
			logger.Success("Prices", fmt.Sprintf("%d rows written to %s, %d without stats", len(table.Rows), args[1], len(table.Skipped)))
			return nil
		},
	}
	cmd.Flags().Int32Var(&region, "region", 0, "region ID (default from config)")
	return cmd
}

func newAdjustedCommand(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "adjusted <prices.csv>",
		Short: "Add ESI adjusted prices to a price table",
		Long: `Adds an adjusted_price column to a combined price table. Items the ESI
price list does not carry get 0. The file is rewritten in place unless --out is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := tabular.ReadPriceTable(args[0])
			if err != nil {
				return err
			}
			table, err = market.ApplyAdjusted(cmd.Context(), a.esi(), table)
			if err != nil {
				return err
			}
			if out == "" {
				out = args[0]
			}
			if err := tabular.WritePriceTable(out, table); err != nil {
				return err
			}
			logger.Success("Adjusted", fmt.Sprintf("%d prices written to %s", table.Len(), out))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output path")
	return cmd
}

func newRecipesCommand(a *app) *cobra.Command {
	var activity string
	cmd := &cobra.Command{
		Use:   "recipes <items.csv> <out.csv>",
		Short: "Look up blueprint or reaction recipes in the Fuzzwork dump",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if activity == "" {
				activity = a.cfg.Industry.Activity
			}
			act, err := sde.ParseActivity(activity)
			if err != nil {
				return err
			}
			items, err := tabular.ReadItems(args[0])
			if err != nil {
				return err
			}
			src, closeSrc, err := a.recipeSource()
			if err != nil {
				return err
			}
			defer closeSrc()

			recipes, err := sde.ResolveRecipes(cmd.Context(), src, items, act)
			if err != nil {
				return err
			}
			if err := tabular.WriteRecipes(args[1], recipes); err != nil {
				return err
			}
			logger.Success("Recipes", fmt.Sprintf("%d/%d items have a %s recipe", len(recipes), len(items), act))
			return nil
		},
	}
	cmd.Flags().StringVar(&activity, "activity", "", "manufacturing or reaction (default from config)")
	return cmd
}

// parseSourceFlag splits "Method=path".
func parseSourceFlag(v string) (engine.PricingMethod, string, error) {
	method, path, ok := strings.Cut(v, "=")
	if !ok || path == "" {
		return "", "", fmt.Errorf("source %q: want Method=path", v)
	}
	m, err := engine.ParsePricingMethod(method)
	if err != nil {
		return "", "", err
	}
	return m, path, nil
}

func newCombineCommand(a *app) *cobra.Command {
	var (
		sources  []string
		out      string
		adjusted bool
	)
	cmd := &cobra.Command{
		Use:   "combine --source Method=path [--source ...] --out prices.csv",
		Short: "Merge price sources into one price table",
		Long: `Merges price columns from several files into one table. Methods are Buy
(buyAvgFivePercent), Sell (sellAvgFivePercent), Production (Total_production_price)
and Custom (Price). Later sources win for repeated item IDs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(sources) == 0 {
				return fmt.Errorf("at least one --source is required")
			}
			var srcs []engine.PriceSource
			for _, v := range sources {
				m, path, err := parseSourceFlag(v)
				if err != nil {
					return err
				}
				src, err := tabular.ReadPriceSource(path, m)
				if err != nil {
					return err
				}
				srcs = append(srcs, src)
			}
			table, err := engine.CombinePrices(srcs)
			if err != nil {
				return err
			}
			if adjusted {
				if table, err = market.ApplyAdjusted(cmd.Context(), a.esi(), table); err != nil {
					return err
				}
			}
			if err := tabular.WritePriceTable(out, table); err != nil {
				return err
			}
			logger.Success("Combine", fmt.Sprintf("%d prices from %d sources written to %s", table.Len(), len(srcs), out))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sources, "source", nil, "price source as Method=path, in priority order")
	cmd.Flags().StringVar(&out, "out", "", "output path")
	cmd.Flags().BoolVar(&adjusted, "adjusted", false, "attach ESI adjusted prices")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
