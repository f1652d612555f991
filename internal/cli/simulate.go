package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"eve-industry/internal/engine"
	"eve-industry/internal/logger"
	"eve-industry/internal/report"
	"eve-industry/internal/tabular"
)

func newAllocateCommand(a *app) *cobra.Command {
	var (
		p    engine.SimulationParams
		step float64
		ci   string
	)
	cmd := &cobra.Command{
		Use:   "allocate <strategies.csv>",
		Short: "Simulate selling strategies and find the best inventory split",
		Long: `Each strategy is a price and a mean number of buyers per step. Every
strategy is first simulated alone with the whole inventory, then every split on a
grid of --step is simulated and the most profitable one is reported. --ci adds a
confidence band of the cumulative profit path for one named strategy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategies, err := tabular.ReadStrategies(args[0])
			if err != nil {
				return err
			}
			if len(strategies) == 0 {
				return fmt.Errorf("%s: no strategies", args[0])
			}
			sim := a.cfg.SimulationParams()
			p.Seed, p.Workers = sim.Seed, sim.Workers
			if !cmd.Flags().Changed("step") {
				step = a.cfg.Allocation.Step
			}
			opts := a.reportOptions(cmd)

			logger.Section("Strategies")
			p.Trials = a.cfg.Allocation.Trials
			results, err := engine.CompareStrategies(strategies, p)
			if err != nil {
				return err
			}
			if err := report.Strategies(opts, results); err != nil {
				return err
			}

			logger.Section("Allocation")
			p.Trials = a.cfg.Allocation.AllocationTrials
			best, err := engine.OptimizeAllocation(strategies, p, step)
			if err != nil {
				return err
			}
			if err := report.Allocation(opts, strategies, best); err != nil {
				return err
			}

			if ci == "" {
				return nil
			}
			for _, s := range strategies {
				if s.Name != ci {
					continue
				}
				p.Trials = a.cfg.Allocation.CITrials
				band, err := engine.ProfitPathCI(s, p)
				if err != nil {
					return err
				}
				opts.Title = fmt.Sprintf("%s cumulative profit, 95%% band", s.Name)
				return report.Band(opts, band)
			}
			return fmt.Errorf("no strategy named %q", ci)
		},
	}
	f := cmd.Flags()
	f.Int64Var(&p.InitialInventory, "inventory", 1000, "units to sell")
	f.Float64Var(&p.UnitCost, "unit-cost", 0, "cost per unit")
	f.Float64Var(&p.HoldingCost, "holding-cost", 0, "cost per unsold unit per step")
	f.Float64Var(&p.DiscountRate, "discount", 0, "continuous discount rate per step")
	f.IntVar(&p.Horizon, "horizon", 30, "steps to simulate")
	f.Float64Var(&step, "step", 0.1, "allocation grid step (default from config)")
	f.StringVar(&ci, "ci", "", "strategy to draw a profit band for")
	return cmd
}
