package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"eve-industry/internal/pipeline"
	"eve-industry/internal/report"
)

func newRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <pipeline.yaml>",
		Short: "Run a pipeline of fetch, combine, produce and profit stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := pipeline.Load(args[0])
			if err != nil {
				return err
			}
			params, err := a.cfg.ProductionParams()
			if err != nil {
				return err
			}
			if def.OutputDir == "" {
				def.OutputDir = a.cfg.Report.OutputDir
			}
			r := &pipeline.Runner{
				Stats:    a.tycoon(),
				Adjusted: a.esi(),
				Industry: params,
				RegionID: a.cfg.Market.RegionID,
				TopN:     a.cfg.Report.TopN,
			}
			run, err := r.Run(cmd.Context(), def)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "\nRun %s of %s, region %d\n", run.ID, run.Name, run.RegionID)
			table := tablewriter.NewWriter(w)
			table.Header("Stage", "Kind", "Rows", "Skipped", "Output", "Time")
			for _, s := range run.Stages {
				if err := table.Append(s.Name, string(s.Kind), strconv.Itoa(s.Rows), strconv.Itoa(s.Skipped), s.Output, s.Duration.Round(time.Millisecond).String()); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}

			for _, s := range run.Stages {
				if s.Kind != pipeline.KindProfit {
					continue
				}
				opts := a.reportOptions(cmd)
				opts.Title = fmt.Sprintf("%s: top products", s.Name)
				if err := report.Profit(opts, run.Outputs[s.Name].Profit); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
