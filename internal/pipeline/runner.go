package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"eve-industry/internal/engine"
	"eve-industry/internal/logger"
	"eve-industry/internal/market"
	"eve-industry/internal/tabular"
)

// Runner executes definitions against the market collaborators.
type Runner struct {
	Stats    market.StatsSource
	Adjusted market.AdjustedProvider
	Industry engine.ProductionParams // base parameters for produce stages
	RegionID int32                   // used when the definition has none
	TopN     int
}

// Output is the in-memory result of one stage; only the field of its kind is set.
type Output struct {
	Quotes     *market.QuoteTable
	Prices     *engine.PriceTable
	Production *engine.ProductionResult
	Profit     *engine.ProfitAnalysis
}

// StageSummary reports what a stage produced.
type StageSummary struct {
	Name     string
	Kind     StageKind
	Rows     int
	Skipped  int
	Output   string // file written, empty when not persisted
	Duration time.Duration
}

// Run is one execution of a definition.
type Run struct {
	ID       uuid.UUID
	Name     string
	RegionID int32
	Started  time.Time
	Stages   []StageSummary
	Outputs  map[string]*Output
}

// Run executes every stage in order. The first failing stage aborts the run and
// its error is returned with the run so far.
func (r *Runner) Run(ctx context.Context, def *Definition) (*Run, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	run := &Run{
		ID:       uuid.New(),
		Name:     def.Name,
		RegionID: def.RegionID,
		Started:  time.Now(),
		Outputs:  make(map[string]*Output, len(def.Stages)),
	}
	if run.RegionID == 0 {
		run.RegionID = r.RegionID
	}

	logger.Section(fmt.Sprintf("Pipeline %s (%s)", def.Name, run.ID))
	for _, s := range def.Stages {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		start := time.Now()
		out, sum, err := r.runStage(ctx, run, s)
		if err != nil {
			logger.Error("Pipeline", fmt.Sprintf("stage %s failed: %v", s.Name, err))
			return run, fmt.Errorf("stage %q: %w", s.Name, err)
		}
		sum.Name, sum.Kind, sum.Duration = s.Name, s.Kind, time.Since(start)

		if s.Output != "" {
			sum.Output = outputPath(def.OutputDir, s.Output)
			if err := persist(sum.Output, out); err != nil {
				return run, fmt.Errorf("stage %q: write %s: %w", s.Name, sum.Output, err)
			}
		}
		run.Outputs[s.Name] = out
		run.Stages = append(run.Stages, sum)
		logger.Info("Pipeline", fmt.Sprintf("%s [%s] %d rows, %d skipped in %s", s.Name, s.Kind, sum.Rows, sum.Skipped, sum.Duration.Round(time.Millisecond)))
	}
	logger.Success("Pipeline", fmt.Sprintf("%s finished %d stages", def.Name, len(run.Stages)))
	return run, nil
}

func outputPath(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func (r *Runner) runStage(ctx context.Context, run *Run, s Stage) (*Output, StageSummary, error) {
	switch s.Kind {
	case KindFetch:
		items, err := tabular.ReadItems(s.Items)
		if err != nil {
			return nil, StageSummary{}, err
		}
		qt, err := market.BuildPriceTable(ctx, r.Stats, run.RegionID, items)
		if err != nil {
			return nil, StageSummary{}, err
		}
		return &Output{Quotes: qt}, StageSummary{Rows: len(qt.Rows), Skipped: len(qt.Skipped)}, nil

	case KindCombine:
		sources := make([]engine.PriceSource, 0, len(s.Sources))
		for _, ref := range s.Sources {
			src, err := run.priceSource(ref)
			if err != nil {
				return nil, StageSummary{}, err
			}
			sources = append(sources, src)
		}
		table, err := engine.CombinePrices(sources)
		if err != nil {
			return nil, StageSummary{}, err
		}
		if s.Adjusted {
			if table, err = market.ApplyAdjusted(ctx, r.Adjusted, table); err != nil {
				return nil, StageSummary{}, err
			}
		}
		return &Output{Prices: table}, StageSummary{Rows: table.Len()}, nil

	case KindProduce:
		params, err := s.Industry.Apply(r.Industry)
		if err != nil {
			return nil, StageSummary{}, err
		}
		recipes, malformed, err := tabular.ReadRecipes(s.Recipes, params.Activity)
		if err != nil {
			return nil, StageSummary{}, err
		}
		prices, err := run.priceTable(s.Prices)
		if err != nil {
			return nil, StageSummary{}, err
		}
		res, err := engine.CalculateProduction(recipes, prices, params)
		if err != nil {
			return nil, StageSummary{}, err
		}
		res.Skipped = append(malformed, res.Skipped...)
		return &Output{Production: res}, StageSummary{Rows: len(res.Costs), Skipped: len(res.Skipped)}, nil

	case KindProfit:
		costs, err := run.costs(s.Costs)
		if err != nil {
			return nil, StageSummary{}, err
		}
		quotes, err := run.quotes(s.Quotes)
		if err != nil {
			return nil, StageSummary{}, err
		}
		topN := s.TopN
		if topN <= 0 {
			topN = r.TopN
		}
		a := engine.AnalyzeProfit(costs, quotes, topN)
		return &Output{Profit: a}, StageSummary{Rows: len(a.Records), Skipped: len(a.Dropped)}, nil
	}
	return nil, StageSummary{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidDefinition, s.Kind)
}

func (run *Run) priceSource(ref SourceRef) (engine.PriceSource, error) {
	m, err := engine.ParsePricingMethod(ref.Method)
	if err != nil {
		return engine.PriceSource{}, err
	}
	if ref.Path != "" {
		return tabular.ReadPriceSource(ref.Path, m)
	}
	out := run.Outputs[ref.From]
	switch {
	case out.Quotes != nil:
		return engine.QuoteSource(ref.From, m, out.Quotes.Quotes()), nil
	case out.Production != nil:
		return engine.ProductionSource(ref.From, out.Production.Costs), nil
	}
	return engine.PriceSource{}, fmt.Errorf("%w: stage %q has no prices", ErrInvalidDefinition, ref.From)
}

func (run *Run) priceTable(ref string) (*engine.PriceTable, error) {
	if out, ok := run.Outputs[ref]; ok {
		return out.Prices, nil
	}
	return tabular.ReadPriceTable(ref)
}

func (run *Run) costs(ref string) ([]engine.ProductionCost, error) {
	if out, ok := run.Outputs[ref]; ok {
		return out.Production.Costs, nil
	}
	return tabular.ReadProductionCosts(ref)
}

func (run *Run) quotes(ref string) ([]engine.PriceQuote, error) {
	if out, ok := run.Outputs[ref]; ok {
		return out.Quotes.Quotes(), nil
	}
	rows, skipped, err := tabular.ReadQuotes(ref)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		logger.Warn("Pipeline", fmt.Sprintf("%s: %d unreadable quote rows", ref, len(skipped)))
	}
	return market.Quotes(rows), nil
}

// persist writes a stage output, plus a skip manifest beside it when rows were skipped.
func persist(path string, out *Output) error {
	var skipped []engine.SkippedRow
	var err error
	switch {
	case out.Quotes != nil:
		err = tabular.WriteQuotes(path, out.Quotes.Rows)
		skipped = out.Quotes.Skipped
	case out.Prices != nil:
		err = tabular.WritePriceTable(path, out.Prices)
	case out.Production != nil:
		err = tabular.WriteProductionCosts(path, out.Production.Costs)
		skipped = out.Production.Skipped
	case out.Profit != nil:
		err = tabular.WriteProfit(path, out.Profit.Records)
		skipped = out.Profit.Dropped
	}
	if err != nil || len(skipped) == 0 {
		return err
	}
	return tabular.WriteSkipped(strings.TrimSuffix(path, filepath.Ext(path))+".skipped.csv", skipped)
}
