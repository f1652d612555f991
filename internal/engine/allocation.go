package engine

import (
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
)

// Strategy is a way of selling: a unit price and the mean number of buyers per step.
type Strategy struct {
	Name       string
	Price      float64
	DemandRate float64
}

// SimulationParams are the scalar inputs shared by every simulation.
type SimulationParams struct {
	InitialInventory int64
	UnitCost         float64
	HoldingCost      float64 // per unit left in stock per step
	DiscountRate     float64 // continuous, per step
	Horizon          int     // steps
	Trials           int
	Seed             uint64
	Workers          int // trial fan-out; results do not depend on it
}

// DefaultSimulationParams returns 1000 trials, seed 28, single worker.
func DefaultSimulationParams() SimulationParams {
	return SimulationParams{
		Trials:  1000,
		Seed:    28,
		Workers: 1,
	}
}

// Validate rejects parameters that no simulation can run with.
func (p SimulationParams) Validate() error {
	switch {
	case p.InitialInventory < 0:
		return fmt.Errorf("%w: initial inventory must be >= 0, got %d", ErrInvalidParameter, p.InitialInventory)
	case p.Horizon < 0:
		return fmt.Errorf("%w: horizon must be >= 0, got %d", ErrInvalidParameter, p.Horizon)
	case p.Trials < 1:
		return fmt.Errorf("%w: trials must be >= 1, got %d", ErrInvalidParameter, p.Trials)
	case math.IsNaN(p.UnitCost) || math.IsNaN(p.HoldingCost) || math.IsNaN(p.DiscountRate):
		return fmt.Errorf("%w: cost and rate parameters must be numbers", ErrInvalidParameter)
	}
	return nil
}

func validateStrategies(strategies []Strategy) error {
	for _, s := range strategies {
		if !(s.DemandRate >= 0) || math.IsInf(s.DemandRate, 0) {
			return fmt.Errorf("%w: strategy %q demand rate must be a finite number >= 0, got %v", ErrInvalidParameter, s.Name, s.DemandRate)
		}
		if math.IsNaN(s.Price) {
			return fmt.Errorf("%w: strategy %q has no price", ErrInvalidParameter, s.Name)
		}
	}
	return nil
}

// StrategyResult summarises the trials of one strategy.
type StrategyResult struct {
	Strategy              string
	ExpectedProfit        float64
	ProfitStd             float64
	ExpectedTimeToSellout float64 // +Inf when the strategy never sells
}

// EstimateTimeToSellout is inventory / demandRate, or +Inf for a zero rate.
func EstimateTimeToSellout(demandRate float64, inventory int64) float64 {
	if demandRate == 0 {
		return math.Inf(1)
	}
	return float64(inventory) / demandRate
}

// simulate runs one trial and returns the total discounted profit. When path is
// non-nil it receives the cumulative profit of every step, held flat after sell-out.
func simulate(s Strategy, inventory int64, p SimulationParams, rng *rand.Rand, path []float64) float64 {
	margin := s.Price - p.UnitCost
	var total float64
	for t := 0; t < p.Horizon; t++ {
		sales := poisson(rng, s.DemandRate)
		if sales > inventory {
			sales = inventory
		}
		inventory -= sales

		reward := margin*float64(sales) - p.HoldingCost*float64(inventory)
		total += reward * math.Exp(-p.DiscountRate*float64(t))
		if path != nil {
			path[t] = total
		}
		if inventory <= 0 {
			for rest := t + 1; path != nil && rest < len(path); rest++ {
				path[rest] = total
			}
			break
		}
	}
	return total
}

// runTrials evaluates fn for every trial index. With workers > 1 contiguous chunks
// run concurrently; each index writes only its own slot.
func runTrials(n, workers int, fn func(i int) float64) []float64 {
	out := make([]float64, n)
	if workers <= 1 || n < 2 {
		for i := range out {
			out[i] = fn(i)
		}
		return out
	}

	var g errgroup.Group
	g.SetLimit(workers)
	chunk := (n + workers - 1) / workers
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				out[i] = fn(i)
			}
			return nil
		})
	}
	g.Wait()
	return out
}

// SimulateStrategy runs p.Trials independent trials of one strategy.
func SimulateStrategy(s Strategy, p SimulationParams) (*StrategyResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := validateStrategies([]Strategy{s}); err != nil {
		return nil, err
	}

	profits := runTrials(p.Trials, p.Workers, func(i int) float64 {
		return simulate(s, p.InitialInventory, p, trialRNG(p.Seed, i, 0), nil)
	})
	return &StrategyResult{
		Strategy:              s.Name,
		ExpectedProfit:        mean(profits),
		ProfitStd:             stdDev(profits),
		ExpectedTimeToSellout: EstimateTimeToSellout(s.DemandRate, p.InitialInventory),
	}, nil
}

// CompareStrategies simulates each strategy on its own with the full inventory.
func CompareStrategies(strategies []Strategy, p SimulationParams) ([]StrategyResult, error) {
	out := make([]StrategyResult, 0, len(strategies))
	for _, s := range strategies {
		r, err := SimulateStrategy(s, p)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

// AllocationResult is the outcome of splitting inventory across strategies.
type AllocationResult struct {
	Allocations    []float64
	Units          []int64 // floor(allocation * inventory)
	ExpectedProfit float64
	ProfitStd      float64
}

// splitInventory floors each share; the epsilon keeps k/K grids from losing a
// unit to float error (0.7*1000 must give 700).
func splitInventory(allocations []float64, total int64) []int64 {
	units := make([]int64, len(allocations))
	for i, a := range allocations {
		units[i] = int64(math.Floor(a*float64(total) + 1e-9))
	}
	return units
}

// SimulateAllocation splits the inventory by allocations and, for each of p.Trials
// outer trials, sums one trial per strategy. Proportions are used as given.
func SimulateAllocation(strategies []Strategy, allocations []float64, p SimulationParams) (*AllocationResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := validateStrategies(strategies); err != nil {
		return nil, err
	}
	if len(allocations) != len(strategies) {
		return nil, fmt.Errorf("%w: %d allocations for %d strategies", ErrInvalidParameter, len(allocations), len(strategies))
	}
	for i, a := range allocations {
		if !(a >= 0) {
			return nil, fmt.Errorf("%w: allocation %d is %v, want >= 0", ErrInvalidParameter, i, a)
		}
	}
	return simulateAllocation(strategies, allocations, p), nil
}

func simulateAllocation(strategies []Strategy, allocations []float64, p SimulationParams) *AllocationResult {
	units := splitInventory(allocations, p.InitialInventory)
	totals := runTrials(p.Trials, p.Workers, func(trial int) float64 {
		var sum float64
		for k, s := range strategies {
			if units[k] <= 0 {
				continue
			}
			sum += simulate(s, units[k], p, trialRNG(p.Seed, trial, k+1), nil)
		}
		return sum
	})
	return &AllocationResult{
		Allocations:    append([]float64(nil), allocations...),
		Units:          units,
		ExpectedProfit: mean(totals),
		ProfitStd:      stdDev(totals),
	}
}

// OptimizeAllocation evaluates every point of SimplexGrid(len(strategies), step) and
// returns the one with the highest expected profit. Ties keep the earlier point.
// Every candidate sees the same random draws per strategy slot.
func OptimizeAllocation(strategies []Strategy, p SimulationParams, step float64) (*AllocationResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := validateStrategies(strategies); err != nil {
		return nil, err
	}
	grid, err := SimplexGrid(len(strategies), step)
	if err != nil {
		return nil, err
	}

	var best *AllocationResult
	for _, candidate := range grid {
		res := simulateAllocation(strategies, candidate, p)
		if best == nil || res.ExpectedProfit > best.ExpectedProfit {
			best = res
		}
	}
	return best, nil
}

// ProfitBand is a 95% confidence band on the mean cumulative profit per step.
type ProfitBand struct {
	Mean []float64
	Low  []float64
	High []float64
}

// SimulateProfitPath returns the cumulative discounted profit after each step of
// one trial. The path always has p.Horizon entries.
func SimulateProfitPath(s Strategy, p SimulationParams, trial int) []float64 {
	path := make([]float64, p.Horizon)
	simulate(s, p.InitialInventory, p, trialRNG(p.Seed, trial, 0), path)
	return path
}

// ProfitPathCI averages p.Trials profit paths and returns mean ± 1.96 standard errors.
func ProfitPathCI(s Strategy, p SimulationParams) (*ProfitBand, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := validateStrategies([]Strategy{s}); err != nil {
		return nil, err
	}

	paths := make([][]float64, p.Trials)
	runTrials(p.Trials, p.Workers, func(i int) float64 {
		paths[i] = SimulateProfitPath(s, p, i)
		return 0
	})

	band := &ProfitBand{
		Mean: make([]float64, p.Horizon),
		Low:  make([]float64, p.Horizon),
		High: make([]float64, p.Horizon),
	}
	column := make([]float64, p.Trials)
	se := 1.96 / math.Sqrt(float64(p.Trials))
	for t := 0; t < p.Horizon; t++ {
		for i, path := range paths {
			column[i] = path[t]
		}
		m, sd := mean(column), stdDev(column)
		band.Mean[t] = m
		band.Low[t] = m - se*sd
		band.High[t] = m + se*sd
	}
	return band, nil
}
