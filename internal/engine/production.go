package engine

import (
	"fmt"

	"eve-industry/internal/logger"
	"eve-industry/internal/sde"
)

// ProductionParams holds the economic inputs of a production run.
// All rates are fractions (0.04 = 4%).
type ProductionParams struct {
	MEStructure       float64      // structure material bonus, [0,1)
	MEBPO             float64      // blueprint material efficiency, [0,1)
	SystemCostIndex   float64      // >= 0
	FacilityTax       float64      // >= 0
	StructureDiscount float64      // reduces the cost index component only, [0,1)
	SCCTax            float64      // flat surcharge, >= 0
	Activity          sde.Activity // manufacturing or reaction
}

// DefaultProductionParams returns manufacturing with no efficiency, a 5% structure
// discount and the 4% SCC surcharge.
func DefaultProductionParams() ProductionParams {
	return ProductionParams{
		StructureDiscount: 0.05,
		SCCTax:            0.04,
		Activity:          sde.ActivityManufacturing,
	}
}

// Validate rejects parameters outside their domain.
func (p ProductionParams) Validate() error {
	if !p.Activity.Valid() {
		return fmt.Errorf("%w: %d", sde.ErrUnknownActivity, p.Activity)
	}
	fractions := []struct {
		name string
		v    float64
	}{
		{"me_structure", p.MEStructure},
		{"me_bpo", p.MEBPO},
		{"structure_discount", p.StructureDiscount},
	}
	for _, f := range fractions {
		if f.v < 0 || f.v >= 1 {
			return fmt.Errorf("%w: %s must be in [0,1), got %v", ErrInvalidParameter, f.name, f.v)
		}
	}
	if p.SystemCostIndex < 0 || p.FacilityTax < 0 || p.SCCTax < 0 {
		return fmt.Errorf("%w: cost index and taxes must be non-negative", ErrInvalidParameter)
	}
	return nil
}

// ProductionCost is the fully loaded per-unit cost of one product, rounded to cents.
type ProductionCost struct {
	TypeID       int32   `json:"item_id"`
	Name         string  `json:"name"`
	EIV          float64 `json:"EIV_value"`
	MaterialCost float64 `json:"Material_cost"`
	JobCost      float64 `json:"Job_cost"`
	TotalCost    float64 `json:"Total_production_price"`
}

// SkippedRow records an input row left out of a batch result.
type SkippedRow struct {
	Row    int    `json:"row"` // zero-based input position
	TypeID int32  `json:"item_id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ProductionResult holds costs in input order plus the rows that were skipped.
type ProductionResult struct {
	Costs   []ProductionCost
	Skipped []SkippedRow
}

// MaterialCost is the batch material cost of one run: sum of effective quantity
// times unit price, with missing prices contributing 0.
func MaterialCost(r *sde.Recipe, price func(int32) float64, meBPO, meStructure float64) float64 {
	var total float64
	for _, m := range r.EffectiveMaterials(meBPO, meStructure) {
		total += float64(m.Quantity) * price(m.TypeID)
	}
	return total
}

// eiv sums base quantity times tax reference price; efficiency never applies.
func eiv(r *sde.Recipe, ref func(int32) float64) float64 {
	var total float64
	for _, m := range r.Materials {
		total += float64(m.Quantity) * ref(m.TypeID)
	}
	return total
}

func checkMaterials(r *sde.Recipe) error {
	if len(r.Materials) == 0 {
		return fmt.Errorf("empty material list")
	}
	for _, m := range r.Materials {
		if m.TypeID <= 0 {
			return fmt.Errorf("material with invalid type id %d", m.TypeID)
		}
		if m.Quantity <= 0 {
			return fmt.Errorf("material %d has non-positive quantity %d", m.TypeID, m.Quantity)
		}
	}
	return nil
}

// CalculateProduction prices every recipe against the table. The activity in params
// decides whether material efficiency applies. Recipes with unusable material lists
// are reported in Skipped; the batch always completes.
func CalculateProduction(recipes []sde.Recipe, prices *PriceTable, params ProductionParams) (*ProductionResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	jobRate := params.SystemCostIndex*(1-params.StructureDiscount) + params.FacilityTax + params.SCCTax

	res := &ProductionResult{Costs: make([]ProductionCost, 0, len(recipes))}
	for i := range recipes {
		r := recipes[i]
		if err := checkMaterials(&r); err != nil {
			logger.Warn("Production", fmt.Sprintf("skip %s (%d): %v", r.Name, r.TypeID, err))
			res.Skipped = append(res.Skipped, SkippedRow{Row: i, TypeID: r.TypeID, Name: r.Name, Reason: err.Error()})
			continue
		}
		r.Activity = params.Activity

		material := MaterialCost(&r, prices.Primary, params.MEBPO, params.MEStructure)
		value := eiv(&r, prices.TaxReference)
		job := value * jobRate
		out := float64(r.Output())

		res.Costs = append(res.Costs, ProductionCost{
			TypeID:       r.TypeID,
			Name:         r.Name,
			EIV:          roundISK(value / out),
			MaterialCost: roundISK(material / out),
			JobCost:      roundISK(job / out),
			TotalCost:    roundISK((material + job) / out),
		})
	}
	return res, nil
}
