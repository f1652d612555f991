package engine

import (
	"fmt"
	"sort"

	"eve-industry/internal/sde"
)

// minBreakdownShare is the smallest cost share shown as its own slice.
const minBreakdownShare = 0.02

// OtherMaterials labels the slice that collects every material under minBreakdownShare.
const OtherMaterials = "Other Materials"

// BreakdownSlice is one material's share of a batch cost.
type BreakdownSlice struct {
	Name     string  `json:"name"`
	TypeID   int32   `json:"item_id"` // 0 for the Other Materials slice
	Quantity int64   `json:"quantity"`
	Cost     float64 `json:"cost"`
	Share    float64 `json:"share"` // fraction of Total
}

// Breakdown is the material cost distribution of one run of a recipe.
type Breakdown struct {
	Product string
	Total   float64
	Slices  []BreakdownSlice // most expensive first, Other Materials last
}

// MaterialBreakdown prices the efficiency-adjusted materials of r and groups them
// for a pie chart. Names missing from names are shown as "ID <typeID>". A recipe
// whose materials cost nothing yields no slices.
func MaterialBreakdown(r *sde.Recipe, price func(int32) float64, names map[int32]string, meBPO, meStructure float64) *Breakdown {
	b := &Breakdown{Product: r.Name}

	var all []BreakdownSlice
	for _, m := range r.EffectiveMaterials(meBPO, meStructure) {
		name, ok := names[m.TypeID]
		if !ok || name == "" {
			name = fmt.Sprintf("ID %d", m.TypeID)
		}
		cost := float64(m.Quantity) * price(m.TypeID)
		all = append(all, BreakdownSlice{Name: name, TypeID: m.TypeID, Quantity: m.Quantity, Cost: cost})
		b.Total += cost
	}
	if b.Total == 0 {
		return b
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Cost > all[j].Cost })

	var other BreakdownSlice
	for _, s := range all {
		if s.Cost/b.Total >= minBreakdownShare {
			s.Share = s.Cost / b.Total
			b.Slices = append(b.Slices, s)
			continue
		}
		other.Cost += s.Cost
		other.Quantity += s.Quantity
	}
	if other.Cost > 0 {
		other.Name = OtherMaterials
		other.Share = other.Cost / b.Total
		b.Slices = append(b.Slices, other)
	}
	return b
}
