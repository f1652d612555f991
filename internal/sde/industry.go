package sde

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownActivity is returned for an industry activity other than manufacturing or reactions.
var ErrUnknownActivity = errors.New("unknown industry activity")

// ErrNoRecipe is returned by a RecipeSource when a product has no blueprint for the activity.
var ErrNoRecipe = errors.New("no recipe for product")

// Activity is an industry activity ID as used by the SDE (industryActivity.activityID).
type Activity int32

const (
	ActivityManufacturing Activity = 1
	ActivityReaction      Activity = 11
)

// ParseActivity accepts an SDE activity ID ("1", "11") or a name ("manufacturing", "reaction").
func ParseActivity(s string) (Activity, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "1", "manufacturing", "manufacture":
		return ActivityManufacturing, nil
	case "11", "reaction", "reactions":
		return ActivityReaction, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownActivity, s)
}

// Valid reports whether a is a supported activity.
func (a Activity) Valid() bool {
	return a == ActivityManufacturing || a == ActivityReaction
}

func (a Activity) String() string {
	switch a {
	case ActivityManufacturing:
		return "manufacturing"
	case ActivityReaction:
		return "reaction"
	}
	return "activity(" + strconv.Itoa(int(a)) + ")"
}

// Item is a market item type.
type Item struct {
	TypeID int32   // 0 when the name could not be resolved
	Name   string
	Volume float64 // m³, informational
}

// BlueprintMaterial represents a single material requirement.
type BlueprintMaterial struct {
	TypeID   int32 `json:"type_id"`
	Quantity int64 `json:"quantity"` // base quantity per run (before ME)
}

// Recipe is a blueprint or reaction formula for one product.
type Recipe struct {
	TypeID          int32  // product type
	Name            string // product name
	Volume          float64
	BlueprintTypeID int32
	BlueprintName   string
	Materials       []BlueprintMaterial
	BaseTime        int64 // seconds per run
	OutputQuantity  int64 // units produced per run
	Activity        Activity
}

// Output returns units produced per run, clamped to at least 1.
func (r *Recipe) Output() int64 {
	if r.OutputQuantity <= 0 {
		return 1
	}
	return r.OutputQuantity
}

// EffectiveQuantity applies blueprint and structure material efficiency to a base quantity.
//
// Manufacturing: max(1, round(base * (1 - meBPO) * (1 - meStructure))), rounding half to even.
// Reactions are not subject to material efficiency and return base unchanged.
func EffectiveQuantity(base int64, meBPO, meStructure float64, activity Activity) int64 {
	if activity == ActivityReaction {
		return base
	}
	q := int64(math.RoundToEven(float64(base) * (1 - meBPO) * (1 - meStructure)))
	if q < 1 {
		q = 1
	}
	return q
}

// EffectiveMaterials returns the material list with efficiency applied for the recipe's activity.
func (r *Recipe) EffectiveMaterials(meBPO, meStructure float64) []BlueprintMaterial {
	result := make([]BlueprintMaterial, len(r.Materials))
	for i, mat := range r.Materials {
		result[i] = BlueprintMaterial{
			TypeID:   mat.TypeID,
			Quantity: EffectiveQuantity(mat.Quantity, meBPO, meStructure, r.Activity),
		}
	}
	return result
}

// TimeWithTE returns job duration in seconds for the given runs and time efficiency fraction.
func (r *Recipe) TimeWithTE(runs int64, te float64) int64 {
	if runs <= 0 {
		runs = 1
	}
	if te < 0 {
		te = 0
	}
	if te > 1 {
		te = 1
	}
	return int64(float64(r.BaseTime) * float64(runs) * (1 - te))
}

// RecipeSource looks up the recipe producing a type.
type RecipeSource interface {
	Recipe(ctx context.Context, productTypeID int32, activity Activity) (*Recipe, error)
}
