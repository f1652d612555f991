// Package pipeline runs a fixed sequence of pricing, production and profit stages
// described in YAML.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"eve-industry/internal/engine"
	"eve-industry/internal/sde"
)

// ErrInvalidDefinition is returned for pipeline files that cannot run.
var ErrInvalidDefinition = errors.New("invalid pipeline definition")

// StageKind names what a stage does.
type StageKind string

const (
	KindFetch   StageKind = "fetch"   // items file -> regional market quotes
	KindCombine StageKind = "combine" // price sources -> one price table
	KindProduce StageKind = "produce" // recipes + price table -> production costs
	KindProfit  StageKind = "profit"  // production costs + quotes -> ranked profit
)

// Definition is a named list of stages run in order.
type Definition struct {
	Name      string  `yaml:"name"`
	RegionID  int32   `yaml:"region_id"`
	OutputDir string  `yaml:"output_dir"`
	Stages    []Stage `yaml:"stages"`
}

// SourceRef is one input of a combine stage: an earlier stage or a CSV path.
type SourceRef struct {
	From   string `yaml:"from"`
	Path   string `yaml:"path"`
	Method string `yaml:"method"`
}

// IndustryOverrides replaces individual production parameters for one stage.
type IndustryOverrides struct {
	MEStructure       *float64 `yaml:"me_structure"`
	MEBPO             *float64 `yaml:"me_bpo"`
	SystemCostIndex   *float64 `yaml:"system_cost_index"`
	FacilityTax       *float64 `yaml:"facility_tax"`
	StructureDiscount *float64 `yaml:"structure_discount"`
	SCCTax            *float64 `yaml:"scc_tax"`
	Activity          string   `yaml:"activity"`
}

// Apply returns base with every set override applied.
func (o *IndustryOverrides) Apply(base engine.ProductionParams) (engine.ProductionParams, error) {
	if o == nil {
		return base, nil
	}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&base.MEStructure, o.MEStructure)
	set(&base.MEBPO, o.MEBPO)
	set(&base.SystemCostIndex, o.SystemCostIndex)
	set(&base.FacilityTax, o.FacilityTax)
	set(&base.StructureDiscount, o.StructureDiscount)
	set(&base.SCCTax, o.SCCTax)
	if o.Activity != "" {
		a, err := sde.ParseActivity(o.Activity)
		if err != nil {
			return base, err
		}
		base.Activity = a
	}
	return base, base.Validate()
}

// Stage is one step. Which fields apply depends on Kind; references name an
// earlier stage or else are read as CSV paths.
type Stage struct {
	Name   string    `yaml:"name"`
	Kind   StageKind `yaml:"kind"`
	Output string    `yaml:"output"`

	Items string `yaml:"items"` // fetch

	Sources  []SourceRef `yaml:"sources"`  // combine
	Adjusted bool        `yaml:"adjusted"` // combine: attach ESI adjusted prices

	Recipes  string             `yaml:"recipes"` // produce
	Prices   string             `yaml:"prices"`  // produce
	Industry *IndustryOverrides `yaml:"industry"`

	Costs  string `yaml:"costs"`  // profit
	Quotes string `yaml:"quotes"` // profit
	TopN   int    `yaml:"top_n"`
}

// Parse decodes a definition, rejecting unknown keys, and validates it.
func Parse(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDefinition)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Load reads and parses a definition file.
func Load(path string) (*Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	def, err := Parse(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

func (d *Definition) invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...))
}

// checkSource validates the method of one combine input and, for stage inputs,
// that the method can read that stage's output.
func (d *Definition) checkSource(stage string, src SourceRef, kinds map[string]StageKind) error {
	m, err := engine.ParsePricingMethod(src.Method)
	if err != nil {
		return fmt.Errorf("stage %q: %w", stage, err)
	}
	if (src.From == "") == (src.Path == "") {
		return d.invalid("stage %q: each source needs exactly one of from or path", stage)
	}
	if src.From == "" {
		return nil
	}
	k, ok := kinds[src.From]
	if !ok {
		return d.invalid("stage %q: unknown source stage %q", stage, src.From)
	}
	switch {
	case k == KindFetch && (m == engine.MethodBuy || m == engine.MethodSell):
	case k == KindProduce && m == engine.MethodProduction:
	default:
		return d.invalid("stage %q: method %s cannot read %s stage %q", stage, m, k, src.From)
	}
	return nil
}

// Validate checks names, kinds, methods and that stage references point backwards.
func (d *Definition) Validate() error {
	if len(d.Stages) == 0 {
		return d.invalid("no stages")
	}
	kinds := make(map[string]StageKind, len(d.Stages))

	// ref accepts an earlier stage of one of the wanted kinds, or any path.
	ref := func(stage, field, v string, want ...StageKind) error {
		if v == "" {
			return d.invalid("stage %q: %s is required", stage, field)
		}
		k, ok := kinds[v]
		if !ok {
			return nil
		}
		for _, w := range want {
			if k == w {
				return nil
			}
		}
		return d.invalid("stage %q: %s refers to %s stage %q", stage, field, k, v)
	}

	for i, s := range d.Stages {
		if s.Name == "" {
			return d.invalid("stage %d has no name", i+1)
		}
		if _, dup := kinds[s.Name]; dup {
			return d.invalid("duplicate stage name %q", s.Name)
		}

		var err error
		switch s.Kind {
		case KindFetch:
			if s.Items == "" {
				err = d.invalid("stage %q: items is required", s.Name)
			}
		case KindCombine:
			if len(s.Sources) == 0 {
				err = d.invalid("stage %q: sources is required", s.Name)
			}
			for _, src := range s.Sources {
				if err != nil {
					break
				}
				err = d.checkSource(s.Name, src, kinds)
			}
		case KindProduce:
			if s.Recipes == "" {
				err = d.invalid("stage %q: recipes is required", s.Name)
			} else {
				err = ref(s.Name, "prices", s.Prices, KindCombine)
			}
			if err == nil && s.Industry != nil && s.Industry.Activity != "" {
				if _, aerr := sde.ParseActivity(s.Industry.Activity); aerr != nil {
					return fmt.Errorf("stage %q: %w", s.Name, aerr)
				}
			}
		case KindProfit:
			if err = ref(s.Name, "costs", s.Costs, KindProduce); err == nil {
				err = ref(s.Name, "quotes", s.Quotes, KindFetch)
			}
		default:
			err = d.invalid("stage %q: unknown kind %q", s.Name, s.Kind)
		}
		if err != nil {
			return err
		}
		kinds[s.Name] = s.Kind
	}
	return nil
}
