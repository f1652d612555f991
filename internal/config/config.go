package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"eve-industry/internal/engine"
	"eve-industry/internal/esi"
	"eve-industry/internal/sde"
)

// EnvPrefix prefixes every environment override, e.g. EVEIND_MARKET_REGION_ID.
const EnvPrefix = "EVEIND"

// Config holds application settings.
type Config struct {
	Market     MarketConfig     `mapstructure:"market"`
	Industry   IndustryConfig   `mapstructure:"industry"`
	Report     ReportConfig     `mapstructure:"report"`
	Allocation AllocationConfig `mapstructure:"allocation"`
	SDE        SDEConfig        `mapstructure:"sde"`
}

// MarketConfig configures the market data collaborators.
type MarketConfig struct {
	RegionID     int32         `mapstructure:"region_id" validate:"required"`
	ESIBase      string        `mapstructure:"esi_base" validate:"required,url"`
	StatsBase    string        `mapstructure:"stats_base" validate:"required,url"`
	RequestDelay time.Duration `mapstructure:"request_delay" validate:"min=0"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"required"`
}

// IndustryConfig holds the production cost parameters. Rates are fractions.
type IndustryConfig struct {
	MEStructure       float64 `mapstructure:"me_structure" validate:"gte=0,lt=1"`
	MEBPO             float64 `mapstructure:"me_bpo" validate:"gte=0,lt=1"`
	SystemCostIndex   float64 `mapstructure:"system_cost_index" validate:"gte=0"`
	FacilityTax       float64 `mapstructure:"facility_tax" validate:"gte=0"`
	StructureDiscount float64 `mapstructure:"structure_discount" validate:"gte=0,lt=1"`
	SCCTax            float64 `mapstructure:"scc_tax" validate:"gte=0"`
	Activity          string  `mapstructure:"activity" validate:"required"`
}

// ReportConfig controls report output.
type ReportConfig struct {
	TopN      int    `mapstructure:"top_n" validate:"min=1"`
	OutputDir string `mapstructure:"output_dir"`
}

// AllocationConfig holds the Monte Carlo settings.
type AllocationConfig struct {
	Trials           int     `mapstructure:"trials" validate:"min=1"`            // per single-strategy run
	AllocationTrials int     `mapstructure:"allocation_trials" validate:"min=1"` // per grid candidate
	CITrials         int     `mapstructure:"ci_trials" validate:"min=1"`         // profit paths per band
	Step             float64 `mapstructure:"step" validate:"gt=0,lte=1"`
	Seed             uint64  `mapstructure:"seed"`
	Workers          int     `mapstructure:"workers" validate:"min=1"`
}

// SDEConfig points at a local Fuzzwork dump. FuzzworkDB wins when both are set.
type SDEConfig struct {
	FuzzworkDir string `mapstructure:"fuzzwork_dir"`
	FuzzworkDB  string `mapstructure:"fuzzwork_db"`
}

// Default returns a Config with sensible defaults (The Forge, manufacturing, no bonuses).
func Default() *Config {
	return &Config{
		Market: MarketConfig{
			RegionID:     10000002,
			ESIBase:      esi.DefaultESIBase,
			StatsBase:    esi.DefaultTycoonBase,
			RequestDelay: 150 * time.Millisecond,
			Timeout:      15 * time.Second,
		},
		Industry: IndustryConfig{
			StructureDiscount: 0.05,
			SCCTax:            0.04,
			Activity:          "manufacturing",
		},
		Report: ReportConfig{
			TopN:      engine.DefaultTopN,
			OutputDir: "data",
		},
		Allocation: AllocationConfig{
			Trials:           1000,
			AllocationTrials: 300,
			CITrials:         500,
			Step:             0.1,
			Seed:             28,
			Workers:          1,
		},
		SDE: SDEConfig{
			FuzzworkDir: "sde",
		},
	}
}

// setDefaults registers every default with viper so env overrides work for keys
// that are absent from the config file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("market.region_id", d.Market.RegionID)
	v.SetDefault("market.esi_base", d.Market.ESIBase)
	v.SetDefault("market.stats_base", d.Market.StatsBase)
	v.SetDefault("market.request_delay", d.Market.RequestDelay)
	v.SetDefault("market.timeout", d.Market.Timeout)

	v.SetDefault("industry.me_structure", d.Industry.MEStructure)
	v.SetDefault("industry.me_bpo", d.Industry.MEBPO)
	v.SetDefault("industry.system_cost_index", d.Industry.SystemCostIndex)
	v.SetDefault("industry.facility_tax", d.Industry.FacilityTax)
	v.SetDefault("industry.structure_discount", d.Industry.StructureDiscount)
	v.SetDefault("industry.scc_tax", d.Industry.SCCTax)
	v.SetDefault("industry.activity", d.Industry.Activity)

	v.SetDefault("report.top_n", d.Report.TopN)
	v.SetDefault("report.output_dir", d.Report.OutputDir)

	v.SetDefault("allocation.trials", d.Allocation.Trials)
	v.SetDefault("allocation.allocation_trials", d.Allocation.AllocationTrials)
	v.SetDefault("allocation.ci_trials", d.Allocation.CITrials)
	v.SetDefault("allocation.step", d.Allocation.Step)
	v.SetDefault("allocation.seed", d.Allocation.Seed)
	v.SetDefault("allocation.workers", d.Allocation.Workers)

	v.SetDefault("sde.fuzzwork_dir", d.SDE.FuzzworkDir)
	v.SetDefault("sde.fuzzwork_db", d.SDE.FuzzworkDB)
}

// Load reads configuration with priority env > file > defaults. An empty path
// searches for config.yaml in . and ./configs; a missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks struct tags and the activity name.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if _, err := sde.ParseActivity(c.Industry.Activity); err != nil {
		return err
	}
	return nil
}

// formatValidationError converts validator errors into readable messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	messages := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		messages = append(messages, fmt.Sprintf("field '%s' failed validation: %s (value: '%v')",
			e.Namespace(), e.Tag(), e.Value()))
	}
	return fmt.Errorf("%w:\n  %s", engine.ErrInvalidParameter, strings.Join(messages, "\n  "))
}

// ProductionParams converts the industry section for engine.CalculateProduction.
func (c *Config) ProductionParams() (engine.ProductionParams, error) {
	activity, err := sde.ParseActivity(c.Industry.Activity)
	if err != nil {
		return engine.ProductionParams{}, err
	}
	return engine.ProductionParams{
		MEStructure:       c.Industry.MEStructure,
		MEBPO:             c.Industry.MEBPO,
		SystemCostIndex:   c.Industry.SystemCostIndex,
		FacilityTax:       c.Industry.FacilityTax,
		StructureDiscount: c.Industry.StructureDiscount,
		SCCTax:            c.Industry.SCCTax,
		Activity:          activity,
	}, nil
}

// SimulationParams returns the allocation section as engine parameters with
// Trials set for single-strategy runs. Inventory and economics come from the caller.
func (c *Config) SimulationParams() engine.SimulationParams {
	return engine.SimulationParams{
		Trials:  c.Allocation.Trials,
		Seed:    c.Allocation.Seed,
		Workers: c.Allocation.Workers,
	}
}

// ESIOptions returns client options for the ESI collaborator.
func (c *Config) ESIOptions() esi.Options {
	return esi.Options{BaseURL: c.Market.ESIBase, Delay: c.Market.RequestDelay, Timeout: c.Market.Timeout}
}

// TycoonOptions returns client options for the market statistics collaborator.
func (c *Config) TycoonOptions() esi.Options {
	return esi.Options{BaseURL: c.Market.StatsBase, Delay: c.Market.RequestDelay, Timeout: c.Market.Timeout}
}
