package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/fleet-rental-sim/fleet/pricing"
	"github.com/wricardo/fleet-rental-sim/fleet/report"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// EnvPrefix prefixes every environment override key.
const EnvPrefix = "FLEET_"

// Config is a complete simulation profile
type Config struct {
	Name        string              `yaml:"name" json:"name"`
	Description string              `yaml:"description" json:"description"`
	Pricing     pricing.Rates       `yaml:"pricing" json:"pricing"`
	Costs       report.Coefficients `yaml:"costs" json:"costs"`
	Map         vehicle.CityMap     `yaml:"map" json:"map"`
	Faults      []string            `yaml:"faults" json:"faults"`
	Simulation  SimulationConfig    `yaml:"simulation" json:"simulation"`
	Paths       PathsConfig         `yaml:"paths" json:"paths"`
}

// SimulationConfig controls pacing and concurrency of a run
type SimulationConfig struct {
	RechargeDelay  time.Duration `yaml:"recharge_delay" json:"recharge_delay"`
	BatchPause     time.Duration `yaml:"batch_pause" json:"batch_pause"`
	TimeScale      float64       `yaml:"time_scale" json:"time_scale"`
	RentalTimeout  time.Duration `yaml:"rental_timeout" json:"rental_timeout"`
	MaxConcurrency int           `yaml:"max_concurrency" json:"max_concurrency"`
	Seed           int64         `yaml:"seed" json:"seed"`
}

// PathsConfig names the input files and output directories
type PathsConfig struct {
	VehiclesFile string `yaml:"vehicles_file" json:"vehicles_file"`
	RentalsFile  string `yaml:"rentals_file" json:"rentals_file"`
	InvoicesDir  string `yaml:"invoices_dir" json:"invoices_dir"`
	ReportsDir   string `yaml:"reports_dir" json:"reports_dir"`
	RunsDir      string `yaml:"runs_dir" json:"runs_dir"`
}

// Default returns the built-in profile.
func Default() *Config {
	return &Config{
		Name:        "default",
		Description: "Built-in profile",
		Pricing: pricing.Rates{
			Car:          1.0,
			Bike:         0.5,
			Scooter:      0.3,
			WideFactor:   1.5,
			NarrowFactor: 1.0,
			DiscountPct:  10,
			PromotionPct: 15,
		},
		Costs: report.Coefficients{
			Maintenance:   0.2,
			RepairCar:     0.07,
			RepairBike:    0.04,
			RepairScooter: 0.02,
			ExpensesPct:   20,
			TaxPct:        10,
		},
		Map: vehicle.DefaultCityMap,
		Faults: []string{
			"Flat tyre",
			"Battery malfunction",
			"Brake failure",
			"Motor overheating",
			"Broken headlight",
		},
		Simulation: SimulationConfig{
			RechargeDelay: vehicle.DefaultRechargeDelay,
			BatchPause:    5 * time.Second,
			TimeScale:     1,
		},
		Paths: PathsConfig{
			VehiclesFile: "data/vehicles.csv",
			RentalsFile:  "data/rentals.csv",
			InvoicesDir:  "out/invoices",
			ReportsDir:   "out/reports",
			RunsDir:      "out/runs",
		},
	}
}

// Load reads a YAML profile from path, fills defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML profile from data. See Load.
func Parse(data []byte) (*Config, error) {
	// Cost keys missing from the file keep their defaults; zero is a valid value.
	cfg := Config{Costs: Default().Costs}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	cfg.applyDefaults()
	if err := cfg.overrideWithEnv(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()

	if c.Name == "" {
		c.Name = d.Name
	}
	defaultFloat(&c.Pricing.Car, d.Pricing.Car)
	defaultFloat(&c.Pricing.Bike, d.Pricing.Bike)
	defaultFloat(&c.Pricing.Scooter, d.Pricing.Scooter)
	defaultFloat(&c.Pricing.WideFactor, d.Pricing.WideFactor)
	defaultFloat(&c.Pricing.NarrowFactor, d.Pricing.NarrowFactor)

	if c.Map.Size == 0 {
		c.Map = d.Map
	}
	if len(c.Faults) == 0 {
		c.Faults = d.Faults
	}
	if c.Simulation.RechargeDelay == 0 {
		c.Simulation.RechargeDelay = d.Simulation.RechargeDelay
	}

	defaultString(&c.Paths.VehiclesFile, d.Paths.VehiclesFile)
	defaultString(&c.Paths.RentalsFile, d.Paths.RentalsFile)
	defaultString(&c.Paths.InvoicesDir, d.Paths.InvoicesDir)
	defaultString(&c.Paths.ReportsDir, d.Paths.ReportsDir)
	defaultString(&c.Paths.RunsDir, d.Paths.RunsDir)
}

func defaultFloat(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}

func defaultString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

// overrideWithEnv applies FLEET_* variables on top of the file values.
func (c *Config) overrideWithEnv() error {
	floats := map[string]*float64{
		"CAR_UNIT_PRICE":      &c.Pricing.Car,
		"BIKE_UNIT_PRICE":     &c.Pricing.Bike,
		"SCOOTER_UNIT_PRICE":  &c.Pricing.Scooter,
		"DISTANCE_WIDE":       &c.Pricing.WideFactor,
		"DISTANCE_NARROW":     &c.Pricing.NarrowFactor,
		"DISCOUNT":            &c.Pricing.DiscountPct,
		"DISCOUNT_PROM":       &c.Pricing.PromotionPct,
		"MAINTENANCE_COEF":    &c.Costs.Maintenance,
		"CAR_REPAIR_COEF":     &c.Costs.RepairCar,
		"BIKE_REPAIR_COEF":    &c.Costs.RepairBike,
		"SCOOTER_REPAIR_COEF": &c.Costs.RepairScooter,
		"EXPENSES_PERCENTAGE": &c.Costs.ExpensesPct,
		"TAX_PERCENTAGE":      &c.Costs.TaxPct,
		"TIME_SCALE":          &c.Simulation.TimeScale,
	}
	durations := map[string]*time.Duration{
		"RECHARGE_DELAY": &c.Simulation.RechargeDelay,
		"BATCH_PAUSE":    &c.Simulation.BatchPause,
		"RENTAL_TIMEOUT": &c.Simulation.RentalTimeout,
	}
	ints := map[string]*int{
		"MAP_SIZE":        &c.Map.Size,
		"NARROW_MIN":      &c.Map.NarrowMin,
		"NARROW_MAX":      &c.Map.NarrowMax,
		"MAX_CONCURRENCY": &c.Simulation.MaxConcurrency,
	}
	strs := map[string]*string{
		"VEHICLES_FILE": &c.Paths.VehiclesFile,
		"RENTALS_FILE":  &c.Paths.RentalsFile,
		"INVOICES_DIR":  &c.Paths.InvoicesDir,
		"REPORTS_DIR":   &c.Paths.ReportsDir,
		"RUNS_DIR":      &c.Paths.RunsDir,
	}

	var errs error
	for key, dst := range floats {
		if raw, ok := lookupEnv(key); ok {
			v, err := cast.ToFloat64E(raw)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				continue
			}
			*dst = v
		}
	}
	for key, dst := range durations {
		if raw, ok := lookupEnv(key); ok {
			v, err := cast.ToDurationE(raw)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				continue
			}
			*dst = v
		}
	}
	for key, dst := range ints {
		if raw, ok := lookupEnv(key); ok {
			v, err := cast.ToIntE(raw)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				continue
			}
			*dst = v
		}
	}
	for key, dst := range strs {
		if raw, ok := lookupEnv(key); ok {
			*dst = raw
		}
	}
	if raw, ok := lookupEnv("SEED"); ok {
		v, err := cast.ToInt64E(raw)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%sSEED: %w", EnvPrefix, err))
		} else {
			c.Simulation.Seed = v
		}
	}
	if raw, ok := lookupEnv("FAULTS"); ok {
		var faults []string
		for _, f := range strings.Split(raw, "|") {
			if f = strings.TrimSpace(f); f != "" {
				faults = append(faults, f)
			}
		}
		c.Faults = faults
	}
	return errs
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Validate reports every problem in the profile at once.
func (c *Config) Validate() error {
	var errs error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Pricing.Car > 0, "car unit price must be positive")
	check(c.Pricing.Bike > 0, "bike unit price must be positive")
	check(c.Pricing.Scooter > 0, "scooter unit price must be positive")
	check(c.Pricing.WideFactor > 0, "wide area factor must be positive")
	check(c.Pricing.NarrowFactor > 0, "narrow area factor must be positive")
	check(inPercent(c.Pricing.DiscountPct), "discount percentage %v out of [0,100]", c.Pricing.DiscountPct)
	check(inPercent(c.Pricing.PromotionPct), "promotion percentage %v out of [0,100]", c.Pricing.PromotionPct)

	check(c.Costs.Maintenance >= 0, "maintenance coefficient must not be negative")
	check(c.Costs.RepairCar >= 0 && c.Costs.RepairBike >= 0 && c.Costs.RepairScooter >= 0,
		"repair coefficients must not be negative")
	check(inPercent(c.Costs.ExpensesPct), "expenses percentage %v out of [0,100]", c.Costs.ExpensesPct)
	check(inPercent(c.Costs.TaxPct), "tax percentage %v out of [0,100]", c.Costs.TaxPct)

	check(c.Map.Size > 0, "map size must be positive")
	check(c.Map.NarrowMin >= 0 && c.Map.NarrowMin <= c.Map.NarrowMax && c.Map.NarrowMax < c.Map.Size,
		"narrow area [%d,%d] must lie within the %dx%d map", c.Map.NarrowMin, c.Map.NarrowMax, c.Map.Size, c.Map.Size)

	check(c.Simulation.TimeScale >= 0, "time scale must not be negative")
	check(c.Simulation.BatchPause >= 0, "batch pause must not be negative")
	check(c.Simulation.RechargeDelay >= 0, "recharge delay must not be negative")
	check(c.Simulation.RentalTimeout >= 0, "rental timeout must not be negative")
	check(c.Simulation.MaxConcurrency >= 0, "max concurrency must not be negative")

	for i, f := range c.Faults {
		check(strings.TrimSpace(f) != "", "fault description %d must not be blank", i+1)
	}

	check(c.Paths.InvoicesDir != "", "invoices directory is required")
	check(c.Paths.ReportsDir != "", "reports directory is required")

	return errs
}

func inPercent(v float64) bool {
	return v >= 0 && v <= 100
}
