package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfile = `name: test
description: Test profile
pricing:
  car_unit_price: 2
  bike_unit_price: 1
  scooter_unit_price: 0.5
  distance_wide: 2
  distance_narrow: 1
  discount: 10
  discount_prom: 5
costs:
  maintenance: 0.2
  repair_car: 0.1
  repair_bike: 0.05
  repair_scooter: 0.03
  expenses_pct: 20
  tax_pct: 10
map:
  size: 20
  narrow_min: 5
  narrow_max: 14
faults:
  - Flat tyre
  - Brake failure
simulation:
  recharge_delay: 2s
  batch_pause: 500ms
  time_scale: 0
paths:
  invoices_dir: out/invoices
  reports_dir: out/reports
`

func writeProfile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleProfile))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Name)
	assert.Equal(t, 2.0, cfg.Pricing.Car)
	assert.Equal(t, 0.1, cfg.Costs.RepairCar)
	assert.Equal(t, 14, cfg.Map.NarrowMax)
	assert.Equal(t, []string{"Flat tyre", "Brake failure"}, cfg.Faults)
	assert.Equal(t, 2*time.Second, cfg.Simulation.RechargeDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Simulation.BatchPause)
	assert.Zero(t, cfg.Simulation.TimeScale)
	// defaults fill what the file leaves out
	assert.Equal(t, "data/vehicles.csv", cfg.Paths.VehiclesFile)
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("name: minimal\n"))
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.Pricing.Car, cfg.Pricing.Car)
	assert.Equal(t, d.Costs, cfg.Costs)
	assert.Equal(t, d.Map, cfg.Map)
	assert.NotEmpty(t, cfg.Faults)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FLEET_CAR_UNIT_PRICE", "3.5")
	t.Setenv("FLEET_BATCH_PAUSE", "1s")
	t.Setenv("FLEET_MAP_SIZE", "30")
	t.Setenv("FLEET_FAULTS", "Engine | Wheel")
	t.Setenv("FLEET_INVOICES_DIR", "/tmp/inv")

	cfg, err := Parse([]byte(sampleProfile))
	require.NoError(t, err)

	assert.Equal(t, 3.5, cfg.Pricing.Car)
	assert.Equal(t, time.Second, cfg.Simulation.BatchPause)
	assert.Equal(t, 30, cfg.Map.Size)
	assert.Equal(t, []string{"Engine", "Wheel"}, cfg.Faults)
	assert.Equal(t, "/tmp/inv", cfg.Paths.InvoicesDir)
}

func TestEnvOverrideInvalid(t *testing.T) {
	t.Setenv("FLEET_TAX_PERCENTAGE", "lots")

	_, err := Parse([]byte(sampleProfile))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "FLEET_TAX_PERCENTAGE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid default", func(c *Config) {}, ""},
		{"negative price", func(c *Config) { c.Pricing.Bike = -1 }, "bike unit price"},
		{"discount over 100", func(c *Config) { c.Pricing.DiscountPct = 120 }, "discount percentage"},
		{"narrow outside map", func(c *Config) { c.Map.NarrowMax = 25 }, "narrow area"},
		{"negative time scale", func(c *Config) { c.Simulation.TimeScale = -1 }, "time scale"},
		{"blank fault description", func(c *Config) { c.Faults = []string{"Flat tyre", " "} }, "fault description 2"},
		{"missing invoices dir", func(c *Config) { c.Paths.InvoicesDir = "" }, "invoices directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseRejectsBlankFaults(t *testing.T) {
	_, err := Parse([]byte("faults: [\"\"]\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "fault description")
}

func TestParseDefaultsEachCostCoefficient(t *testing.T) {
	cfg, err := Parse([]byte("costs:\n  tax_pct: 5\n  maintenance: 0\n"))
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, 5.0, cfg.Costs.TaxPct)
	assert.Zero(t, cfg.Costs.Maintenance)
	assert.Equal(t, d.Costs.RepairCar, cfg.Costs.RepairCar)
	assert.Equal(t, d.Costs.RepairBike, cfg.Costs.RepairBike)
	assert.Equal(t, d.Costs.RepairScooter, cfg.Costs.RepairScooter)
	assert.Equal(t, d.Costs.ExpensesPct, cfg.Costs.ExpensesPct)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("pricing: [unterminated"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestManager(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "test.yaml", sampleProfile)
	writeProfile(t, dir, "broken.yaml", "pricing:\n  car_unit_price: -4\n")
	writeProfile(t, dir, "notes.txt", "ignored")

	m, err := NewManager(dir)
	require.NoError(t, err)

	cfg, err := m.LoadConfig("test")
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Name)

	again, err := m.LoadConfig("test.yaml")
	require.NoError(t, err)
	assert.Same(t, cfg, again, "expected cached profile")

	def, err := m.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, def.Name)

	_, err = m.LoadConfig("missing")
	assert.ErrorIs(t, err, ErrConfigNotFound)

	_, err = m.LoadConfig("broken")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	infos, err := m.ListConfigs()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "test", infos[0].ConfigID)
	assert.Equal(t, 2, infos[0].Faults)

	m.RefreshCache()
	reloaded, err := m.LoadConfig("test")
	require.NoError(t, err)
	assert.NotSame(t, cfg, reloaded)
}

func TestManagerMissingDir(t *testing.T) {
	_, err := NewManager(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestManagerConcurrentLoads(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "test.yaml", sampleProfile)
	m, err := NewManager(dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Config, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = m.LoadConfig("test")
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}
