package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/fleet-rental-sim/fleet/invoice"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

var coef = Coefficients{
	Maintenance:   0.2,
	RepairCar:     0.1,
	RepairBike:    0.05,
	RepairScooter: 0.02,
	ExpensesPct:   20,
	TaxPct:        10,
}

var catalog = Catalog{
	"C1": {ID: "C1", Kind: vehicle.Car, PurchasePrice: 10000},
	"C2": {ID: "C2", Kind: vehicle.Car, PurchasePrice: 20000},
	"B1": {ID: "B1", Kind: vehicle.Bike, PurchasePrice: 1000},
	"S1": {ID: "S1", Kind: vehicle.Scooter, PurchasePrice: 500},
}

func day(d, h int) time.Time {
	return time.Date(2024, 6, d, h, 0, 0, 0, time.Local)
}

func sampleRows() []invoice.Row {
	return []invoice.Row{
		{VehicleID: "C1", Total: 100, Discount: 10, Zone: vehicle.ZoneWide, IssuedAt: day(1, 9)},
		{VehicleID: "B1", Total: 50, Promotion: 5, Zone: vehicle.ZoneNarrow, IssuedAt: day(1, 10)},
		{VehicleID: "C1", Total: 0, Zone: vehicle.ZoneWide, IssuedAt: day(2, 9), Faulted: true},
		{VehicleID: "S1", Total: 50, Zone: vehicle.ZoneNarrow, IssuedAt: day(2, 11)},
	}
}

func TestRepairCost(t *testing.T) {
	faulted := invoice.Row{VehicleID: "C1", Faulted: true}
	assert.InDelta(t, 1000, RepairCost(faulted, catalog, coef), 1e-9)

	assert.Zero(t, RepairCost(invoice.Row{VehicleID: "C1"}, catalog, coef))
	assert.Zero(t, RepairCost(invoice.Row{VehicleID: "X9", Faulted: true}, catalog, coef))
}

func TestSummary(t *testing.T) {
	s := Summary(sampleRows(), catalog, coef)

	assert.Equal(t, 4, s.Invoices)
	assert.Equal(t, 1, s.Faults)
	assert.InDelta(t, 200, s.Revenue, 1e-9)
	assert.InDelta(t, 10, s.Discount, 1e-9)
	assert.InDelta(t, 5, s.Promotion, 1e-9)
	assert.InDelta(t, 100, s.Wide, 1e-9)
	assert.InDelta(t, 100, s.Narrow, 1e-9)
	assert.InDelta(t, 40, s.Maintenance, 1e-9)
	assert.InDelta(t, 1000, s.Repair, 1e-9)
	assert.InDelta(t, 40, s.Expenses, 1e-9)
	assert.InDelta(t, (200-40-1000-40)*0.1, s.Tax, 1e-9)
}

func TestSummaryEmpty(t *testing.T) {
	s := Summary(nil, catalog, coef)
	assert.Zero(t, s.Revenue)
	assert.Zero(t, s.Tax)
	assert.Contains(t, s.Text(), "Total revenue: 0.00 EUR")
}

func TestDaily(t *testing.T) {
	reports := Daily(sampleRows(), catalog, coef)
	require.Len(t, reports, 2)

	first, second := reports[0], reports[1]
	assert.Equal(t, "daily_report_01.06.2024.txt", first.FileName())
	assert.InDelta(t, 150, first.Revenue, 1e-9)
	assert.InDelta(t, 30, first.Maintenance, 1e-9)
	assert.Zero(t, first.Repair)

	assert.Equal(t, "daily_report_02.06.2024.txt", second.FileName())
	assert.InDelta(t, 50, second.Revenue, 1e-9)
	assert.InDelta(t, 1000, second.Repair, 1e-9)
	assert.Equal(t, 1, second.Faults)
}

func TestText(t *testing.T) {
	s := Summary(sampleRows(), catalog, coef)
	text := s.Text()
	for _, label := range []string{
		"Total revenue: 200.00 EUR",
		"Total discount: 10.00 EUR",
		"Total promotion amount: 5.00 EUR",
		"Total amount for wide city area: 100.00 EUR",
		"Total amount for narrow city area: 100.00 EUR",
		"Total maintenance cost: 40.00 EUR",
		"Total repair cost: 1000.00 EUR",
		"Total company expenses: 40.00 EUR",
		"Total tax: -88.00 EUR",
	} {
		assert.Contains(t, text, label)
	}

	daily := Daily(sampleRows(), catalog, coef)[0].Text()
	assert.Contains(t, daily, "Date: 01.06.2024")
	assert.NotContains(t, daily, "Total tax")
}

func TestTopVehicles(t *testing.T) {
	rows := append(sampleRows(),
		invoice.Row{VehicleID: "C2", Total: 100, IssuedAt: day(3, 9)},
		invoice.Row{VehicleID: "ghost", Total: 999, IssuedAt: day(3, 9)},
	)

	top := TopVehicles(rows, catalog)
	require.Len(t, top, 3)
	// C1 and C2 tie at 100, the smaller id wins
	assert.Equal(t, "C1", top[vehicle.Car].Vehicle.ID)
	assert.Equal(t, 2, top[vehicle.Car].Invoices)
	assert.Equal(t, "B1", top[vehicle.Bike].Vehicle.ID)
	assert.InDelta(t, 50, top[vehicle.Scooter].Revenue, 1e-9)
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	rows := sampleRows()

	path, err := WriteSummary(dir, Summary(rows, catalog, coef))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, SummaryFileName), path)

	paths, err := WriteDaily(dir, Daily(rows, catalog, coef))
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Total repair cost: 1000.00 EUR")

	_, err = WriteTopVehicles(dir, TopVehicles(rows, catalog))
	require.NoError(t, err)
	top, err := ReadTopVehicles(dir)
	require.NoError(t, err)
	assert.Equal(t, "C1", top[vehicle.Car].Vehicle.ID)
}
