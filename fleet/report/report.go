// Package report aggregates invoice rows into whole-run and per-day figures
// and ranks the most profitable vehicles.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wricardo/fleet-rental-sim/fleet/invoice"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

const dateLayout = "02.01.2006"

// Coefficients holds the cost parameters applied to revenue
type Coefficients struct {
	Maintenance   float64 `yaml:"maintenance" json:"maintenance"`
	RepairCar     float64 `yaml:"repair_car" json:"repair_car"`
	RepairBike    float64 `yaml:"repair_bike" json:"repair_bike"`
	RepairScooter float64 `yaml:"repair_scooter" json:"repair_scooter"`
	ExpensesPct   float64 `yaml:"expenses_pct" json:"expenses_pct"`
	TaxPct        float64 `yaml:"tax_pct" json:"tax_pct"`
}

// RepairCoefficient returns the share of the purchase price a fault costs
func (c Coefficients) RepairCoefficient(kind vehicle.Kind) float64 {
	switch kind {
	case vehicle.Car:
		return c.RepairCar
	case vehicle.Bike:
		return c.RepairBike
	case vehicle.Scooter:
		return c.RepairScooter
	}
	return 0
}

// Catalog looks vehicles up by identifier
type Catalog map[string]vehicle.Vehicle

// Figures are the totals shared by summary and daily reports
type Figures struct {
	Invoices    int     `json:"invoices"`
	Faults      int     `json:"faults"`
	Revenue     float64 `json:"revenue"`
	Discount    float64 `json:"discount"`
	Promotion   float64 `json:"promotion"`
	Wide        float64 `json:"wide"`
	Narrow      float64 `json:"narrow"`
	Maintenance float64 `json:"maintenance"`
	Repair      float64 `json:"repair"`
}

// SummaryReport covers the whole run
type SummaryReport struct {
	Figures
	Expenses float64 `json:"expenses"`
	Tax      float64 `json:"tax"`
}

// DailyReport covers the invoices issued on one calendar date
type DailyReport struct {
	Date time.Time `json:"date"`
	Figures
}

func aggregate(rows []invoice.Row, catalog Catalog, coef Coefficients) Figures {
	var f Figures
	for _, r := range rows {
		f.Invoices++
		f.Revenue += r.Total
		f.Discount += r.Discount
		f.Promotion += r.Promotion
		switch r.Zone {
		case vehicle.ZoneWide:
			f.Wide += r.Total
		case vehicle.ZoneNarrow:
			f.Narrow += r.Total
		}
		if r.Faulted {
			f.Faults++
			f.Repair += RepairCost(r, catalog, coef)
		}
	}
	f.Maintenance = f.Revenue * coef.Maintenance
	return f
}

// RepairCost prices the repair of a faulted row from the vehicle's purchase
// price. Non-faulted rows and unknown vehicles cost nothing.
func RepairCost(r invoice.Row, catalog Catalog, coef Coefficients) float64 {
	if !r.Faulted {
		return 0
	}
	v, ok := catalog[r.VehicleID]
	if !ok {
		return 0
	}
	return v.PurchasePrice * coef.RepairCoefficient(v.Kind)
}

// Summary computes the whole-run report
func Summary(rows []invoice.Row, catalog Catalog, coef Coefficients) *SummaryReport {
	s := &SummaryReport{Figures: aggregate(rows, catalog, coef)}
	s.Expenses = s.Revenue * coef.ExpensesPct / 100
	s.Tax = (s.Revenue - s.Maintenance - s.Repair - s.Expenses) * coef.TaxPct / 100
	return s
}

// Daily partitions rows by issue date and reports each date in order
func Daily(rows []invoice.Row, catalog Catalog, coef Coefficients) []*DailyReport {
	byDate := make(map[time.Time][]invoice.Row)
	for _, r := range rows {
		y, m, d := r.IssuedAt.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, r.IssuedAt.Location())
		byDate[day] = append(byDate[day], r)
	}

	days := make([]time.Time, 0, len(byDate))
	for day := range byDate {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	reports := make([]*DailyReport, 0, len(days))
	for _, day := range days {
		reports = append(reports, &DailyReport{
			Date:    day,
			Figures: aggregate(byDate[day], catalog, coef),
		})
	}
	return reports
}

func eur(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + " EUR"
}

func (f Figures) lines(b *strings.Builder) {
	fmt.Fprintf(b, "Total revenue: %s\n", eur(f.Revenue))
	fmt.Fprintf(b, "Total discount: %s\n", eur(f.Discount))
	fmt.Fprintf(b, "Total promotion amount: %s\n", eur(f.Promotion))
	fmt.Fprintf(b, "Total amount for wide city area: %s\n", eur(f.Wide))
	fmt.Fprintf(b, "Total amount for narrow city area: %s\n", eur(f.Narrow))
	fmt.Fprintf(b, "Total maintenance cost: %s\n", eur(f.Maintenance))
	fmt.Fprintf(b, "Total repair cost: %s\n", eur(f.Repair))
}

// Text renders the summary report
func (s *SummaryReport) Text() string {
	var b strings.Builder
	s.Figures.lines(&b)
	fmt.Fprintf(&b, "Total company expenses: %s\n", eur(s.Expenses))
	fmt.Fprintf(&b, "Total tax: %s\n", eur(s.Tax))
	return b.String()
}

// Text renders the daily report
func (d *DailyReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n", d.Date.Format(dateLayout))
	d.Figures.lines(&b)
	return b.String()
}

// FileName returns the daily report file name for d
func (d *DailyReport) FileName() string {
	return "daily_report_" + d.Date.Format(dateLayout) + ".txt"
}
