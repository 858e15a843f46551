package report

import (
	"github.com/wricardo/fleet-rental-sim/fleet/invoice"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

// Ranked is the most profitable vehicle of one kind
type Ranked struct {
	Vehicle  vehicle.Vehicle `json:"vehicle"`
	Revenue  float64         `json:"revenue"`
	Invoices int             `json:"invoices"`
}

// TopVehicles finds, per kind, the vehicle with the highest invoiced
// revenue. Ties go to the smaller identifier. Rows for vehicles missing from
// the catalog are ignored.
func TopVehicles(rows []invoice.Row, catalog Catalog) map[vehicle.Kind]Ranked {
	revenue := make(map[string]float64)
	count := make(map[string]int)
	for _, r := range rows {
		if _, ok := catalog[r.VehicleID]; !ok {
			continue
		}
		revenue[r.VehicleID] += r.Total
		count[r.VehicleID]++
	}

	top := make(map[vehicle.Kind]Ranked)
	for id, rev := range revenue {
		v := catalog[id]
		best, ok := top[v.Kind]
		if ok && (best.Revenue > rev || (best.Revenue == rev && best.Vehicle.ID < id)) {
			continue
		}
		top[v.Kind] = Ranked{Vehicle: v, Revenue: rev, Invoices: count[id]}
	}
	return top
}
