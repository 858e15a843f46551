package invoice

import (
	"errors"
	"time"

	"github.com/wricardo/fleet-rental-sim/fleet/pricing"
	"github.com/wricardo/fleet-rental-sim/fleet/rental"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

// FormatVersion identifies the record layout written by this package.
const FormatVersion = "fleet-invoice/1"

const (
	fileTimeLayout   = "02.01.2006_15-04"
	recordTimeLayout = "02.01.2006/15-04"
)

var ErrMalformedRecord = errors.New("malformed invoice record")

// Record is everything written for one rental
type Record struct {
	Number       int64             `json:"number"`
	File         string            `json:"file"`
	User         rental.User       `json:"user"`
	VehicleID    string            `json:"vehicle_id"`
	VehicleKind  vehicle.Kind      `json:"vehicle_kind"`
	VehicleModel string            `json:"vehicle_model"`
	Documents    bool              `json:"documents"`
	Start        vehicle.Position  `json:"start"`
	End          vehicle.Position  `json:"end"`
	Zone         vehicle.Zone      `json:"zone"`
	Duration     float64           `json:"duration_seconds"`
	Rates        pricing.Rates     `json:"-"`
	Breakdown    pricing.Breakdown `json:"breakdown"`
	Discounted   bool              `json:"discounted"`
	Promoted     bool              `json:"promoted"`
	IssuedAt     time.Time         `json:"issued_at"`
	Fault        string            `json:"fault,omitempty"`
}

// Faulted reports whether the rental ended in a breakdown.
func (r *Record) Faulted() bool {
	return r.Fault != ""
}

// Row is the analytics view of a record reconstructed by the reader.
type Row struct {
	File      string       `json:"file"`
	Number    int64        `json:"number"`
	VehicleID string       `json:"vehicle_id"`
	Total     float64      `json:"total"`
	Discount  float64      `json:"discount"`
	Promotion float64      `json:"promotion"`
	Zone      vehicle.Zone `json:"zone"`
	IssuedAt  time.Time    `json:"issued_at"`
	Faulted   bool         `json:"faulted"`
}

// Row returns the analytics view of r without a disk round-trip.
func (r *Record) Row() Row {
	return Row{
		File:      r.File,
		Number:    r.Number,
		VehicleID: r.VehicleID,
		Total:     r.Breakdown.Total,
		Discount:  r.Breakdown.Discount,
		Promotion: r.Breakdown.Promotion,
		Zone:      r.Zone,
		IssuedAt:  r.IssuedAt,
		Faulted:   r.Faulted(),
	}
}
