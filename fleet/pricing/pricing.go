// Package pricing computes rental prices. All functions are pure.
package pricing

import (
	"errors"
	"fmt"

	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

var ErrUnknownVehicleKind = errors.New("no unit price configured for vehicle kind")

// Rates holds the configured price coefficients.
type Rates struct {
	Car          float64 `yaml:"car_unit_price" json:"car_unit_price"`
	Bike         float64 `yaml:"bike_unit_price" json:"bike_unit_price"`
	Scooter      float64 `yaml:"scooter_unit_price" json:"scooter_unit_price"`
	WideFactor   float64 `yaml:"distance_wide" json:"distance_wide"`
	NarrowFactor float64 `yaml:"distance_narrow" json:"distance_narrow"`
	DiscountPct  float64 `yaml:"discount" json:"discount"`
	PromotionPct float64 `yaml:"discount_prom" json:"discount_prom"`
}

// Input describes one priced rental
type Input struct {
	Kind      vehicle.Kind
	Duration  float64 // seconds
	Zone      vehicle.Zone
	Faulted   bool
	Discount  bool
	Promotion bool
}

// Breakdown is the itemized price of a rental
type Breakdown struct {
	Unit       float64 `json:"unit"`
	Base       float64 `json:"base"`
	ZoneFactor float64 `json:"zone_factor"`
	Amount     float64 `json:"amount"`
	Discount   float64 `json:"discount"`
	Promotion  float64 `json:"promotion"`
	Total      float64 `json:"total"`
}

// UnitPrice returns the per-second price for kind
func (r Rates) UnitPrice(kind vehicle.Kind) (float64, error) {
	switch kind {
	case vehicle.Car:
		return r.Car, nil
	case vehicle.Bike:
		return r.Bike, nil
	case vehicle.Scooter:
		return r.Scooter, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVehicleKind, kind)
}

// ZoneFactor returns the multiplier for zone
func (r Rates) ZoneFactor(zone vehicle.Zone) float64 {
	if zone == vehicle.ZoneWide {
		return r.WideFactor
	}
	return r.NarrowFactor
}

// Compute prices a rental. A faulted rental has a zero base price, so every
// derived figure including the total is zero.
func (r Rates) Compute(in Input) (Breakdown, error) {
	unit, err := r.UnitPrice(in.Kind)
	if err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{Unit: unit, ZoneFactor: r.ZoneFactor(in.Zone)}
	if !in.Faulted {
		b.Base = unit * in.Duration
	}
	b.Amount = b.Base * b.ZoneFactor
	if in.Discount {
		b.Discount = b.Amount * r.DiscountPct / 100
	}
	if in.Promotion {
		b.Promotion = b.Amount * r.PromotionPct / 100
	}
	b.Total = b.Amount - b.Discount - b.Promotion
	return b, nil
}
