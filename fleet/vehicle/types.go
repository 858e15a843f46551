package vehicle

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Kind identifies the vehicle variant
type Kind string

const (
	Car     Kind = "car"
	Bike    Kind = "bike"
	Scooter Kind = "scooter"

	FullBattery      = 100
	ChargeThreshold  = 20
	DrainPerCell     = 5
	MaxCarPassengers = 5
)

// DefaultFaultDescription is used when a fault-bearing trip has no catalog entry.
const DefaultFaultDescription = "unspecified malfunction"

var ErrUnknownKind = errors.New("unknown vehicle kind")

// Kinds lists every supported vehicle kind in display order.
var Kinds = []Kind{Scooter, Bike, Car}

// ParseKind converts free text ("Car", "automobil", "bicikl") to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "car", "automobil", "automobile":
		return Car, nil
	case "bike", "bicycle", "bicikl", "e-bike":
		return Bike, nil
	case "scooter", "trotinet", "e-scooter":
		return Scooter, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Valid reports whether k is one of the supported kinds
func (k Kind) Valid() bool {
	return k == Car || k == Bike || k == Scooter
}

func (k Kind) String() string {
	return string(k)
}

// Title returns the capitalized kind label used on invoices.
func (k Kind) Title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Position represents x,y coordinates on the city grid
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Fault is a malfunction attached to a rental's vehicle copy.
type Fault struct {
	Description string    `json:"description"`
	Time        time.Time `json:"time"`
}

// NewLatentFault picks a description from catalog. The time stays zero until
// the fault fires during a trip.
func NewLatentFault(catalog []string, rng *rand.Rand) *Fault {
	if len(catalog) == 0 {
		return &Fault{Description: DefaultFaultDescription}
	}
	var idx int
	if rng != nil {
		idx = rng.Intn(len(catalog))
	} else {
		idx = rand.Intn(len(catalog))
	}
	return &Fault{Description: catalog[idx]}
}

// Vehicle is a fleet vehicle. Kind-specific fields are zero for other kinds.
type Vehicle struct {
	ID            string  `json:"id"`
	Kind          Kind    `json:"kind"`
	Producer      string  `json:"producer"`
	Model         string  `json:"model"`
	PurchasePrice float64 `json:"purchase_price"`
	Battery       int     `json:"battery"`
	Fault         *Fault  `json:"fault,omitempty"`

	// Car
	PurchaseDate time.Time `json:"purchase_date,omitempty"`
	Description  string    `json:"description,omitempty"`
	Passengers   int       `json:"passengers,omitempty"`

	// Bike
	RangePerCharge  float64 `json:"range_per_charge,omitempty"`
	DistanceCovered int     `json:"distance_covered,omitempty"`

	// Scooter
	MaxSpeed float64 `json:"max_speed,omitempty"`
}

// RequiresDocuments reports whether renting this vehicle needs identity and
// driving-license details on the invoice.
func (v Vehicle) RequiresDocuments() bool {
	return v.Kind == Car
}

// Copy returns an independent snapshot of v.
func (v Vehicle) Copy() Vehicle {
	c := v
	if v.Fault != nil {
		f := *v.Fault
		c.Fault = &f
	}
	return c
}

func (v Vehicle) String() string {
	base := fmt.Sprintf("ID: %q, producer: %q, purchase price: \"%.2f\", model: %q",
		v.ID, v.Producer, v.PurchasePrice, v.Model)
	switch v.Kind {
	case Car:
		date := ""
		if !v.PurchaseDate.IsZero() {
			date = v.PurchaseDate.Format("02.01.2006")
		}
		return fmt.Sprintf("%s, description: %q, purchase date: %q, maximum passengers: \"%d\"",
			base, v.Description, date, v.Passengers)
	case Bike:
		return fmt.Sprintf("%s, range per charge: \"%g\"", base, v.RangePerCharge)
	case Scooter:
		return fmt.Sprintf("%s, max speed: \"%g\"", base, v.MaxSpeed)
	}
	return base
}
