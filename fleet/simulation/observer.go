package simulation

import (
	"time"

	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

// Event names published to live displays
const (
	EventVehicleMoved    = "vehicle_moved"
	EventPositionCleared = "position_cleared"
	EventRentalCompleted = "rental_completed"
	EventControls        = "controls"
	EventBatchCompleted  = "batch_completed"
	EventRunCompleted    = "run_completed"
)

// BatchReport describes a finished batch
type BatchReport struct {
	Index     int       `json:"index"`
	Time      time.Time `json:"time"`
	Size      int       `json:"size"`
	Completed int       `json:"completed"`
	Faults    int       `json:"faults"`
	Failed    int       `json:"failed"`
}

// RentalReport describes a rental that reached its destination
type RentalReport struct {
	VehicleID string           `json:"vehicle_id"`
	User      string           `json:"user"`
	Position  vehicle.Position `json:"position"`
	Battery   int              `json:"battery"`
	Invoice   int64            `json:"invoice"`
	Total     float64          `json:"total"`
}

// Observer receives everything a display needs: per-cell motion, batch
// progress and whether run controls should be enabled.
type Observer interface {
	vehicle.Observer
	RentalCompleted(report RentalReport)
	ControlsEnabled(enabled bool)
	BatchCompleted(report BatchReport)
}

// NopObserver discards all events
type NopObserver struct {
	vehicle.NopObserver
}

func (NopObserver) RentalCompleted(RentalReport) {}
func (NopObserver) ControlsEnabled(bool)         {}
func (NopObserver) BatchCompleted(BatchReport)   {}
