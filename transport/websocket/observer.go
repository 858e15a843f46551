package websocket

import (
	"github.com/wricardo/fleet-rental-sim/fleet/simulation"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

// VehicleMoved is the payload of a vehicle_moved event
type VehicleMoved struct {
	VehicleID string `json:"vehicle_id"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Battery   int    `json:"battery"`
}

// PositionCleared is the payload of a position_cleared event
type PositionCleared struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Controls is the payload of a controls event
type Controls struct {
	Enabled bool `json:"enabled"`
}

// runObserver publishes simulation callbacks as hub events
type runObserver struct {
	hub   *Hub
	runID string
}

// Observer returns a simulation observer that broadcasts to runID
func (h *Hub) Observer(runID string) simulation.Observer {
	return &runObserver{hub: h, runID: runID}
}

func (o *runObserver) Moved(vehicleID string, at vehicle.Position, battery int) {
	o.hub.BroadcastEvent(o.runID, simulation.EventVehicleMoved, VehicleMoved{
		VehicleID: vehicleID,
		X:         at.X,
		Y:         at.Y,
		Battery:   battery,
	})
}

func (o *runObserver) Cleared(at vehicle.Position) {
	o.hub.BroadcastEvent(o.runID, simulation.EventPositionCleared, PositionCleared{X: at.X, Y: at.Y})
}

func (o *runObserver) RentalCompleted(report simulation.RentalReport) {
	o.hub.BroadcastEvent(o.runID, simulation.EventRentalCompleted, report)
}

func (o *runObserver) ControlsEnabled(enabled bool) {
	o.hub.BroadcastEvent(o.runID, simulation.EventControls, Controls{Enabled: enabled})
}

func (o *runObserver) BatchCompleted(report simulation.BatchReport) {
	o.hub.BroadcastEvent(o.runID, simulation.EventBatchCompleted, report)
}
