package simulation

import (
	"sync"
	"time"

	"github.com/wricardo/fleet-rental-sim/fleet/invoice"
	"github.com/wricardo/fleet-rental-sim/fleet/rental"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

// Result is what one rental task produces
type Result struct {
	Request  rental.Request
	State    vehicle.State
	Position vehicle.Position
	Fault    *vehicle.Fault
	Invoice  *invoice.Record
	Err      error
}

// Failed reports whether the task ended without a terminal trip state
func (r Result) Failed() bool {
	return r.Err != nil
}

// FaultEntry is a vehicle that broke down during a rental
type FaultEntry struct {
	VehicleID   string           `json:"vehicle_id"`
	Kind        vehicle.Kind     `json:"kind"`
	Model       string           `json:"model"`
	User        string           `json:"user"`
	Description string           `json:"description"`
	Time        time.Time        `json:"time"`
	Position    vehicle.Position `json:"position"`
	Invoice     int64            `json:"invoice,omitempty"`
}

// FaultCollector accumulates the faults of one run. It is safe for
// concurrent use.
type FaultCollector struct {
	mu     sync.Mutex
	faults []FaultEntry
}

// NewFaultCollector creates an empty collector
func NewFaultCollector() *FaultCollector {
	return &FaultCollector{}
}

// Add records a fault
func (c *FaultCollector) Add(f FaultEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults = append(c.faults, f)
}

// List returns a copy of the recorded faults in insertion order
func (c *FaultCollector) List() []FaultEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]FaultEntry, len(c.faults))
	copy(out, c.faults)
	return out
}

// Len returns the number of recorded faults
func (c *FaultCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.faults)
}
