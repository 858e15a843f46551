package rental

import (
	"sort"
	"time"

	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

// Request is one scheduled rental. It owns its vehicle copy and user
// snapshot and is executed exactly once.
type Request struct {
	Time      time.Time        `json:"time"`
	User      User             `json:"user"`
	Vehicle   vehicle.Vehicle  `json:"vehicle"`
	Start     vehicle.Position `json:"start"`
	End       vehicle.Position `json:"end"`
	Duration  float64          `json:"duration_seconds"`
	FaultFlag bool             `json:"fault"`
	Promotion bool             `json:"promotion"`

	// Line is the source line the request was loaded from, for logging.
	Line int `json:"line,omitempty"`
}

// Key identifies a request within its batch.
func (r Request) Key() string {
	return r.Time.Format("2006-01-02T15:04") + "/" + r.Vehicle.ID
}

// SortByTime orders requests chronologically, keeping input order for equal
// timestamps.
func SortByTime(reqs []Request) {
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].Time.Before(reqs[j].Time)
	})
}

// AssignRentalCounts walks reqs in order and gives every request a snapshot
// of its user with the rental count before that request.
func AssignRentalCounts(reqs []Request, registry *Registry) {
	for i := range reqs {
		reqs[i].User = registry.Checkout(reqs[i].User.Name)
	}
}
