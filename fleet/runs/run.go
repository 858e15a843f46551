package runs

import (
	"time"

	"github.com/wricardo/fleet-rental-sim/fleet/simulation"
)

// Status is the lifecycle step of a run
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the run has stopped
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Run is the record of one simulation run
type Run struct {
	ID           string                  `json:"id"`
	ConfigName   string                  `json:"config_name"`
	Status       Status                  `json:"status"`
	CreatedAt    time.Time               `json:"created_at"`
	StartedAt    time.Time               `json:"started_at,omitempty"`
	FinishedAt   time.Time               `json:"finished_at,omitempty"`
	Dir          string                  `json:"dir"`
	VehiclesFile string                  `json:"vehicles_file"`
	RentalsFile  string                  `json:"rentals_file"`
	InvoicesDir  string                  `json:"invoices_dir"`
	ReportsDir   string                  `json:"reports_dir"`
	Requests     int                     `json:"requests"`
	Skipped      int                     `json:"skipped"`
	Summary      *simulation.RunSummary  `json:"summary,omitempty"`
	Faults       []simulation.FaultEntry `json:"faults"`
	Errors       []string                `json:"errors,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

// Copy returns a snapshot safe to hand to other goroutines
func (r *Run) Copy() *Run {
	c := *r
	if r.Summary != nil {
		s := *r.Summary
		s.Results = nil
		c.Summary = &s
	}
	c.Faults = append([]simulation.FaultEntry(nil), r.Faults...)
	c.Errors = append([]string(nil), r.Errors...)
	return &c
}
