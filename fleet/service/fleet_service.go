package service

import (
	"context"

	"github.com/wricardo/fleet-rental-sim/fleet/config"
	"github.com/wricardo/fleet-rental-sim/fleet/invoice"
	"github.com/wricardo/fleet-rental-sim/fleet/report"
	"github.com/wricardo/fleet-rental-sim/fleet/runs"
	"github.com/wricardo/fleet-rental-sim/fleet/simulation"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

// FleetService defines all simulation operations
type FleetService interface {
	// Runs
	StartRun(ctx context.Context, opts RunOptions) (*runs.Run, error)
	GetRun(ctx context.Context, runID string) (*runs.Run, error)
	ListRuns(ctx context.Context) ([]*runs.Run, error)
	CancelRun(ctx context.Context, runID string) error
	DeleteRun(ctx context.Context, runID string) error
	WaitRun(ctx context.Context, runID string) (*runs.Run, error)

	// Results
	Faults(ctx context.Context, runID string) ([]simulation.FaultEntry, error)
	Invoices(ctx context.Context, runID string) ([]invoice.Row, error)
	SummaryReport(ctx context.Context, runID string) (*report.SummaryReport, error)
	DailyReports(ctx context.Context, runID string) ([]*report.DailyReport, error)
	TopVehicles(ctx context.Context, runID string) (map[vehicle.Kind]report.Ranked, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*config.Info, error)
	GetConfig(ctx context.Context, name string) (*config.Config, error)

	// Lifecycle
	Shutdown(ctx context.Context) error
}

// RunStore keeps run records
type RunStore interface {
	Create(configName string) (*runs.Run, error)
	Get(id string) (*runs.Run, error)
	List() []*runs.Run
	Update(id string, fn func(run *runs.Run)) (*runs.Run, error)
	SetCancel(id string, cancel context.CancelFunc)
	Cancel(id string) error
	Delete(id string) error
}

// ConfigManager loads simulation profiles
type ConfigManager interface {
	LoadConfig(name string) (*config.Config, error)
	ListConfigs() ([]*config.Info, error)
}

// Broadcaster publishes live run events
type Broadcaster interface {
	Observer(runID string) simulation.Observer
	BroadcastEvent(runID, event string, data interface{})
}

// RunOptions selects the profile and inputs of a new run. Empty fields use
// the profile's values.
type RunOptions struct {
	Config       string   `json:"config"`
	VehiclesFile string   `json:"vehicles_file,omitempty"`
	RentalsFile  string   `json:"rentals_file,omitempty"`
	TimeScale    *float64 `json:"time_scale,omitempty"`
	Seed         *int64   `json:"seed,omitempty"`
}
