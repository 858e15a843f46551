package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/fleet-rental-sim/fleet/config"
	"github.com/wricardo/fleet-rental-sim/fleet/invoice"
	"github.com/wricardo/fleet-rental-sim/fleet/loader"
	"github.com/wricardo/fleet-rental-sim/fleet/rental"
	"github.com/wricardo/fleet-rental-sim/fleet/report"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
	"github.com/wricardo/fleet-rental-sim/logger"
)

var ErrOutputNotEmpty = errors.New("invoices directory is not empty")

// Reports is the analytics output of a run
type Reports struct {
	Rows    []invoice.Row                  `json:"-"`
	Summary *report.SummaryReport          `json:"summary"`
	Daily   []*report.DailyReport          `json:"daily"`
	Top     map[vehicle.Kind]report.Ranked `json:"top_vehicles"`
	Files   []string                       `json:"files"`

	// Unreadable aggregates invoice files that could not be parsed.
	Unreadable error `json:"-"`
}

// Output is everything a pipeline run produced
type Output struct {
	Summary  *RunSummary
	Catalog  report.Catalog
	Requests int
	Invoices int64
	Skipped  []loader.Skip
	Faults   []FaultEntry
	Reports  *Reports
}

// Pipeline wires loading, scheduling, invoicing and reporting for one
// profile.
type Pipeline struct {
	Config   *config.Config
	Observer Observer
	Sleep    vehicle.Sleeper
	Logger   *zap.Logger

	// Overwrite clears existing invoices instead of refusing to run.
	Overwrite bool
}

// Run executes the whole run described by paths. Empty path fields fall
// back to the profile's paths. When the run is cancelled midway the reports
// still cover the invoices that were written, and ctx.Err() is returned
// together with the output.
func (p *Pipeline) Run(ctx context.Context, paths config.PathsConfig) (*Output, error) {
	cfg := p.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := logger.OrNop(p.Logger)
	paths = mergePaths(paths, cfg.Paths)

	if err := p.prepareInvoices(paths.InvoicesDir); err != nil {
		return nil, err
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	loadRng := rand.New(rand.NewSource(seed))

	ld := loader.New(cfg.Map, cfg.Faults, loadRng, log.Named("loader"))
	catalog, vehicleSkips, err := ld.LoadVehiclesFile(paths.VehiclesFile)
	if err != nil {
		return nil, err
	}
	requests, rentalSkips, err := ld.LoadRentalsFile(paths.RentalsFile, catalog, rental.NewRegistry(loadRng))
	if err != nil {
		return nil, err
	}
	out := &Output{
		Catalog:  catalog,
		Requests: len(requests),
		Skipped:  append(vehicleSkips, rentalSkips...),
	}
	log.Info("inputs loaded",
		zap.Int("vehicles", len(catalog)),
		zap.Int("rentals", len(requests)),
		zap.Int("skipped", len(out.Skipped)))

	writer, err := invoice.NewWriter(paths.InvoicesDir, cfg.Pricing, log.Named("invoice"))
	if err != nil {
		return nil, err
	}

	exec := NewExecutor(cfg.Map, writer, rand.New(rand.NewSource(seed+1)), log.Named("executor"))
	exec.Observer = p.Observer
	exec.RechargeDelay = cfg.Simulation.RechargeDelay
	exec.TimeScale = cfg.Simulation.TimeScale
	exec.Sleep = p.Sleep

	sched := NewScheduler(exec, log.Named("scheduler"))
	sched.Observer = p.Observer
	sched.BatchPause = time.Duration(float64(cfg.Simulation.BatchPause) * cfg.Simulation.TimeScale)
	sched.RentalTimeout = cfg.Simulation.RentalTimeout
	sched.MaxConcurrency = cfg.Simulation.MaxConcurrency
	if p.Sleep != nil {
		sched.Sleep = p.Sleep
	}

	summary, runErr := sched.Run(ctx, requests)
	out.Summary = summary
	out.Faults = sched.Faults.List()
	out.Invoices = writer.Issued()
	log.Info("invoices issued", zap.Int64("count", out.Invoices), zap.String("dir", writer.Dir()))

	reports, err := BuildReports(paths.InvoicesDir, paths.ReportsDir, catalog, cfg.Costs, log.Named("report"))
	if err != nil {
		return out, err
	}
	out.Reports = reports
	return out, runErr
}

// ComputeReports re-reads every invoice in invoicesDir and aggregates the
// summary, daily and top-vehicle figures without writing anything.
func ComputeReports(invoicesDir string, catalog report.Catalog, coef report.Coefficients, log *zap.Logger) *Reports {
	log = logger.OrNop(log)
	rows, unreadable := invoice.NewReader(log).ReadDir(invoicesDir)
	return &Reports{
		Rows:       rows,
		Summary:    report.Summary(rows, catalog, coef),
		Daily:      report.Daily(rows, catalog, coef),
		Top:        report.TopVehicles(rows, catalog),
		Unreadable: unreadable,
	}
}

// BuildReports computes the reports for invoicesDir and writes them into
// reportsDir.
func BuildReports(invoicesDir, reportsDir string, catalog report.Catalog, coef report.Coefficients, log *zap.Logger) (*Reports, error) {
	log = logger.OrNop(log)
	r := ComputeReports(invoicesDir, catalog, coef, log)

	path, err := report.WriteSummary(reportsDir, r.Summary)
	if err != nil {
		return nil, err
	}
	r.Files = append(r.Files, path)

	paths, err := report.WriteDaily(reportsDir, r.Daily)
	if err != nil {
		return nil, err
	}
	r.Files = append(r.Files, paths...)

	path, err = report.WriteTopVehicles(reportsDir, r.Top)
	if err != nil {
		return nil, err
	}
	r.Files = append(r.Files, path)

	log.Info("reports written",
		zap.Int("invoices", len(r.Rows)),
		zap.Int("files", len(r.Files)),
		zap.Float64("revenue", r.Summary.Revenue))
	return r, nil
}

func (p *Pipeline) prepareInvoices(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read invoices directory: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	if !p.Overwrite {
		return fmt.Errorf("%w: %s", ErrOutputNotEmpty, dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear invoices directory: %w", err)
	}
	return nil
}

func mergePaths(paths, defaults config.PathsConfig) config.PathsConfig {
	if paths.VehiclesFile == "" {
		paths.VehiclesFile = defaults.VehiclesFile
	}
	if paths.RentalsFile == "" {
		paths.RentalsFile = defaults.RentalsFile
	}
	if paths.InvoicesDir == "" {
		paths.InvoicesDir = defaults.InvoicesDir
	}
	if paths.ReportsDir == "" {
		paths.ReportsDir = defaults.ReportsDir
	}
	if paths.RunsDir == "" {
		paths.RunsDir = defaults.RunsDir
	}
	return paths
}
