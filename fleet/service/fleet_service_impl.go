package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wricardo/fleet-rental-sim/fleet/config"
	"github.com/wricardo/fleet-rental-sim/fleet/invoice"
	"github.com/wricardo/fleet-rental-sim/fleet/loader"
	"github.com/wricardo/fleet-rental-sim/fleet/report"
	"github.com/wricardo/fleet-rental-sim/fleet/runs"
	"github.com/wricardo/fleet-rental-sim/fleet/simulation"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
	"github.com/wricardo/fleet-rental-sim/logger"
)

var ErrInvalidOptions = errors.New("invalid run options")

// fleetServiceImpl implements the FleetService interface
type fleetServiceImpl struct {
	runs        RunStore
	configs     ConfigManager
	broadcaster Broadcaster
	log         *zap.Logger

	mu       sync.Mutex
	done     map[string]chan struct{}
	catalogs map[string]report.Catalog
	reports  map[string]*simulation.Reports
	wg       sync.WaitGroup
}

// NewFleetService creates a service. broadcaster may be nil.
func NewFleetService(store RunStore, configs ConfigManager, broadcaster Broadcaster, log *zap.Logger) FleetService {
	return &fleetServiceImpl{
		runs:        store,
		configs:     configs,
		broadcaster: broadcaster,
		log:         logger.OrNop(log),
		done:        make(map[string]chan struct{}),
		catalogs:    make(map[string]report.Catalog),
		reports:     make(map[string]*simulation.Reports),
	}
}

// StartRun validates the options, registers a run and executes it in the
// background. The run is independent of ctx.
func (s *fleetServiceImpl) StartRun(ctx context.Context, opts RunOptions) (*runs.Run, error) {
	name := opts.Config
	if name == "" {
		name = config.DefaultName
	}

	base, err := s.configs.LoadConfig(name)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, s.configNotFound(name, err)
		}
		return nil, fmt.Errorf("failed to load config %s: %w", name, err)
	}
	cfg := *base

	if opts.VehiclesFile != "" {
		cfg.Paths.VehiclesFile = opts.VehiclesFile
	}
	if opts.RentalsFile != "" {
		cfg.Paths.RentalsFile = opts.RentalsFile
	}
	if opts.TimeScale != nil {
		if *opts.TimeScale < 0 {
			return nil, fmt.Errorf("%w: time_scale must not be negative", ErrInvalidOptions)
		}
		cfg.Simulation.TimeScale = *opts.TimeScale
	}
	if opts.Seed != nil {
		cfg.Simulation.Seed = *opts.Seed
	}

	run, err := s.runs.Create(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	run, err = s.runs.Update(run.ID, func(r *runs.Run) {
		r.VehiclesFile = cfg.Paths.VehiclesFile
		r.RentalsFile = cfg.Paths.RentalsFile
	})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.runs.SetCancel(run.ID, cancel)

	done := make(chan struct{})
	s.mu.Lock()
	s.done[run.ID] = done
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		defer cancel()
		s.execute(runCtx, run, &cfg)
	}()

	s.log.Info("run started", zap.String("run_id", run.ID), zap.String("config", name))
	return run, nil
}

func (s *fleetServiceImpl) execute(ctx context.Context, run *runs.Run, cfg *config.Config) {
	log := s.log.With(zap.String("run_id", run.ID))

	if _, err := s.runs.Update(run.ID, func(r *runs.Run) {
		r.Status = runs.StatusRunning
		r.StartedAt = time.Now()
	}); err != nil {
		log.Error("failed to mark run as running", zap.Error(err))
		return
	}

	var observer simulation.Observer = simulation.NopObserver{}
	if s.broadcaster != nil {
		observer = s.broadcaster.Observer(run.ID)
	}

	pipeline := &simulation.Pipeline{
		Config:   cfg,
		Observer: observer,
		Logger:   log,
	}
	out, runErr := pipeline.Run(ctx, config.PathsConfig{
		VehiclesFile: run.VehiclesFile,
		RentalsFile:  run.RentalsFile,
		InvoicesDir:  run.InvoicesDir,
		ReportsDir:   run.ReportsDir,
	})

	if out != nil {
		s.mu.Lock()
		s.catalogs[run.ID] = out.Catalog
		if out.Reports != nil {
			s.reports[run.ID] = out.Reports
		}
		s.mu.Unlock()
	}

	final, err := s.runs.Update(run.ID, func(r *runs.Run) {
		r.FinishedAt = time.Now()
		if out != nil {
			r.Requests = out.Requests
			r.Skipped = len(out.Skipped)
			r.Faults = out.Faults
			if out.Summary != nil {
				summary := *out.Summary
				summary.Results = nil
				r.Summary = &summary
				for _, e := range multierr.Errors(out.Summary.Errors) {
					r.Errors = append(r.Errors, e.Error())
				}
			}
		}
		switch {
		case runErr == nil:
			r.Status = runs.StatusCompleted
		case errors.Is(runErr, context.Canceled):
			r.Status = runs.StatusCancelled
			r.Error = runErr.Error()
		default:
			r.Status = runs.StatusFailed
			r.Error = runErr.Error()
		}
	})
	if err != nil {
		log.Error("failed to record run result", zap.Error(err))
		return
	}

	log.Info("run finished", zap.String("status", string(final.Status)))
	if s.broadcaster != nil {
		s.broadcaster.BroadcastEvent(run.ID, simulation.EventRunCompleted, final)
	}
}

func (s *fleetServiceImpl) configNotFound(name string, err error) error {
	available, listErr := s.configs.ListConfigs()
	if listErr == nil && len(available) > 0 {
		ids := make([]string, 0, len(available))
		for _, info := range available {
			ids = append(ids, info.ConfigID)
		}
		return fmt.Errorf("config '%s' not found, available configs: %v: %w", name, ids, err)
	}
	return fmt.Errorf("config '%s' not found, use /api/configs to list available configurations: %w", name, err)
}

// GetRun returns the current record of a run
func (s *fleetServiceImpl) GetRun(ctx context.Context, runID string) (*runs.Run, error) {
	run, err := s.runs.Get(runID)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns every known run, newest first
func (s *fleetServiceImpl) ListRuns(ctx context.Context) ([]*runs.Run, error) {
	return s.runs.List(), nil
}

// CancelRun stops an active run
func (s *fleetServiceImpl) CancelRun(ctx context.Context, runID string) error {
	if err := s.runs.Cancel(runID); err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	s.log.Info("run cancellation requested", zap.String("run_id", runID))
	return nil
}

// DeleteRun removes a finished run with its output
func (s *fleetServiceImpl) DeleteRun(ctx context.Context, runID string) error {
	if err := s.runs.Delete(runID); err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	s.mu.Lock()
	delete(s.done, runID)
	delete(s.catalogs, runID)
	delete(s.reports, runID)
	s.mu.Unlock()
	return nil
}

// WaitRun blocks until the run stops or ctx is done
func (s *fleetServiceImpl) WaitRun(ctx context.Context, runID string) (*runs.Run, error) {
	s.mu.Lock()
	done, ok := s.done[runID]
	s.mu.Unlock()

	if ok {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.GetRun(ctx, runID)
}

// Faults lists the breakdowns of a run
func (s *fleetServiceImpl) Faults(ctx context.Context, runID string) ([]simulation.FaultEntry, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Faults == nil {
		return []simulation.FaultEntry{}, nil
	}
	return run.Faults, nil
}

// Invoices returns the analytics rows of every invoice the run wrote so far
func (s *fleetServiceImpl) Invoices(ctx context.Context, runID string) ([]invoice.Row, error) {
	reports, err := s.runReports(ctx, runID)
	if err != nil {
		return nil, err
	}
	if reports.Rows == nil {
		return []invoice.Row{}, nil
	}
	return reports.Rows, nil
}

// SummaryReport returns the financial summary of a run
func (s *fleetServiceImpl) SummaryReport(ctx context.Context, runID string) (*report.SummaryReport, error) {
	reports, err := s.runReports(ctx, runID)
	if err != nil {
		return nil, err
	}
	return reports.Summary, nil
}

// DailyReports returns one report per invoiced day
func (s *fleetServiceImpl) DailyReports(ctx context.Context, runID string) ([]*report.DailyReport, error) {
	reports, err := s.runReports(ctx, runID)
	if err != nil {
		return nil, err
	}
	if reports.Daily == nil {
		return []*report.DailyReport{}, nil
	}
	return reports.Daily, nil
}

// TopVehicles returns the highest-earning vehicle per kind. Finished runs
// without cached reports serve the ranking stored in their reports
// directory.
func (s *fleetServiceImpl) TopVehicles(ctx context.Context, runID string) (map[vehicle.Kind]report.Ranked, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	_, cached := s.reports[runID]
	s.mu.Unlock()
	if !cached && run.Status.Terminal() {
		top, err := report.ReadTopVehicles(run.ReportsDir)
		if err == nil {
			return top, nil
		}
		s.log.Debug("stored ranking unavailable, recomputing", zap.String("run_id", runID), zap.Error(err))
	}

	reports, err := s.runReports(ctx, runID)
	if err != nil {
		return nil, err
	}
	return reports.Top, nil
}

// runReports uses the reports cached at the end of a run. For active runs,
// and for runs loaded from disk, they are computed from the invoices
// written so far.
func (s *fleetServiceImpl) runReports(ctx context.Context, runID string) (*simulation.Reports, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	cached, ok := s.reports[runID]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	cfg, err := s.GetConfig(ctx, run.ConfigName)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalog(run, cfg)
	if err != nil {
		return nil, err
	}

	reports := simulation.ComputeReports(run.InvoicesDir, catalog, cfg.Costs, s.log)
	if run.Status.Terminal() {
		s.mu.Lock()
		s.reports[runID] = reports
		s.mu.Unlock()
	}
	return reports, nil
}

func (s *fleetServiceImpl) catalog(run *runs.Run, cfg *config.Config) (report.Catalog, error) {
	s.mu.Lock()
	catalog, ok := s.catalogs[run.ID]
	s.mu.Unlock()
	if ok {
		return catalog, nil
	}

	path := run.VehiclesFile
	if path == "" {
		path = cfg.Paths.VehiclesFile
	}
	vehicles, _, err := loader.New(cfg.Map, cfg.Faults, nil, s.log).LoadVehiclesFile(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.catalogs[run.ID] = vehicles
	s.mu.Unlock()
	return vehicles, nil
}

// ListConfigs returns the available profiles
func (s *fleetServiceImpl) ListConfigs(ctx context.Context) ([]*config.Info, error) {
	return s.configs.ListConfigs()
}

// GetConfig loads a profile by name
func (s *fleetServiceImpl) GetConfig(ctx context.Context, name string) (*config.Config, error) {
	if name == "" {
		name = config.DefaultName
	}
	cfg, err := s.configs.LoadConfig(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", name, err)
	}
	return cfg, nil
}

// Shutdown cancels active runs and waits for them to record their status
func (s *fleetServiceImpl) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.done))
	for id := range s.done {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.runs.Cancel(id); err != nil && !errors.Is(err, runs.ErrRunFinished) {
			s.log.Warn("failed to cancel run", zap.String("run_id", id), zap.Error(err))
		}
	}

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
