package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/fleet-rental-sim/fleet/pricing"
	"github.com/wricardo/fleet-rental-sim/fleet/rental"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
	"github.com/wricardo/fleet-rental-sim/logger"
)

var (
	ErrWorkerPanic = errors.New("rental worker panicked")
	ErrFatal       = errors.New("run aborted")
)

// RunSummary tallies a finished (or aborted) run.
type RunSummary struct {
	Batches   int      `json:"batches"`
	Rentals   int      `json:"rentals"`
	Completed int      `json:"completed"`
	Faulted   int      `json:"faulted"`
	Failed    int      `json:"failed"`
	Results   []Result `json:"-"`

	// Errors aggregates every worker failure of the run.
	Errors error `json:"-"`
}

// Scheduler runs batches one after another. Within a batch every rental gets
// its own goroutine; the next batch starts only after all of them returned
// and the pause elapsed.
type Scheduler struct {
	Task           Task
	Faults         *FaultCollector
	Observer       Observer
	BatchPause     time.Duration
	RentalTimeout  time.Duration
	MaxConcurrency int
	Sleep          vehicle.Sleeper
	Logger         *zap.Logger
}

// NewScheduler creates a scheduler with a fresh fault collector
func NewScheduler(task Task, log *zap.Logger) *Scheduler {
	return &Scheduler{
		Task:     task,
		Faults:   NewFaultCollector(),
		Observer: NopObserver{},
		Sleep:    vehicle.ContextSleep,
		Logger:   logger.OrNop(log),
	}
}

// Run executes requests in start-time batches. Worker failures are collected
// in the summary and do not stop the run. The returned error is non-nil only
// when ctx was cancelled or a configuration error made pricing impossible;
// the summary then covers the batches that did run.
func (s *Scheduler) Run(ctx context.Context, requests []rental.Request) (*RunSummary, error) {
	observer := s.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = vehicle.ContextSleep
	}
	if s.Faults == nil {
		s.Faults = NewFaultCollector()
	}
	s.Logger = logger.OrNop(s.Logger)

	observer.ControlsEnabled(false)
	defer observer.ControlsEnabled(true)

	batches := Group(requests)
	summary := &RunSummary{}
	s.Logger.Info("run started",
		zap.Int("rentals", len(requests)),
		zap.Int("batches", len(batches)))

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		report, fatal := s.runBatch(ctx, batch, summary)
		observer.BatchCompleted(report)
		if fatal != nil {
			return summary, fatal
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if i < len(batches)-1 {
			if err := sleep(ctx, s.BatchPause); err != nil {
				return summary, err
			}
		}
	}

	s.Logger.Info("run finished",
		zap.Int("completed", summary.Completed),
		zap.Int("faulted", summary.Faulted),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (s *Scheduler) runBatch(ctx context.Context, batch Batch, summary *RunSummary) (BatchReport, error) {
	log := s.Logger.With(zap.Int("batch", batch.Index), zap.Time("time", batch.Time))
	log.Debug("batch started", zap.Int("size", len(batch.Requests)))

	results := make(chan Result, len(batch.Requests))
	var g errgroup.Group
	if s.MaxConcurrency > 0 {
		g.SetLimit(s.MaxConcurrency)
	}
	for _, req := range batch.Requests {
		req := req
		g.Go(func() error {
			results <- s.runOne(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	report := BatchReport{Index: batch.Index, Time: batch.Time, Size: len(batch.Requests)}
	var fatal error
	for res := range results {
		summary.Results = append(summary.Results, res)
		summary.Rentals++

		if res.Failed() {
			summary.Failed++
			report.Failed++
			if errors.Is(res.Err, context.Canceled) {
				continue
			}
			log.Error("rental failed", zap.String("rental", res.Request.Key()), zap.Error(res.Err))
			summary.Errors = multierr.Append(summary.Errors,
				fmt.Errorf("rental %s: %w", res.Request.Key(), res.Err))
			if errors.Is(res.Err, pricing.ErrUnknownVehicleKind) {
				fatal = multierr.Append(fatal, res.Err)
			}
			continue
		}

		switch res.State {
		case vehicle.StateFaulted:
			summary.Faulted++
			report.Faults++
			s.Faults.Add(faultEntry(res))
		default:
			summary.Completed++
			report.Completed++
		}
	}
	summary.Batches++

	log.Debug("batch finished",
		zap.Int("completed", report.Completed),
		zap.Int("faults", report.Faults),
		zap.Int("failed", report.Failed))

	if fatal != nil {
		return report, fmt.Errorf("%w: %v", ErrFatal, fatal)
	}
	return report, nil
}

func (s *Scheduler) runOne(ctx context.Context, req rental.Request) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{Request: req, Err: fmt.Errorf("%w: %v", ErrWorkerPanic, p)}
		}
	}()

	if s.RentalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.RentalTimeout)
		defer cancel()
	}
	return s.Task.Execute(ctx, req)
}

func faultEntry(res Result) FaultEntry {
	entry := FaultEntry{
		VehicleID: res.Request.Vehicle.ID,
		Kind:      res.Request.Vehicle.Kind,
		Model:     res.Request.Vehicle.Model,
		User:      res.Request.User.Name,
		Position:  res.Position,
	}
	if res.Fault != nil {
		entry.Description = res.Fault.Description
		entry.Time = res.Fault.Time
	}
	if res.Invoice != nil {
		entry.Invoice = res.Invoice.Number
	}
	return entry
}
