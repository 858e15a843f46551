package simulation

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/fleet-rental-sim/fleet/invoice"
	"github.com/wricardo/fleet-rental-sim/fleet/rental"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
	"github.com/wricardo/fleet-rental-sim/logger"
)

// Task executes one rental to completion
type Task interface {
	Execute(ctx context.Context, req rental.Request) Result
}

// TaskFunc adapts a function to Task
type TaskFunc func(ctx context.Context, req rental.Request) Result

func (f TaskFunc) Execute(ctx context.Context, req rental.Request) Result {
	return f(ctx, req)
}

// Executor drives a rental's vehicle copy from start to end, classifies the
// path and issues the invoice.
type Executor struct {
	Map           vehicle.CityMap
	Invoices      *invoice.Writer
	Observer      Observer
	RechargeDelay time.Duration
	TimeScale     float64
	Sleep         vehicle.Sleeper
	Logger        *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewExecutor creates an executor writing to invoices
func NewExecutor(cityMap vehicle.CityMap, invoices *invoice.Writer, rng *rand.Rand, log *zap.Logger) *Executor {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Executor{
		Map:      cityMap,
		Invoices: invoices,
		Observer: NopObserver{},
		Logger:   logger.OrNop(log),
		rng:      rng,
	}
}

// Execute runs req. Failures are reported in Result.Err; the trip state is
// only meaningful when Err is nil.
func (e *Executor) Execute(ctx context.Context, req rental.Request) Result {
	res := Result{Request: req, State: vehicle.StateMoving}
	log := logger.OrNop(e.Logger).With(
		zap.String("vehicle_id", req.Vehicle.ID),
		zap.String("user", req.User.Name),
		zap.Time("start", req.Time))

	path := vehicle.Path(req.Start, req.End)
	trip := vehicle.Trip{
		Vehicle:       req.Vehicle,
		Path:          path,
		Start:         req.Time,
		Duration:      req.Duration,
		FaultBearing:  req.FaultFlag,
		RechargeDelay: e.RechargeDelay,
		TimeScale:     e.TimeScale,
		Observer:      e.Observer,
		Sleep:         e.Sleep,
		Logger:        log,
	}
	if req.FaultFlag {
		trip.FaultIndex = e.faultIndex(len(path))
	}

	out, err := trip.Drive(ctx)
	if err != nil {
		res.Err = fmt.Errorf("trip of %s: %w", req.Vehicle.ID, err)
		return res
	}
	res.State = out.State
	res.Position = out.LastPosition
	res.Fault = out.Fault

	rec, err := e.Invoices.Write(invoice.Entry{
		Request: req,
		Zone:    e.Map.Classify(path),
		Fault:   out.Fault,
	})
	if err != nil {
		res.Err = fmt.Errorf("invoice for %s: %w", req.Vehicle.ID, err)
		return res
	}
	res.Invoice = rec

	if out.State == vehicle.StateCompleted && e.Observer != nil {
		e.Observer.RentalCompleted(RentalReport{
			VehicleID: req.Vehicle.ID,
			User:      req.User.Name,
			Position:  out.LastPosition,
			Battery:   out.Vehicle.Battery,
			Invoice:   rec.Number,
			Total:     rec.Breakdown.Total,
		})
	}

	log.Info("rental finished",
		zap.String("state", string(out.State)),
		zap.Int("cells", out.CellsVisited),
		zap.Int("charges", out.Charges),
		zap.Int64("invoice", rec.Number),
		zap.Float64("total", rec.Breakdown.Total))
	return res
}

func (e *Executor) faultIndex(pathLen int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return vehicle.FaultIndex(pathLen, e.rng)
}
