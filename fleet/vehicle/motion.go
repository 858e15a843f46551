package vehicle

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// State is a step of the trip state machine
type State string

const (
	StateMoving    State = "moving"
	StateCharging  State = "charging"
	StateCompleted State = "completed"
	StateFaulted   State = "faulted"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFaulted
}

// DefaultRechargeDelay is the extra time a vehicle spends at a charging stop.
const DefaultRechargeDelay = 2 * time.Second

var ErrEmptyPath = errors.New("trip path is empty")

// Observer receives display updates while a trip runs. Implementations must
// be safe for concurrent use; every trip in a batch reports to the same one.
type Observer interface {
	Moved(vehicleID string, at Position, battery int)
	Cleared(at Position)
}

// NopObserver discards all updates
type NopObserver struct{}

func (NopObserver) Moved(string, Position, int) {}
func (NopObserver) Cleared(Position)            {}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep waits on a timer and honours cancellation.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FaultIndex picks the number of processed cells after which a fault-bearing
// trip breaks down, uniformly in [1, pathLen-1]. Single-cell trips break down
// after their only cell.
func FaultIndex(pathLen int, rng *rand.Rand) int {
	if pathLen <= 2 {
		return 1
	}
	if rng == nil {
		return rand.Intn(pathLen-1) + 1
	}
	return rng.Intn(pathLen-1) + 1
}

// Trip drives one vehicle copy along a path.
type Trip struct {
	Vehicle  Vehicle
	Path     []Position
	Start    time.Time
	Duration float64 // seconds

	// FaultBearing enables the breakdown at FaultIndex. Vehicles that carry
	// fault data on trips that are not fault-bearing never break down.
	FaultBearing bool
	FaultIndex   int

	RechargeDelay time.Duration
	// TimeScale multiplies every pause. Zero disables pacing.
	TimeScale     float64

	Observer Observer
	Sleep    Sleeper
	Logger   *zap.Logger
}

// Outcome is the terminal result of a trip.
type Outcome struct {
	State        State         `json:"state"`
	Vehicle      Vehicle       `json:"vehicle"`
	CellBudget   time.Duration `json:"cell_budget"`
	CellsVisited int           `json:"cells_visited"`
	Charges      int           `json:"charges"`
	LastPosition Position      `json:"last_position"`
	Fault        *Fault        `json:"fault,omitempty"`
}

// Drive runs the trip to a terminal state. Every cell is reported to the
// observer, paced, drained, and checked for a breakdown in that order, so a
// charging stop on the breakdown cell completes before the fault fires.
// A cancelled context stops the trip with ctx.Err().
func (t *Trip) Drive(ctx context.Context) (Outcome, error) {
	observer := t.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	sleep := t.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}
	log := t.Logger
	if log == nil {
		log = zap.NewNop()
	}
	delay := t.RechargeDelay
	if delay == 0 {
		delay = DefaultRechargeDelay
	}

	v := t.Vehicle.Copy()
	out := Outcome{State: StateMoving}

	budget, ok := CellBudget(t.Duration, t.Path)
	if !ok {
		log.Warn("empty trip path, using zero cell budget", zap.String("vehicle_id", v.ID))
		out.Vehicle = v
		return out, ErrEmptyPath
	}
	out.CellBudget = budget

	faultIndex := t.FaultIndex
	if t.FaultBearing && faultIndex <= 0 {
		faultIndex = FaultIndex(len(t.Path), nil)
	}

	for i, cell := range t.Path {
		observer.Moved(v.ID, cell, v.Battery)
		out.LastPosition = cell
		out.CellsVisited++
		v.Advance()

		pause := budget
		if v.NeedsCharge() {
			out.State = StateCharging
			log.Debug("vehicle stopped to charge",
				zap.String("vehicle_id", v.ID), zap.Int("battery", v.Battery))
			pause += delay
		}
		if err := sleep(ctx, t.scale(pause)); err != nil {
			out.Vehicle = v
			return out, err
		}
		if out.State == StateCharging {
			v.Recharge()
			out.Charges++
			out.State = StateMoving
		}

		v.Drain()

		if t.FaultBearing && i+1 == faultIndex {
			fault := v.Fault
			if fault == nil {
				fault = &Fault{Description: DefaultFaultDescription}
			}
			fault.Time = t.Start.Add(time.Duration(i+1) * budget)
			v.Fault = fault
			out.Fault = fault
			out.State = StateFaulted
			observer.Cleared(cell)
			log.Info("vehicle broke down",
				zap.String("vehicle_id", v.ID), zap.Stringer("position", cell))
			break
		}
		observer.Cleared(cell)
	}

	if out.State != StateFaulted {
		out.State = StateCompleted
		v.Fault = nil
	}
	out.Vehicle = v
	return out, nil
}

func (t *Trip) scale(d time.Duration) time.Duration {
	if t.TimeScale <= 0 {
		return 0
	}
	return time.Duration(float64(d) * t.TimeScale)
}
