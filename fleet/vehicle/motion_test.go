package vehicle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu      sync.Mutex
	moved   []Position
	battery []int
	cleared []Position
}

func (o *recordingObserver) Moved(_ string, at Position, battery int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.moved = append(o.moved, at)
	o.battery = append(o.battery, battery)
}

func (o *recordingObserver) Cleared(at Position) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleared = append(o.cleared, at)
}

type recordingSleeper struct {
	pauses []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.pauses = append(s.pauses, d)
	return ctx.Err()
}

var tripStart = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func TestTripCompletes(t *testing.T) {
	obs := &recordingObserver{}
	sl := &recordingSleeper{}
	trip := Trip{
		Vehicle:   Vehicle{ID: "S1", Kind: Scooter, Battery: 100},
		Path:      Path(Position{0, 0}, Position{3, 2}),
		Start:     tripStart,
		Duration:  6,
		TimeScale: 1,
		Observer:  obs,
		Sleep:     sl.sleep,
	}

	out, err := trip.Drive(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, out.State)
	assert.Equal(t, 6, out.CellsVisited)
	assert.Equal(t, 70, out.Vehicle.Battery)
	assert.Nil(t, out.Fault)
	assert.Equal(t, time.Second, out.CellBudget)
	assert.Equal(t, []int{100, 95, 90, 85, 80, 75}, obs.battery)
	assert.Equal(t, obs.moved, obs.cleared)
	for _, p := range sl.pauses {
		assert.Equal(t, time.Second, p)
	}
}

func TestTripFaultHaltsMotion(t *testing.T) {
	obs := &recordingObserver{}
	trip := Trip{
		Vehicle:      Vehicle{ID: "C1", Kind: Car, Battery: 100, Fault: &Fault{Description: "engine failure"}},
		Path:         Path(Position{0, 0}, Position{3, 2}),
		Start:        tripStart,
		Duration:     6,
		FaultBearing: true,
		FaultIndex:   3,
		Observer:     obs,
	}

	out, err := trip.Drive(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateFaulted, out.State)
	assert.Equal(t, 3, out.CellsVisited)
	require.NotNil(t, out.Fault)
	assert.Equal(t, "engine failure", out.Fault.Description)
	assert.Equal(t, tripStart.Add(3*time.Second), out.Fault.Time)
	assert.Equal(t, Position{2, 0}, out.LastPosition)
	assert.Len(t, obs.moved, 3)
	assert.Equal(t, Position{2, 0}, obs.cleared[len(obs.cleared)-1])

	// the trip worked on its own copy
	assert.True(t, trip.Vehicle.Fault.Time.IsZero())
}

func TestTripWithoutFaultFlagIgnoresFaultData(t *testing.T) {
	trip := Trip{
		Vehicle:    Vehicle{ID: "B1", Kind: Bike, Battery: 100, Fault: &Fault{Description: "chain"}},
		Path:       Path(Position{1, 1}, Position{1, 4}),
		Duration:   4,
		FaultIndex: 1,
	}

	out, err := trip.Drive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, out.State)
	assert.Nil(t, out.Fault)
	assert.Equal(t, 4, out.Vehicle.DistanceCovered)
}

func TestTripChargesBeforeFaultOnSameCell(t *testing.T) {
	sl := &recordingSleeper{}
	trip := Trip{
		Vehicle:       Vehicle{ID: "S2", Kind: Scooter, Battery: 20},
		Path:          Path(Position{0, 0}, Position{2, 0}),
		Start:         tripStart,
		Duration:      3,
		FaultBearing:  true,
		FaultIndex:    1,
		RechargeDelay: 2 * time.Second,
		TimeScale:     1,
		Sleep:         sl.sleep,
	}

	out, err := trip.Drive(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateFaulted, out.State)
	assert.Equal(t, 1, out.Charges)
	assert.Equal(t, 95, out.Vehicle.Battery)
	require.Len(t, sl.pauses, 1)
	assert.Equal(t, 3*time.Second, sl.pauses[0])
}

func TestTripZeroTimeScaleSkipsPauses(t *testing.T) {
	sl := &recordingSleeper{}
	trip := Trip{
		Vehicle:  Vehicle{ID: "S3", Kind: Scooter, Battery: 100},
		Path:     Path(Position{0, 0}, Position{0, 2}),
		Duration: 300,
		Sleep:    sl.sleep,
	}

	_, err := trip.Drive(context.Background())
	require.NoError(t, err)
	for _, p := range sl.pauses {
		assert.Zero(t, p)
	}
}

func TestTripCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trip := Trip{
		Vehicle:   Vehicle{ID: "C2", Kind: Car, Battery: 100},
		Path:      Path(Position{0, 0}, Position{5, 5}),
		Duration:  100,
		TimeScale: 1,
	}

	out, err := trip.Drive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, out.State.Terminal())
	assert.Equal(t, 1, out.CellsVisited)
}

func TestTripEmptyPath(t *testing.T) {
	trip := Trip{Vehicle: Vehicle{ID: "C3", Kind: Car}}
	_, err := trip.Drive(context.Background())
	assert.ErrorIs(t, err, ErrEmptyPath)
}
