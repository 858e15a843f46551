// Package loader reads the vehicle catalog and the rental schedule from
// comma-separated files. Bad rows are skipped and reported; only I/O
// failures are fatal.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/fleet-rental-sim/fleet/rental"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

var (
	ErrColumnCount      = errors.New("incorrect number of columns")
	ErrBadRow           = errors.New("data parsing error")
	ErrBadCoordinate    = errors.New("invalid coordinates")
	ErrUnknownVehicle   = errors.New("vehicle not found")
	ErrDuplicateVehicle = errors.New("duplicate vehicle id")
	ErrDoubleBooking    = errors.New("vehicle is already rented at this time")
)

const (
	purchaseDateLayout = "2.1.2006."
	rentalTimeLayout   = "2.1.2006 15:04"

	vehicleColumns = 9
	rentalColumns  = 8
)

// Skip describes a rejected input row
type Skip struct {
	Line   int    `json:"line"`
	Reason error  `json:"-"`
	Raw    string `json:"raw"`
}

func (s Skip) Error() string {
	return fmt.Sprintf("line %d: %v", s.Line, s.Reason)
}

func (s Skip) Unwrap() error {
	return s.Reason
}

// Loader parses input files against a city map
type Loader struct {
	Map      vehicle.CityMap
	Faults   []string
	Location *time.Location
	Rng      *rand.Rand
	Logger   *zap.Logger
}

// New creates a loader. A nil rng uses a time-seeded source.
func New(cityMap vehicle.CityMap, faults []string, rng *rand.Rand, log *zap.Logger) *Loader {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{Map: cityMap, Faults: faults, Location: time.Local, Rng: rng, Logger: log}
}

// LoadVehiclesFile opens path and calls LoadVehicles
func (l *Loader) LoadVehiclesFile(path string) (map[string]vehicle.Vehicle, []Skip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open vehicles file: %w", err)
	}
	defer f.Close()
	return l.LoadVehicles(f)
}

// LoadVehicles reads "id,producer,model,purchase date,price,range,max speed,
// description,type" rows after a header line.
func (l *Loader) LoadVehicles(r io.Reader) (map[string]vehicle.Vehicle, []Skip, error) {
	catalog := make(map[string]vehicle.Vehicle)
	var skips []Skip

	err := l.scan(r, func(line int, rec []string) error {
		if len(rec) < vehicleColumns {
			return ErrColumnCount
		}
		field := func(i int) string { return strings.TrimSpace(rec[i]) }

		id := field(0)
		if id == "" {
			return fmt.Errorf("%w: empty id", ErrBadRow)
		}
		if _, exists := catalog[id]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateVehicle, id)
		}
		price, err := strconv.ParseFloat(field(4), 64)
		if err != nil {
			return fmt.Errorf("%w: purchase price %q", ErrBadRow, field(4))
		}
		kind, err := vehicle.ParseKind(field(8))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadRow, err)
		}

		v := vehicle.Vehicle{
			ID:            id,
			Kind:          kind,
			Producer:      field(1),
			Model:         field(2),
			PurchasePrice: price,
			Battery:       vehicle.FullBattery,
		}
		switch kind {
		case vehicle.Car:
			if d, err := time.ParseInLocation(purchaseDateLayout, field(3), l.location()); err == nil {
				v.PurchaseDate = d
			}
			v.Description = field(7)
			if v.Description == "" {
				v.Description = "No description available"
			}
			v.Passengers = l.Rng.Intn(vehicle.MaxCarPassengers) + 1
		case vehicle.Bike:
			v.RangePerCharge = l.optionalNumber(line, "range", field(5))
		case vehicle.Scooter:
			v.MaxSpeed = l.optionalNumber(line, "max speed", field(6))
		}
		catalog[id] = v
		return nil
	}, &skips)

	return catalog, skips, err
}

// LoadRentalsFile opens path and calls LoadRentals
func (l *Loader) LoadRentalsFile(path string, catalog map[string]vehicle.Vehicle, users *rental.Registry) ([]rental.Request, []Skip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open rentals file: %w", err)
	}
	defer f.Close()
	return l.LoadRentals(f, catalog, users)
}

// LoadRentals reads "date time,user,vehicle id,start,end,duration,fault,
// promotion" rows after a header line. Coordinates are quoted "x,y" pairs.
// Every accepted request owns a copy of its catalog vehicle, with a latent
// fault attached when the row is fault-flagged. The result is sorted by time
// and carries each user's rental count before that rental.
func (l *Loader) LoadRentals(r io.Reader, catalog map[string]vehicle.Vehicle, users *rental.Registry) ([]rental.Request, []Skip, error) {
	if users == nil {
		users = rental.NewRegistry(l.Rng)
	}
	var (
		reqs   []rental.Request
		skips  []Skip
		booked = make(map[string]bool)
	)

	err := l.scan(r, func(line int, rec []string) error {
		if len(rec) != rentalColumns {
			return ErrColumnCount
		}
		field := func(i int) string { return strings.TrimSpace(rec[i]) }

		at, err := time.ParseInLocation(rentalTimeLayout, field(0), l.location())
		if err != nil {
			return fmt.Errorf("%w: date %q", ErrBadRow, field(0))
		}
		name := field(1)
		if name == "" {
			return fmt.Errorf("%w: empty user", ErrBadRow)
		}
		start, err := l.parsePosition(field(3))
		if err != nil {
			return err
		}
		end, err := l.parsePosition(field(4))
		if err != nil {
			return err
		}
		duration, err := strconv.ParseFloat(field(5), 64)
		if err != nil || duration <= 0 {
			return fmt.Errorf("%w: duration %q", ErrBadRow, field(5))
		}

		id := field(2)
		v, ok := catalog[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownVehicle, id)
		}
		key := at.Format(time.RFC3339) + "/" + id
		if booked[key] {
			return fmt.Errorf("%w: %s", ErrDoubleBooking, id)
		}

		req := rental.Request{
			Time:      at,
			User:      users.Get(name),
			Vehicle:   v.Copy(),
			Start:     start,
			End:       end,
			Duration:  duration,
			FaultFlag: yes(field(6)),
			Promotion: yes(field(7)),
			Line:      line,
		}
		if req.FaultFlag {
			req.Vehicle.Fault = vehicle.NewLatentFault(l.Faults, l.Rng)
		}
		booked[key] = true
		reqs = append(reqs, req)
		return nil
	}, &skips)
	if err != nil {
		return nil, skips, err
	}

	rental.SortByTime(reqs)
	rental.AssignRentalCounts(reqs, users)
	return reqs, skips, nil
}

// scan feeds every data row to fn, turning row errors into skips.
func (l *Loader) scan(r io.Reader, fn func(line int, rec []string) error, skips *[]Skip) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				l.skip(skips, Skip{Line: parseErr.Line, Reason: fmt.Errorf("%w: %v", ErrBadRow, parseErr.Err)})
				continue
			}
			return fmt.Errorf("failed to read input: %w", err)
		}
		if header {
			header = false
			continue
		}
		line, _ := cr.FieldPos(0)
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if err := fn(line, rec); err != nil {
			l.skip(skips, Skip{Line: line, Reason: err, Raw: strings.Join(rec, ",")})
		}
	}
}

func (l *Loader) skip(skips *[]Skip, s Skip) {
	l.Logger.Warn("skipped input line",
		zap.Int("line", s.Line), zap.String("raw", s.Raw), zap.Error(s.Reason))
	*skips = append(*skips, s)
}

func (l *Loader) optionalNumber(line int, name, raw string) float64 {
	if raw == "" {
		l.Logger.Debug(name+" not specified, using 0", zap.Int("line", line))
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		l.Logger.Warn("invalid "+name+", using 0", zap.Int("line", line), zap.String("value", raw))
		return 0
	}
	return v
}

func (l *Loader) parsePosition(raw string) (vehicle.Position, error) {
	xs, ys, ok := strings.Cut(strings.Trim(raw, `" `), ",")
	if !ok {
		return vehicle.Position{}, fmt.Errorf("%w: %q", ErrBadCoordinate, raw)
	}
	x, errX := strconv.Atoi(strings.TrimSpace(xs))
	y, errY := strconv.Atoi(strings.TrimSpace(ys))
	p := vehicle.Position{X: x, Y: y}
	if errX != nil || errY != nil || !l.Map.Contains(p) {
		return vehicle.Position{}, fmt.Errorf("%w: %q", ErrBadCoordinate, raw)
	}
	return p, nil
}

func (l *Loader) location() *time.Location {
	if l.Location == nil {
		return time.Local
	}
	return l.Location
}

func yes(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "yes") || strings.EqualFold(strings.TrimSpace(s), "da")
}
