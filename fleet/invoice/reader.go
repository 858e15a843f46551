package invoice

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

// Reader reconstructs analytics rows from invoice files.
type Reader struct {
	// Location interprets the record timestamps. Defaults to time.Local.
	Location *time.Location
	Logger   *zap.Logger
}

// NewReader creates a reader using the local time zone
func NewReader(log *zap.Logger) *Reader {
	return &Reader{Location: time.Local, Logger: log}
}

// ReadDir parses every *.txt file in dir in name order. Malformed files are
// excluded from the rows; their errors are combined into the returned error
// while the rest of the directory is still read. A missing directory yields
// no rows and no error.
func (r *Reader) ReadDir(dir string) ([]Row, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read invoices directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var (
		rows []Row
		errs error
	)
	for _, name := range names {
		row, err := r.ReadFile(filepath.Join(dir, name))
		if err != nil {
			r.logger().Warn("skipping invoice", zap.String("file", name), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, errs
}

// ReadFile parses a single invoice file
func (r *Reader) ReadFile(path string) (Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return Row{}, fmt.Errorf("failed to open invoice: %w", err)
	}
	defer f.Close()

	row, err := r.Parse(f)
	if err != nil {
		return Row{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	row.File = filepath.Base(path)
	return row, nil
}

// Parse reads one record. Lines it does not recognize are skipped, and so
// are optional fields whose value cannot be parsed. A record without a
// parsable total or a vehicle id returns ErrMalformedRecord.
func (r *Reader) Parse(in io.Reader) (Row, error) {
	var (
		row      Row
		hasTotal bool
	)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "Fault:" {
			row.Faulted = true
			continue
		}
		label, value, ok := strings.Cut(text, ": ")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch label {
		case "Total price":
			if v, err := parseAmount(value); err == nil {
				row.Total = v
				hasTotal = true
			}
		case "Rented vehicle":
			if i := strings.LastIndex(value, ","); i >= 0 {
				row.VehicleID = strings.TrimSpace(value[i+1:])
			}
		case "Discount":
			if v, err := parseParenAmount(value); err == nil {
				row.Discount = v
			}
		case "Promotion":
			if v, err := parseParenAmount(value); err == nil {
				row.Promotion = v
			}
		case "City zone":
			if z, ok := vehicle.ParseZoneLabel(value); ok {
				row.Zone = z
			}
		case "Date and time":
			if t, err := time.ParseInLocation(recordTimeLayout, value, r.location()); err == nil {
				row.IssuedAt = t
			}
		case "Invoice number":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				row.Number = n
			}
		case "Fault":
			row.Faulted = true
		}
	}
	if err := scanner.Err(); err != nil {
		return Row{}, fmt.Errorf("failed to read invoice: %w", err)
	}

	if !hasTotal {
		return Row{}, fmt.Errorf("%w: missing total price", ErrMalformedRecord)
	}
	if row.VehicleID == "" {
		return Row{}, fmt.Errorf("%w: missing vehicle id", ErrMalformedRecord)
	}
	return row, nil
}

func (r *Reader) location() *time.Location {
	if r.Location == nil {
		return time.Local
	}
	return r.Location
}

func (r *Reader) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// parseAmount reads "12.5 EUR".
func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "EUR")), 64)
}

// parseParenAmount reads the amount of "10% (1.25 EUR)".
func parseParenAmount(s string) (float64, error) {
	open := strings.Index(s, "(")
	end := strings.LastIndex(s, ")")
	if open < 0 || end <= open {
		return 0, fmt.Errorf("no amount in %q", s)
	}
	return parseAmount(s[open+1 : end])
}
