package invoice

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wricardo/fleet-rental-sim/fleet/pricing"
	"github.com/wricardo/fleet-rental-sim/fleet/rental"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

const (
	banner    = "======================================================"
	separator = "------------------------------------------------------"
)

// Entry is a finished rental handed to the writer
type Entry struct {
	Request rental.Request
	Zone    vehicle.Zone
	Fault   *vehicle.Fault
}

// Writer prices finished rentals and writes one file per invoice into a
// directory. Invoice numbers come from a counter owned by the writer; they
// increase monotonically and are never reused. Writer is safe for
// concurrent use.
type Writer struct {
	dir     string
	rates   pricing.Rates
	counter atomic.Int64
	log     *zap.Logger
}

// NewWriter creates the invoice directory if needed
func NewWriter(dir string, rates pricing.Rates, log *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create invoices directory: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{dir: dir, rates: rates, log: log}, nil
}

// Dir returns the directory invoices are written to
func (w *Writer) Dir() string {
	return w.dir
}

// Issued returns how many invoice numbers have been handed out
func (w *Writer) Issued() int64 {
	return w.counter.Load()
}

// Write prices e and persists its invoice.
func (w *Writer) Write(e Entry) (*Record, error) {
	req := e.Request
	breakdown, err := w.rates.Compute(pricing.Input{
		Kind:      req.Vehicle.Kind,
		Duration:  req.Duration,
		Zone:      e.Zone,
		Faulted:   e.Fault != nil,
		Discount:  req.User.HasDiscount(),
		Promotion: req.Promotion,
	})
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Number:       w.counter.Add(1),
		User:         req.User,
		VehicleID:    req.Vehicle.ID,
		VehicleKind:  req.Vehicle.Kind,
		VehicleModel: req.Vehicle.Model,
		Documents:    req.Vehicle.RequiresDocuments(),
		Start:        req.Start,
		End:          req.End,
		Zone:         e.Zone,
		Duration:     req.Duration,
		Rates:        w.rates,
		Breakdown:    breakdown,
		Discounted:   req.User.HasDiscount(),
		Promoted:     req.Promotion,
		IssuedAt:     req.Time,
	}
	if e.Fault != nil {
		rec.Fault = strings.TrimSpace(e.Fault.Description)
		if rec.Fault == "" {
			rec.Fault = vehicle.DefaultFaultDescription
		}
	}
	rec.File = FileName(rec.User.Name, rec.IssuedAt.Format(fileTimeLayout), rec.Number)

	path := filepath.Join(w.dir, rec.File)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice file: %w", err)
	}
	defer f.Close()

	if err := Render(f, rec); err != nil {
		return nil, fmt.Errorf("failed to write invoice %d: %w", rec.Number, err)
	}

	w.log.Debug("invoice written",
		zap.Int64("invoice", rec.Number),
		zap.String("file", rec.File),
		zap.Float64("total", rec.Breakdown.Total))
	return rec, nil
}

// FileName builds "<dd.MM.yyyy_HH-mm>_<user><number>.txt".
func FileName(user, stamp string, number int64) string {
	return fmt.Sprintf("%s_%s%d.txt", stamp, sanitize(user), number)
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Render writes the textual form of rec.
func Render(out io.Writer, rec *Record) error {
	w := bufio.NewWriter(out)
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(w, format+"\n", args...)
	}

	b := rec.Breakdown
	line(banner)
	line("              e-mobility rental company")
	line(separator)
	line("Format: %s", FormatVersion)
	line("                     INVOICE")
	line("User: %s", rec.User.Name)
	if rec.Documents {
		line("%s: %s", rec.User.Document.Label(), rec.User.DocumentNumber)
		line("Driver's license number: %s", rec.User.LicenseNumber)
	}
	line(separator)
	line("Rented vehicle: %s %s,%s", rec.VehicleKind.Title(), rec.VehicleModel, rec.VehicleID)
	line("Start location: %s", rec.Start)
	line("Destination: %s", rec.End)
	line("City zone: %s", rec.Zone.Label())
	line("Ride duration [s]: %s", num(rec.Duration))
	line(separator)
	line("Base price: %s * %s = %s", num(b.Unit), num(rec.Duration), num(b.Base))
	if rec.Zone == vehicle.ZoneWide {
		line("Rate for wide area of the city: %s", num(b.ZoneFactor))
	} else {
		line("Rate for narrow area of the city: %s", num(b.ZoneFactor))
	}
	line("Amount: %s EUR", num(b.Amount))
	if rec.Discounted {
		line("Discount: %s%% (%s EUR)", num(rec.Rates.DiscountPct), num(b.Discount))
	}
	if rec.Promoted {
		line("Promotion: %s%% (%s EUR)", num(rec.Rates.PromotionPct), num(b.Promotion))
	}
	line(separator)
	line("Total price: %s EUR", num(b.Total))
	line("Date and time: %s", rec.IssuedAt.Format(recordTimeLayout))
	line("Invoice number: %d", rec.Number)
	if rec.Fault != "" {
		line(separator)
		line("Fault: %s", rec.Fault)
		line("We apologize for the inconvenience.")
	}
	line(banner)
	line("           *THANK YOU FOR USING OUR SERVICE*")
	line(separator)

	return w.Flush()
}
