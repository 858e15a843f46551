// Command analyze prints quick, human-readable heuristics about a rentals
// schedule before it is simulated. It summarizes batch sizes, the zone each
// trip is priced in, expected charging stops, an upper bound of the revenue
// (assuming no breakdowns), and vehicles that are never rented.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/fleet-rental-sim/fleet/config"
	"github.com/wricardo/fleet-rental-sim/fleet/loader"
	"github.com/wricardo/fleet-rental-sim/fleet/pricing"
	"github.com/wricardo/fleet-rental-sim/fleet/rental"
	"github.com/wricardo/fleet-rental-sim/fleet/simulation"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

// TripAnalysis is the dry-run outcome of one rental.
type TripAnalysis struct {
	Line      int
	VehicleID string
	Kind      vehicle.Kind
	User      string
	Cells     int
	Zone      vehicle.Zone
	Charges   int
	Estimate  float64
	FaultFlag bool
}

// BatchAnalysis describes one group of concurrent rentals.
type BatchAnalysis struct {
	Index int
	Size  int
	Trips []TripAnalysis
}

// Analysis is the whole report for a schedule.
type Analysis struct {
	Vehicles  int
	Rentals   int
	Skipped   []loader.Skip
	Batches   []BatchAnalysis
	MaxBatch  int
	Zones     map[vehicle.Zone]int
	Faults    int
	Estimate  float64
	NeverUsed []string
}

func main() {
	cmd := &cli.Command{
		Name:  "analyze",
		Usage: "Dry-run a rentals schedule and print heuristics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "vehicles", Value: "data/vehicles.csv", Usage: "Vehicles CSV"},
			&cli.StringFlag{Name: "rentals", Value: "data/rentals.csv", Usage: "Rentals CSV"},
			&cli.StringFlag{Name: "config", Usage: "Profile YAML file (built-in defaults when empty)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Default()
			if path := cmd.String("config"); path != "" {
				loaded, err := config.Load(path)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			a, err := analyzeFiles(ctx, cfg, cmd.String("vehicles"), cmd.String("rentals"))
			if err != nil {
				return err
			}
			printAnalysis(os.Stdout, a)
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// analyzeFiles loads both CSV files with the simulator's loader and
// analyzes the resulting schedule.
func analyzeFiles(ctx context.Context, cfg *config.Config, vehiclesFile, rentalsFile string) (*Analysis, error) {
	ld := loader.New(cfg.Map, cfg.Faults, nil, zap.NewNop())

	catalog, vehicleSkips, err := ld.LoadVehiclesFile(vehiclesFile)
	if err != nil {
		return nil, err
	}
	requests, rentalSkips, err := ld.LoadRentalsFile(rentalsFile, catalog, rental.NewRegistry(nil))
	if err != nil {
		return nil, err
	}

	a, err := analyze(ctx, cfg, catalog, requests)
	if err != nil {
		return nil, err
	}
	a.Skipped = append(vehicleSkips, rentalSkips...)
	return a, nil
}

// analyze drives every trip without pacing and without breakdowns to count
// charging stops, and prices it as if it completed.
func analyze(ctx context.Context, cfg *config.Config, catalog map[string]vehicle.Vehicle, requests []rental.Request) (*Analysis, error) {
	a := &Analysis{
		Vehicles: len(catalog),
		Rentals:  len(requests),
		Zones:    make(map[vehicle.Zone]int),
	}

	used := make(map[string]bool)
	for _, batch := range simulation.Group(requests) {
		ba := BatchAnalysis{Index: batch.Index, Size: len(batch.Requests)}
		if ba.Size > a.MaxBatch {
			a.MaxBatch = ba.Size
		}

		for _, req := range batch.Requests {
			used[req.Vehicle.ID] = true

			path := vehicle.Path(req.Start, req.End)
			zone := cfg.Map.Classify(path)
			trip := &vehicle.Trip{
				Vehicle:  req.Vehicle,
				Path:     path,
				Start:    req.Time,
				Duration: req.Duration,
			}
			out, err := trip.Drive(ctx)
			if err != nil && !errors.Is(err, vehicle.ErrEmptyPath) {
				return nil, err
			}

			price, err := cfg.Pricing.Compute(pricingInput(req, zone))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", req.Line, err)
			}

			ba.Trips = append(ba.Trips, TripAnalysis{
				Line:      req.Line,
				VehicleID: req.Vehicle.ID,
				Kind:      req.Vehicle.Kind,
				User:      req.User.Name,
				Cells:     len(path),
				Zone:      zone,
				Charges:   out.Charges,
				Estimate:  price.Total,
				FaultFlag: req.FaultFlag,
			})
			a.Zones[zone]++
			a.Estimate += price.Total
			if req.FaultFlag {
				a.Faults++
			}
		}
		a.Batches = append(a.Batches, ba)
	}

	for id := range catalog {
		if !used[id] {
			a.NeverUsed = append(a.NeverUsed, id)
		}
	}
	sort.Strings(a.NeverUsed)
	return a, nil
}

func pricingInput(req rental.Request, zone vehicle.Zone) pricing.Input {
	return pricing.Input{
		Kind:      req.Vehicle.Kind,
		Duration:  req.Duration,
		Zone:      zone,
		Discount:  req.User.HasDiscount(),
		Promotion: req.Promotion,
	}
}

func printAnalysis(w io.Writer, a *Analysis) {
	fmt.Fprintf(w, "Vehicles: %d\n", a.Vehicles)
	fmt.Fprintf(w, "Rentals: %d (skipped rows: %d)\n", a.Rentals, len(a.Skipped))
	for _, s := range a.Skipped {
		fmt.Fprintf(w, "  line %d: %v\n", s.Line, s.Reason)
	}
	fmt.Fprintf(w, "Batches: %d (largest: %d concurrent rentals)\n", len(a.Batches), a.MaxBatch)
	fmt.Fprintf(w, "Zones: %d wide, %d narrow\n", a.Zones[vehicle.ZoneWide], a.Zones[vehicle.ZoneNarrow])
	fmt.Fprintf(w, "Fault-bearing rentals: %d\n", a.Faults)
	fmt.Fprintf(w, "Revenue if nothing breaks down: %.2f EUR\n", a.Estimate)

	for _, b := range a.Batches {
		fmt.Fprintf(w, "\n=== Batch %d (%d rentals) ===\n", b.Index+1, b.Size)
		for _, t := range b.Trips {
			fault := ""
			if t.FaultFlag {
				fault = " [fault]"
			}
			fmt.Fprintf(w, "  %-8s %-7s %-10s %2d cells, %s, %d charges, %.2f EUR%s\n",
				t.VehicleID, t.Kind, t.User, t.Cells, t.Zone, t.Charges, t.Estimate, fault)
		}
	}

	if len(a.NeverUsed) > 0 {
		fmt.Fprintf(w, "\nVehicles never rented: %v\n", a.NeverUsed)
	}
}
