package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wricardo/fleet-rental-sim/fleet/config"
	"github.com/wricardo/fleet-rental-sim/fleet/loader"
	"github.com/wricardo/fleet-rental-sim/fleet/simulation"
	"github.com/wricardo/fleet-rental-sim/logger"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Replay a rentals file without a server and write invoices and reports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "vehicles",
				Usage: "Vehicles CSV (defaults to the profile's vehicles_file)",
			},
			&cli.StringFlag{
				Name:  "rentals",
				Usage: "Rentals CSV (defaults to the profile's rentals_file)",
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "Output directory holding invoices/ and reports/ (defaults to the profile's paths)",
			},
			&cli.BoolFlag{
				Name:  "overwrite",
				Usage: "Clear an existing invoices directory instead of refusing to run",
			},
			&cli.StringFlag{
				Name:  "time-scale",
				Usage: "Multiplier for recharge and batch pauses; 0 disables pacing",
			},
			&cli.IntFlag{
				Name:  "seed",
				Usage: "Random seed for users and faults (0 picks one from the clock)",
			},
		},
		Action: runAction,
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Rebuild summary, daily and top-vehicle reports from an invoice directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "invoices",
				Usage: "Invoice directory (defaults to the profile's invoices_dir)",
			},
			&cli.StringFlag{
				Name:  "reports",
				Usage: "Directory the reports are written to (defaults to the profile's reports_dir)",
			},
			&cli.StringFlag{
				Name:  "vehicles",
				Usage: "Vehicles CSV used to price maintenance and repairs",
			},
		},
		Action: reportAction,
	}
}

// loadProfile reads the selected profile. A missing config directory is
// only tolerated for the default profile, which then uses built-in values.
func loadProfile(cmd *cli.Command) (*config.Config, error) {
	name := cmd.String("profile")
	manager, err := config.NewManager(cmd.String("config-dir"))
	if err != nil {
		if name == "" || name == config.DefaultName {
			return config.Default(), nil
		}
		return nil, err
	}
	return manager.LoadConfig(name)
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	log := logger.Get()

	base, err := loadProfile(cmd)
	if err != nil {
		return err
	}
	cfg := *base

	if raw := cmd.String("time-scale"); raw != "" {
		scale, err := cast.ToFloat64E(raw)
		if err != nil || scale < 0 {
			return fmt.Errorf("invalid --time-scale %q", raw)
		}
		cfg.Simulation.TimeScale = scale
	}
	if seed := int64(cmd.Int("seed")); seed != 0 {
		cfg.Simulation.Seed = seed
	}

	paths := config.PathsConfig{
		VehiclesFile: cmd.String("vehicles"),
		RentalsFile:  cmd.String("rentals"),
	}
	if out := cmd.String("out"); out != "" {
		paths.InvoicesDir = filepath.Join(out, "invoices")
		paths.ReportsDir = filepath.Join(out, "reports")
	}

	pipeline := &simulation.Pipeline{
		Config:    &cfg,
		Observer:  &progressObserver{out: os.Stdout},
		Logger:    log,
		Overwrite: cmd.Bool("overwrite"),
	}

	output, err := pipeline.Run(ctx, paths)
	if output != nil {
		printOutput(os.Stdout, output)
	}
	if errors.Is(err, context.Canceled) {
		log.Warn("run interrupted, reports cover the invoices written so far")
		return nil
	}
	return err
}

func reportAction(ctx context.Context, cmd *cli.Command) error {
	log := logger.Get()

	cfg, err := loadProfile(cmd)
	if err != nil {
		return err
	}

	invoicesDir := cmd.String("invoices")
	if invoicesDir == "" {
		invoicesDir = cfg.Paths.InvoicesDir
	}
	reportsDir := cmd.String("reports")
	if reportsDir == "" {
		reportsDir = cfg.Paths.ReportsDir
	}
	vehiclesFile := cmd.String("vehicles")
	if vehiclesFile == "" {
		vehiclesFile = cfg.Paths.VehiclesFile
	}

	catalog, _, err := loader.New(cfg.Map, cfg.Faults, nil, log.Named("loader")).LoadVehiclesFile(vehiclesFile)
	if err != nil {
		return err
	}

	reports, err := simulation.BuildReports(invoicesDir, reportsDir, catalog, cfg.Costs, log.Named("report"))
	if err != nil {
		return err
	}
	printReports(os.Stdout, reports)
	return nil
}

// progressObserver prints one line per finished batch
type progressObserver struct {
	simulation.NopObserver
	out io.Writer
}

func (p *progressObserver) BatchCompleted(r simulation.BatchReport) {
	fmt.Fprintf(p.out, "batch %d at %s: %d rentals, %d completed, %d faults, %d failed\n",
		r.Index+1, r.Time.Format("02.01.2006 15:04"), r.Size, r.Completed, r.Faults, r.Failed)
}

func printOutput(w io.Writer, out *simulation.Output) {
	fmt.Fprintf(w, "\nRentals: %d (skipped rows: %d), invoices issued: %d\n", out.Requests, len(out.Skipped), out.Invoices)
	for _, skip := range out.Skipped {
		fmt.Fprintf(w, "  skipped line %d: %v\n", skip.Line, skip.Reason)
	}
	if s := out.Summary; s != nil {
		fmt.Fprintf(w, "Batches: %d\n", s.Batches)
		fmt.Fprintf(w, "Completed: %d, Faulted: %d, Failed: %d\n", s.Completed, s.Faulted, s.Failed)
		for _, e := range multierr.Errors(s.Errors) {
			fmt.Fprintf(w, "  error: %v\n", e)
		}
	}
	if len(out.Faults) > 0 {
		fmt.Fprintf(w, "\nFaults:\n")
		for _, f := range out.Faults {
			fmt.Fprintf(w, "  %s %s (%s), user %s: %s at %s\n",
				f.Kind.Title(), f.VehicleID, f.Model, f.User, f.Description, f.Position)
		}
	}
	if out.Reports != nil {
		printReports(w, out.Reports)
	}
}

func printReports(w io.Writer, r *simulation.Reports) {
	fmt.Fprintf(w, "\nSummary report (%d invoices):\n%s", len(r.Rows), r.Summary.Text())
	if r.Unreadable != nil {
		for _, e := range multierr.Errors(r.Unreadable) {
			logger.Warn("invoice excluded from reports", zap.Error(e))
		}
	}
	if len(r.Files) > 0 {
		fmt.Fprintf(w, "\nWritten:\n")
		for _, f := range r.Files {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
}
