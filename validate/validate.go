// Command validate provides a small CLI that validates simulation profile
// YAML files in the ../configs directory. It checks:
//   - YAML structure, rejecting keys the simulator does not know
//   - Every rule the simulator enforces when loading a profile (prices,
//     percentages, map bounds, pacing)
//   - Pricing sanity: the wide area factor should not undercut the narrow one
//   - Map coverage: the narrow area should leave some wide cells
//   - Input files referenced by the profile exist
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/fleet-rental-sim/fleet/config"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...interface{}) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single profile. baseDir is the
// directory relative paths inside the profile are resolved against.
func validateConfig(filePath, baseDir string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	// Decode strictly on top of the built-in profile so omitted keys keep
	// their defaults and each rule violation can be listed on its own.
	cfg := config.Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		result.fail("Invalid YAML: %v", err)
		return result
	}

	if err := cfg.Validate(); err != nil {
		for _, e := range multierr.Errors(err) {
			result.fail("%v", e)
		}
		return result
	}

	// The simulator's own loader must accept it too (env overrides included).
	if _, err := config.Parse(data); err != nil {
		result.fail("Rejected by loader: %v", err)
		return result
	}

	result.info("Pricing: car %.2f, bike %.2f, scooter %.2f per second",
		cfg.Pricing.Car, cfg.Pricing.Bike, cfg.Pricing.Scooter)
	if cfg.Pricing.WideFactor < cfg.Pricing.NarrowFactor {
		result.fail("Wide area factor %.2f is lower than narrow area factor %.2f",
			cfg.Pricing.WideFactor, cfg.Pricing.NarrowFactor)
	}
	if cfg.Pricing.DiscountPct+cfg.Pricing.PromotionPct > 100 {
		result.fail("Discount %.0f%% and promotion %.0f%% together exceed 100%%",
			cfg.Pricing.DiscountPct, cfg.Pricing.PromotionPct)
	}

	narrowWidth := cfg.Map.NarrowMax - cfg.Map.NarrowMin + 1
	if narrowWidth >= cfg.Map.Size {
		result.fail("Narrow area [%d,%d] covers the whole %dx%d map",
			cfg.Map.NarrowMin, cfg.Map.NarrowMax, cfg.Map.Size, cfg.Map.Size)
	} else {
		result.info("Map: %dx%d, narrow area %d cells", cfg.Map.Size, cfg.Map.Size, narrowWidth*narrowWidth)
	}

	result.info("Fault descriptions: %d", len(cfg.Faults))

	for _, f := range []struct{ name, path string }{
		{"vehicles_file", cfg.Paths.VehiclesFile},
		{"rentals_file", cfg.Paths.RentalsFile},
	} {
		path := f.path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		if _, err := os.Stat(path); err != nil {
			result.fail("%s %s not found", f.name, f.path)
		} else {
			result.info("Input: %s", f.path)
		}
	}

	return result
}

// profileFiles lists *.yaml and *.yml files of dir in name order.
func profileFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// main scans ../configs for profiles and validates each one, printing a
// concise report and exiting with non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	files, err := profileFiles(configDir)
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file, "..")

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
