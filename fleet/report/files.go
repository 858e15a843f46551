package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

const (
	SummaryFileName     = "summary_report.txt"
	TopVehiclesFileName = "top_vehicles.json"
)

// WriteSummary writes summary_report.txt into dir
func WriteSummary(dir string, s *SummaryReport) (string, error) {
	return writeFile(dir, SummaryFileName, []byte(s.Text()))
}

// WriteDaily writes one daily_report_<date>.txt per report into dir
func WriteDaily(dir string, reports []*DailyReport) ([]string, error) {
	paths := make([]string, 0, len(reports))
	for _, d := range reports {
		p, err := writeFile(dir, d.FileName(), []byte(d.Text()))
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// WriteTopVehicles stores the ranking as JSON keyed by kind
func WriteTopVehicles(dir string, top map[vehicle.Kind]Ranked) (string, error) {
	data, err := json.MarshalIndent(top, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal top vehicles: %w", err)
	}
	return writeFile(dir, TopVehiclesFileName, data)
}

// ReadTopVehicles loads a ranking written by WriteTopVehicles
func ReadTopVehicles(dir string) (map[vehicle.Kind]Ranked, error) {
	data, err := os.ReadFile(filepath.Join(dir, TopVehiclesFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read top vehicles: %w", err)
	}
	top := make(map[vehicle.Kind]Ranked)
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("failed to parse top vehicles: %w", err)
	}
	return top, nil
}

func writeFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}
