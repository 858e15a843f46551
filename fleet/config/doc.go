// Package config provides simulation profile management.
//
// A profile is a YAML document in the configs directory that supplies every
// scalar the simulator reads at startup:
//   - Unit prices, zone factors, discount and promotion percentages
//   - Maintenance, repair, expense and tax coefficients for reports
//   - City map size and the narrow-zone rectangle
//   - The fault description catalog
//   - Pacing (recharge delay, pause between batches, time scale)
//   - Input files and output directories
//
// Missing values fall back to defaults, then FLEET_* environment variables
// override individual keys, then the result is validated. A profile that
// fails validation is a fatal configuration error.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cfg, err := manager.LoadConfig("default")
//
//	// Or load a single file directly
//	cfg, err = config.Load("configs/default.yaml")
package config
