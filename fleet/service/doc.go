// Package service provides the business logic layer of the fleet rental
// simulator.
//
// The service package implements:
//   - Starting simulation runs in the background, one directory per run
//   - Run status, cancellation and waiting
//   - Access to each run's faults, invoices and reports
//   - Profile listing and loading
//
// Core Interfaces:
//
// FleetService is the interface the HTTP, WebSocket and MCP layers talk to.
// RunStore and ConfigManager are the storage dependencies it is built from.
// Broadcaster receives the live events of each run.
//
// Usage:
//
//	configs, _ := config.NewManager("configs")
//	store := runs.NewManager("out/runs", logger)
//	svc := service.NewFleetService(store, configs, hub, logger)
//
//	run, err := svc.StartRun(ctx, service.RunOptions{Config: "default"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	run, err = svc.WaitRun(ctx, run.ID)
package service
