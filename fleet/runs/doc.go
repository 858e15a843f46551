// Package runs keeps track of simulation runs started through the service.
//
// The runs package implements:
//   - Thread-safe run storage keyed by run ID
//   - Run status transitions from pending to a terminal status
//   - Cancellation of in-flight runs
//   - JSON persistence of run records next to their output
//
// Every run owns a directory under the runs root holding its invoices, its
// reports and a run.json record. Records survive restarts; runs that were
// still active when the process stopped are marked failed on reload.
//
// Usage:
//
//	store, _ := runs.NewFilePersistence("out/runs")
//	manager := runs.NewManager(store, logger)
//	if err := manager.LoadPersisted(); err != nil {
//		log.Fatal(err)
//	}
//
//	run, err := manager.Create("default")
//	ctx, cancel := context.WithCancel(context.Background())
//	manager.SetCancel(run.ID, cancel)
package runs
