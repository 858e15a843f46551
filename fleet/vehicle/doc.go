// Package vehicle models the rental fleet and drives a single vehicle across
// the city grid.
//
// The package provides:
//   - The Vehicle value type for cars, bikes and scooters
//   - Latent faults drawn from a configured description catalog
//   - Manhattan path construction and per-cell time budgets
//   - Wide/narrow city zone classification
//   - Battery drain and recharge rules
//   - Trip, the Moving/Charging/Completed/Faulted state machine
//
// Vehicles are plain values. A rental works on its own copy obtained with
// Copy, so concurrent trips never share battery or fault state, and the
// catalog original stays a read-only reference.
//
// Usage:
//
//	trip := vehicle.Trip{
//		Vehicle:  v.Copy(),
//		Path:     vehicle.Path(start, end),
//		Start:    rentalTime,
//		Duration: 30,
//		Observer: observer,
//	}
//	outcome, err := trip.Drive(ctx)
package vehicle
