// Package api provides the HTTP REST API of the fleet rental simulator.
//
// Endpoints:
//
// Service:
//   - GET /api - Service banner
//
// Runs:
//   - POST /api/runs - Start a run
//   - GET /api/runs - List runs
//   - GET /api/runs/{id} - Run status and counters
//   - DELETE /api/runs/{id} - Remove a finished run and its output
//   - POST /api/runs/{id}/cancel - Cancel an active run
//   - GET /api/runs/{id}/faults - Vehicles that broke down
//   - GET /api/runs/{id}/invoices - Parsed invoice rows
//   - GET /api/runs/{id}/reports/summary - Summary report
//   - GET /api/runs/{id}/reports/daily - Daily reports
//   - GET /api/runs/{id}/reports/top-vehicles - Top vehicle per kind
//
// Configuration:
//   - GET /api/configs - List available profiles
//   - GET /api/configs/{name} - Show a profile
//
// Live events:
//   - GET /ws?run={id} - WebSocket stream of a run
//
// A run is started with a JSON body, every field optional:
//
//	{
//	  "config": "default",
//	  "vehicles_file": "data/vehicles.csv",
//	  "rentals_file": "data/rentals.csv",
//	  "time_scale": 0
//	}
//
// Errors are returned as JSON with an HTTP status derived from the error:
//
//	{
//	  "error": "run 1f0c...: run not found"
//	}
package api
