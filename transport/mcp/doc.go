// Package mcp exposes the simulator to AI agents over the Model Context
// Protocol.
//
// The package is a thin client: every tool proxies to the REST API and
// renders the JSON answer as text.
//
// MCP Tools:
//   - start_run: Start a simulation run, optionally waiting for it
//   - list_runs: List runs with their status
//   - run_status: Status and counters of one run
//   - cancel_run: Cancel an active run
//   - fault_list: Vehicles that broke down during a run
//   - summary_report: Financial summary of a run
//   - daily_report: Per-day figures of a run
//   - top_vehicles: Highest-earning vehicle per kind
//   - list_configs: Available simulation profiles
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: POST /mcp handled through MCPServer.HandleMessage
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
package mcp
