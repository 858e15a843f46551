package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/fleet-rental-sim/fleet/config"
	"github.com/wricardo/fleet-rental-sim/fleet/report"
	"github.com/wricardo/fleet-rental-sim/fleet/runs"
	"github.com/wricardo/fleet-rental-sim/fleet/simulation"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

const (
	defaultWaitTimeout = 2 * time.Minute
	pollInterval       = 250 * time.Millisecond
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Fleet Rental Simulator",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Fleet Rental Simulator - MCP Interface

This is a thin client that proxies all requests to the REST API server.

A run replays a rental schedule on a 20x20 city grid. Rentals that start at
the same minute drive concurrently; every finished rental writes an invoice,
and the invoices are aggregated into summary, daily and top-vehicle reports.

AVAILABLE TOOLS:
- list_configs: Profiles that can be used for a run
- start_run: Start a run (set wait=true to block until it finishes, time_scale=0 to skip pacing)
- list_runs / run_status: Follow progress
- cancel_run: Stop an active run
- fault_list: Vehicles that broke down
- summary_report, daily_report, top_vehicles: Financial results`),
	)

	c.registerTools()
}

func runIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Run ID returned by start_run",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_run",
		Description: "Start a simulation run with optional profile and input files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config": map[string]interface{}{
					"type":        "string",
					"description": "Profile name (optional, defaults to 'default')",
				},
				"vehicles_file": map[string]interface{}{
					"type":        "string",
					"description": "Path of the vehicles CSV on the server (optional)",
				},
				"rentals_file": map[string]interface{}{
					"type":        "string",
					"description": "Path of the rentals CSV on the server (optional)",
				},
				"time_scale": map[string]interface{}{
					"type":        "number",
					"description": "Multiplier for all pauses; 0 runs without pacing (optional)",
				},
				"wait": map[string]interface{}{
					"type":        "boolean",
					"description": "Block until the run finishes (optional)",
				},
			},
		},
	}, c.handleStartRun)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_runs",
		Description: "List all simulation runs, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"status": map[string]interface{}{
					"type":        "string",
					"description": "Only runs with this status: pending, running, completed, cancelled, failed (optional)",
				},
			},
		},
	}, c.handleListRuns)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_status",
		Description: "Get the status and counters of a run",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"run_id": runIDProperty()},
			Required:   []string{"run_id"},
		},
	}, c.handleRunStatus)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "cancel_run",
		Description: "Cancel an active run",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"run_id": runIDProperty()},
			Required:   []string{"run_id"},
		},
	}, c.handleCancelRun)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "fault_list",
		Description: "List the vehicles that broke down during a run",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"run_id": runIDProperty()},
			Required:   []string{"run_id"},
		},
	}, c.handleFaultList)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "summary_report",
		Description: "Get the financial summary of a run",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"run_id": runIDProperty()},
			Required:   []string{"run_id"},
		},
	}, c.handleSummaryReport)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "daily_report",
		Description: "Get the per-day figures of a run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"run_id": runIDProperty(),
				"date": map[string]interface{}{
					"type":        "string",
					"description": "Single day as dd.MM.yyyy or yyyy-MM-dd (optional)",
				},
			},
			Required: []string{"run_id"},
		},
	}, c.handleDailyReport)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "top_vehicles",
		Description: "Get the highest-earning vehicle of each kind",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"run_id": runIDProperty()},
			Required:   []string{"run_id"},
		},
	}, c.handleTopVehicles)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available simulation profiles",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func requiredRunID(args map[string]interface{}) (string, error) {
	runID, _ := args["run_id"].(string)
	if runID == "" {
		return "", fmt.Errorf("run_id is required")
	}
	return url.PathEscape(runID), nil
}

// Tool handlers

func (c *Client) handleStartRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]interface{}{}
	for _, key := range []string{"config", "vehicles_file", "rentals_file"} {
		if v, _ := args[key].(string); v != "" {
			body[key] = v
		}
	}
	if scale, ok := args["time_scale"].(float64); ok {
		body["time_scale"] = scale
	}

	var run runs.Run
	if err := c.apiCall(ctx, "POST", "/api/runs", body, &run); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if wait, _ := args["wait"].(bool); wait {
		finished, err := c.waitForRun(ctx, run.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run %s started but waiting failed: %v", run.ID, err)), nil
		}
		return mcp.NewToolResultText(formatRun(finished)), nil
	}

	result := fmt.Sprintf("Started run: %s\nConfig: %s\nStatus: %s\n", run.ID, run.ConfigName, run.Status)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) waitForRun(ctx context.Context, runID string) (*runs.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultWaitTimeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		var run runs.Run
		if err := c.apiCall(ctx, "GET", "/api/runs/"+url.PathEscape(runID), nil, &run); err != nil {
			return nil, err
		}
		if run.Status.Terminal() {
			return &run, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path := "/api/runs"
	if status, _ := args["status"].(string); status != "" {
		path += "?status=" + url.QueryEscape(status)
	}

	var response struct {
		Count int        `json:"count"`
		Runs  []runs.Run `json:"runs"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Runs (%d):\n\n", response.Count)
	for _, r := range response.Runs {
		result += fmt.Sprintf("- %s [%s] config=%s created=%s\n",
			r.ID, r.Status, r.ConfigName, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleRunStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := requiredRunID(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var run runs.Run
	if err := c.apiCall(ctx, "GET", "/api/runs/"+runID, nil, &run); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRun(&run)), nil
}

func (c *Client) handleCancelRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := requiredRunID(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response map[string]string
	if err := c.apiCall(ctx, "POST", "/api/runs/"+runID+"/cancel", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(response["message"]), nil
}

func (c *Client) handleFaultList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := requiredRunID(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response struct {
		Count  int                     `json:"count"`
		Faults []simulation.FaultEntry `json:"faults"`
	}
	if err := c.apiCall(ctx, "GET", "/api/runs/"+runID+"/faults", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatFaults(response.Faults)), nil
}

func (c *Client) handleSummaryReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := requiredRunID(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var summary report.SummaryReport
	if err := c.apiCall(ctx, "GET", "/api/runs/"+runID+"/reports/summary", nil, &summary); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(summary.Text()), nil
}

func (c *Client) handleDailyReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	runID, err := requiredRunID(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path := "/api/runs/" + runID + "/reports/daily"

	if date, _ := args["date"].(string); date != "" {
		var day report.DailyReport
		if err := c.apiCall(ctx, "GET", path+"?date="+url.QueryEscape(date), nil, &day); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(day.Text()), nil
	}

	var response struct {
		Count int                   `json:"count"`
		Days  []*report.DailyReport `json:"days"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if response.Count == 0 {
		return mcp.NewToolResultText("No invoices yet."), nil
	}

	texts := make([]string, 0, len(response.Days))
	for _, d := range response.Days {
		texts = append(texts, d.Text())
	}
	return mcp.NewToolResultText(strings.Join(texts, "\n")), nil
}

func (c *Client) handleTopVehicles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := requiredRunID(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var top map[vehicle.Kind]report.Ranked
	if err := c.apiCall(ctx, "GET", "/api/runs/"+runID+"/reports/top-vehicles", nil, &top); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatTopVehicles(top)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []config.Info
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Available Configurations:\n\n"
	if len(configs) == 0 {
		result += "• default\n  Built-in profile\n"
	}
	for _, cfg := range configs {
		result += fmt.Sprintf("• %s (%s)\n  %s\n  Map: %dx%d, Fault descriptions: %d\n\n",
			cfg.ConfigID, cfg.Name, cfg.Description, cfg.MapSize, cfg.MapSize, cfg.Faults)
	}
	return mcp.NewToolResultText(result), nil
}

// Formatting helpers

func formatRun(run *runs.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", run.ID)
	fmt.Fprintf(&b, "Status: %s\n", run.Status)
	fmt.Fprintf(&b, "Config: %s\n", run.ConfigName)
	fmt.Fprintf(&b, "Rentals: %d (skipped rows: %d)\n", run.Requests, run.Skipped)
	if s := run.Summary; s != nil {
		fmt.Fprintf(&b, "Batches: %d\n", s.Batches)
		fmt.Fprintf(&b, "Completed: %d, Faulted: %d, Failed: %d\n", s.Completed, s.Faulted, s.Failed)
	}
	if run.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", run.Error)
	}
	for _, e := range run.Errors {
		fmt.Fprintf(&b, "  - %s\n", e)
	}
	return b.String()
}

func formatFaults(faults []simulation.FaultEntry) string {
	if len(faults) == 0 {
		return "No vehicle broke down."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Faults (%d):\n\n", len(faults))
	for _, f := range faults {
		fmt.Fprintf(&b, "- %s %s (%s) rented by %s: %s at %s, %s\n",
			f.Kind.Title(), f.VehicleID, f.Model, f.User, f.Description,
			f.Position, f.Time.Format("02.01.2006 15:04:05"))
	}
	return b.String()
}

func formatTopVehicles(top map[vehicle.Kind]report.Ranked) string {
	if len(top) == 0 {
		return "No invoices yet."
	}
	var b strings.Builder
	b.WriteString("Top vehicles:\n\n")
	for _, kind := range vehicle.Kinds {
		r, ok := top[kind]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s %s %s, %.2f EUR from %d invoices\n",
			kind.Title(), r.Vehicle.ID, r.Vehicle.Producer, r.Vehicle.Model, r.Revenue, r.Invoices)
	}
	return b.String()
}
