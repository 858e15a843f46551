package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/fleet-rental-sim/fleet/config"
	"github.com/wricardo/fleet-rental-sim/fleet/invoice"
	"github.com/wricardo/fleet-rental-sim/fleet/report"
	"github.com/wricardo/fleet-rental-sim/fleet/runs"
	"github.com/wricardo/fleet-rental-sim/fleet/service"
	"github.com/wricardo/fleet-rental-sim/fleet/simulation"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

const testRunID = "6f1c2c1e-9a55-4a53-8d3e-0b7d0a2d4f10"

// MockFleetService implements service.FleetService for testing
type MockFleetService struct {
	StartRunFunc      func(ctx context.Context, opts service.RunOptions) (*runs.Run, error)
	GetRunFunc        func(ctx context.Context, runID string) (*runs.Run, error)
	ListRunsFunc      func(ctx context.Context) ([]*runs.Run, error)
	CancelRunFunc     func(ctx context.Context, runID string) error
	DeleteRunFunc     func(ctx context.Context, runID string) error
	FaultsFunc        func(ctx context.Context, runID string) ([]simulation.FaultEntry, error)
	InvoicesFunc      func(ctx context.Context, runID string) ([]invoice.Row, error)
	SummaryReportFunc func(ctx context.Context, runID string) (*report.SummaryReport, error)
	DailyReportsFunc  func(ctx context.Context, runID string) ([]*report.DailyReport, error)
	TopVehiclesFunc   func(ctx context.Context, runID string) (map[vehicle.Kind]report.Ranked, error)
	ListConfigsFunc   func(ctx context.Context) ([]*config.Info, error)
	GetConfigFunc     func(ctx context.Context, name string) (*config.Config, error)
}

func (m *MockFleetService) StartRun(ctx context.Context, opts service.RunOptions) (*runs.Run, error) {
	if m.StartRunFunc != nil {
		return m.StartRunFunc(ctx, opts)
	}
	return &runs.Run{ID: testRunID, ConfigName: opts.Config, Status: runs.StatusPending, CreatedAt: time.Now()}, nil
}

func (m *MockFleetService) GetRun(ctx context.Context, runID string) (*runs.Run, error) {
	if m.GetRunFunc != nil {
		return m.GetRunFunc(ctx, runID)
	}
	return &runs.Run{ID: runID, Status: runs.StatusRunning}, nil
}

func (m *MockFleetService) ListRuns(ctx context.Context) ([]*runs.Run, error) {
	if m.ListRunsFunc != nil {
		return m.ListRunsFunc(ctx)
	}
	return []*runs.Run{}, nil
}

func (m *MockFleetService) CancelRun(ctx context.Context, runID string) error {
	if m.CancelRunFunc != nil {
		return m.CancelRunFunc(ctx, runID)
	}
	return nil
}

func (m *MockFleetService) DeleteRun(ctx context.Context, runID string) error {
	if m.DeleteRunFunc != nil {
		return m.DeleteRunFunc(ctx, runID)
	}
	return nil
}

func (m *MockFleetService) WaitRun(ctx context.Context, runID string) (*runs.Run, error) {
	return m.GetRun(ctx, runID)
}

func (m *MockFleetService) Faults(ctx context.Context, runID string) ([]simulation.FaultEntry, error) {
	if m.FaultsFunc != nil {
		return m.FaultsFunc(ctx, runID)
	}
	return []simulation.FaultEntry{}, nil
}

func (m *MockFleetService) Invoices(ctx context.Context, runID string) ([]invoice.Row, error) {
	if m.InvoicesFunc != nil {
		return m.InvoicesFunc(ctx, runID)
	}
	return []invoice.Row{}, nil
}

func (m *MockFleetService) SummaryReport(ctx context.Context, runID string) (*report.SummaryReport, error) {
	if m.SummaryReportFunc != nil {
		return m.SummaryReportFunc(ctx, runID)
	}
	return &report.SummaryReport{}, nil
}

func (m *MockFleetService) DailyReports(ctx context.Context, runID string) ([]*report.DailyReport, error) {
	if m.DailyReportsFunc != nil {
		return m.DailyReportsFunc(ctx, runID)
	}
	return []*report.DailyReport{}, nil
}

func (m *MockFleetService) TopVehicles(ctx context.Context, runID string) (map[vehicle.Kind]report.Ranked, error) {
	if m.TopVehiclesFunc != nil {
		return m.TopVehiclesFunc(ctx, runID)
	}
	return map[vehicle.Kind]report.Ranked{}, nil
}

func (m *MockFleetService) ListConfigs(ctx context.Context) ([]*config.Info, error) {
	if m.ListConfigsFunc != nil {
		return m.ListConfigsFunc(ctx)
	}
	return nil, nil
}

func (m *MockFleetService) GetConfig(ctx context.Context, name string) (*config.Config, error) {
	if m.GetConfigFunc != nil {
		return m.GetConfigFunc(ctx, name)
	}
	return config.Default(), nil
}

func (m *MockFleetService) Shutdown(ctx context.Context) error {
	return nil
}

func do(t *testing.T, srv http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestBanner(t *testing.T) {
	srv := NewServer(&MockFleetService{}, nil, nil)

	rec := do(t, srv, "GET", "/api", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fleet-rental-sim")

	rec = do(t, srv, "GET", "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartRun(t *testing.T) {
	var got service.RunOptions
	mock := &MockFleetService{
		StartRunFunc: func(ctx context.Context, opts service.RunOptions) (*runs.Run, error) {
			got = opts
			return &runs.Run{ID: testRunID, ConfigName: opts.Config, Status: runs.StatusPending}, nil
		},
	}
	srv := NewServer(mock, nil, nil)

	scale := 0.0
	rec := do(t, srv, "POST", "/api/runs", service.RunOptions{Config: "fast", TimeScale: &scale})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "fast", got.Config)
	require.NotNil(t, got.TimeScale)
	assert.Zero(t, *got.TimeScale)

	var run runs.Run
	decode(t, rec, &run)
	assert.Equal(t, testRunID, run.ID)
	assert.Equal(t, runs.StatusPending, run.Status)
}

func TestStartRunWithoutBody(t *testing.T) {
	srv := NewServer(&MockFleetService{}, nil, nil)
	req := httptest.NewRequest("POST", "/api/runs", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestStartRunErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"invalid json", "{", nil, http.StatusBadRequest},
		{"unknown config", `{"config":"nope"}`, fmt.Errorf("load: %w", config.ErrConfigNotFound), http.StatusNotFound},
		{"invalid options", `{"time_scale":-1}`, service.ErrInvalidOptions, http.StatusBadRequest},
		{"internal", `{}`, fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockFleetService{
				StartRunFunc: func(ctx context.Context, opts service.RunOptions) (*runs.Run, error) {
					return nil, tt.err
				},
			}
			srv := NewServer(mock, nil, nil)
			req := httptest.NewRequest("POST", "/api/runs", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]string
			decode(t, rec, &body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestListRuns(t *testing.T) {
	mock := &MockFleetService{
		ListRunsFunc: func(ctx context.Context) ([]*runs.Run, error) {
			return []*runs.Run{
				{ID: "a", Status: runs.StatusCompleted},
				{ID: "b", Status: runs.StatusRunning},
				{ID: "c", Status: runs.StatusCompleted},
			}, nil
		},
	}
	srv := NewServer(mock, nil, nil)

	var body struct {
		Count int         `json:"count"`
		Total int         `json:"total"`
		Runs  []*runs.Run `json:"runs"`
	}
	rec := do(t, srv, "GET", "/api/runs?status=completed&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, "a", body.Runs[0].ID)
}

func TestGetRunNotFound(t *testing.T) {
	mock := &MockFleetService{
		GetRunFunc: func(ctx context.Context, runID string) (*runs.Run, error) {
			return nil, fmt.Errorf("run %s: %w", runID, runs.ErrRunNotFound)
		},
	}
	srv := NewServer(mock, nil, nil)
	rec := do(t, srv, "GET", "/api/runs/"+testRunID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelRun(t *testing.T) {
	var cancelled string
	mock := &MockFleetService{
		CancelRunFunc: func(ctx context.Context, runID string) error {
			if cancelled != "" {
				return runs.ErrRunFinished
			}
			cancelled = runID
			return nil
		},
	}
	srv := NewServer(mock, nil, nil)

	rec := do(t, srv, "POST", "/api/runs/"+testRunID+"/cancel", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, testRunID, cancelled)

	rec = do(t, srv, "POST", "/api/runs/"+testRunID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, "GET", "/api/runs/"+testRunID+"/cancel", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDeleteRun(t *testing.T) {
	mock := &MockFleetService{
		DeleteRunFunc: func(ctx context.Context, runID string) error {
			return runs.ErrRunActive
		},
	}
	srv := NewServer(mock, nil, nil)
	rec := do(t, srv, "DELETE", "/api/runs/"+testRunID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFaultsAndInvoices(t *testing.T) {
	mock := &MockFleetService{
		FaultsFunc: func(ctx context.Context, runID string) ([]simulation.FaultEntry, error) {
			return []simulation.FaultEntry{{VehicleID: "B1"}}, nil
		},
		InvoicesFunc: func(ctx context.Context, runID string) ([]invoice.Row, error) {
			return []invoice.Row{{Number: 1, VehicleID: "C1"}, {Number: 2, VehicleID: "B1", Faulted: true}}, nil
		},
	}
	srv := NewServer(mock, nil, nil)

	var faults struct {
		Count  int                     `json:"count"`
		Faults []simulation.FaultEntry `json:"faults"`
	}
	rec := do(t, srv, "GET", "/api/runs/"+testRunID+"/faults", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &faults)
	assert.Equal(t, 1, faults.Count)

	var invoices struct {
		Count    int           `json:"count"`
		Invoices []invoice.Row `json:"invoices"`
	}
	rec = do(t, srv, "GET", "/api/runs/"+testRunID+"/invoices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &invoices)
	assert.Equal(t, 2, invoices.Count)
}

func TestReports(t *testing.T) {
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)
	mock := &MockFleetService{
		SummaryReportFunc: func(ctx context.Context, runID string) (*report.SummaryReport, error) {
			return &report.SummaryReport{Figures: report.Figures{Invoices: 4, Revenue: 42.5}, Tax: 1.2}, nil
		},
		DailyReportsFunc: func(ctx context.Context, runID string) ([]*report.DailyReport, error) {
			return []*report.DailyReport{{Date: day, Figures: report.Figures{Invoices: 3}}}, nil
		},
		TopVehiclesFunc: func(ctx context.Context, runID string) (map[vehicle.Kind]report.Ranked, error) {
			return map[vehicle.Kind]report.Ranked{
				vehicle.Car: {Vehicle: vehicle.Vehicle{ID: "C1", Kind: vehicle.Car}, Revenue: 30, Invoices: 2},
			}, nil
		},
	}
	srv := NewServer(mock, nil, nil)
	base := "/api/runs/" + testRunID + "/reports"

	rec := do(t, srv, "GET", base+"/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary report.SummaryReport
	decode(t, rec, &summary)
	assert.Equal(t, 4, summary.Invoices)
	assert.Equal(t, 42.5, summary.Revenue)

	rec = do(t, srv, "GET", base+"/summary?format=text", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "EUR")

	rec = do(t, srv, "GET", base+"/daily", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = do(t, srv, "GET", base+"/daily?date=01.06.2024", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, "GET", base+"/daily?date=2024-06-02", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, "GET", base+"/top-vehicles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var top map[vehicle.Kind]report.Ranked
	decode(t, rec, &top)
	assert.Equal(t, "C1", top[vehicle.Car].Vehicle.ID)
}

func TestConfigs(t *testing.T) {
	mock := &MockFleetService{
		GetConfigFunc: func(ctx context.Context, name string) (*config.Config, error) {
			if name != "default" {
				return nil, config.ErrConfigNotFound
			}
			return config.Default(), nil
		},
	}
	srv := NewServer(mock, nil, nil)

	rec := do(t, srv, "GET", "/api/configs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = do(t, srv, "GET", "/api/configs/default", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg config.Config
	decode(t, rec, &cfg)
	assert.Equal(t, "default", cfg.Name)

	rec = do(t, srv, "GET", "/api/configs/other", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebSocketEndpoint(t *testing.T) {
	srv := NewServer(&MockFleetService{}, nil, nil)
	rec := do(t, srv, "GET", "/ws?run="+testRunID, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
