package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lakeops/lakeops/internal/collector"
	"github.com/lakeops/lakeops/internal/store"
	"github.com/lakeops/lakeops/internal/workspace"
)

// stubWorkspace is an in-memory WorkspaceAPI for handler tests.
type stubWorkspace struct {
	clusters []workspace.Cluster
	policies []workspace.Policy
	events   *workspace.EventsPage
	rows     map[string][]workspace.Row

	started []string
	stopped []string
	listErr error
}

func (s *stubWorkspace) Host() string { return "https://test.cloud.databricks.com" }

func (s *stubWorkspace) ListClusters(_ context.Context, limit int) ([]workspace.Cluster, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if len(s.clusters) > limit {
		return s.clusters[:limit], nil
	}
	return s.clusters, nil
}

func (s *stubWorkspace) GetCluster(_ context.Context, clusterID string) (*workspace.Cluster, error) {
	for i := range s.clusters {
		if s.clusters[i].ClusterID == clusterID {
			return &s.clusters[i], nil
		}
	}
	return nil, fmt.Errorf("cluster %s: %w", clusterID, workspace.ErrNotFound)
}

func (s *stubWorkspace) StartCluster(_ context.Context, clusterID string) error {
	s.started = append(s.started, clusterID)
	return nil
}

func (s *stubWorkspace) StopCluster(_ context.Context, clusterID string) error {
	s.stopped = append(s.stopped, clusterID)
	return nil
}

func (s *stubWorkspace) ClusterEvents(_ context.Context, _ string, _ int) (*workspace.EventsPage, error) {
	if s.events != nil {
		return s.events, nil
	}
	return &workspace.EventsPage{}, nil
}

func (s *stubWorkspace) ListPolicies(_ context.Context) ([]workspace.Policy, error) {
	return s.policies, nil
}

func (s *stubWorkspace) GetPolicy(_ context.Context, policyID string) (*workspace.Policy, error) {
	for i := range s.policies {
		if s.policies[i].PolicyID == policyID {
			return &s.policies[i], nil
		}
	}
	return nil, fmt.Errorf("policy %s: %w", policyID, workspace.ErrNotFound)
}

func (s *stubWorkspace) ResolveWarehouse(_ context.Context, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return "wh-test", nil
}

func (s *stubWorkspace) ExecuteSQL(_ context.Context, _, statement string) ([]workspace.Row, error) {
	for marker, rows := range s.rows {
		if strings.Contains(statement, marker) {
			return rows, nil
		}
	}
	return nil, nil
}

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func getWithParam(h http.HandlerFunc, target, param, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if param != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add(param, value)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestClusterListSortsRunningFirst(t *testing.T) {
	ws := &stubWorkspace{clusters: []workspace.Cluster{
		{ClusterID: "c-b", ClusterName: "beta", State: workspace.StateTerminated},
		{ClusterID: "c-z", ClusterName: "zeta", State: workspace.StateRunning, NumWorkers: 2},
		{ClusterID: "c-a", ClusterName: "alpha", State: workspace.StateRunning, NumWorkers: 2},
	}}
	h := NewClusterHandler(ws, testLogger())

	rec := getWithParam(h.List, "/api/clusters", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[[]ClusterSummary](t, rec)
	require.Len(t, got, 3)
	assert.Equal(t, "alpha", got[0].ClusterName)
	assert.Equal(t, "zeta", got[1].ClusterName)
	assert.Equal(t, "beta", got[2].ClusterName)
}

func TestClusterListStateFilter(t *testing.T) {
	ws := &stubWorkspace{clusters: []workspace.Cluster{
		{ClusterID: "c-1", ClusterName: "one", State: workspace.StateRunning},
		{ClusterID: "c-2", ClusterName: "two", State: workspace.StateTerminated},
	}}
	h := NewClusterHandler(ws, testLogger())

	rec := getWithParam(h.List, "/api/clusters?state=TERMINATED", "", "")
	got := decode[[]ClusterSummary](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "c-2", got[0].ClusterID)
}

func TestStartClusterGuards(t *testing.T) {
	ws := &stubWorkspace{clusters: []workspace.Cluster{
		{ClusterID: "c-running", State: workspace.StateRunning},
		{ClusterID: "c-pending", State: workspace.StatePending},
		{ClusterID: "c-stopped", State: workspace.StateTerminated},
	}}
	h := NewClusterHandler(ws, testLogger())

	post := func(id string) ActionResponse {
		req := httptest.NewRequest(http.MethodPost, "/api/clusters/"+id+"/start", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("clusterID", id)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		rec := httptest.NewRecorder()
		h.Start(rec, req)
		return decode[ActionResponse](t, rec)
	}

	resp := post("c-running")
	assert.True(t, resp.Success)
	assert.Equal(t, "Cluster is already running", resp.Message)

	resp = post("c-pending")
	assert.False(t, resp.Success)
	assert.Equal(t, "Cannot start cluster in state: PENDING", resp.Message)

	resp = post("c-stopped")
	assert.True(t, resp.Success)
	assert.Equal(t, "Cluster start initiated", resp.Message)
	assert.Equal(t, []string{"c-stopped"}, ws.started)
}

func TestStopClusterGuards(t *testing.T) {
	ws := &stubWorkspace{clusters: []workspace.Cluster{
		{ClusterID: "c-running", State: workspace.StateRunning},
		{ClusterID: "c-stopped", State: workspace.StateTerminated},
		{ClusterID: "c-terminating", State: workspace.StateTerminating},
	}}
	h := NewClusterHandler(ws, testLogger())

	post := func(id string) ActionResponse {
		req := httptest.NewRequest(http.MethodPost, "/api/clusters/"+id+"/stop", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("clusterID", id)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		rec := httptest.NewRecorder()
		h.Stop(rec, req)
		return decode[ActionResponse](t, rec)
	}

	resp := post("c-stopped")
	assert.True(t, resp.Success)
	assert.Equal(t, "Cluster is already stopped", resp.Message)

	resp = post("c-terminating")
	assert.False(t, resp.Success)

	resp = post("c-running")
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"c-running"}, ws.stopped)
}

func TestGetClusterNotFound(t *testing.T) {
	h := NewClusterHandler(&stubWorkspace{}, testLogger())
	rec := getWithParam(h.Get, "/api/clusters/missing", "clusterID", "missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPolicyGetParsesDefinition(t *testing.T) {
	ws := &stubWorkspace{policies: []workspace.Policy{{
		PolicyID:   "p-1",
		Name:       "Restricted",
		Definition: `{"spark_version":{"type":"fixed","value":"13.3.x"}}`,
	}}}
	h := NewPolicyHandler(ws, testLogger())

	rec := getWithParam(h.Get, "/api/policies/p-1", "policyID", "p-1")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[PolicyDetail](t, rec)
	assert.Equal(t, "Restricted", got.Name)
	assert.Contains(t, got.DefinitionJSON, "spark_version")
}

func TestPolicyUsageFiltersByPolicy(t *testing.T) {
	ws := &stubWorkspace{
		policies: []workspace.Policy{{PolicyID: "p-1", Name: "Shared"}},
		clusters: []workspace.Cluster{
			{ClusterID: "c-1", PolicyID: "p-1", State: workspace.StateRunning},
			{ClusterID: "c-2", PolicyID: "p-2", State: workspace.StateRunning},
		},
	}
	h := NewPolicyHandler(ws, testLogger())

	rec := getWithParam(h.Usage, "/api/policies/p-1/usage", "policyID", "p-1")
	got := decode[PolicyUsage](t, rec)
	assert.Equal(t, 1, got.ClusterCount)
	assert.Equal(t, "c-1", got.Clusters[0].ClusterID)
}

func TestBillingSummaryUsesRate(t *testing.T) {
	ws := &stubWorkspace{rows: map[string][]workspace.Row{
		"total_dbu": {{"total_dbu": "100", "period_start": "2025-05-01", "period_end": "2025-05-30"}},
	}}
	h := NewBillingHandler(ws, "wh-1", 0.15, testLogger())

	rec := getWithParam(h.Summary, "/api/billing/summary", "", "")
	got := decode[BillingSummary](t, rec)
	assert.Equal(t, 100.0, got.TotalDBU)
	assert.Equal(t, 15.0, got.EstimatedCostUSD)
	assert.Equal(t, "2025-05-01", got.PeriodStart)
}

func TestOptimizationSummaryHeuristics(t *testing.T) {
	ws := &stubWorkspace{clusters: []workspace.Cluster{
		// No auto-termination: (4+1)*2*0.15*30 = 45.
		{ClusterID: "c-1", State: workspace.StateRunning, NumWorkers: 4},
		// 12 workers, has autoterm: underutilized, (12+1)*8*30*0.3*0.15 = 140.4.
		{ClusterID: "c-2", State: workspace.StateRunning, NumWorkers: 12, AutoterminationMinutes: 60},
		// 22 workers: also oversized.
		{ClusterID: "c-3", State: workspace.StateRunning, NumWorkers: 22, AutoterminationMinutes: 60},
		{ClusterID: "c-4", State: workspace.StateTerminated, NumWorkers: 50},
	}}
	h := NewOptimizationHandler(ws, nil, nil, 0.15, 100, testLogger())

	rec := getWithParam(h.Summary, "/api/optimization/summary", "", "")
	got := decode[OptimizationSummary](t, rec)
	assert.Equal(t, 4, got.TotalClustersAnalyzed)
	assert.Equal(t, 1, got.OversizedClusters)
	assert.Equal(t, 2, got.UnderutilizedClusters)
	assert.Equal(t, 3, got.RecommendationsCount)
	// 45 + 140.4 + (22+1)*8*30*0.3*0.15 = 45 + 140.4 + 248.4.
	assert.InDelta(t, 433.8, got.TotalPotentialMonthlySavings, 0.01)
}

func TestOversizedClustersRecommendation(t *testing.T) {
	ws := &stubWorkspace{clusters: []workspace.Cluster{
		{ClusterID: "c-big", ClusterName: "big", State: workspace.StateRunning, NumWorkers: 12},
		{ClusterID: "c-small", State: workspace.StateRunning, NumWorkers: 2},
	}}
	h := NewOptimizationHandler(ws, nil, nil, 0.15, 100, testLogger())

	rec := getWithParam(h.OversizedClusters, "/api/optimization/oversized-clusters", "", "")
	got := decode[[]OversizedClusterAnalysis](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "c-big", got[0].ClusterID)
	// 50% of 12 workers.
	assert.Equal(t, 6, got[0].RecommendedWorkers)
	// 6 fewer workers * 8 hours.
	assert.Equal(t, 48.0, got[0].PotentialDBUSavings)
	// 48 * 30 * 0.15.
	assert.Equal(t, 216.0, got[0].PotentialCostSaving)
}

func TestScheduleRecommendationsSortByIdleTime(t *testing.T) {
	ws := &stubWorkspace{clusters: []workspace.Cluster{
		{ClusterID: "c-long", State: workspace.StateRunning, NumWorkers: 4, AutoterminationMinutes: 300},
		{ClusterID: "c-none", State: workspace.StateRunning, NumWorkers: 4},
		{ClusterID: "c-tiny", State: workspace.StateRunning, NumWorkers: 1},
		{ClusterID: "c-ok", State: workspace.StateRunning, NumWorkers: 4, AutoterminationMinutes: 60},
	}}
	h := NewOptimizationHandler(ws, nil, nil, 0.15, 100, testLogger())

	rec := getWithParam(h.ScheduleRecommendations, "/api/optimization/schedule-recommendations", "", "")
	got := decode[[]ScheduleRecommendation](t, rec)
	require.Len(t, got, 2)
	// 300-60 = 240 idle minutes outranks the 120 estimate.
	assert.Equal(t, "c-long", got[0].ClusterID)
	assert.Equal(t, 240.0, got[0].AvgIdleTimePerDayMinutes)
	assert.Equal(t, "c-none", got[1].ClusterID)
	assert.Equal(t, 60, got[1].RecommendedAutoTerminateMinutes)
}

func TestJobRecommendationsConsolidation(t *testing.T) {
	ws := &stubWorkspace{clusters: []workspace.Cluster{
		{ClusterID: "c-1", ClusterName: "one", State: workspace.StateRunning, CreatorUserName: "dev@example.com", AutoterminationMinutes: 60},
		{ClusterID: "c-2", ClusterName: "two", State: workspace.StateRunning, CreatorUserName: "dev@example.com", AutoterminationMinutes: 60},
		{ClusterID: "c-3", ClusterName: "three", State: workspace.StateTerminated, CreatorUserName: "dev@example.com"},
	}}
	h := NewOptimizationHandler(ws, nil, nil, 0.15, 100, testLogger())

	rec := getWithParam(h.JobRecommendations, "/api/optimization/job-recommendations", "", "")
	got := decode[[]JobClusterRecommendation](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "c-1", got[0].SourceClusterID)
	assert.Equal(t, "c-2", got[0].TargetClusterID)
	assert.Contains(t, got[0].Reason, "User dev has 2 running clusters")
}

func TestAnalyzerEndpointIncludeNoIssues(t *testing.T) {
	ws := &stubWorkspace{clusters: []workspace.Cluster{
		{
			ClusterID: "c-healthy", ClusterName: "healthy",
			Autoscale:              &workspace.AutoScale{MinWorkers: 1, MaxWorkers: 4},
			AutoterminationMinutes: 60,
		},
		{ClusterID: "c-fixed", ClusterName: "fixed", NumWorkers: 6},
	}}
	h := NewOptimizationHandler(ws, nil, nil, 0.15, 100, testLogger())

	rec := getWithParam(h.AutoscalingRecommendations, "/api/optimization/autoscaling-recommendations", "", "")
	got := decode[[]map[string]any](t, rec)
	require.Len(t, got, 1)

	rec = getWithParam(h.AutoscalingRecommendations, "/api/optimization/autoscaling-recommendations?include_no_issues=true", "", "")
	got = decode[[]map[string]any](t, rec)
	require.Len(t, got, 2)
}

func TestHistoryAndTrendsEndpoints(t *testing.T) {
	db, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	defer db.Close()

	h := NewOptimizationHandler(&stubWorkspace{}, db, nil, 0.15, 100, testLogger())

	rec := getWithParam(h.History, "/api/optimization/cluster/c-1/history", "clusterID", "c-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = getWithParam(h.Trends, "/api/optimization/trends", "", "")
	got := decode[store.TrendsResponse](t, rec)
	assert.Equal(t, 0, got.Summary.DataPoints)
	assert.Contains(t, got.Summary.Message, "No historical data available")
}

func TestMetricsEndpoints(t *testing.T) {
	ws := &stubWorkspace{clusters: []workspace.Cluster{
		{ClusterID: "c-1", State: workspace.StateRunning, NumWorkers: 3, AutoterminationMinutes: 60},
		{ClusterID: "c-2", State: workspace.StateTerminated},
	}}
	h := NewMetricsHandler(ws, 100, testLogger())

	rec := getWithParam(h.Summary, "/api/metrics/summary", "", "")
	got := decode[map[string]any](t, rec)
	assert.Equal(t, float64(2), got["total_clusters"])
	assert.Equal(t, float64(1), got["running_clusters"])
	assert.Equal(t, float64(4), got["estimated_hourly_dbu"])

	rec = getWithParam(h.IdleClusters, "/api/metrics/idle-clusters", "", "")
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestWorkspaceInfo(t *testing.T) {
	h := NewWorkspaceInfoHandler(&stubWorkspace{})
	rec := getWithParam(h.Info, "/api/workspace/info", "", "")
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "https://test.cloud.databricks.com", got["host"])
}

// Collector stub kept for compile-time assertion that the handler accepts
// the collector package's Result shape.
type stubCollector struct{ result *collector.Result }

func (s *stubCollector) Run(context.Context) (*collector.Result, error) { return s.result, nil }

func TestCollectMetricsEndpoint(t *testing.T) {
	mc := &stubCollector{result: &collector.Result{
		Success:           true,
		Message:           "Collected metrics for 2 clusters",
		ClustersProcessed: 2,
		MetricsPersisted:  true,
	}}
	h := NewOptimizationHandler(&stubWorkspace{}, nil, mc, 0.15, 100, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/optimization/collect-metrics", nil)
	rec := httptest.NewRecorder()
	h.CollectMetrics(rec, req)

	got := decode[collector.Result](t, rec)
	assert.True(t, got.Success)
	assert.Equal(t, 2, got.ClustersProcessed)
}
