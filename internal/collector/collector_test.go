package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lakeops/lakeops/internal/store"
	"github.com/lakeops/lakeops/internal/workspace"
)

// testWorkspace serves the endpoints one collection pass touches: cluster
// list, warehouse list, job runs, and statement execution. Billing queries
// return the given per-cluster DBU; DDL and inserts succeed with no rows.
func testWorkspace(t *testing.T, clusters []map[string]any, billing map[string]string) *workspace.Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/2.1/clusters/list", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"clusters": clusters})
	})
	mux.HandleFunc("/api/2.0/sql/warehouses", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"warehouses": []map[string]any{{"id": "wh-1", "name": "test", "state": "RUNNING"}},
		})
	})
	mux.HandleFunc("/api/2.1/jobs/runs/list", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"runs": []}`))
	})
	mux.HandleFunc("/api/2.0/sql/statements", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		stmt, _ := req["statement"].(string)

		if !strings.Contains(stmt, "SELECT") {
			w.Write([]byte(`{"status": {"state": "SUCCEEDED"}}`))
			return
		}
		var data [][]any
		for id, dbu := range billing {
			data = append(data, []any{id, dbu})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[string]any{"state": "SUCCEEDED"},
			"manifest": map[string]any{"schema": map[string]any{
				"columns": []map[string]any{{"name": "cluster_id"}, {"name": "total_dbu"}},
			}},
			"result": map[string]any{"data_array": data},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ws, err := workspace.New(workspace.Config{Host: srv.URL, Token: "tok"}, zap.NewNop().Sugar())
	require.NoError(t, err)
	return ws
}

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "lakeops.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunPersistsMetrics(t *testing.T) {
	ws := testWorkspace(t, []map[string]any{
		{"cluster_id": "c-1", "cluster_name": "etl", "num_workers": 4, "state": "RUNNING", "cluster_source": "JOB"},
		{"cluster_id": "c-2", "cluster_name": "idle", "num_workers": 2, "state": "TERMINATED", "cluster_source": "UI"},
	}, map[string]string{"c-1": "32"})
	db := openTestDB(t)

	c := New(ws, db, Options{
		Catalog:                "main",
		Schema:                 "test",
		OversizedThreshold:     30,
		UnderutilizedThreshold: 50,
	}, zap.NewNop().Sugar())

	result, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.MetricsPersisted)
	assert.Equal(t, 2, result.ClustersProcessed)
	assert.Contains(t, result.Message, "Collected metrics for 2 clusters")
	assert.Contains(t, result.Message, "main.test.cluster_utilization_metrics")

	// 32 DBU over an assumed 8h day at potential 5/h: 32/40 = 80%.
	hist, err := db.History(context.Background(), "c-1", 7)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 80.0, hist[0].EfficiencyScore)
	assert.Equal(t, "JOB", hist[0].ClusterType)
	assert.False(t, hist[0].IsOversized)
	assert.False(t, hist[0].IsUnderutilized)

	// No billing row means zero usage and no classification.
	hist, err = db.History(context.Background(), "c-2", 7)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 0.0, hist[0].EfficiencyScore)
	assert.False(t, hist[0].IsOversized)
}

func TestRunClassifiesOnRawScore(t *testing.T) {
	// 11.9984 DBU over 8h at potential 5/h scores 29.996, which rounds to
	// 30.0 for storage but must still classify as below the 30 threshold.
	ws := testWorkspace(t, []map[string]any{
		{"cluster_id": "c-edge", "cluster_name": "edge", "num_workers": 4, "state": "RUNNING", "cluster_source": "UI"},
	}, map[string]string{"c-edge": "11.9984"})
	db := openTestDB(t)

	c := New(ws, db, Options{
		Catalog:                "main",
		Schema:                 "test",
		OversizedThreshold:     30,
		UnderutilizedThreshold: 50,
	}, zap.NewNop().Sugar())

	_, err := c.Run(context.Background())
	require.NoError(t, err)

	hist, err := db.History(context.Background(), "c-edge", 7)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 30.0, hist[0].EfficiencyScore)
	assert.True(t, hist[0].IsOversized)
	assert.True(t, hist[0].IsUnderutilized)
}
