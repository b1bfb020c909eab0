// Package handler implements the REST API endpoints.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/lakeops/lakeops/internal/workspace"
)

// WorkspaceAPI is the slice of the workspace client consumed by the
// handlers. Declared here so tests can substitute a stub.
type WorkspaceAPI interface {
	Host() string
	ListClusters(ctx context.Context, limit int) ([]workspace.Cluster, error)
	GetCluster(ctx context.Context, clusterID string) (*workspace.Cluster, error)
	StartCluster(ctx context.Context, clusterID string) error
	StopCluster(ctx context.Context, clusterID string) error
	ClusterEvents(ctx context.Context, clusterID string, limit int) (*workspace.EventsPage, error)
	ListPolicies(ctx context.Context) ([]workspace.Policy, error)
	GetPolicy(ctx context.Context, policyID string) (*workspace.Policy, error)
	ResolveWarehouse(ctx context.Context, configured string) (string, error)
	ExecuteSQL(ctx context.Context, warehouseID, statement string) ([]workspace.Row, error)
}

// writeJSON is a shared helper for all handlers.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error body in the shape {"detail": "..."}.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// queryInt parses an integer query parameter, clamping to [min, max] and
// falling back to def when absent or unparsable.
func queryInt(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// queryBool parses a boolean query parameter, defaulting to false.
func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
