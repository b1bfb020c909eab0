package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lakeops/lakeops/internal/metrics"
)

// MetricsHandler serves the fleet-health endpoints: state counts, idle
// alerts, and the generic configuration recommendations.
type MetricsHandler struct {
	ws           WorkspaceAPI
	clusterLimit int
	log          *zap.SugaredLogger
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(ws WorkspaceAPI, clusterLimit int, log *zap.SugaredLogger) *MetricsHandler {
	if clusterLimit <= 0 {
		clusterLimit = 200
	}
	return &MetricsHandler{ws: ws, clusterLimit: clusterLimit, log: log}
}

// Summary returns state counts and the fleet's estimated hourly usage.
func (h *MetricsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.ws.ListClusters(r.Context(), h.clusterLimit)
	if err != nil {
		h.log.Errorw("failed to list clusters", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, metrics.Summarize(clusters))
}

// IdleClusters returns running clusters idle past the alert threshold.
func (h *MetricsHandler) IdleClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.ws.ListClusters(r.Context(), h.clusterLimit)
	if err != nil {
		h.log.Errorw("failed to list clusters", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	alerts := metrics.IdleClusters(clusters, time.Now())
	if alerts == nil {
		alerts = []metrics.IdleClusterAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// Recommendations returns the generic configuration findings, high priority
// first.
func (h *MetricsHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.ws.ListClusters(r.Context(), h.clusterLimit)
	if err != nil {
		h.log.Errorw("failed to list clusters", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	recs := metrics.Recommendations(clusters, time.Now())
	if recs == nil {
		recs = []metrics.Recommendation{}
	}
	writeJSON(w, http.StatusOK, recs)
}
