package handler

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/lakeops/lakeops/internal/workspace"
)

// BillingHandler serves usage and cost endpoints backed by the
// system.billing.usage table.
type BillingHandler struct {
	ws          WorkspaceAPI
	warehouseID string
	dbuRateUSD  float64
	log         *zap.SugaredLogger
}

// NewBillingHandler creates a new BillingHandler. warehouseID may be empty,
// in which case the first available warehouse is used per request.
func NewBillingHandler(ws WorkspaceAPI, warehouseID string, dbuRateUSD float64, log *zap.SugaredLogger) *BillingHandler {
	return &BillingHandler{ws: ws, warehouseID: warehouseID, dbuRateUSD: dbuRateUSD, log: log}
}

// BillingSummary is the workspace-wide usage rollup for a period.
type BillingSummary struct {
	TotalDBU         float64 `json:"total_dbu"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	PeriodStart      string  `json:"period_start,omitempty"`
	PeriodEnd        string  `json:"period_end,omitempty"`
}

// ClusterBillingUsage is one cluster's usage over a period.
type ClusterBillingUsage struct {
	ClusterID        string  `json:"cluster_id"`
	ClusterName      string  `json:"cluster_name,omitempty"`
	TotalDBU         float64 `json:"total_dbu"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	UsageDateStart   string  `json:"usage_date_start,omitempty"`
	UsageDateEnd     string  `json:"usage_date_end,omitempty"`
}

// BillingTrend is one day of aggregated usage.
type BillingTrend struct {
	Date             string  `json:"date"`
	DBU              float64 `json:"dbu"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// TopConsumer is one cluster's share of total usage.
type TopConsumer struct {
	ClusterID         string  `json:"cluster_id"`
	ClusterName       string  `json:"cluster_name,omitempty"`
	TotalDBU          float64 `json:"total_dbu"`
	EstimatedCostUSD  float64 `json:"estimated_cost_usd"`
	PercentageOfTotal float64 `json:"percentage_of_total"`
}

func (h *BillingHandler) cost(dbu float64) float64 {
	return math.Round(dbu*h.dbuRateUSD*100) / 100
}

// clusterNames builds an id-to-name map, best effort.
func (h *BillingHandler) clusterNames(ctx context.Context) map[string]string {
	clusters, err := h.ws.ListClusters(ctx, 500)
	if err != nil {
		h.log.Warnw("failed to get cluster names", "error", err)
		return map[string]string{}
	}
	return lo.SliceToMap(clusters, func(c workspace.Cluster) (string, string) {
		return c.ClusterID, c.ClusterName
	})
}

// Summary returns total usage and estimated cost over the last N days.
func (h *BillingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30, 1, 90)

	warehouseID, err := h.ws.ResolveWarehouse(r.Context(), h.warehouseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sql := fmt.Sprintf(`
		SELECT
			COALESCE(SUM(usage_quantity), 0) as total_dbu,
			MIN(usage_date) as period_start,
			MAX(usage_date) as period_end
		FROM system.billing.usage
		WHERE usage_date >= CURRENT_DATE - INTERVAL %d DAY
			AND usage_metadata.cluster_id IS NOT NULL`, days)

	rows, err := h.ws.ExecuteSQL(r.Context(), warehouseID, sql)
	if err != nil {
		h.log.Errorw("failed to get billing summary", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summary := BillingSummary{}
	if len(rows) > 0 {
		summary.TotalDBU = rows[0].Float("total_dbu")
		summary.EstimatedCostUSD = h.cost(summary.TotalDBU)
		summary.PeriodStart = rows[0]["period_start"]
		summary.PeriodEnd = rows[0]["period_end"]
	}
	writeJSON(w, http.StatusOK, summary)
}

// ByCluster returns the top clusters by usage over the last N days.
func (h *BillingHandler) ByCluster(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30, 1, 90)
	limit := queryInt(r, "limit", 50, 1, 100)

	warehouseID, err := h.ws.ResolveWarehouse(r.Context(), h.warehouseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sql := fmt.Sprintf(`
		SELECT
			usage_metadata.cluster_id as cluster_id,
			COALESCE(SUM(usage_quantity), 0) as total_dbu,
			MIN(usage_date) as usage_start,
			MAX(usage_date) as usage_end
		FROM system.billing.usage
		WHERE usage_date >= CURRENT_DATE - INTERVAL %d DAY
			AND usage_metadata.cluster_id IS NOT NULL
		GROUP BY usage_metadata.cluster_id
		ORDER BY total_dbu DESC
		LIMIT %d`, days, limit)

	rows, err := h.ws.ExecuteSQL(r.Context(), warehouseID, sql)
	if err != nil {
		h.log.Errorw("failed to get billing by cluster", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	names := h.clusterNames(r.Context())

	usage := make([]ClusterBillingUsage, 0, len(rows))
	for _, row := range rows {
		dbu := row.Float("total_dbu")
		usage = append(usage, ClusterBillingUsage{
			ClusterID:        row["cluster_id"],
			ClusterName:      names[row["cluster_id"]],
			TotalDBU:         dbu,
			EstimatedCostUSD: h.cost(dbu),
			UsageDateStart:   row["usage_start"],
			UsageDateEnd:     row["usage_end"],
		})
	}
	writeJSON(w, http.StatusOK, usage)
}

// Trend returns daily aggregated usage for charting.
func (h *BillingHandler) Trend(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30, 1, 90)

	warehouseID, err := h.ws.ResolveWarehouse(r.Context(), h.warehouseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sql := fmt.Sprintf(`
		SELECT
			usage_date as date,
			COALESCE(SUM(usage_quantity), 0) as dbu
		FROM system.billing.usage
		WHERE usage_date >= CURRENT_DATE - INTERVAL %d DAY
			AND usage_metadata.cluster_id IS NOT NULL
		GROUP BY usage_date
		ORDER BY usage_date ASC`, days)

	rows, err := h.ws.ExecuteSQL(r.Context(), warehouseID, sql)
	if err != nil {
		h.log.Errorw("failed to get billing trend", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	trend := make([]BillingTrend, 0, len(rows))
	for _, row := range rows {
		if row["date"] == "" {
			continue
		}
		dbu := row.Float("dbu")
		trend = append(trend, BillingTrend{
			Date:             row["date"],
			DBU:              dbu,
			EstimatedCostUSD: h.cost(dbu),
		})
	}
	writeJSON(w, http.StatusOK, trend)
}

// TopConsumers returns the clusters with the highest share of total usage.
func (h *BillingHandler) TopConsumers(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30, 1, 90)
	limit := queryInt(r, "limit", 10, 1, 20)

	warehouseID, err := h.ws.ResolveWarehouse(r.Context(), h.warehouseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	totalSQL := fmt.Sprintf(`
		SELECT COALESCE(SUM(usage_quantity), 0) as total_dbu
		FROM system.billing.usage
		WHERE usage_date >= CURRENT_DATE - INTERVAL %d DAY
			AND usage_metadata.cluster_id IS NOT NULL`, days)

	clusterSQL := fmt.Sprintf(`
		SELECT
			usage_metadata.cluster_id as cluster_id,
			COALESCE(SUM(usage_quantity), 0) as total_dbu
		FROM system.billing.usage
		WHERE usage_date >= CURRENT_DATE - INTERVAL %d DAY
			AND usage_metadata.cluster_id IS NOT NULL
		GROUP BY usage_metadata.cluster_id
		ORDER BY total_dbu DESC
		LIMIT %d`, days, limit)

	totalRows, err := h.ws.ExecuteSQL(r.Context(), warehouseID, totalSQL)
	if err != nil {
		h.log.Errorw("failed to get total usage", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	totalDBU := 0.0
	if len(totalRows) > 0 {
		totalDBU = totalRows[0].Float("total_dbu")
	}

	rows, err := h.ws.ExecuteSQL(r.Context(), warehouseID, clusterSQL)
	if err != nil {
		h.log.Errorw("failed to get top consumers", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	names := h.clusterNames(r.Context())

	consumers := make([]TopConsumer, 0, len(rows))
	for _, row := range rows {
		dbu := row.Float("total_dbu")
		percentage := 0.0
		if totalDBU > 0 {
			percentage = math.Round(dbu/totalDBU*1000) / 10
		}
		consumers = append(consumers, TopConsumer{
			ClusterID:         row["cluster_id"],
			ClusterName:       names[row["cluster_id"]],
			TotalDBU:          dbu,
			EstimatedCostUSD:  h.cost(dbu),
			PercentageOfTotal: percentage,
		})
	}
	writeJSON(w, http.StatusOK, consumers)
}
