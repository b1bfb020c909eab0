package handler

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lakeops/lakeops/internal/collector"
	"github.com/lakeops/lakeops/internal/optimizer"
	"github.com/lakeops/lakeops/internal/store"
	"github.com/lakeops/lakeops/internal/workspace"
)

// MetricsCollector runs one on-demand metrics collection pass.
type MetricsCollector interface {
	Run(ctx context.Context) (*collector.Result, error)
}

// OptimizationHandler serves the rule-engine endpoints: fleet analyses,
// heuristic summaries, and the utilization history backed by the store.
type OptimizationHandler struct {
	ws           WorkspaceAPI
	db           *store.DB
	collector    MetricsCollector
	dbuRateUSD   float64
	clusterLimit int
	log          *zap.SugaredLogger
}

// NewOptimizationHandler creates a new OptimizationHandler.
func NewOptimizationHandler(ws WorkspaceAPI, db *store.DB, mc MetricsCollector, dbuRateUSD float64, clusterLimit int, log *zap.SugaredLogger) *OptimizationHandler {
	if clusterLimit <= 0 {
		clusterLimit = 100
	}
	return &OptimizationHandler{
		ws: ws, db: db, collector: mc,
		dbuRateUSD: dbuRateUSD, clusterLimit: clusterLimit, log: log,
	}
}

// OptimizationSummary is the headline rollup of optimization opportunities.
type OptimizationSummary struct {
	TotalClustersAnalyzed        int     `json:"total_clusters_analyzed"`
	OversizedClusters            int     `json:"oversized_clusters"`
	UnderutilizedClusters        int     `json:"underutilized_clusters"`
	TotalPotentialMonthlySavings float64 `json:"total_potential_monthly_savings"`
	RecommendationsCount         int     `json:"recommendations_count"`
	LastAnalysisTime             string  `json:"last_analysis_time"`
}

// OversizedClusterAnalysis flags one cluster whose size likely exceeds its
// workload.
type OversizedClusterAnalysis struct {
	ClusterID           string                `json:"cluster_id"`
	ClusterName         string                `json:"cluster_name"`
	ClusterType         optimizer.ClusterType `json:"cluster_type"`
	CurrentWorkers      int                   `json:"current_workers"`
	AvgEfficiencyScore  float64               `json:"avg_efficiency_score"`
	AvgDailyDBU         float64               `json:"avg_daily_dbu"`
	RecommendedWorkers  int                   `json:"recommended_workers"`
	PotentialDBUSavings float64               `json:"potential_dbu_savings"`
	PotentialCostSaving float64               `json:"potential_cost_savings"`
}

// JobClusterRecommendation suggests consolidating or converting clusters.
type JobClusterRecommendation struct {
	SourceClusterID   string `json:"source_cluster_id"`
	SourceClusterName string `json:"source_cluster_name"`
	TargetClusterID   string `json:"target_cluster_id"`
	TargetClusterName string `json:"target_cluster_name"`
	JobCount          int    `json:"job_count"`
	Reason            string `json:"reason"`
	EstimatedSavings  string `json:"estimated_savings"`
}

// ScheduleRecommendation suggests auto-termination changes.
type ScheduleRecommendation struct {
	ClusterID                       string  `json:"cluster_id"`
	ClusterName                     string  `json:"cluster_name"`
	CurrentAutoTerminateMinutes     int     `json:"current_auto_terminate_minutes"`
	RecommendedAutoTerminateMinutes int     `json:"recommended_auto_terminate_minutes"`
	AvgIdleTimePerDayMinutes        float64 `json:"avg_idle_time_per_day_minutes"`
	PeakUsageHours                  []int   `json:"peak_usage_hours"`
	Reason                          string  `json:"reason"`
}

func (h *OptimizationHandler) listClusters(ctx context.Context) ([]workspace.Cluster, error) {
	return h.ws.ListClusters(ctx, h.clusterLimit)
}

// Summary rolls up optimization opportunities across running clusters.
func (h *OptimizationHandler) Summary(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.listClusters(r.Context())
	if err != nil {
		h.log.Errorw("failed to list clusters", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var oversized, underutilized, recommendations int
	var totalSavings float64

	for i := range clusters {
		c := &clusters[i]
		if c.State != workspace.StateRunning {
			continue
		}
		workers := c.EffectiveWorkers()

		if c.AutoterminationMinutes == 0 {
			recommendations++
			// Two idle hours per day at the configured rate.
			totalSavings += float64(workers+1) * 2 * h.dbuRateUSD * 30
		}
		if workers >= 10 {
			underutilized++
			recommendations++
			potentialMonthlyDBU := float64(workers+1) * 8 * 30 * 0.3
			totalSavings += potentialMonthlyDBU * h.dbuRateUSD
		}
		if workers >= 20 {
			oversized++
		}
	}

	writeJSON(w, http.StatusOK, OptimizationSummary{
		TotalClustersAnalyzed:        len(clusters),
		OversizedClusters:            oversized,
		UnderutilizedClusters:        underutilized,
		TotalPotentialMonthlySavings: math.Round(totalSavings*100) / 100,
		RecommendationsCount:         recommendations,
		LastAnalysisTime:             time.Now().UTC().Format(time.RFC3339),
	})
}

// OversizedClusters flags clusters at or above a worker threshold, assuming
// 50% efficiency absent historical data.
func (h *OptimizationHandler) OversizedClusters(w http.ResponseWriter, r *http.Request) {
	minWorkers := queryInt(r, "min_workers", 10, 1, 10000)

	clusters, err := h.listClusters(r.Context())
	if err != nil {
		h.log.Errorw("failed to list clusters", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := []OversizedClusterAnalysis{}
	for i := range clusters {
		c := &clusters[i]
		workers := c.EffectiveWorkers()
		if workers < minWorkers {
			continue
		}

		const avgEfficiency = 50.0
		avgDailyDBU := float64(workers+1) * optimizer.AssumedUptimeHoursPerDay

		recommended := int(float64(workers) * avgEfficiency / 100)
		if recommended < 2 {
			recommended = 2
		}

		reduction := workers - recommended
		dailyDBUSavings := float64(reduction) * optimizer.AssumedUptimeHoursPerDay
		monthlyCostSavings := dailyDBUSavings * 30 * h.dbuRateUSD

		results = append(results, OversizedClusterAnalysis{
			ClusterID:           c.ClusterID,
			ClusterName:         c.DisplayName(),
			ClusterType:         optimizer.ClassifyCluster(c.ClusterSource),
			CurrentWorkers:      workers,
			AvgEfficiencyScore:  avgEfficiency,
			AvgDailyDBU:         avgDailyDBU,
			RecommendedWorkers:  recommended,
			PotentialDBUSavings: math.Round(dailyDBUSavings*100) / 100,
			PotentialCostSaving: math.Round(monthlyCostSavings*100) / 100,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].PotentialCostSaving > results[j].PotentialCostSaving
	})
	writeJSON(w, http.StatusOK, results)
}

// JobRecommendations surfaces consolidation and always-on conversion
// opportunities from cluster ownership and configuration patterns.
func (h *OptimizationHandler) JobRecommendations(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.listClusters(r.Context())
	if err != nil {
		h.log.Errorw("failed to list clusters", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	recs := []JobClusterRecommendation{}

	byUser := map[string][]*workspace.Cluster{}
	var userOrder []string
	var largeInteractive []*workspace.Cluster
	var alwaysOn []*workspace.Cluster

	for i := range clusters {
		c := &clusters[i]
		creator := c.CreatorUserName
		if creator == "" {
			creator = "unknown"
		}
		if _, seen := byUser[creator]; !seen {
			userOrder = append(userOrder, creator)
		}
		byUser[creator] = append(byUser[creator], c)

		workers := c.EffectiveWorkers()
		if optimizer.ClassifyCluster(c.ClusterSource) == optimizer.TypeInteractive && workers >= 4 {
			largeInteractive = append(largeInteractive, c)
		}
		if c.AutoterminationMinutes == 0 && c.State == workspace.StateRunning && workers >= 2 {
			alwaysOn = append(alwaysOn, c)
		}
	}

	// Users with three or more clusters probably have duplicates.
	for _, user := range userOrder {
		userClusters := byUser[user]
		if len(userClusters) >= 3 {
			var running, terminated []*workspace.Cluster
			for _, c := range userClusters {
				switch c.State {
				case workspace.StateRunning:
					running = append(running, c)
				case workspace.StateTerminated:
					terminated = append(terminated, c)
				}
			}

			if len(running) >= 2 {
				shortUser, _, _ := strings.Cut(user, "@")
				recs = append(recs, JobClusterRecommendation{
					SourceClusterID:   running[0].ClusterID,
					SourceClusterName: running[0].DisplayName(),
					TargetClusterID:   running[1].ClusterID,
					TargetClusterName: running[1].DisplayName(),
					JobCount:          len(running),
					Reason:            fmt.Sprintf("User %s has %d running clusters. Consider consolidating workloads.", shortUser, len(running)),
					EstimatedSavings:  "$100-500/month by reducing duplicate clusters",
				})
			} else if len(terminated) > 0 && len(running) > 0 {
				recs = append(recs, JobClusterRecommendation{
					SourceClusterID:   terminated[0].ClusterID,
					SourceClusterName: terminated[0].DisplayName(),
					TargetClusterID:   running[0].ClusterID,
					TargetClusterName: running[0].DisplayName(),
					JobCount:          len(terminated),
					Reason:            fmt.Sprintf("User has %d terminated clusters that could be cleaned up or consolidated.", len(terminated)),
					EstimatedSavings:  "Simplified management, reduced clutter",
				})
			}
		}
		if len(recs) >= 5 {
			break
		}
	}

	// Always-on clusters should run as jobs or serverless.
	for i, c := range alwaysOn {
		if i >= 3 || len(recs) >= 8 {
			break
		}
		workers := c.EffectiveWorkers()
		monthlyCost := float64(workers+1) * optimizer.AlwaysOnHoursPerMonth * h.dbuRateUSD

		recs = append(recs, JobClusterRecommendation{
			SourceClusterID:   c.ClusterID,
			SourceClusterName: c.DisplayName(),
			TargetClusterID:   c.ClusterID,
			TargetClusterName: "Serverless or Job Cluster",
			JobCount:          1,
			Reason:            fmt.Sprintf("Running 24/7 without auto-terminate (~$%.0f/mo). Consider serverless or job clusters for workloads.", monthlyCost),
			EstimatedSavings:  fmt.Sprintf("Up to $%.0f/month with on-demand compute", monthlyCost*0.7),
		})
	}

	// Interactive clusters with identical node type and runtime could share.
	if len(recs) < 5 && len(largeInteractive) >= 2 {
		limit := len(largeInteractive)
		if limit > 5 {
			limit = 5
		}
		for i := 0; i < limit && len(recs) < 8; i++ {
			c1 := largeInteractive[i]
			end := len(largeInteractive)
			if end > 6 {
				end = 6
			}
			for _, c2 := range largeInteractive[i+1 : end] {
				if c1.NodeTypeID == c2.NodeTypeID && c1.SparkVersion == c2.SparkVersion {
					recs = append(recs, JobClusterRecommendation{
						SourceClusterID:   c1.ClusterID,
						SourceClusterName: c1.DisplayName(),
						TargetClusterID:   c2.ClusterID,
						TargetClusterName: c2.DisplayName(),
						JobCount:          2,
						Reason:            "Similar config (same node type & runtime). Consider sharing one cluster.",
						EstimatedSavings:  "$50-300/month by sharing resources",
					})
					break
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, recs)
}

// ScheduleRecommendations flags missing or overly long auto-termination on
// clusters of at least two workers.
func (h *OptimizationHandler) ScheduleRecommendations(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.listClusters(r.Context())
	if err != nil {
		h.log.Errorw("failed to list clusters", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	peakHours := []int{9, 10, 11, 14, 15, 16}

	recs := []ScheduleRecommendation{}
	for i := range clusters {
		c := &clusters[i]
		if c.State != workspace.StateRunning && c.State != workspace.StateTerminated {
			continue
		}
		if c.EffectiveWorkers() < 2 {
			continue
		}

		switch {
		case c.AutoterminationMinutes == 0:
			recs = append(recs, ScheduleRecommendation{
				ClusterID:                       c.ClusterID,
				ClusterName:                     c.DisplayName(),
				CurrentAutoTerminateMinutes:     0,
				RecommendedAutoTerminateMinutes: 60,
				AvgIdleTimePerDayMinutes:        120.0,
				PeakUsageHours:                  peakHours,
				Reason:                          "No auto-termination configured. Recommended: 60 minutes to prevent idle costs.",
			})
		case c.AutoterminationMinutes > 120:
			recs = append(recs, ScheduleRecommendation{
				ClusterID:                       c.ClusterID,
				ClusterName:                     c.DisplayName(),
				CurrentAutoTerminateMinutes:     c.AutoterminationMinutes,
				RecommendedAutoTerminateMinutes: 60,
				AvgIdleTimePerDayMinutes:        float64(c.AutoterminationMinutes - 60),
				PeakUsageHours:                  peakHours,
				Reason:                          fmt.Sprintf("Auto-termination of %d minutes is long. Consider reducing to 60-90 minutes.", c.AutoterminationMinutes),
			})
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].AvgIdleTimePerDayMinutes > recs[j].AvgIdleTimePerDayMinutes
	})
	writeJSON(w, http.StatusOK, recs)
}

// CollectMetrics triggers one on-demand metrics collection pass.
func (h *OptimizationHandler) CollectMetrics(w http.ResponseWriter, r *http.Request) {
	result, err := h.collector.Run(r.Context())
	if err != nil {
		h.log.Errorw("failed to collect metrics", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// History returns one cluster's daily utilization rows.
func (h *OptimizationHandler) History(w http.ResponseWriter, r *http.Request) {
	clusterID := chi.URLParam(r, "clusterID")
	days := queryInt(r, "days", 30, 1, 90)

	metrics, err := h.db.History(r.Context(), clusterID, days)
	if err != nil {
		h.log.Warnw("could not fetch cluster history", "cluster_id", clusterID, "error", err)
		writeJSON(w, http.StatusOK, []store.UtilizationMetric{})
		return
	}
	if metrics == nil {
		metrics = []store.UtilizationMetric{}
	}
	writeJSON(w, http.StatusOK, metrics)
}

// Trends returns fleet-wide daily aggregates with moving averages.
func (h *OptimizationHandler) Trends(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30, 7, 90)
	window := queryInt(r, "moving_avg_window", 7, 3, 14)

	resp, err := h.db.Trends(r.Context(), days, window)
	if err != nil {
		h.log.Warnw("could not fetch utilization trends", "error", err)
		writeJSON(w, http.StatusOK, store.TrendsResponse{
			Summary: store.TrendSummary{
				PeriodDays:      days,
				MovingAvgWindow: window,
				Message:         "No historical data available. Run 'Collect Metrics' to start gathering utilization data.",
			},
			Trends: []store.TrendPoint{},
		})
		return
	}
	if resp.Trends == nil {
		resp.Trends = []store.TrendPoint{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// SparkConfigRecommendations runs the Spark-configuration analyzer across
// the fleet.
func (h *OptimizationHandler) SparkConfigRecommendations(w http.ResponseWriter, r *http.Request) {
	analyzeFleet(h, w, r, optimizer.AnalyzeSparkConfig)
}

// CostRecommendations runs the cost analyzer across the fleet.
func (h *OptimizationHandler) CostRecommendations(w http.ResponseWriter, r *http.Request) {
	analyzeFleet(h, w, r, optimizer.AnalyzeCost)
}

// AutoscalingRecommendations runs the autoscaling analyzer across the fleet.
func (h *OptimizationHandler) AutoscalingRecommendations(w http.ResponseWriter, r *http.Request) {
	analyzeFleet(h, w, r, optimizer.AnalyzeAutoscaling)
}

// NodeTypeRecommendations runs the node-type analyzer across the fleet.
func (h *OptimizationHandler) NodeTypeRecommendations(w http.ResponseWriter, r *http.Request) {
	analyzeFleet(h, w, r, optimizer.AnalyzeNodeType)
}

func analyzeFleet[T optimizer.FleetAnalysis](h *OptimizationHandler, w http.ResponseWriter, r *http.Request, fn func(*workspace.Cluster) T) {
	includeNoIssues := queryBool(r, "include_no_issues")

	clusters, err := h.listClusters(r.Context())
	if err != nil {
		h.log.Errorw("failed to list clusters", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := optimizer.AnalyzeFleet(clusters, fn, includeNoIssues, h.log)
	if results == nil {
		results = []T{}
	}
	writeJSON(w, http.StatusOK, results)
}
