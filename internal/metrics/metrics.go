// Package metrics derives fleet-level health signals from the current
// cluster list: state counts, idle-cluster alerts, and configuration
// recommendations. Everything here is pure; the caller supplies the cluster
// list and the clock.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/lakeops/lakeops/internal/optimizer"
	"github.com/lakeops/lakeops/internal/workspace"
)

// IdleThresholdMinutes is how long a running cluster must sit without
// activity before it is flagged as idle.
const IdleThresholdMinutes = 30

// Summary aggregates cluster counts and usage estimates per state.
type Summary struct {
	TotalClusters       int     `json:"total_clusters"`
	RunningClusters     int     `json:"running_clusters"`
	PendingClusters     int     `json:"pending_clusters"`
	TerminatedClusters  int     `json:"terminated_clusters"`
	TotalRunningWorkers int     `json:"total_running_workers"`
	EstimatedHourlyDBU  float64 `json:"estimated_hourly_dbu"`
}

// IdleClusterAlert flags one running cluster that has been idle past the
// threshold.
type IdleClusterAlert struct {
	ClusterID           string  `json:"cluster_id"`
	ClusterName         string  `json:"cluster_name"`
	IdleDurationMinutes int     `json:"idle_duration_minutes"`
	EstimatedWastedDBU  float64 `json:"estimated_wasted_dbu"`
	Recommendation      string  `json:"recommendation"`
}

// Recommendation is one configuration finding from the generic checks.
type Recommendation struct {
	ClusterID        string             `json:"cluster_id"`
	ClusterName      string             `json:"cluster_name"`
	Issue            string             `json:"issue"`
	Recommendation   string             `json:"recommendation"`
	PotentialSavings string             `json:"potential_savings"`
	Priority         optimizer.Severity `json:"priority"`
}

// Summarize computes state counts, running worker totals, and a rough hourly
// usage estimate (one unit per node per hour, driver included) over the
// cluster list.
func Summarize(clusters []workspace.Cluster) Summary {
	s := Summary{TotalClusters: len(clusters)}
	for i := range clusters {
		c := &clusters[i]
		switch c.State {
		case workspace.StateRunning:
			s.RunningClusters++
			s.TotalRunningWorkers += c.EffectiveWorkers()
			s.EstimatedHourlyDBU += fractionalWorkers(c) + 1
		case workspace.StatePending:
			s.PendingClusters++
		case workspace.StateTerminated:
			s.TerminatedClusters++
		}
	}
	return s
}

// fractionalWorkers is the autoscale midpoint without integer truncation;
// usage estimates keep the half-worker.
func fractionalWorkers(c *workspace.Cluster) float64 {
	if c.Autoscale != nil {
		return float64(c.Autoscale.MinWorkers+c.Autoscale.MaxWorkers) / 2
	}
	return float64(c.NumWorkers)
}

// IdleClusters flags running clusters whose last activity (or start, when no
// activity was recorded) is at least 30 minutes before now, with a wasted
// usage estimate of one unit per node per idle hour. Sorted by wasted usage,
// highest first.
func IdleClusters(clusters []workspace.Cluster, now time.Time) []IdleClusterAlert {
	var alerts []IdleClusterAlert

	for i := range clusters {
		c := &clusters[i]
		if c.State != workspace.StateRunning {
			continue
		}

		lastActivity := c.LastActivityTime
		if lastActivity == 0 {
			lastActivity = c.StartTime
		}
		if lastActivity == 0 {
			continue
		}

		idleMinutes := int(now.Sub(time.UnixMilli(lastActivity)).Minutes())
		if idleMinutes < IdleThresholdMinutes {
			continue
		}

		wastedDBU := (fractionalWorkers(c) + 1) * float64(idleMinutes) / 60

		recommendation := "Consider stopping this cluster to save costs"
		if c.AutoterminationMinutes == 0 {
			recommendation = "Configure auto-termination to prevent idle costs"
		}

		alerts = append(alerts, IdleClusterAlert{
			ClusterID:           c.ClusterID,
			ClusterName:         c.DisplayName(),
			IdleDurationMinutes: idleMinutes,
			EstimatedWastedDBU:  math.Round(wastedDBU*100) / 100,
			Recommendation:      recommendation,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].EstimatedWastedDBU > alerts[j].EstimatedWastedDBU
	})
	return alerts
}

// Recommendations runs the generic configuration checks over the cluster
// list: missing auto-termination, large fixed sizes, long uptimes, wide
// autoscale ranges, and old runtime versions. The result is sorted by
// priority, high first, stable within a priority.
func Recommendations(clusters []workspace.Cluster, now time.Time) []Recommendation {
	var recs []Recommendation

	for i := range clusters {
		c := &clusters[i]
		name := c.DisplayName()

		if c.State == workspace.StateRunning && c.AutoterminationMinutes == 0 {
			recs = append(recs, Recommendation{
				ClusterID:        c.ClusterID,
				ClusterName:      name,
				Issue:            "No auto-termination configured",
				Recommendation:   "Set auto-termination to 30-120 minutes to prevent idle costs",
				PotentialSavings: "Up to $50-200/month depending on usage",
				Priority:         optimizer.SeverityHigh,
			})
		}

		if c.NumWorkers >= 10 && c.Autoscale == nil {
			recs = append(recs, Recommendation{
				ClusterID:        c.ClusterID,
				ClusterName:      name,
				Issue:            fmt.Sprintf("Large fixed-size cluster (%d workers)", c.NumWorkers),
				Recommendation:   "Consider enabling autoscaling to match workload demand",
				PotentialSavings: "10-40% cost reduction during low-demand periods",
				Priority:         optimizer.SeverityMedium,
			})
		}

		if c.State == workspace.StateRunning && c.StartTime > 0 {
			runningHours := now.Sub(time.UnixMilli(c.StartTime)).Hours()
			if runningHours > 24 {
				priority := optimizer.SeverityMedium
				if runningHours >= 72 {
					priority = optimizer.SeverityHigh
				}
				recs = append(recs, Recommendation{
					ClusterID:        c.ClusterID,
					ClusterName:      name,
					Issue:            fmt.Sprintf("Cluster running for %d hours", int(runningHours)),
					Recommendation:   "Verify this cluster is actively needed; consider jobs clusters for batch workloads",
					PotentialSavings: "Varies by workload pattern",
					Priority:         priority,
				})
			}
		}

		if c.Autoscale != nil && c.Autoscale.MaxWorkers-c.Autoscale.MinWorkers > 20 {
			recs = append(recs, Recommendation{
				ClusterID:        c.ClusterID,
				ClusterName:      name,
				Issue:            fmt.Sprintf("Wide autoscale range (%d-%d workers)", c.Autoscale.MinWorkers, c.Autoscale.MaxWorkers),
				Recommendation:   "Review if this range is necessary; consider tighter bounds for predictable workloads",
				PotentialSavings: "More predictable costs and faster scaling",
				Priority:         optimizer.SeverityLow,
			})
		}

		if major, ok := runtimeMajor(c.SparkVersion); ok && major < 13 {
			recs = append(recs, Recommendation{
				ClusterID:        c.ClusterID,
				ClusterName:      name,
				Issue:            fmt.Sprintf("Using older Databricks Runtime: %s", c.SparkVersion),
				Recommendation:   "Consider upgrading to a newer runtime for better performance and features",
				PotentialSavings: "Up to 20% performance improvement with newer runtimes",
				Priority:         optimizer.SeverityLow,
			})
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return optimizer.SeverityRank(recs[i].Priority) < optimizer.SeverityRank(recs[j].Priority)
	})
	return recs
}

// runtimeMajor extracts the leading major version of a runtime string like
// "12.2.x-scala2.12".
func runtimeMajor(version string) (int, bool) {
	if version == "" {
		return 0, false
	}
	head, _, _ := strings.Cut(version, ".")
	var major int
	for _, r := range head {
		if r < '0' || r > '9' {
			return 0, false
		}
		major = major*10 + int(r-'0')
	}
	if head == "" {
		return 0, false
	}
	return major, true
}
