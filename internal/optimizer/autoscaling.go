package optimizer

import (
	"fmt"

	"github.com/lakeops/lakeops/internal/workspace"
)

// AnalyzeAutoscaling inspects a cluster's autoscale bounds and
// auto-termination setting. Rules are evaluated independently: a cluster can
// trip the high-minimum rule and the missing-auto-termination rule in the
// same pass. Total savings are capped at 80%.
func AnalyzeAutoscaling(cluster *workspace.Cluster) *AutoscalingAnalysis {
	clusterID := cluster.ClusterID
	clusterName := cluster.DisplayName()
	clusterType := ClassifyCluster(cluster.ClusterSource)
	autoscale := cluster.Autoscale
	autoTerminate := cluster.AutoterminationMinutes
	currentWorkers := cluster.NumWorkers

	var recs []AutoscalingRecommendation
	var minWorkers, maxWorkers, autoscaleRange *int
	var rangeRatio *float64

	if autoscale != nil {
		mn, mx := autoscale.MinWorkers, autoscale.MaxWorkers
		rng := mx - mn
		minWorkers, maxWorkers, autoscaleRange = &mn, &mx, &rng
		if mn > 0 {
			ratio := float64(mx) / float64(mn)
			rangeRatio = &ratio
		}
		currentWorkers = (mn + mx) / 2

		// Wide range: max >> min suggests uncertainty about actual needs.
		if rangeRatio != nil && *rangeRatio >= 5 && rng >= 10 {
			recs = append(recs, AutoscalingRecommendation{
				ClusterID:               clusterID,
				ClusterName:             clusterName,
				IssueType:               IssueWideRange,
				CurrentConfig:           fmt.Sprintf("Autoscale: %d to %d workers (range: %d, ratio: %.1fx)", mn, mx, rng, *rangeRatio),
				Recommendation:          "Narrow the autoscale range based on actual usage patterns",
				EstimatedSavingsPercent: 20.0,
				Severity:                SeverityMedium,
				Reason:                  fmt.Sprintf("Autoscale range is very wide (%.1fx ratio). This suggests uncertainty about workload requirements. A very wide range can lead to slow scale-up times and unpredictable costs. Consider analyzing actual usage to set tighter bounds.", *rangeRatio),
				ImplementationSteps: []string{
					"Review cluster metrics to understand actual peak usage",
					fmt.Sprintf("If typical usage is %d-%d workers, adjust max accordingly", mn+rng/4, mn+rng/2),
					"Consider setting max_workers to 2-3x typical usage for burst capacity",
					"Monitor for throttling after adjustment",
				},
			})
		}

		// Narrow range: autoscaling overhead not worth it.
		if rng <= 2 && mn >= 4 {
			recs = append(recs, AutoscalingRecommendation{
				ClusterID:               clusterID,
				ClusterName:             clusterName,
				IssueType:               IssueNarrowRange,
				CurrentConfig:           fmt.Sprintf("Autoscale: %d to %d workers (range: %d)", mn, mx, rng),
				Recommendation:          "Consider using fixed-size cluster or widening the range",
				EstimatedSavingsPercent: 5.0,
				Severity:                SeverityLow,
				Reason:                  fmt.Sprintf("Autoscale range is very narrow (%d workers). The overhead of autoscaling may not be worth it for such a small range. Consider either a fixed-size cluster (simpler, more predictable) or widening the range to get real benefit from autoscaling.", rng),
				ImplementationSteps: []string{
					"Evaluate if workload actually varies",
					fmt.Sprintf("For stable workloads: use fixed %d workers", mx),
					fmt.Sprintf("For variable workloads: consider expanding range (e.g., %d to %d)", mn/2, mx*2),
					"Fixed-size clusters have faster startup (no scaling delay)",
				},
			})
		}

		// High minimum: capacity paid for even during idle periods.
		if mn >= 8 {
			// Assume the cluster sits at minimum half the time.
			idleSavings := float64(mn-2) / float64(mn) * 50
			severity := SeverityMedium
			if mn >= 16 {
				severity = SeverityHigh
			}
			recs = append(recs, AutoscalingRecommendation{
				ClusterID:               clusterID,
				ClusterName:             clusterName,
				IssueType:               IssueHighMinimum,
				CurrentConfig:           fmt.Sprintf("min_workers: %d", mn),
				Recommendation:          "Reduce min_workers to 1-2 and rely on autoscaling",
				EstimatedSavingsPercent: round1(idleSavings),
				Severity:                severity,
				Reason:                  fmt.Sprintf("High minimum workers (%d) means paying for significant capacity even during low-usage periods. Unless your workload requires constant high capacity, reducing min_workers can significantly reduce idle costs while autoscaling handles peak demand.", mn),
				ImplementationSteps: []string{
					"Analyze when peak usage actually occurs",
					"For interactive clusters: set min_workers=1 or 2",
					"For job clusters: consider min_workers=0 (scale from zero)",
					fmt.Sprintf("Keep max_workers=%d for peak capacity", mx),
					"Combine with auto-termination for further savings",
				},
			})
		} else if mn >= 4 && clusterType == TypeInteractive {
			recs = append(recs, AutoscalingRecommendation{
				ClusterID:               clusterID,
				ClusterName:             clusterName,
				IssueType:               IssueHighMinimum,
				CurrentConfig:           fmt.Sprintf("min_workers: %d", mn),
				Recommendation:          "Reduce min_workers for interactive cluster",
				EstimatedSavingsPercent: 15.0,
				Severity:                SeverityLow,
				Reason:                  fmt.Sprintf("Interactive clusters often have variable usage patterns. With min_workers=%d, you pay for this capacity even when users aren't active. Reducing to 1-2 workers lets autoscaling handle demand while reducing idle costs.", mn),
				ImplementationSteps: []string{
					"Set min_workers=1 for interactive clusters",
					"Enable auto-termination (60-120 min) for fully idle periods",
					fmt.Sprintf("max_workers=%d ensures capacity for peak times", mx),
				},
			})
		}

		// Job clusters should scale from zero.
		if clusterType == TypeJob && mn > 0 {
			recs = append(recs, AutoscalingRecommendation{
				ClusterID:               clusterID,
				ClusterName:             clusterName,
				IssueType:               IssueInefficientRange,
				CurrentConfig:           fmt.Sprintf("Job cluster with min_workers=%d", mn),
				Recommendation:          "Consider min_workers=0 for job clusters",
				EstimatedSavingsPercent: 25.0,
				Severity:                SeverityMedium,
				Reason:                  "Job clusters typically run on-demand workloads. Setting min_workers=0 allows the cluster to scale to zero when not running jobs, eliminating idle costs completely. Jobs will trigger scale-up automatically.",
				ImplementationSteps: []string{
					"Edit autoscale configuration",
					"Set min_workers=0 to enable scale-to-zero",
					"Jobs will automatically scale up workers as needed",
					"Consider job clusters for sporadic workloads",
				},
			})
		}
	} else {
		if currentWorkers >= 4 {
			recs = append(recs, AutoscalingRecommendation{
				ClusterID:               clusterID,
				ClusterName:             clusterName,
				IssueType:               IssueNoAutoscaling,
				CurrentConfig:           fmt.Sprintf("Fixed size: %d workers", currentWorkers),
				Recommendation:          "Enable autoscaling to reduce idle costs",
				EstimatedSavingsPercent: 35.0,
				Severity:                SeverityHigh,
				Reason:                  fmt.Sprintf("Fixed-size clusters with %d workers pay for full capacity continuously. Autoscaling can significantly reduce costs by scaling down during low-usage periods while maintaining capacity for peak demand.", currentWorkers),
				ImplementationSteps: []string{
					"Edit cluster configuration",
					"Enable autoscaling with min_workers=1",
					fmt.Sprintf("Set max_workers=%d to maintain peak capacity", currentWorkers),
					"Also enable auto-termination (60-120 min) for full idle periods",
				},
			})
		}

		if autoTerminate == 0 && currentWorkers >= 2 {
			recs = append(recs, AutoscalingRecommendation{
				ClusterID:               clusterID,
				ClusterName:             clusterName,
				IssueType:               IssueInefficientRange,
				CurrentConfig:           "Auto-termination: disabled",
				Recommendation:          "Enable auto-termination to stop idle clusters",
				EstimatedSavingsPercent: 40.0,
				Severity:                SeverityHigh,
				Reason:                  "Without auto-termination, clusters run 24/7 even when completely idle. Enabling auto-termination (e.g., 60-120 minutes) automatically stops clusters after periods of inactivity, eliminating idle costs.",
				ImplementationSteps: []string{
					"Edit cluster configuration",
					"Set autotermination_minutes to 60-120",
					"Cluster will automatically stop after idle period",
					"Start-up time is typically 2-5 minutes when needed",
				},
			})
		}
	}

	if autoscale != nil && autoTerminate == 0 {
		recs = append(recs, AutoscalingRecommendation{
			ClusterID:               clusterID,
			ClusterName:             clusterName,
			IssueType:               IssueInefficientRange,
			CurrentConfig:           "Autoscaling enabled but no auto-termination",
			Recommendation:          "Enable auto-termination for complete cost optimization",
			EstimatedSavingsPercent: 20.0,
			Severity:                SeverityMedium,
			Reason:                  "While autoscaling reduces costs during low-usage, without auto-termination the cluster still runs at min_workers when completely idle. Enable auto-termination to stop the cluster entirely during extended idle periods.",
			ImplementationSteps: []string{
				"Set autotermination_minutes to 60-120",
				"Cluster will terminate after inactivity",
				"Combined with autoscaling: scales down first, then terminates if fully idle",
			},
		})
	}

	totalSavings := 0.0
	for _, r := range recs {
		totalSavings += r.EstimatedSavingsPercent
	}
	if totalSavings > 80.0 {
		totalSavings = 80.0
	}

	if rangeRatio != nil {
		rounded := round2(*rangeRatio)
		rangeRatio = &rounded
	}

	return &AutoscalingAnalysis{
		ClusterID:                    clusterID,
		ClusterName:                  clusterName,
		ClusterType:                  clusterType,
		HasAutoscaling:               autoscale != nil,
		MinWorkers:                   minWorkers,
		MaxWorkers:                   maxWorkers,
		CurrentWorkers:               currentWorkers,
		AutoscaleRange:               autoscaleRange,
		RangeRatio:                   rangeRatio,
		AutoTerminateMinutes:         autoTerminate,
		TotalIssues:                  len(recs),
		TotalPotentialSavingsPercent: round1(totalSavings),
		Recommendations:              recs,
	}
}
