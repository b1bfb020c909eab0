package optimizer

import (
	"fmt"
	"strings"

	"github.com/lakeops/lakeops/internal/workspace"
)

// GPU family substrings flagged by the cost analyzer regardless of cloud.
var gpuNodeHints = []string{"p3", "p4", "g4", "g5", "gpu", "a10", "v100", "a100", "t4"}

// Instance size tokens that mark a node as very large.
var veryLargeSizeHints = []string{"24xlarge", "16xlarge", "12xlarge", "metal"}

// AnalyzeCost inspects a cluster's pricing-relevant configuration — spot
// usage, on-demand mix, node size, storage type, autoscaling — and estimates
// the savings each finding could unlock. Total savings are capped at 90%.
func AnalyzeCost(cluster *workspace.Cluster) *CostAnalysis {
	clusterID := cluster.ClusterID
	clusterName := cluster.DisplayName()
	provider := cluster.Provider()
	clusterType := ClassifyCluster(cluster.ClusterSource)
	numWorkers := cluster.EffectiveWorkers()
	usesSpot := cluster.UsesSpot()

	var recs []CostRecommendation
	var spotBidPrice, firstOnDemand int
	var availabilityZone, ebsVolumeType string

	switch provider {
	case workspace.CloudAWS:
		attrs := cluster.AWSAttributes
		spotBidPrice = attrs.SpotBidPricePercent
		firstOnDemand = attrs.FirstOnDemand
		availabilityZone = attrs.ZoneID
		ebsVolumeType = attrs.EBSVolumeType

		if !usesSpot && numWorkers >= 2 && (clusterType == TypeInteractive || clusterType == TypeJob) {
			recs = append(recs, CostRecommendation{
				ClusterID:               clusterID,
				ClusterName:             clusterName,
				Category:                CostSpotInstances,
				CurrentState:            "On-Demand instances only",
				Recommendation:          "Use Spot instances with fallback to On-Demand",
				EstimatedSavingsPercent: 60.0,
				Severity:                SeverityHigh,
				Reason:                  "Spot instances can reduce compute costs by up to 70% compared to On-Demand. For fault-tolerant workloads, use SPOT_WITH_FALLBACK to automatically switch to On-Demand if Spot capacity is unavailable.",
				ImplementationSteps: []string{
					"Edit cluster configuration",
					"Under Advanced Options > Instances, set Availability to 'Spot with fallback'",
					"Set first_on_demand to 1 (keeps driver on On-Demand for stability)",
					"Save and restart cluster",
				},
			})
		}

		if usesSpot && firstOnDemand > 0 && numWorkers > 0 {
			onDemandRatio := float64(firstOnDemand) / float64(numWorkers+1)
			if onDemandRatio > 0.5 {
				recs = append(recs, CostRecommendation{
					ClusterID:               clusterID,
					ClusterName:             clusterName,
					Category:                CostSpotInstances,
					CurrentState:            fmt.Sprintf("%d On-Demand nodes out of %d total", firstOnDemand, numWorkers+1),
					Recommendation:          "Reduce first_on_demand to 1 (driver only)",
					EstimatedSavingsPercent: 30.0,
					Severity:                SeverityMedium,
					Reason:                  fmt.Sprintf("Currently %d%% of nodes are On-Demand. For most workloads, only the driver needs On-Demand for stability. Workers can safely use Spot instances.", int(onDemandRatio*100)),
					ImplementationSteps: []string{
						"Edit cluster configuration",
						"Under Advanced Options > Instances, set first_on_demand to 1",
						"This keeps driver stable while workers use cost-effective Spot instances",
					},
				})
			}
		}

		if ebsVolumeType == "GENERAL_PURPOSE_SSD" && clusterType == TypeJob {
			recs = append(recs, CostRecommendation{
				ClusterID:               clusterID,
				ClusterName:             clusterName,
				Category:                CostStorage,
				CurrentState:            fmt.Sprintf("EBS Volume Type: %s", ebsVolumeType),
				Recommendation:          "Consider THROUGHPUT_OPTIMIZED_HDD for batch jobs",
				EstimatedSavingsPercent: 15.0,
				Severity:                SeverityLow,
				Reason:                  "For batch/ETL jobs that don't require low-latency storage, Throughput Optimized HDD can reduce storage costs while maintaining good sequential read/write performance.",
				ImplementationSteps: []string{
					"Edit cluster configuration",
					"Under Advanced Options > Instances, change EBS Volume Type",
					"Select Throughput Optimized HDD for batch workloads",
				},
			})
		}

	case workspace.CloudAzure:
		firstOnDemand = cluster.AzureAttributes.FirstOnDemand

		if !usesSpot && numWorkers >= 2 && (clusterType == TypeInteractive || clusterType == TypeJob) {
			recs = append(recs, CostRecommendation{
				ClusterID:               clusterID,
				ClusterName:             clusterName,
				Category:                CostSpotInstances,
				CurrentState:            "On-Demand VMs only",
				Recommendation:          "Use Azure Spot VMs with fallback",
				EstimatedSavingsPercent: 60.0,
				Severity:                SeverityHigh,
				Reason:                  "Azure Spot VMs can reduce compute costs by up to 90% compared to On-Demand. For fault-tolerant workloads, use Spot with fallback to automatically switch to On-Demand if Spot capacity is unavailable.",
				ImplementationSteps: []string{
					"Edit cluster configuration",
					"Under Azure Options, set Availability to 'Spot with fallback'",
					"Set first_on_demand to 1 for driver stability",
				},
			})
		}

	case workspace.CloudGCP:
		if !usesSpot && numWorkers >= 2 && (clusterType == TypeInteractive || clusterType == TypeJob) {
			recs = append(recs, CostRecommendation{
				ClusterID:               clusterID,
				ClusterName:             clusterName,
				Category:                CostSpotInstances,
				CurrentState:            "Standard VMs only",
				Recommendation:          "Use Preemptible VMs for workers",
				EstimatedSavingsPercent: 60.0,
				Severity:                SeverityHigh,
				Reason:                  "GCP Preemptible VMs can reduce compute costs by up to 80%. For Spark workloads that can tolerate interruptions, preemptible workers provide significant cost savings.",
				ImplementationSteps: []string{
					"Edit cluster configuration",
					"Under GCP Options, enable 'Use preemptible executors'",
					"Keep driver as standard VM for stability",
				},
			})
		}
	}

	nodeType := cluster.NodeTypeID
	driverNodeType := cluster.DriverNodeTypeID
	if driverNodeType == "" {
		driverNodeType = nodeType
	}

	if nodeType != "" {
		nodeTypeLower := strings.ToLower(nodeType)

		if containsAny(nodeTypeLower, gpuNodeHints) && clusterType != TypeModels {
			recs = append(recs, CostRecommendation{
				ClusterID:               clusterID,
				ClusterName:             clusterName,
				Category:                CostNodeType,
				CurrentState:            fmt.Sprintf("Node type: %s (GPU instance)", nodeType),
				Recommendation:          "Use non-GPU instances for non-ML workloads",
				EstimatedSavingsPercent: 70.0,
				Severity:                SeverityHigh,
				Reason:                  "This cluster uses GPU instances but doesn't appear to be an ML workload. GPU instances are 3-10x more expensive than comparable CPU instances. Consider switching to memory or compute-optimized instances.",
				ImplementationSteps: []string{
					"Review if workload actually requires GPU",
					"For SQL/ETL workloads, use r5/r6i (memory-optimized) or c5/c6i (compute-optimized)",
					"Edit cluster and select appropriate instance type",
				},
			})
		}

		if containsAny(nodeTypeLower, veryLargeSizeHints) && numWorkers <= 2 {
			recs = append(recs, CostRecommendation{
				ClusterID:               clusterID,
				ClusterName:             clusterName,
				Category:                CostNodeType,
				CurrentState:            fmt.Sprintf("Node type: %s (very large instance)", nodeType),
				Recommendation:          "Consider smaller instances with more workers",
				EstimatedSavingsPercent: 20.0,
				Severity:                SeverityMedium,
				Reason:                  "Using very large instances with few workers can be less cost-effective and provide less parallelism than smaller instances with more workers. Consider scaling out instead of scaling up.",
				ImplementationSteps: []string{
					"Evaluate workload parallelism requirements",
					"Consider using smaller instances (4xlarge/8xlarge) with more workers",
					"This often provides better cost/performance ratio for distributed workloads",
				},
			})
		}
	}

	if as := cluster.Autoscale; as != nil {
		if as.MaxWorkers-as.MinWorkers > 20 && as.MinWorkers > 5 {
			recs = append(recs, CostRecommendation{
				ClusterID:               clusterID,
				ClusterName:             clusterName,
				Category:                CostAutoscaling,
				CurrentState:            fmt.Sprintf("Autoscale: %d to %d workers", as.MinWorkers, as.MaxWorkers),
				Recommendation:          "Consider reducing min_workers",
				EstimatedSavingsPercent: 25.0,
				Severity:                SeverityMedium,
				Reason:                  fmt.Sprintf("High minimum workers (%d) means paying for capacity even during low-usage periods. Consider reducing min_workers to 1-2 and letting autoscaling add capacity as needed.", as.MinWorkers),
				ImplementationSteps: []string{
					"Analyze actual usage patterns",
					"Reduce min_workers to 1-2 for interactive clusters",
					"Keep max_workers for peak capacity",
					"Use auto-termination to stop idle clusters",
				},
			})
		}
	} else if numWorkers >= 4 {
		recs = append(recs, CostRecommendation{
			ClusterID:               clusterID,
			ClusterName:             clusterName,
			Category:                CostAutoscaling,
			CurrentState:            fmt.Sprintf("Fixed size: %d workers", numWorkers),
			Recommendation:          "Enable autoscaling to optimize costs",
			EstimatedSavingsPercent: 30.0,
			Severity:                SeverityMedium,
			Reason:                  "Fixed-size clusters pay for full capacity even during low-usage periods. Autoscaling can reduce costs by scaling down when not needed and scaling up for peak demand.",
			ImplementationSteps: []string{
				"Edit cluster configuration",
				"Enable autoscaling with min_workers=1",
				fmt.Sprintf("Set max_workers=%d to maintain current peak capacity", numWorkers),
				"This reduces idle costs while preserving performance",
			},
		})
	}

	totalSavings := 0.0
	for _, r := range recs {
		totalSavings += r.EstimatedSavingsPercent
	}
	if totalSavings > 90.0 {
		totalSavings = 90.0
	}

	return &CostAnalysis{
		ClusterID:                    clusterID,
		ClusterName:                  clusterName,
		CloudProvider:                provider,
		NodeTypeID:                   nodeType,
		DriverNodeTypeID:             driverNodeType,
		NumWorkers:                   numWorkers,
		UsesSpotInstances:            usesSpot,
		SpotBidPricePercent:          spotBidPrice,
		FirstOnDemand:                firstOnDemand,
		AvailabilityZone:             availabilityZone,
		EBSVolumeType:                ebsVolumeType,
		TotalRecommendations:         len(recs),
		TotalPotentialSavingsPercent: round1(totalSavings),
		Recommendations:              recs,
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
