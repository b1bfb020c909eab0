package optimizer

import (
	"fmt"
	"strings"

	"github.com/lakeops/lakeops/internal/workspace"
)

const (
	aqeDocLink         = "https://docs.databricks.com/en/optimizations/aqe.html"
	broadcastDocLink   = "https://docs.databricks.com/en/optimizations/broadcast-join.html"
	photonDocLink      = "https://docs.databricks.com/en/runtime/photon.html"
	computeConfDocLink = "https://docs.databricks.com/en/compute/configure.html"
	deltaTuningDocLink = "https://docs.databricks.com/en/delta/tune-file-size.html"
)

// IsPhotonRuntime reports whether the runtime version string indicates the
// Photon engine.
func IsPhotonRuntime(sparkVersion string) bool {
	return strings.Contains(strings.ToLower(sparkVersion), "photon")
}

// AnalyzeSparkConfig inspects a cluster's Spark configuration map and runtime
// version for settings that hurt performance, cost, or reliability. Every
// check is gated on its key being present: an unset key is the upstream
// default, not a finding.
func AnalyzeSparkConfig(cluster *workspace.Cluster) *SparkConfigAnalysis {
	clusterID := cluster.ClusterID
	clusterName := cluster.DisplayName()
	conf := cluster.SparkConf
	isPhoton := IsPhotonRuntime(cluster.SparkVersion)

	var recs []SparkConfigRecommendation

	aqeValue, aqeSet := conf["spark.sql.adaptive.enabled"]
	aqeEnabled := true // upstream default in modern runtimes
	if aqeSet {
		aqeEnabled = strings.EqualFold(aqeValue, "true")
	}
	if aqeSet && strings.EqualFold(aqeValue, "false") {
		recs = append(recs, SparkConfigRecommendation{
			ClusterID:         clusterID,
			ClusterName:       clusterName,
			Setting:           "spark.sql.adaptive.enabled",
			CurrentValue:      "false",
			RecommendedValue:  "true",
			Impact:            ImpactPerformance,
			Severity:          SeverityHigh,
			Reason:            "AQE (Adaptive Query Execution) is disabled. AQE automatically optimizes query plans at runtime, improving performance for joins, aggregations, and skewed data.",
			DocumentationLink: aqeDocLink,
		})
	}

	if v, ok := conf["spark.sql.adaptive.coalescePartitions.enabled"]; ok && strings.EqualFold(v, "false") {
		recs = append(recs, SparkConfigRecommendation{
			ClusterID:         clusterID,
			ClusterName:       clusterName,
			Setting:           "spark.sql.adaptive.coalescePartitions.enabled",
			CurrentValue:      "false",
			RecommendedValue:  "true",
			Impact:            ImpactPerformance,
			Severity:          SeverityMedium,
			Reason:            "AQE partition coalescing is disabled. This feature reduces the number of partitions after shuffles, improving performance for small datasets.",
			DocumentationLink: aqeDocLink,
		})
	}

	if v, ok := conf["spark.sql.adaptive.skewJoin.enabled"]; ok && strings.EqualFold(v, "false") {
		recs = append(recs, SparkConfigRecommendation{
			ClusterID:         clusterID,
			ClusterName:       clusterName,
			Setting:           "spark.sql.adaptive.skewJoin.enabled",
			CurrentValue:      "false",
			RecommendedValue:  "true",
			Impact:            ImpactPerformance,
			Severity:          SeverityMedium,
			Reason:            "AQE skew join handling is disabled. This feature automatically splits skewed partitions to prevent data skew from slowing down joins.",
			DocumentationLink: aqeDocLink,
		})
	}

	if v, ok := conf["spark.sql.shuffle.partitions"]; ok {
		if n, ok := parseInt(v); ok {
			if n > 2000 {
				recs = append(recs, SparkConfigRecommendation{
					ClusterID:         clusterID,
					ClusterName:       clusterName,
					Setting:           "spark.sql.shuffle.partitions",
					CurrentValue:      v,
					RecommendedValue:  "200 (default) or use AQE auto-coalesce",
					Impact:            ImpactPerformance,
					Severity:          SeverityMedium,
					Reason:            fmt.Sprintf("Shuffle partitions set to %d, which is very high. This can cause excessive task overhead and slow down small-to-medium queries. Consider using AQE to auto-tune partitions.", n),
					DocumentationLink: aqeDocLink,
				})
			} else if n < 10 && n > 0 {
				recs = append(recs, SparkConfigRecommendation{
					ClusterID:         clusterID,
					ClusterName:       clusterName,
					Setting:           "spark.sql.shuffle.partitions",
					CurrentValue:      v,
					RecommendedValue:  "200 (default) or use AQE auto-coalesce",
					Impact:            ImpactPerformance,
					Severity:          SeverityLow,
					Reason:            fmt.Sprintf("Shuffle partitions set to only %d. This may limit parallelism for large datasets. Consider using AQE to auto-tune partitions based on data size.", n),
					DocumentationLink: aqeDocLink,
				})
			}
		}
	}

	if v, ok := conf["spark.sql.autoBroadcastJoinThreshold"]; ok && (v == "-1" || v == "0") {
		recs = append(recs, SparkConfigRecommendation{
			ClusterID:         clusterID,
			ClusterName:       clusterName,
			Setting:           "spark.sql.autoBroadcastJoinThreshold",
			CurrentValue:      v,
			RecommendedValue:  "10485760 (10MB default)",
			Impact:            ImpactPerformance,
			Severity:          SeverityMedium,
			Reason:            "Auto broadcast join is disabled. Broadcast joins can significantly speed up joins with small tables by avoiding shuffles. Consider enabling unless you have specific memory constraints.",
			DocumentationLink: broadcastDocLink,
		})
	}

	if !isPhoton {
		switch cluster.ClusterSource {
		case workspace.SourceSQL, workspace.SourceUI, workspace.SourceAPI:
			recs = append(recs, SparkConfigRecommendation{
				ClusterID:         clusterID,
				ClusterName:       clusterName,
				Setting:           "Runtime Version",
				CurrentValue:      cluster.SparkVersion,
				RecommendedValue:  "Photon-enabled runtime (e.g., 14.3.x-photon-scala2.12)",
				Impact:            ImpactPerformance,
				Severity:          SeverityLow,
				Reason:            "Cluster is not using Photon runtime. Photon can provide 2-8x speedup for SQL and DataFrame workloads with no code changes. Consider upgrading for analytics-heavy workloads.",
				DocumentationLink: photonDocLink,
			})
		}
	}

	driverMem, hasDriver := conf["spark.driver.memory"]
	executorMem, hasExecutor := conf["spark.executor.memory"]
	if hasDriver && hasExecutor {
		driverGB, dok := parseMemoryGB(driverMem)
		executorGB, eok := parseMemoryGB(executorMem)
		if dok && eok && driverGB < executorGB*0.5 {
			recs = append(recs, SparkConfigRecommendation{
				ClusterID:         clusterID,
				ClusterName:       clusterName,
				Setting:           "spark.driver.memory",
				CurrentValue:      driverMem,
				RecommendedValue:  fmt.Sprintf("At least %s (match executor memory)", executorMem),
				Impact:            ImpactReliability,
				Severity:          SeverityMedium,
				Reason:            fmt.Sprintf("Driver memory (%s) is significantly smaller than executor memory (%s). This can cause OOM errors when collecting results or broadcasting data.", driverMem, executorMem),
				DocumentationLink: computeConfDocLink,
			})
		}
	}

	if v, ok := conf["spark.databricks.delta.autoOptimize.enabled"]; ok && strings.EqualFold(v, "false") {
		recs = append(recs, SparkConfigRecommendation{
			ClusterID:         clusterID,
			ClusterName:       clusterName,
			Setting:           "spark.databricks.delta.autoOptimize.enabled",
			CurrentValue:      "false",
			RecommendedValue:  "true",
			Impact:            ImpactPerformance,
			Severity:          SeverityLow,
			Reason:            "Delta auto-optimize is disabled. Auto-optimize automatically compacts small files during writes, improving read performance for downstream queries.",
			DocumentationLink: deltaTuningDocLink,
		})
	}

	if v, ok := conf["spark.dynamicAllocation.enabled"]; ok && strings.EqualFold(v, "false") && cluster.Autoscale == nil {
		recs = append(recs, SparkConfigRecommendation{
			ClusterID:         clusterID,
			ClusterName:       clusterName,
			Setting:           "spark.dynamicAllocation.enabled",
			CurrentValue:      "false",
			RecommendedValue:  "true",
			Impact:            ImpactCost,
			Severity:          SeverityLow,
			Reason:            "Dynamic allocation is disabled on a fixed-size cluster. Consider enabling to allow Spark to adjust executors based on workload, or use cluster autoscaling.",
			DocumentationLink: computeConfDocLink,
		})
	}

	return &SparkConfigAnalysis{
		ClusterID:       clusterID,
		ClusterName:     clusterName,
		SparkVersion:    cluster.SparkVersion,
		IsPhotonEnabled: isPhoton,
		AQEEnabled:      aqeEnabled,
		TotalIssues:     len(recs),
		Recommendations: recs,
	}
}
