package optimizer

import (
	"fmt"
	"strings"

	"github.com/lakeops/lakeops/internal/workspace"
)

// AnalyzeNodeType classifies a cluster's worker and driver instance types
// through the instance catalog and flags size, generation, and category
// mismatches. Total savings are capped at 80%.
func AnalyzeNodeType(cluster *workspace.Cluster) *NodeTypeAnalysis {
	clusterID := cluster.ClusterID
	clusterName := cluster.DisplayName()
	clusterType := ClassifyCluster(cluster.ClusterSource)
	provider := cluster.Provider()

	workerNodeType := cluster.NodeTypeID
	driverNodeType := cluster.DriverNodeTypeID
	if driverNodeType == "" {
		driverNodeType = workerNodeType
	}

	workerSpec := ParseNodeType(workerNodeType, provider)
	driverSpec := ParseNodeType(driverNodeType, provider)
	sameDriverWorker := driverNodeType == workerNodeType
	numWorkers := cluster.EffectiveWorkers()

	var recs []NodeTypeRecommendation

	// Oversized driver.
	if driverSpec.VCPUs != nil && workerSpec.VCPUs != nil && *driverSpec.VCPUs > *workerSpec.VCPUs*2 {
		recs = append(recs, NodeTypeRecommendation{
			ClusterID:               clusterID,
			ClusterName:             clusterName,
			IssueType:               IssueOversizedDriver,
			CurrentConfig:           fmt.Sprintf("Driver: %s (%d vCPUs), Workers: %s (%d vCPUs)", driverNodeType, *driverSpec.VCPUs, workerNodeType, *workerSpec.VCPUs),
			RecommendedConfig:       fmt.Sprintf("Match driver to worker: %s", workerNodeType),
			EstimatedSavingsPercent: 15.0,
			Severity:                SeverityMedium,
			Reason:                  fmt.Sprintf("Driver (%d vCPUs) is significantly larger than workers (%d vCPUs). Unless collecting large datasets to driver, matching driver to worker size is more cost-effective. The driver mainly coordinates tasks and handles collect() operations.", *driverSpec.VCPUs, *workerSpec.VCPUs),
			ImplementationSteps: []string{
				"Evaluate if driver needs extra capacity (large collect(), broadcast variables)",
				fmt.Sprintf("If not, set driver_node_type_id to %s", workerNodeType),
				"This reduces driver cost while maintaining worker performance",
			},
		})
	}

	// GPU workers on a non-ML workload without Photon.
	if workerSpec.Category == CategoryGPU && clusterType != TypeModels && !IsPhotonRuntime(cluster.SparkVersion) {
		recs = append(recs, NodeTypeRecommendation{
			ClusterID:               clusterID,
			ClusterName:             clusterName,
			IssueType:               IssueGPUUnderutilized,
			CurrentConfig:           fmt.Sprintf("GPU instance: %s", workerNodeType),
			RecommendedConfig:       "Use memory or compute-optimized instances",
			EstimatedSavingsPercent: 70.0,
			Severity:                SeverityHigh,
			Reason:                  fmt.Sprintf("GPU instances (%s) are used but cluster doesn't appear to be ML-focused and isn't using Photon. GPUs are 3-10x more expensive than CPU instances. For SQL/ETL workloads, memory-optimized (r-series) or compute-optimized (c-series) instances are more cost-effective.", workerNodeType),
			ImplementationSteps: []string{
				"Confirm workload doesn't require GPU (ML training, deep learning)",
				"For SQL/analytics: use Photon with standard instances",
				"For ETL: use r5/r6i (memory-optimized) or m5/m6i (general purpose)",
				"GPU savings of 70%+ are typical when switching to CPU instances",
			},
		})
	}

	// Legacy instance generation. GPU families version independently of the
	// general-purpose series, so their generation digit is not comparable.
	if workerSpec.Generation != "" && workerSpec.Category != CategoryGPU {
		genDigit := workerSpec.Generation[0]
		if genDigit >= '0' && genDigit <= '9' && int(genDigit-'0') < 5 {
			newerGen := fmt.Sprintf("%d", int(genDigit-'0')+2)
			oldPrefix := workerNodeType
			if i := strings.Index(workerNodeType, "."); i >= 0 {
				oldPrefix = workerNodeType[:i]
			} else if len(workerNodeType) > 2 {
				oldPrefix = workerNodeType[:2]
			}
			suggestion := fmt.Sprintf("%c%si", oldPrefix[0], newerGen)
			if workerSpec.Size != "" {
				suggestion += "." + workerSpec.Size
			}

			recs = append(recs, NodeTypeRecommendation{
				ClusterID:               clusterID,
				ClusterName:             clusterName,
				IssueType:               IssueLegacyInstance,
				CurrentConfig:           fmt.Sprintf("Instance generation: %s (%s)", workerSpec.Generation, workerNodeType),
				RecommendedConfig:       fmt.Sprintf("Upgrade to newer generation (e.g., %s)", suggestion),
				EstimatedSavingsPercent: 15.0,
				Severity:                SeverityLow,
				Reason:                  fmt.Sprintf("Using older instance generation (%s). Newer generations (6th, 7th gen) often provide better price/performance and include improvements like faster networking and better CPU performance at similar or lower prices.", workerSpec.Generation),
				ImplementationSteps: []string{
					"Check AWS/Azure/GCP pricing for newer instance types",
					fmt.Sprintf("Consider upgrading from %s to %s", workerNodeType, suggestion),
					"Newer generations often cost the same but perform better",
					"Test workload on new instance type before full migration",
				},
			})
		}
	}

	// Mixed driver/worker instance families.
	if !sameDriverWorker &&
		driverSpec.Category != workerSpec.Category &&
		driverSpec.Category != CategoryUnknown &&
		workerSpec.Category != CategoryUnknown {
		recs = append(recs, NodeTypeRecommendation{
			ClusterID:               clusterID,
			ClusterName:             clusterName,
			IssueType:               IssueMismatchedDriverWorker,
			CurrentConfig:           fmt.Sprintf("Driver: %s (%s), Workers: %s (%s)", driverNodeType, driverSpec.Category, workerNodeType, workerSpec.Category),
			RecommendedConfig:       "Use consistent instance families for driver and workers",
			EstimatedSavingsPercent: 5.0,
			Severity:                SeverityLow,
			Reason:                  fmt.Sprintf("Driver (%s) and workers (%s) use different instance families. While this can be intentional, using the same family often simplifies management and ensures consistent behavior. Consider if the mixed configuration is necessary.", driverSpec.Category, workerSpec.Category),
			ImplementationSteps: []string{
				"Review why different families are used",
				"For most workloads, matching families simplifies tuning",
				"Exception: memory-heavy collect() may justify larger driver",
			},
		})
	}

	// Few workers on very large instances.
	if numWorkers <= 2 && workerSpec.VCPUs != nil && *workerSpec.VCPUs >= 32 {
		recs = append(recs, NodeTypeRecommendation{
			ClusterID:               clusterID,
			ClusterName:             clusterName,
			IssueType:               IssueOverprovisioned,
			CurrentConfig:           fmt.Sprintf("%d workers x %d vCPUs = %d total vCPUs", numWorkers, *workerSpec.VCPUs, numWorkers**workerSpec.VCPUs),
			RecommendedConfig:       "Use smaller instances with more workers for better parallelism",
			EstimatedSavingsPercent: 20.0,
			Severity:                SeverityMedium,
			Reason:                  fmt.Sprintf("Few workers (%d) with very large instances (%d vCPUs each). For distributed workloads, more smaller workers often outperform fewer large workers due to better parallelism and fault tolerance. Consider 4-8 workers with 8-16 vCPU instances.", numWorkers, *workerSpec.VCPUs),
			ImplementationSteps: []string{
				fmt.Sprintf("Calculate total vCPUs needed: current = %d", numWorkers**workerSpec.VCPUs),
				"Redistribute across more workers: e.g., 4x r5.2xlarge instead of 2x r5.8xlarge",
				"Enable autoscaling to handle variable workloads",
				"More workers = better parallelism and fault isolation",
			},
		})
	}

	// SQL workloads on compute-optimized instances.
	if clusterType == TypeSQL && workerSpec.Category == CategoryComputeOptimized {
		recs = append(recs, NodeTypeRecommendation{
			ClusterID:               clusterID,
			ClusterName:             clusterName,
			IssueType:               IssueWrongCategory,
			CurrentConfig:           fmt.Sprintf("SQL cluster using %s instances", workerSpec.Category),
			RecommendedConfig:       "Use memory-optimized instances for SQL workloads",
			EstimatedSavingsPercent: 10.0,
			Severity:                SeverityLow,
			Reason:                  "SQL workloads typically benefit from memory-optimized instances (r-series) for caching and join operations. Compute-optimized instances (c-series) are better for CPU-intensive transformations.",
			ImplementationSteps: []string{
				"For SQL/analytics: consider r5/r6i instances",
				"Memory-optimized instances improve query cache hit rates",
				"If using Photon, it can run on any instance type",
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

	return &NodeTypeAnalysis{
		ClusterID:                    clusterID,
		ClusterName:                  clusterName,
		ClusterType:                  clusterType,
		CloudProvider:                provider,
		WorkerNodeType:               workerNodeType,
		WorkerNodeCategory:           workerSpec.Category,
		WorkerSpec:                   workerSpec,
		DriverNodeType:               driverNodeType,
		DriverNodeCategory:           driverSpec.Category,
		DriverSpec:                   driverSpec,
		NumWorkers:                   numWorkers,
		UsesSameDriverWorker:         sameDriverWorker,
		TotalIssues:                  len(recs),
		TotalPotentialSavingsPercent: round1(totalSavings),
		Recommendations:              recs,
	}
}
