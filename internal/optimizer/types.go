// Package optimizer contains the cluster optimization rule engine: pure
// functions that derive severity-ranked recommendations and savings
// estimates from a cluster's configuration. Nothing in this package does
// I/O; all inputs arrive as in-memory workspace records and all thresholds
// are either inlined rule constants or explicit parameters.
package optimizer

import "github.com/lakeops/lakeops/internal/workspace"

// Heuristic constants shared across analyzers. Deliberately rough: savings
// figures produced from these are order-of-magnitude estimates, not billing
// predictions.
const (
	// DefaultDBURateUSD converts usage units to currency estimates.
	DefaultDBURateUSD = 0.15
	// AssumedUptimeHoursPerDay is the daily uptime assumed when no usage
	// data is available.
	AssumedUptimeHoursPerDay = 8.0
	// AlwaysOnHoursPerMonth is the 24x30 month used for always-on cost text.
	AlwaysOnHoursPerMonth = 24 * 30
)

// Severity ranks a recommendation's impact.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// SeverityRank returns the sort rank of a severity, high first. Unknown
// severities sort last.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	}
	return 99
}

// ClusterType classifies a cluster's workload by its creation source.
type ClusterType string

const (
	TypeInteractive ClusterType = "INTERACTIVE"
	TypeJob         ClusterType = "JOB"
	TypeSQL         ClusterType = "SQL"
	TypePipeline    ClusterType = "PIPELINE"
	TypeModels      ClusterType = "MODELS"
)

// ClassifyCluster derives the workload type from the creation source. JOB,
// SQL and MODELS map directly, both pipeline sources collapse to PIPELINE,
// and everything else (UI, API, absent) is INTERACTIVE.
func ClassifyCluster(source workspace.ClusterSource) ClusterType {
	switch source {
	case workspace.SourceJob:
		return TypeJob
	case workspace.SourceSQL:
		return TypeSQL
	case workspace.SourcePipeline, workspace.SourcePipelineMaintenance:
		return TypePipeline
	case workspace.SourceModels:
		return TypeModels
	}
	return TypeInteractive
}

// NodeTypeCategory buckets an instance type by its resource profile.
type NodeTypeCategory string

const (
	CategoryMemoryOptimized  NodeTypeCategory = "memory_optimized"
	CategoryComputeOptimized NodeTypeCategory = "compute_optimized"
	CategoryGeneralPurpose   NodeTypeCategory = "general_purpose"
	CategoryGPU              NodeTypeCategory = "gpu"
	CategoryStorageOptimized NodeTypeCategory = "storage_optimized"
	CategoryUnknown          NodeTypeCategory = "unknown"
)

// NodeTypeSpec is what the instance catalog can tell about an instance type
// from its name alone. Numeric fields are nil when the name does not encode
// them.
type NodeTypeSpec struct {
	InstanceType string           `json:"instance_type"`
	Category     NodeTypeCategory `json:"category"`
	VCPUs        *int             `json:"vcpus,omitempty"`
	MemoryGB     *float64         `json:"memory_gb,omitempty"`
	GPUCount     *int             `json:"gpu_count,omitempty"`
	Generation   string           `json:"generation,omitempty"`
	Size         string           `json:"size,omitempty"`
}

// SparkConfigImpact is the dimension a Spark-configuration issue affects.
type SparkConfigImpact string

const (
	ImpactPerformance SparkConfigImpact = "performance"
	ImpactCost        SparkConfigImpact = "cost"
	ImpactReliability SparkConfigImpact = "reliability"
)

// SparkConfigRecommendation is one Spark-configuration finding.
type SparkConfigRecommendation struct {
	ClusterID         string            `json:"cluster_id"`
	ClusterName       string            `json:"cluster_name"`
	Setting           string            `json:"setting"`
	CurrentValue      string            `json:"current_value"`
	RecommendedValue  string            `json:"recommended_value"`
	Impact            SparkConfigImpact `json:"impact"`
	Severity          Severity          `json:"severity"`
	Reason            string            `json:"reason"`
	DocumentationLink string            `json:"documentation_link,omitempty"`
}

// SparkConfigAnalysis is the per-cluster result of the Spark-configuration
// analyzer. It has no savings concept; TotalIssues is its magnitude.
type SparkConfigAnalysis struct {
	ClusterID       string                      `json:"cluster_id"`
	ClusterName     string                      `json:"cluster_name"`
	SparkVersion    string                      `json:"spark_version"`
	IsPhotonEnabled bool                        `json:"is_photon_enabled"`
	AQEEnabled      bool                        `json:"aqe_enabled"`
	TotalIssues     int                         `json:"total_issues"`
	Recommendations []SparkConfigRecommendation `json:"recommendations"`
}

// CostCategory classifies a cost finding.
type CostCategory string

const (
	CostSpotInstances CostCategory = "spot_instances"
	CostNodeType      CostCategory = "node_type"
	CostAutoscaling   CostCategory = "autoscaling"
	CostStorage       CostCategory = "storage"
)

// CostRecommendation is one cost finding.
type CostRecommendation struct {
	ClusterID               string       `json:"cluster_id"`
	ClusterName             string       `json:"cluster_name"`
	Category                CostCategory `json:"category"`
	CurrentState            string       `json:"current_state"`
	Recommendation          string       `json:"recommendation"`
	EstimatedSavingsPercent float64      `json:"estimated_savings_percent"`
	Severity                Severity     `json:"severity"`
	Reason                  string       `json:"reason"`
	ImplementationSteps     []string     `json:"implementation_steps"`
}

// CostAnalysis is the per-cluster result of the cost analyzer.
type CostAnalysis struct {
	ClusterID                    string                  `json:"cluster_id"`
	ClusterName                  string                  `json:"cluster_name"`
	CloudProvider                workspace.CloudProvider `json:"cloud_provider"`
	NodeTypeID                   string                  `json:"node_type_id,omitempty"`
	DriverNodeTypeID             string                  `json:"driver_node_type_id,omitempty"`
	NumWorkers                   int                     `json:"num_workers"`
	UsesSpotInstances            bool                    `json:"uses_spot_instances"`
	SpotBidPricePercent          int                     `json:"spot_bid_price_percent,omitempty"`
	FirstOnDemand                int                     `json:"first_on_demand,omitempty"`
	AvailabilityZone             string                  `json:"availability_zone,omitempty"`
	EBSVolumeType                string                  `json:"ebs_volume_type,omitempty"`
	TotalRecommendations         int                     `json:"total_recommendations"`
	TotalPotentialSavingsPercent float64                 `json:"total_potential_savings_percent"`
	Recommendations              []CostRecommendation    `json:"recommendations"`
}

// AutoscalingIssueType classifies an autoscaling finding.
type AutoscalingIssueType string

const (
	IssueWideRange        AutoscalingIssueType = "wide_range"
	IssueNarrowRange      AutoscalingIssueType = "narrow_range"
	IssueHighMinimum      AutoscalingIssueType = "high_minimum"
	IssueNoAutoscaling    AutoscalingIssueType = "no_autoscaling"
	IssueInefficientRange AutoscalingIssueType = "inefficient_range"
)

// AutoscalingRecommendation is one autoscaling finding.
type AutoscalingRecommendation struct {
	ClusterID               string               `json:"cluster_id"`
	ClusterName             string               `json:"cluster_name"`
	IssueType               AutoscalingIssueType `json:"issue_type"`
	CurrentConfig           string               `json:"current_config"`
	Recommendation          string               `json:"recommendation"`
	EstimatedSavingsPercent float64              `json:"estimated_savings_percent"`
	Severity                Severity             `json:"severity"`
	Reason                  string               `json:"reason"`
	ImplementationSteps     []string             `json:"implementation_steps"`
}

// AutoscalingAnalysis is the per-cluster result of the autoscaling analyzer.
type AutoscalingAnalysis struct {
	ClusterID                    string                      `json:"cluster_id"`
	ClusterName                  string                      `json:"cluster_name"`
	ClusterType                  ClusterType                 `json:"cluster_type"`
	HasAutoscaling               bool                        `json:"has_autoscaling"`
	MinWorkers                   *int                        `json:"min_workers,omitempty"`
	MaxWorkers                   *int                        `json:"max_workers,omitempty"`
	CurrentWorkers               int                         `json:"current_workers"`
	AutoscaleRange               *int                        `json:"autoscale_range,omitempty"`
	RangeRatio                   *float64                    `json:"range_ratio,omitempty"`
	AutoTerminateMinutes         int                         `json:"auto_terminate_minutes"`
	TotalIssues                  int                         `json:"total_issues"`
	TotalPotentialSavingsPercent float64                     `json:"total_potential_savings_percent"`
	Recommendations              []AutoscalingRecommendation `json:"recommendations"`
}

// NodeTypeIssueType classifies a node-type finding.
type NodeTypeIssueType string

const (
	IssueOversizedDriver        NodeTypeIssueType = "oversized_driver"
	IssueGPUUnderutilized       NodeTypeIssueType = "gpu_underutilized"
	IssueLegacyInstance         NodeTypeIssueType = "legacy_instance"
	IssueMismatchedDriverWorker NodeTypeIssueType = "mismatched_driver_worker"
	IssueOverprovisioned        NodeTypeIssueType = "overprovisioned"
	IssueWrongCategory          NodeTypeIssueType = "wrong_category"
)

// NodeTypeRecommendation is one node-type finding.
type NodeTypeRecommendation struct {
	ClusterID               string            `json:"cluster_id"`
	ClusterName             string            `json:"cluster_name"`
	IssueType               NodeTypeIssueType `json:"issue_type"`
	CurrentConfig           string            `json:"current_config"`
	RecommendedConfig       string            `json:"recommended_config"`
	EstimatedSavingsPercent float64           `json:"estimated_savings_percent"`
	Severity                Severity          `json:"severity"`
	Reason                  string            `json:"reason"`
	ImplementationSteps     []string          `json:"implementation_steps"`
}

// NodeTypeAnalysis is the per-cluster result of the node-type analyzer.
type NodeTypeAnalysis struct {
	ClusterID                    string                   `json:"cluster_id"`
	ClusterName                  string                   `json:"cluster_name"`
	ClusterType                  ClusterType              `json:"cluster_type"`
	CloudProvider                workspace.CloudProvider  `json:"cloud_provider"`
	WorkerNodeType               string                   `json:"worker_node_type,omitempty"`
	WorkerNodeCategory           NodeTypeCategory         `json:"worker_node_category"`
	WorkerSpec                   NodeTypeSpec             `json:"worker_spec"`
	DriverNodeType               string                   `json:"driver_node_type,omitempty"`
	DriverNodeCategory           NodeTypeCategory         `json:"driver_node_category"`
	DriverSpec                   NodeTypeSpec             `json:"driver_spec"`
	NumWorkers                   int                      `json:"num_workers"`
	UsesSameDriverWorker         bool                     `json:"uses_same_driver_worker"`
	TotalIssues                  int                      `json:"total_issues"`
	TotalPotentialSavingsPercent float64                  `json:"total_potential_savings_percent"`
	Recommendations              []NodeTypeRecommendation `json:"recommendations"`
}

// EfficiencyScore computes a 0-100 efficiency score from actual usage units,
// the worker count, and uptime hours. Potential usage is one unit per node
// per hour, counting the always-present driver. Zero or negative potential
// (idle or empty cluster) scores 0 rather than dividing by zero.
func EfficiencyScore(actualDBU float64, workers int, uptimeHours float64) float64 {
	potential := float64(workers+1) * uptimeHours
	if potential <= 0 {
		return 0
	}
	score := actualDBU / potential * 100
	if score > 100 {
		return 100
	}
	return score
}
