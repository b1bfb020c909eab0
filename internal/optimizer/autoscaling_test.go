package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeops/lakeops/internal/workspace"
)

func autoscaleCluster(min, max, autoTerminate int, source workspace.ClusterSource) *workspace.Cluster {
	return &workspace.Cluster{
		ClusterID:              "0101-000000-scale1",
		ClusterName:            "shared-analytics",
		ClusterSource:          source,
		Autoscale:              &workspace.AutoScale{MinWorkers: min, MaxWorkers: max},
		AutoterminationMinutes: autoTerminate,
	}
}

func TestAnalyzeAutoscalingHighMinimumWithNoAutoTermination(t *testing.T) {
	// min=20, max=25: the range (5) is not narrow (<=2), so only the
	// high-minimum and missing-auto-termination rules fire.
	analysis := AnalyzeAutoscaling(autoscaleCluster(20, 25, 0, workspace.SourceUI))

	require.Equal(t, 2, analysis.TotalIssues)

	high := analysis.Recommendations[0]
	assert.Equal(t, IssueHighMinimum, high.IssueType)
	assert.Equal(t, SeverityHigh, high.Severity)
	assert.Equal(t, 45.0, high.EstimatedSavingsPercent)

	term := analysis.Recommendations[1]
	assert.Equal(t, IssueInefficientRange, term.IssueType)
	assert.Equal(t, SeverityMedium, term.Severity)
	assert.Equal(t, 20.0, term.EstimatedSavingsPercent)

	assert.LessOrEqual(t, analysis.TotalPotentialSavingsPercent, 80.0)
	assert.Equal(t, 65.0, analysis.TotalPotentialSavingsPercent)
	assert.Equal(t, 22, analysis.CurrentWorkers)
}

func TestAnalyzeAutoscalingHighMinimumSeverityThreshold(t *testing.T) {
	// min in [8,16) is MEDIUM, >=16 escalates to HIGH.
	analysis := AnalyzeAutoscaling(autoscaleCluster(8, 10, 60, workspace.SourceJob))
	var found *AutoscalingRecommendation
	for i := range analysis.Recommendations {
		if analysis.Recommendations[i].IssueType == IssueHighMinimum {
			found = &analysis.Recommendations[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, SeverityMedium, found.Severity)
	assert.Equal(t, 37.5, found.EstimatedSavingsPercent)
}

func TestAnalyzeAutoscalingWideRange(t *testing.T) {
	analysis := AnalyzeAutoscaling(autoscaleCluster(2, 30, 60, workspace.SourceUI))

	require.NotEmpty(t, analysis.Recommendations)
	rec := analysis.Recommendations[0]
	assert.Equal(t, IssueWideRange, rec.IssueType)
	assert.Equal(t, 20.0, rec.EstimatedSavingsPercent)
	require.NotNil(t, analysis.RangeRatio)
	assert.Equal(t, 15.0, *analysis.RangeRatio)
}

func TestAnalyzeAutoscalingNarrowRange(t *testing.T) {
	analysis := AnalyzeAutoscaling(autoscaleCluster(4, 5, 60, workspace.SourcePipeline))

	// min=4 on an interactive cluster would also trip the high-minimum
	// rule, but this one is a pipeline, so only narrow-range fires.
	require.Equal(t, 1, analysis.TotalIssues)
	assert.Equal(t, IssueNarrowRange, analysis.Recommendations[0].IssueType)
	assert.Equal(t, SeverityLow, analysis.Recommendations[0].Severity)
	assert.Equal(t, 5.0, analysis.Recommendations[0].EstimatedSavingsPercent)
}

func TestAnalyzeAutoscalingJobClusterScaleToZero(t *testing.T) {
	analysis := AnalyzeAutoscaling(autoscaleCluster(1, 3, 60, workspace.SourceJob))

	require.Equal(t, 1, analysis.TotalIssues)
	rec := analysis.Recommendations[0]
	assert.Equal(t, IssueInefficientRange, rec.IssueType)
	assert.Equal(t, 25.0, rec.EstimatedSavingsPercent)
	assert.Equal(t, TypeJob, analysis.ClusterType)
}

func TestAnalyzeAutoscalingFixedSizeCluster(t *testing.T) {
	cluster := &workspace.Cluster{
		ClusterID:              "0101-000000-fixed1",
		ClusterName:            "fixed",
		NumWorkers:             6,
		ClusterSource:          workspace.SourceUI,
		AutoterminationMinutes: 0,
	}

	analysis := AnalyzeAutoscaling(cluster)
	require.Equal(t, 2, analysis.TotalIssues)
	assert.False(t, analysis.HasAutoscaling)
	assert.Equal(t, IssueNoAutoscaling, analysis.Recommendations[0].IssueType)
	assert.Equal(t, 35.0, analysis.Recommendations[0].EstimatedSavingsPercent)
	assert.Equal(t, 40.0, analysis.Recommendations[1].EstimatedSavingsPercent)
	assert.Equal(t, 75.0, analysis.TotalPotentialSavingsPercent)
}

func TestAnalyzeAutoscalingSavingsCappedAt80(t *testing.T) {
	// min=16 fires high-minimum (43.8) plus scale-to-zero (25) plus
	// missing auto-termination (20): raw sum exceeds the cap.
	analysis := AnalyzeAutoscaling(autoscaleCluster(16, 20, 0, workspace.SourceJob))
	assert.Equal(t, 80.0, analysis.TotalPotentialSavingsPercent)
}

func TestAnalyzeAutoscalingHealthyClusterHasNoIssues(t *testing.T) {
	analysis := AnalyzeAutoscaling(autoscaleCluster(1, 4, 60, workspace.SourceUI))
	assert.Zero(t, analysis.TotalIssues)
	assert.Zero(t, analysis.TotalPotentialSavingsPercent)
}

func TestAnalyzeAutoscalingIdempotent(t *testing.T) {
	cluster := autoscaleCluster(20, 25, 0, workspace.SourceUI)
	first := AnalyzeAutoscaling(cluster)
	second := AnalyzeAutoscaling(cluster)
	assert.Equal(t, first, second)
}
