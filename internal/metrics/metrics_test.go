package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeops/lakeops/internal/optimizer"
	"github.com/lakeops/lakeops/internal/workspace"
)

var testNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func runningCluster(id string, workers int, lastActivity time.Time) workspace.Cluster {
	return workspace.Cluster{
		ClusterID:              id,
		ClusterName:            id,
		State:                  workspace.StateRunning,
		NumWorkers:             workers,
		LastActivityTime:       lastActivity.UnixMilli(),
		StartTime:              lastActivity.Add(-time.Hour).UnixMilli(),
		AutoterminationMinutes: 60,
	}
}

func TestSummarize(t *testing.T) {
	clusters := []workspace.Cluster{
		runningCluster("a", 4, testNow),
		{ClusterID: "b", State: workspace.StatePending},
		{ClusterID: "c", State: workspace.StateTerminated},
		{
			ClusterID: "d",
			State:     workspace.StateRunning,
			Autoscale: &workspace.AutoScale{MinWorkers: 2, MaxWorkers: 5},
		},
	}

	s := Summarize(clusters)
	assert.Equal(t, 4, s.TotalClusters)
	assert.Equal(t, 2, s.RunningClusters)
	assert.Equal(t, 1, s.PendingClusters)
	assert.Equal(t, 1, s.TerminatedClusters)
	// Worker count truncates the autoscale midpoint; the usage estimate
	// keeps the half worker: (4+1) + (3.5+1).
	assert.Equal(t, 7, s.TotalRunningWorkers)
	assert.InDelta(t, 9.5, s.EstimatedHourlyDBU, 1e-9)
}

func TestIdleClustersThreshold(t *testing.T) {
	clusters := []workspace.Cluster{
		runningCluster("busy", 4, testNow.Add(-10*time.Minute)),
		runningCluster("idle", 4, testNow.Add(-60*time.Minute)),
	}

	alerts := IdleClusters(clusters, testNow)
	require.Len(t, alerts, 1)
	assert.Equal(t, "idle", alerts[0].ClusterID)
	assert.Equal(t, 60, alerts[0].IdleDurationMinutes)
	// (4 workers + driver) * 1 idle hour.
	assert.Equal(t, 5.0, alerts[0].EstimatedWastedDBU)
	assert.Equal(t, "Consider stopping this cluster to save costs", alerts[0].Recommendation)
}

func TestIdleClustersSortedByWastedUsage(t *testing.T) {
	clusters := []workspace.Cluster{
		runningCluster("small", 1, testNow.Add(-45*time.Minute)),
		runningCluster("big", 9, testNow.Add(-45*time.Minute)),
	}

	alerts := IdleClusters(clusters, testNow)
	require.Len(t, alerts, 2)
	assert.Equal(t, "big", alerts[0].ClusterID)
}

func TestIdleClustersFallsBackToStartTime(t *testing.T) {
	c := runningCluster("no-activity", 2, testNow.Add(-2*time.Hour))
	c.LastActivityTime = 0
	c.StartTime = testNow.Add(-90 * time.Minute).UnixMilli()
	c.AutoterminationMinutes = 0

	alerts := IdleClusters([]workspace.Cluster{c}, testNow)
	require.Len(t, alerts, 1)
	assert.Equal(t, 90, alerts[0].IdleDurationMinutes)
	assert.Equal(t, "Configure auto-termination to prevent idle costs", alerts[0].Recommendation)
}

func TestIdleClustersSkipsNonRunningAndUnknownActivity(t *testing.T) {
	terminated := runningCluster("terminated", 4, testNow.Add(-2*time.Hour))
	terminated.State = workspace.StateTerminated

	noTimes := runningCluster("no-times", 4, testNow)
	noTimes.LastActivityTime = 0
	noTimes.StartTime = 0

	alerts := IdleClusters([]workspace.Cluster{terminated, noTimes}, testNow)
	assert.Empty(t, alerts)
}

func TestRecommendationsChecksAndOrdering(t *testing.T) {
	noTerm := runningCluster("no-term", 2, testNow)
	noTerm.AutoterminationMinutes = 0

	bigFixed := runningCluster("big-fixed", 12, testNow)

	longRunning := runningCluster("long-running", 2, testNow)
	longRunning.StartTime = testNow.Add(-80 * time.Hour).UnixMilli()

	wideRange := runningCluster("wide-range", 0, testNow)
	wideRange.NumWorkers = 0
	wideRange.Autoscale = &workspace.AutoScale{MinWorkers: 2, MaxWorkers: 40}

	oldRuntime := runningCluster("old-runtime", 2, testNow)
	oldRuntime.SparkVersion = "12.2.x-scala2.12"

	recs := Recommendations([]workspace.Cluster{
		wideRange, oldRuntime, bigFixed, longRunning, noTerm,
	}, testNow)

	require.Len(t, recs, 5)
	// Severity ordering: the 80-hour uptime escalates to high.
	assert.Equal(t, optimizer.SeverityHigh, recs[0].Priority)
	assert.Equal(t, optimizer.SeverityHigh, recs[1].Priority)
	assert.Equal(t, optimizer.SeverityMedium, recs[2].Priority)
	assert.Equal(t, "big-fixed", recs[2].ClusterID)
	assert.Equal(t, optimizer.SeverityLow, recs[3].Priority)
	// Stable sort preserves input order within a priority.
	assert.Equal(t, "wide-range", recs[3].ClusterID)
	assert.Equal(t, "old-runtime", recs[4].ClusterID)
}

func TestRecommendationsUptimeEscalation(t *testing.T) {
	medium := runningCluster("day-old", 2, testNow)
	medium.StartTime = testNow.Add(-30 * time.Hour).UnixMilli()

	recs := Recommendations([]workspace.Cluster{medium}, testNow)
	require.Len(t, recs, 1)
	assert.Equal(t, optimizer.SeverityMedium, recs[0].Priority)
	assert.Equal(t, "Cluster running for 30 hours", recs[0].Issue)
}

func TestRuntimeMajor(t *testing.T) {
	major, ok := runtimeMajor("12.2.x-scala2.12")
	assert.True(t, ok)
	assert.Equal(t, 12, major)

	_, ok = runtimeMajor("custom:photon")
	assert.False(t, ok)

	_, ok = runtimeMajor("")
	assert.False(t, ok)
}
