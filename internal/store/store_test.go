package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "lakeops.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func dayOffset(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")
}

func metric(clusterID, date string, efficiency, dbu float64, oversized bool) UtilizationMetric {
	return UtilizationMetric{
		ClusterID:           clusterID,
		ClusterName:         clusterID,
		MetricDate:          date,
		ClusterType:         "JOB",
		WorkerCount:         4,
		PotentialDBUPerHour: 5,
		ActualDBU:           dbu,
		UptimeHours:         8,
		EfficiencyScore:     efficiency,
		IsOversized:         oversized,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestInsertAndHistory(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	jobRuns := 3
	m := metric("c-1", dayOffset(-1), 42.5, 17, false)
	m.JobRunCount = &jobRuns

	n, err := db.InsertMetrics(ctx, []UtilizationMetric{
		m,
		metric("c-1", dayOffset(-2), 30, 12, true),
		metric("c-2", dayOffset(-1), 80, 32, false),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hist, err := db.History(ctx, "c-1", 30)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	// Newest first.
	assert.Equal(t, dayOffset(-1), hist[0].MetricDate)
	assert.Equal(t, 42.5, hist[0].EfficiencyScore)
	require.NotNil(t, hist[0].JobRunCount)
	assert.Equal(t, 3, *hist[0].JobRunCount)
	assert.Nil(t, hist[0].UniqueUsers)
	assert.True(t, hist[1].IsOversized)
}

func TestInsertMetricsUpsertsSameDay(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	date := dayOffset(-1)
	_, err := db.InsertMetrics(ctx, []UtilizationMetric{metric("c-1", date, 40, 10, false)})
	require.NoError(t, err)
	_, err = db.InsertMetrics(ctx, []UtilizationMetric{metric("c-1", date, 55, 20, true)})
	require.NoError(t, err)

	hist, err := db.History(ctx, "c-1", 7)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 55.0, hist[0].EfficiencyScore)
	assert.True(t, hist[0].IsOversized)
}

func TestHistoryRespectsWindow(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.InsertMetrics(ctx, []UtilizationMetric{
		metric("c-1", dayOffset(-1), 40, 10, false),
		metric("c-1", dayOffset(-40), 40, 10, false),
	})
	require.NoError(t, err)

	hist, err := db.History(ctx, "c-1", 7)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestTrendsAggregatesAndMovingAverages(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.InsertMetrics(ctx, []UtilizationMetric{
		metric("c-1", dayOffset(-3), 20, 10, true),
		metric("c-2", dayOffset(-3), 40, 10, false),
		metric("c-1", dayOffset(-2), 40, 15, false),
		metric("c-1", dayOffset(-1), 60, 35, false),
	})
	require.NoError(t, err)

	resp, err := db.Trends(ctx, 7, 3)
	require.NoError(t, err)
	require.Len(t, resp.Trends, 3)

	// Newest first.
	newest := resp.Trends[0]
	oldest := resp.Trends[2]
	assert.Equal(t, dayOffset(-1), newest.Date)
	assert.Equal(t, 2, oldest.TotalClusters)
	assert.Equal(t, 1, oldest.OversizedCount)
	assert.Equal(t, 30.0, oldest.AvgEfficiency)
	assert.Equal(t, 20.0, oldest.TotalDBU)

	// Oldest point's moving average covers just itself; the newest covers
	// all three days: (30+40+60)/3.
	assert.Equal(t, 30.0, oldest.EfficiencyMovingAvg)
	assert.Equal(t, 43.33, newest.EfficiencyMovingAvg)
	assert.Equal(t, 23.33, newest.DBUMovingAvg)

	assert.Equal(t, 3, resp.Summary.DataPoints)
	assert.Equal(t, 60.0, resp.Summary.CurrentEfficiency)
	assert.Equal(t, "improving", resp.Summary.EfficiencyTrend)
	assert.Equal(t, 35.0, resp.Summary.CurrentDBUDaily)
	assert.Equal(t, "increasing", resp.Summary.DBUTrend)
	assert.Empty(t, resp.Summary.Message)
}

func TestTrendsDecreasingDBUDirection(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.InsertMetrics(ctx, []UtilizationMetric{
		metric("c-1", dayOffset(-3), 40, 20, false),
		metric("c-1", dayOffset(-2), 40, 15, false),
		metric("c-1", dayOffset(-1), 40, 10, false),
	})
	require.NoError(t, err)

	resp, err := db.Trends(ctx, 7, 3)
	require.NoError(t, err)

	// The newest window average (15) sits below the oldest (20).
	assert.Equal(t, "decreasing", resp.Summary.DBUTrend)
	assert.Equal(t, 10.0, resp.Summary.CurrentDBUDaily)
}

func TestTrendsEmpty(t *testing.T) {
	db := openTestDB(t)

	resp, err := db.Trends(context.Background(), 30, 7)
	require.NoError(t, err)
	assert.Empty(t, resp.Trends)
	assert.Equal(t, 0, resp.Summary.DataPoints)
	assert.Contains(t, resp.Summary.Message, "No historical data available")
}

func TestCleanupPurgesOldRows(t *testing.T) {
	db, err := Open(Config{
		Path:          filepath.Join(t.TempDir(), "lakeops.db"),
		RetentionDays: 30,
	})
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	_, err = db.InsertMetrics(ctx, []UtilizationMetric{
		metric("c-1", dayOffset(-1), 40, 10, false),
		metric("c-1", dayOffset(-60), 40, 10, false),
	})
	require.NoError(t, err)

	require.NoError(t, db.Cleanup())

	hist, err := db.History(ctx, "c-1", 90)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestRecordRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RecordRun(ctx, "run-1", 5, 5, "Collected metrics for 5 clusters"))
	// Re-recording the same run replaces it.
	require.NoError(t, db.RecordRun(ctx, "run-1", 6, 6, "Collected metrics for 6 clusters"))

	var processed int
	err := db.RawDB().QueryRowContext(ctx,
		"SELECT clusters_processed FROM collection_runs WHERE run_id = ?", "run-1").Scan(&processed)
	require.NoError(t, err)
	assert.Equal(t, 6, processed)
}
