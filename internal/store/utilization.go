package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"
)

// UtilizationMetric is one cluster's daily utilization row.
type UtilizationMetric struct {
	ClusterID           string  `json:"cluster_id"`
	ClusterName         string  `json:"cluster_name"`
	MetricDate          string  `json:"metric_date"`
	ClusterType         string  `json:"cluster_type"`
	WorkerCount         int     `json:"worker_count"`
	PotentialDBUPerHour float64 `json:"potential_dbu_per_hour"`
	ActualDBU           float64 `json:"actual_dbu"`
	UptimeHours         float64 `json:"uptime_hours"`
	EfficiencyScore     float64 `json:"efficiency_score"`
	JobRunCount         *int    `json:"job_run_count,omitempty"`
	UniqueUsers         *int    `json:"unique_users,omitempty"`
	IsOversized         bool    `json:"is_oversized"`
	IsUnderutilized     bool    `json:"is_underutilized"`
}

// TrendPoint is one day of fleet-wide aggregates with moving averages.
type TrendPoint struct {
	Date                string  `json:"date"`
	TotalClusters       int     `json:"total_clusters"`
	OversizedCount      int     `json:"oversized_count"`
	UnderutilizedCount  int     `json:"underutilized_count"`
	AvgEfficiency       float64 `json:"avg_efficiency"`
	TotalDBU            float64 `json:"total_dbu"`
	TotalUptimeHours    float64 `json:"total_uptime_hours"`
	EfficiencyMovingAvg float64 `json:"efficiency_moving_avg"`
	DBUMovingAvg        float64 `json:"dbu_moving_avg"`
	OversizedMovingAvg  float64 `json:"oversized_moving_avg"`
}

// TrendSummary summarizes a trend window. The trend directions compare the
// newest moving average against the oldest in the window.
type TrendSummary struct {
	PeriodDays        int     `json:"period_days"`
	MovingAvgWindow   int     `json:"moving_avg_window"`
	DataPoints        int     `json:"data_points"`
	CurrentEfficiency float64 `json:"current_efficiency,omitempty"`
	EfficiencyTrend   string  `json:"efficiency_trend,omitempty"`
	CurrentDBUDaily   float64 `json:"current_dbu_daily,omitempty"`
	DBUTrend          string  `json:"dbu_trend,omitempty"`
	Message           string  `json:"message,omitempty"`
}

// TrendsResponse pairs the summary with the per-day points, newest first.
type TrendsResponse struct {
	Summary TrendSummary `json:"summary"`
	Trends  []TrendPoint `json:"trends"`
}

// InsertMetrics upserts one day of metrics. A re-run for the same date
// replaces the previous rows for the affected clusters.
func (d *DB) InsertMetrics(ctx context.Context, metrics []UtilizationMetric) (int, error) {
	if len(metrics) == 0 {
		return 0, nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cluster_utilization_metrics (
			cluster_id, cluster_name, metric_date, cluster_type,
			worker_count, potential_dbu_per_hour, actual_dbu, uptime_hours,
			efficiency_score, job_run_count, unique_users,
			is_oversized, is_underutilized, collected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cluster_id, metric_date) DO UPDATE SET
			cluster_name = excluded.cluster_name,
			cluster_type = excluded.cluster_type,
			worker_count = excluded.worker_count,
			potential_dbu_per_hour = excluded.potential_dbu_per_hour,
			actual_dbu = excluded.actual_dbu,
			uptime_hours = excluded.uptime_hours,
			efficiency_score = excluded.efficiency_score,
			job_run_count = excluded.job_run_count,
			unique_users = excluded.unique_users,
			is_oversized = excluded.is_oversized,
			is_underutilized = excluded.is_underutilized,
			collected_at = excluded.collected_at`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	inserted := 0
	for _, m := range metrics {
		_, err := stmt.ExecContext(ctx,
			m.ClusterID, m.ClusterName, m.MetricDate, m.ClusterType,
			m.WorkerCount, m.PotentialDBUPerHour, m.ActualDBU, m.UptimeHours,
			m.EfficiencyScore, m.JobRunCount, m.UniqueUsers,
			boolToInt(m.IsOversized), boolToInt(m.IsUnderutilized), now)
		if err != nil {
			return inserted, fmt.Errorf("inserting metric for cluster %s: %w", m.ClusterID, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing metrics: %w", err)
	}
	return inserted, nil
}

// RecordRun stores the outcome of one collection run.
func (d *DB) RecordRun(ctx context.Context, runID string, processed, persisted int, message string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO collection_runs
			(run_id, started_at, clusters_processed, metrics_persisted, message)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339), processed, persisted, message)
	if err != nil {
		return fmt.Errorf("recording collection run: %w", err)
	}
	return nil
}

// History returns a cluster's daily metrics over the last N days, newest
// first.
func (d *DB) History(ctx context.Context, clusterID string, days int) ([]UtilizationMetric, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")

	rows, err := d.db.QueryContext(ctx, `
		SELECT cluster_id, cluster_name, metric_date, cluster_type,
			worker_count, potential_dbu_per_hour, actual_dbu, uptime_hours,
			efficiency_score, job_run_count, unique_users,
			is_oversized, is_underutilized
		FROM cluster_utilization_metrics
		WHERE cluster_id = ? AND metric_date >= ?
		ORDER BY metric_date DESC`, clusterID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var metrics []UtilizationMetric
	for rows.Next() {
		var m UtilizationMetric
		var jobRuns, users sql.NullInt64
		var oversized, underutilized int
		err := rows.Scan(&m.ClusterID, &m.ClusterName, &m.MetricDate, &m.ClusterType,
			&m.WorkerCount, &m.PotentialDBUPerHour, &m.ActualDBU, &m.UptimeHours,
			&m.EfficiencyScore, &jobRuns, &users, &oversized, &underutilized)
		if err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if jobRuns.Valid {
			v := int(jobRuns.Int64)
			m.JobRunCount = &v
		}
		if users.Valid {
			v := int(users.Int64)
			m.UniqueUsers = &v
		}
		m.IsOversized = oversized != 0
		m.IsUnderutilized = underutilized != 0
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// Trends aggregates per-day fleet stats over the last N days and layers
// moving averages (efficiency, usage, oversized count) over them. Points come
// back newest first; the averages are computed oldest-to-newest so each point
// looks back over its own window.
func (d *DB) Trends(ctx context.Context, days, movingAvgWindow int) (*TrendsResponse, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")

	rows, err := d.db.QueryContext(ctx, `
		SELECT metric_date,
			COUNT(DISTINCT cluster_id),
			SUM(CASE WHEN is_oversized != 0 THEN 1 ELSE 0 END),
			SUM(CASE WHEN is_underutilized != 0 THEN 1 ELSE 0 END),
			AVG(efficiency_score),
			SUM(actual_dbu),
			SUM(uptime_hours)
		FROM cluster_utilization_metrics
		WHERE metric_date >= ?
		GROUP BY metric_date
		ORDER BY metric_date ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying trends: %w", err)
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		err := rows.Scan(&p.Date, &p.TotalClusters, &p.OversizedCount,
			&p.UnderutilizedCount, &p.AvgEfficiency, &p.TotalDBU, &p.TotalUptimeHours)
		if err != nil {
			return nil, fmt.Errorf("scanning trend row: %w", err)
		}
		p.AvgEfficiency = round2(p.AvgEfficiency)
		p.TotalDBU = round2(p.TotalDBU)
		p.TotalUptimeHours = round2(p.TotalUptimeHours)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range points {
		start := i - movingAvgWindow + 1
		if start < 0 {
			start = 0
		}
		var eff, dbu, over float64
		n := float64(i - start + 1)
		for j := start; j <= i; j++ {
			eff += points[j].AvgEfficiency
			dbu += points[j].TotalDBU
			over += float64(points[j].OversizedCount)
		}
		points[i].EfficiencyMovingAvg = round2(eff / n)
		points[i].DBUMovingAvg = round2(dbu / n)
		points[i].OversizedMovingAvg = round2(over / n)
	}

	// Newest first for the response.
	lo.Reverse(points)

	resp := &TrendsResponse{
		Summary: TrendSummary{
			PeriodDays:      days,
			MovingAvgWindow: movingAvgWindow,
			DataPoints:      len(points),
		},
		Trends: points,
	}

	if len(points) == 0 {
		resp.Summary.Message = "No historical data available. Run 'Collect Metrics' to start gathering utilization data."
		return resp, nil
	}

	latest := points[0]
	oldest := points[len(points)-1]

	resp.Summary.CurrentEfficiency = latest.AvgEfficiency
	resp.Summary.EfficiencyTrend = "declining"
	if latest.EfficiencyMovingAvg > oldest.EfficiencyMovingAvg {
		resp.Summary.EfficiencyTrend = "improving"
	}
	resp.Summary.CurrentDBUDaily = latest.TotalDBU
	resp.Summary.DBUTrend = "decreasing"
	if latest.DBUMovingAvg > oldest.DBUMovingAvg {
		resp.Summary.DBUTrend = "increasing"
	}
	return resp, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
