// Package collector computes and persists daily cluster utilization metrics.
// Each run looks at yesterday: billing usage per cluster from
// system.billing.usage, job-run counts from the jobs API, and the current
// cluster configurations. Rows go to the local store and, best effort, to a
// Delta table in the warehouse.
package collector

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lakeops/lakeops/internal/optimizer"
	"github.com/lakeops/lakeops/internal/store"
	"github.com/lakeops/lakeops/internal/workspace"
)

// Options configures a Collector.
type Options struct {
	Catalog                string
	Schema                 string
	WarehouseID            string
	ClusterLimit           int
	OversizedThreshold     float64
	UnderutilizedThreshold float64
}

// Result reports the outcome of one collection run.
type Result struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	ClustersProcessed int    `json:"clusters_processed"`
	MetricsPersisted  bool   `json:"metrics_persisted"`
}

// Collector runs metric collection against one workspace.
type Collector struct {
	ws   *workspace.Client
	db   *store.DB
	opts Options
	log  *zap.SugaredLogger
}

// New builds a Collector. ClusterLimit defaults to 200.
func New(ws *workspace.Client, db *store.DB, opts Options, log *zap.SugaredLogger) *Collector {
	if opts.ClusterLimit <= 0 {
		opts.ClusterLimit = 200
	}
	return &Collector{ws: ws, db: db, opts: opts, log: log}
}

func (c *Collector) tableName() string {
	return fmt.Sprintf("%s.%s.cluster_utilization_metrics", c.opts.Catalog, c.opts.Schema)
}

// Run performs one collection pass for yesterday (UTC). Billing and job-run
// lookups are best effort; a cluster with no billing row gets zero usage.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	c.log.Infow("starting metrics collection", "run_id", runID)

	clusters, err := c.ws.ListClusters(ctx, c.opts.ClusterLimit)
	if err != nil {
		return nil, fmt.Errorf("listing clusters: %w", err)
	}
	c.log.Infow("processing clusters", "count", len(clusters))

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	metricDate := yesterday.Format("2006-01-02")

	warehouseID, whErr := c.ws.ResolveWarehouse(ctx, c.opts.WarehouseID)
	if whErr != nil {
		c.log.Warnw("no warehouse available, skipping billing data", "error", whErr)
	}

	billing := map[string]float64{}
	if whErr == nil {
		billing = c.fetchBilling(ctx, warehouseID, metricDate)
	}
	jobRuns := c.fetchJobRuns(ctx, yesterday)

	metrics := make([]store.UtilizationMetric, 0, len(clusters))
	for i := range clusters {
		cluster := &clusters[i]
		clusterType := optimizer.ClassifyCluster(cluster.ClusterSource)

		workers := cluster.EffectiveWorkers()
		actualDBU := billing[cluster.ClusterID]

		// Without per-hour billing granularity, assume a working day of
		// uptime whenever the cluster burned anything at all.
		uptimeHours := 0.0
		if actualDBU > 0 {
			uptimeHours = optimizer.AssumedUptimeHoursPerDay
		}

		// Classification compares the raw score; rounding is for storage
		// only, so boundary values like 29.996 stay below the threshold.
		score := optimizer.EfficiencyScore(actualDBU, workers, uptimeHours)

		m := store.UtilizationMetric{
			ClusterID:           cluster.ClusterID,
			ClusterName:         cluster.DisplayName(),
			MetricDate:          metricDate,
			ClusterType:         string(clusterType),
			WorkerCount:         workers,
			PotentialDBUPerHour: float64(workers + 1),
			ActualDBU:           actualDBU,
			UptimeHours:         uptimeHours,
			EfficiencyScore:     round2(score),
			IsOversized:         score < c.opts.OversizedThreshold && score > 0,
			IsUnderutilized:     score < c.opts.UnderutilizedThreshold && score > 0,
		}
		if clusterType == optimizer.TypeJob {
			if n, ok := jobRuns[cluster.ClusterID]; ok {
				m.JobRunCount = &n
			}
		}
		metrics = append(metrics, m)
	}

	persisted := false
	var persistErr error
	if len(metrics) > 0 {
		if _, err := c.db.InsertMetrics(ctx, metrics); err != nil {
			persistErr = err
		} else {
			persisted = true
		}
	}

	// Mirror to the warehouse table when one is reachable. Failures here
	// never fail the run; the local store already has the rows.
	if whErr == nil && len(metrics) > 0 {
		if err := c.mirrorToWarehouse(ctx, warehouseID, metricDate, metrics); err != nil {
			c.log.Warnw("could not persist metrics to warehouse", "error", err)
		}
	}

	message := fmt.Sprintf("Collected metrics for %d clusters", len(clusters))
	if persisted {
		message += fmt.Sprintf(". Data saved to %s", c.tableName())
	} else if persistErr != nil {
		message += fmt.Sprintf(". Persistence failed: %v", persistErr)
	}

	if err := c.db.RecordRun(ctx, runID, len(clusters), len(metrics), message); err != nil {
		c.log.Warnw("could not record collection run", "error", err)
	}

	c.log.Infow("metrics collection finished",
		"run_id", runID, "clusters", len(clusters), "persisted", persisted)

	return &Result{
		Success:           true,
		Message:           message,
		ClustersProcessed: len(clusters),
		MetricsPersisted:  persisted,
	}, nil
}

func (c *Collector) fetchBilling(ctx context.Context, warehouseID, date string) map[string]float64 {
	sql := fmt.Sprintf(`
		SELECT
			usage_metadata.cluster_id as cluster_id,
			SUM(usage_quantity) as total_dbu
		FROM system.billing.usage
		WHERE usage_date = '%s'
			AND usage_metadata.cluster_id IS NOT NULL
		GROUP BY usage_metadata.cluster_id`, date)

	rows, err := c.ws.ExecuteSQL(ctx, warehouseID, sql)
	if err != nil {
		c.log.Warnw("could not fetch billing data", "error", err)
		return map[string]float64{}
	}

	billing := make(map[string]float64, len(rows))
	for _, row := range rows {
		if id := row["cluster_id"]; id != "" {
			billing[id] = row.Float("total_dbu")
		}
	}
	return billing
}

func (c *Collector) fetchJobRuns(ctx context.Context, day time.Time) map[string]int {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24*time.Hour - time.Millisecond)

	runs, err := c.ws.ListJobRuns(ctx, dayStart.UnixMilli(), dayEnd.UnixMilli())
	if err != nil {
		c.log.Warnw("could not fetch job runs", "error", err)
		return map[string]int{}
	}

	counts := make(map[string]int)
	for _, run := range runs {
		if run.ClusterSpec != nil && run.ClusterSpec.ExistingClusterID != "" {
			counts[run.ClusterSpec.ExistingClusterID]++
		}
	}
	return counts
}

func (c *Collector) mirrorToWarehouse(ctx context.Context, warehouseID, metricDate string, metrics []store.UtilizationMetric) error {
	schemaSQL := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s.%s", c.opts.Catalog, c.opts.Schema)
	if _, err := c.ws.ExecuteSQL(ctx, warehouseID, schemaSQL); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			cluster_id STRING,
			cluster_name STRING,
			metric_date DATE,
			cluster_type STRING,
			worker_count INT,
			potential_dbu_per_hour DOUBLE,
			actual_dbu DOUBLE,
			uptime_hours DOUBLE,
			efficiency_score DOUBLE,
			job_run_count INT,
			unique_users INT,
			is_oversized BOOLEAN,
			is_underutilized BOOLEAN,
			collected_at TIMESTAMP
		)
		USING DELTA
		PARTITIONED BY (metric_date)`, c.tableName())
	if _, err := c.ws.ExecuteSQL(ctx, warehouseID, createSQL); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	values := make([]string, 0, len(metrics))
	for _, m := range metrics {
		safeName := strings.ReplaceAll(m.ClusterName, "'", "''")
		jobCount := "NULL"
		if m.JobRunCount != nil {
			jobCount = fmt.Sprintf("%d", *m.JobRunCount)
		}
		users := "NULL"
		if m.UniqueUsers != nil {
			users = fmt.Sprintf("%d", *m.UniqueUsers)
		}
		values = append(values, fmt.Sprintf(
			"('%s', '%s', '%s', '%s', %d, %g, %g, %g, %g, %s, %s, %t, %t, '%s')",
			m.ClusterID, safeName, metricDate, m.ClusterType,
			m.WorkerCount, m.PotentialDBUPerHour, m.ActualDBU, m.UptimeHours,
			m.EfficiencyScore, jobCount, users, m.IsOversized, m.IsUnderutilized, now))
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s VALUES %s", c.tableName(), strings.Join(values, ", "))
	c.log.Infow("inserting metrics into warehouse table", "table", c.tableName(), "rows", len(metrics))
	if _, err := c.ws.ExecuteSQL(ctx, warehouseID, insertSQL); err != nil {
		return fmt.Errorf("inserting rows: %w", err)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
