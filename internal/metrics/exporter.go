package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/lakeops/lakeops/internal/workspace"
)

var (
	clustersTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lakeops",
		Name:      "clusters_total",
		Help:      "Total number of clusters in the workspace",
	})

	clustersByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lakeops",
		Name:      "clusters_by_state",
		Help:      "Number of clusters per lifecycle state",
	}, []string{"state"})

	runningWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lakeops",
		Name:      "running_workers_total",
		Help:      "Total workers across running clusters",
	})

	estimatedHourlyDBU = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lakeops",
		Name:      "estimated_hourly_dbu",
		Help:      "Estimated fleet usage units per hour (one per node)",
	})

	idleClusters = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lakeops",
		Name:      "idle_clusters",
		Help:      "Running clusters idle past the alert threshold",
	})

	idleWastedDBU = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lakeops",
		Name:      "idle_wasted_dbu",
		Help:      "Estimated usage units wasted by idle clusters",
	})

	scrapeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lakeops",
		Name:      "workspace_scrape_failures_total",
		Help:      "Failed attempts to list clusters for metric export",
	})
)

// ClusterLister is the slice of the workspace client the exporter needs.
type ClusterLister interface {
	ListClusters(ctx context.Context, limit int) ([]workspace.Cluster, error)
}

// Exporter periodically refreshes the fleet gauges from the workspace API.
type Exporter struct {
	lister   ClusterLister
	interval time.Duration
	limit    int
	log      *zap.SugaredLogger
}

// NewExporter builds an Exporter polling at the given interval (default 60s).
func NewExporter(lister ClusterLister, interval time.Duration, limit int, log *zap.SugaredLogger) *Exporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Exporter{lister: lister, interval: interval, limit: limit, log: log}
}

// Run refreshes gauges until the context is cancelled. It refreshes once
// immediately so scrapes right after startup see data.
func (e *Exporter) Run(ctx context.Context) {
	e.refresh(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.refresh(ctx)
		}
	}
}

func (e *Exporter) refresh(ctx context.Context) {
	clusters, err := e.lister.ListClusters(ctx, e.limit)
	if err != nil {
		scrapeFailures.Inc()
		e.log.Warnw("metrics refresh failed", "error", err)
		return
	}

	summary := Summarize(clusters)
	clustersTotal.Set(float64(summary.TotalClusters))
	clustersByState.WithLabelValues(string(workspace.StateRunning)).Set(float64(summary.RunningClusters))
	clustersByState.WithLabelValues(string(workspace.StatePending)).Set(float64(summary.PendingClusters))
	clustersByState.WithLabelValues(string(workspace.StateTerminated)).Set(float64(summary.TerminatedClusters))
	runningWorkers.Set(float64(summary.TotalRunningWorkers))
	estimatedHourlyDBU.Set(summary.EstimatedHourlyDBU)

	alerts := IdleClusters(clusters, time.Now())
	idleClusters.Set(float64(len(alerts)))
	var wasted float64
	for _, a := range alerts {
		wasted += a.EstimatedWastedDBU
	}
	idleWastedDBU.Set(wasted)
}
