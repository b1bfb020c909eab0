package apiserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lakeops/lakeops/internal/apiserver/handler"
	"github.com/lakeops/lakeops/internal/config"
	"github.com/lakeops/lakeops/internal/store"
)

// Version is the reported application version, set at build time.
var Version = "dev"

// NewRouter creates the API router with all endpoints.
func NewRouter(cfg *config.Config, ws handler.WorkspaceAPI, db *store.DB, mc handler.MetricsCollector, log *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	clusterHandler := handler.NewClusterHandler(ws, log)
	policyHandler := handler.NewPolicyHandler(ws, log)
	billingHandler := handler.NewBillingHandler(ws, cfg.SQLWarehouseID, cfg.Optimization.DBURateUSD, log)
	metricsHandler := handler.NewMetricsHandler(ws, cfg.Optimization.ClusterLimit, log)
	optimizationHandler := handler.NewOptimizationHandler(ws, db, mc, cfg.Optimization.DBURateUSD, cfg.Optimization.ClusterLimit, log)
	workspaceHandler := handler.NewWorkspaceInfoHandler(ws)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"version":"` + Version + `"}`))
		})

		r.Route("/clusters", func(r chi.Router) {
			r.Get("/", clusterHandler.List)
			r.Get("/{clusterID}", clusterHandler.Get)
			r.Post("/{clusterID}/start", clusterHandler.Start)
			r.Post("/{clusterID}/stop", clusterHandler.Stop)
			r.Get("/{clusterID}/events", clusterHandler.Events)
		})

		r.Route("/policies", func(r chi.Router) {
			r.Get("/", policyHandler.List)
			r.Get("/{policyID}", policyHandler.Get)
			r.Get("/{policyID}/usage", policyHandler.Usage)
		})

		r.Route("/billing", func(r chi.Router) {
			r.Get("/summary", billingHandler.Summary)
			r.Get("/by-cluster", billingHandler.ByCluster)
			r.Get("/trend", billingHandler.Trend)
			r.Get("/top-consumers", billingHandler.TopConsumers)
		})

		r.Route("/metrics", func(r chi.Router) {
			r.Get("/summary", metricsHandler.Summary)
			r.Get("/idle-clusters", metricsHandler.IdleClusters)
			r.Get("/recommendations", metricsHandler.Recommendations)
		})

		r.Route("/optimization", func(r chi.Router) {
			r.Get("/summary", optimizationHandler.Summary)
			r.Get("/oversized-clusters", optimizationHandler.OversizedClusters)
			r.Get("/job-recommendations", optimizationHandler.JobRecommendations)
			r.Get("/schedule-recommendations", optimizationHandler.ScheduleRecommendations)
			r.Post("/collect-metrics", optimizationHandler.CollectMetrics)
			r.Get("/cluster/{clusterID}/history", optimizationHandler.History)
			r.Get("/trends", optimizationHandler.Trends)
			r.Get("/spark-config-recommendations", optimizationHandler.SparkConfigRecommendations)
			r.Get("/cost-recommendations", optimizationHandler.CostRecommendations)
			r.Get("/autoscaling-recommendations", optimizationHandler.AutoscalingRecommendations)
			r.Get("/node-type-recommendations", optimizationHandler.NodeTypeRecommendations)
		})

		r.Get("/workspace/info", workspaceHandler.Info)
	})

	return r
}
