// Package apiserver wires the REST API over the workspace client, the rule
// engine, and the utilization store.
package apiserver

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lakeops/lakeops/internal/apiserver/handler"
	"github.com/lakeops/lakeops/internal/config"
	"github.com/lakeops/lakeops/internal/store"
)

// NewServer creates a new HTTP server for the REST API.
func NewServer(cfg *config.Config, ws handler.WorkspaceAPI, db *store.DB, mc handler.MetricsCollector, log *zap.SugaredLogger) *http.Server {
	router := NewRouter(cfg, ws, db, mc, log)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.APIServer.Address, cfg.APIServer.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
