package handler

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lakeops/lakeops/internal/workspace"
)

// ClusterHandler serves the cluster list, detail, lifecycle, and event
// endpoints.
type ClusterHandler struct {
	ws  WorkspaceAPI
	log *zap.SugaredLogger
}

// NewClusterHandler creates a new ClusterHandler.
func NewClusterHandler(ws WorkspaceAPI, log *zap.SugaredLogger) *ClusterHandler {
	return &ClusterHandler{ws: ws, log: log}
}

// ClusterSummary is the list-view projection of a cluster.
type ClusterSummary struct {
	ClusterID           string                  `json:"cluster_id"`
	ClusterName         string                  `json:"cluster_name"`
	State               workspace.ClusterState  `json:"state"`
	CreatorUserName     string                  `json:"creator_user_name,omitempty"`
	NodeTypeID          string                  `json:"node_type_id,omitempty"`
	DriverNodeTypeID    string                  `json:"driver_node_type_id,omitempty"`
	NumWorkers          int                     `json:"num_workers"`
	Autoscale           *workspace.AutoScale    `json:"autoscale,omitempty"`
	SparkVersion        string                  `json:"spark_version,omitempty"`
	ClusterSource       workspace.ClusterSource `json:"cluster_source,omitempty"`
	StartTime           int64                   `json:"start_time,omitempty"`
	LastActivityTime    int64                   `json:"last_activity_time,omitempty"`
	UptimeMinutes       int                     `json:"uptime_minutes"`
	EstimatedDBUPerHour float64                 `json:"estimated_dbu_per_hour"`
}

// ClusterDetail extends the summary with the full configuration record.
type ClusterDetail struct {
	ClusterSummary

	TerminatedTime         int64                      `json:"terminated_time,omitempty"`
	TerminationReason      string                     `json:"termination_reason,omitempty"`
	StateMessage           string                     `json:"state_message,omitempty"`
	DefaultTags            map[string]string          `json:"default_tags"`
	CustomTags             map[string]string          `json:"custom_tags"`
	AWSAttributes          *workspace.AWSAttributes   `json:"aws_attributes,omitempty"`
	AzureAttributes        *workspace.AzureAttributes `json:"azure_attributes,omitempty"`
	GCPAttributes          *workspace.GCPAttributes   `json:"gcp_attributes,omitempty"`
	SparkConf              map[string]string          `json:"spark_conf"`
	SparkEnvVars           map[string]string          `json:"spark_env_vars"`
	AutoterminationMinutes int                        `json:"autotermination_minutes"`
	PolicyID               string                     `json:"policy_id,omitempty"`
	EnableElasticDisk      bool                       `json:"enable_elastic_disk"`
	SingleUserName         string                     `json:"single_user_name,omitempty"`
	DataSecurityMode       string                     `json:"data_security_mode,omitempty"`
}

// ActionResponse reports the outcome of a lifecycle action.
type ActionResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ClusterID string `json:"cluster_id"`
}

func uptimeMinutes(c *workspace.Cluster, now time.Time) int {
	switch c.State {
	case workspace.StateRunning, workspace.StateResizing, workspace.StateRestarting:
	default:
		return 0
	}
	if c.StartTime == 0 {
		return 0
	}
	return int(now.Sub(time.UnixMilli(c.StartTime)).Minutes())
}

func estimatedDBUPerHour(c *workspace.Cluster) float64 {
	switch c.State {
	case workspace.StateRunning, workspace.StateResizing:
	default:
		return 0
	}
	workers := float64(c.NumWorkers)
	if c.Autoscale != nil {
		workers = float64(c.Autoscale.MinWorkers+c.Autoscale.MaxWorkers) / 2
	}
	return workers + 1
}

func toSummary(c *workspace.Cluster, now time.Time) ClusterSummary {
	return ClusterSummary{
		ClusterID:           c.ClusterID,
		ClusterName:         c.DisplayName(),
		State:               c.State,
		CreatorUserName:     c.CreatorUserName,
		NodeTypeID:          c.NodeTypeID,
		DriverNodeTypeID:    c.DriverNodeTypeID,
		NumWorkers:          c.NumWorkers,
		Autoscale:           c.Autoscale,
		SparkVersion:        c.SparkVersion,
		ClusterSource:       c.ClusterSource,
		StartTime:           c.StartTime,
		LastActivityTime:    c.LastActivityTime,
		UptimeMinutes:       uptimeMinutes(c, now),
		EstimatedDBUPerHour: estimatedDBUPerHour(c),
	}
}

var stateOrder = map[workspace.ClusterState]int{
	workspace.StateRunning:     0,
	workspace.StatePending:     1,
	workspace.StateRestarting:  2,
	workspace.StateResizing:    3,
	workspace.StateTerminating: 4,
	workspace.StateTerminated:  5,
	workspace.StateError:       6,
	workspace.StateUnknown:     7,
}

// List returns cluster summaries, optionally filtered by state, sorted
// running-first then by name.
func (h *ClusterHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100, 1, 500)
	stateFilter := r.URL.Query().Get("state")

	clusters, err := h.ws.ListClusters(r.Context(), limit)
	if err != nil {
		h.log.Errorw("failed to list clusters", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list clusters: %v", err))
		return
	}

	now := time.Now()
	summaries := make([]ClusterSummary, 0, len(clusters))
	for i := range clusters {
		s := toSummary(&clusters[i], now)
		if stateFilter != "" && string(s.State) != stateFilter {
			continue
		}
		summaries = append(summaries, s)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		oi, oj := orderOf(summaries[i].State), orderOf(summaries[j].State)
		if oi != oj {
			return oi < oj
		}
		return summaries[i].ClusterName < summaries[j].ClusterName
	})

	writeJSON(w, http.StatusOK, summaries)
}

func orderOf(s workspace.ClusterState) int {
	if o, ok := stateOrder[s]; ok {
		return o
	}
	return 99
}

// Get returns the full configuration of one cluster.
func (h *ClusterHandler) Get(w http.ResponseWriter, r *http.Request) {
	clusterID := chi.URLParam(r, "clusterID")

	c, err := h.ws.GetCluster(r.Context(), clusterID)
	if err != nil {
		h.log.Errorw("failed to get cluster", "cluster_id", clusterID, "error", err)
		writeError(w, http.StatusNotFound, fmt.Sprintf("Cluster not found: %s. Error: %v", clusterID, err))
		return
	}

	detail := ClusterDetail{
		ClusterSummary:         toSummary(c, time.Now()),
		TerminatedTime:         c.TerminatedTime,
		StateMessage:           c.StateMessage,
		DefaultTags:            orEmpty(c.DefaultTags),
		CustomTags:             orEmpty(c.CustomTags),
		AWSAttributes:          c.AWSAttributes,
		AzureAttributes:        c.AzureAttributes,
		GCPAttributes:          c.GCPAttributes,
		SparkConf:              orEmpty(c.SparkConf),
		SparkEnvVars:           orEmpty(c.SparkEnvVars),
		AutoterminationMinutes: c.AutoterminationMinutes,
		PolicyID:               c.PolicyID,
		EnableElasticDisk:      c.EnableElasticDisk,
		SingleUserName:         c.SingleUserName,
		DataSecurityMode:       c.DataSecurityMode,
	}
	if c.TerminationReason != nil {
		detail.TerminationReason = c.TerminationReason.Message
	}

	writeJSON(w, http.StatusOK, detail)
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// Start starts a terminated cluster. Only TERMINATED and ERROR clusters can
// be started; starting a running cluster is a no-op success.
func (h *ClusterHandler) Start(w http.ResponseWriter, r *http.Request) {
	clusterID := chi.URLParam(r, "clusterID")
	h.log.Infow("starting cluster", "cluster_id", clusterID)

	c, err := h.ws.GetCluster(r.Context(), clusterID)
	if err != nil {
		h.respondActionError(w, clusterID, err)
		return
	}

	if c.State == workspace.StateRunning {
		writeJSON(w, http.StatusOK, ActionResponse{
			Success: true, Message: "Cluster is already running", ClusterID: clusterID,
		})
		return
	}
	if c.State != workspace.StateTerminated && c.State != workspace.StateError {
		writeJSON(w, http.StatusOK, ActionResponse{
			Success: false, Message: fmt.Sprintf("Cannot start cluster in state: %s", c.State), ClusterID: clusterID,
		})
		return
	}

	if err := h.ws.StartCluster(r.Context(), clusterID); err != nil {
		h.log.Errorw("failed to start cluster", "cluster_id", clusterID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{
		Success: true, Message: "Cluster start initiated", ClusterID: clusterID,
	})
}

// Stop terminates a running cluster. The configuration is preserved and the
// cluster can be started again later.
func (h *ClusterHandler) Stop(w http.ResponseWriter, r *http.Request) {
	clusterID := chi.URLParam(r, "clusterID")
	h.log.Infow("stopping cluster", "cluster_id", clusterID)

	c, err := h.ws.GetCluster(r.Context(), clusterID)
	if err != nil {
		h.respondActionError(w, clusterID, err)
		return
	}

	if c.State == workspace.StateTerminated {
		writeJSON(w, http.StatusOK, ActionResponse{
			Success: true, Message: "Cluster is already stopped", ClusterID: clusterID,
		})
		return
	}
	switch c.State {
	case workspace.StateRunning, workspace.StatePending, workspace.StateResizing, workspace.StateRestarting:
	default:
		writeJSON(w, http.StatusOK, ActionResponse{
			Success: false, Message: fmt.Sprintf("Cannot stop cluster in state: %s", c.State), ClusterID: clusterID,
		})
		return
	}

	if err := h.ws.StopCluster(r.Context(), clusterID); err != nil {
		h.log.Errorw("failed to stop cluster", "cluster_id", clusterID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{
		Success: true, Message: "Cluster stop initiated", ClusterID: clusterID,
	})
}

func (h *ClusterHandler) respondActionError(w http.ResponseWriter, clusterID string, err error) {
	if errors.Is(err, workspace.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Cluster not found: %s", clusterID))
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// Events returns recent lifecycle events for a cluster.
func (h *ClusterHandler) Events(w http.ResponseWriter, r *http.Request) {
	clusterID := chi.URLParam(r, "clusterID")
	limit := queryInt(r, "limit", 50, 1, 100)

	page, err := h.ws.ClusterEvents(r.Context(), clusterID, limit)
	if err != nil {
		h.log.Errorw("failed to get cluster events", "cluster_id", clusterID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if page.Events == nil {
		page.Events = []workspace.Event{}
	}
	writeJSON(w, http.StatusOK, page)
}
