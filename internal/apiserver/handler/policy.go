package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lakeops/lakeops/internal/workspace"
)

// PolicyHandler serves the cluster-policy endpoints.
type PolicyHandler struct {
	ws  WorkspaceAPI
	log *zap.SugaredLogger
}

// NewPolicyHandler creates a new PolicyHandler.
func NewPolicyHandler(ws WorkspaceAPI, log *zap.SugaredLogger) *PolicyHandler {
	return &PolicyHandler{ws: ws, log: log}
}

// PolicySummary is the list-view projection of a policy.
type PolicySummary struct {
	PolicyID           string `json:"policy_id"`
	Name               string `json:"name"`
	Definition         string `json:"definition,omitempty"`
	Description        string `json:"description,omitempty"`
	CreatorUserName    string `json:"creator_user_name,omitempty"`
	CreatedAtTimestamp int64  `json:"created_at_timestamp,omitempty"`
	IsDefault          bool   `json:"is_default"`
}

// PolicyDetail extends the summary with the parsed definition.
type PolicyDetail struct {
	PolicySummary

	DefinitionJSON                  map[string]any `json:"definition_json"`
	MaxClustersPerUser              int            `json:"max_clusters_per_user,omitempty"`
	PolicyFamilyID                  string         `json:"policy_family_id,omitempty"`
	PolicyFamilyDefinitionOverrides string         `json:"policy_family_definition_overrides,omitempty"`
}

// PolicyUsage lists the clusters created under one policy.
type PolicyUsage struct {
	PolicyID     string           `json:"policy_id"`
	PolicyName   string           `json:"policy_name"`
	ClusterCount int              `json:"cluster_count"`
	Clusters     []ClusterSummary `json:"clusters"`
}

func policyName(p *workspace.Policy) string {
	if p.Name == "" {
		return "Unnamed Policy"
	}
	return p.Name
}

func toPolicySummary(p *workspace.Policy) PolicySummary {
	return PolicySummary{
		PolicyID:           p.PolicyID,
		Name:               policyName(p),
		Definition:         p.Definition,
		Description:        p.Description,
		CreatorUserName:    p.CreatorUserName,
		CreatedAtTimestamp: p.CreatedAtTimestamp,
		IsDefault:          p.IsDefault,
	}
}

// List returns all cluster policies sorted by name.
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	policies, err := h.ws.ListPolicies(r.Context())
	if err != nil {
		h.log.Errorw("failed to list policies", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summaries := make([]PolicySummary, 0, len(policies))
	for i := range policies {
		summaries = append(summaries, toPolicySummary(&policies[i]))
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })

	writeJSON(w, http.StatusOK, summaries)
}

// Get returns one policy with its definition parsed as JSON.
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "policyID")

	p, err := h.ws.GetPolicy(r.Context(), policyID)
	if err != nil {
		h.log.Errorw("failed to get policy", "policy_id", policyID, "error", err)
		writeError(w, http.StatusNotFound, fmt.Sprintf("Policy not found: %s", policyID))
		return
	}

	definitionJSON := map[string]any{}
	if p.Definition != "" {
		if err := json.Unmarshal([]byte(p.Definition), &definitionJSON); err != nil {
			h.log.Warnw("failed to parse policy definition JSON", "policy_id", policyID)
		}
	}

	writeJSON(w, http.StatusOK, PolicyDetail{
		PolicySummary:                   toPolicySummary(p),
		DefinitionJSON:                  definitionJSON,
		MaxClustersPerUser:              p.MaxClustersPerUser,
		PolicyFamilyID:                  p.PolicyFamilyID,
		PolicyFamilyDefinitionOverrides: p.PolicyFamilyDefinitionOverrides,
	})
}

// Usage returns the clusters created under one policy.
func (h *PolicyHandler) Usage(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "policyID")

	p, err := h.ws.GetPolicy(r.Context(), policyID)
	if err != nil {
		h.log.Errorw("failed to get policy", "policy_id", policyID, "error", err)
		writeError(w, http.StatusNotFound, fmt.Sprintf("Policy not found: %s", policyID))
		return
	}

	clusters, err := h.ws.ListClusters(r.Context(), 500)
	if err != nil {
		h.log.Errorw("failed to list clusters for policy usage", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := time.Now()
	summaries := []ClusterSummary{}
	for i := range clusters {
		if clusters[i].PolicyID == policyID {
			summaries = append(summaries, toSummary(&clusters[i], now))
		}
	}

	writeJSON(w, http.StatusOK, PolicyUsage{
		PolicyID:     policyID,
		PolicyName:   policyName(p),
		ClusterCount: len(summaries),
		Clusters:     summaries,
	})
}
