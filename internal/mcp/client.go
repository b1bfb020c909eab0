package mcp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIClient wraps an http.Client and a base URL to call the LakeOps REST API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new APIClient targeting the given base URL.
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doGet performs an HTTP GET and returns the response body as raw JSON.
func (c *APIClient) doGet(path string, query url.Values) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := c.httpClient.Get(u)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from GET %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s returned HTTP %d: %s", path, resp.StatusCode, string(body))
	}

	return json.RawMessage(body), nil
}

// doPost performs an HTTP POST and returns the response body as raw JSON.
func (c *APIClient) doPost(path string) (json.RawMessage, error) {
	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from POST %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("POST %s returned HTTP %d: %s", path, resp.StatusCode, string(body))
	}

	return json.RawMessage(body), nil
}

// ── Clusters ─────────────────────────────────────────────────────────────

// ListClusters calls GET /api/clusters with optional state and limit.
func (c *APIClient) ListClusters(state string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if state != "" {
		q.Set("state", state)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	return c.doGet("/api/clusters", q)
}

// GetCluster calls GET /api/clusters/{id}.
func (c *APIClient) GetCluster(id string) (json.RawMessage, error) {
	return c.doGet("/api/clusters/"+url.PathEscape(id), nil)
}

// StartCluster calls POST /api/clusters/{id}/start.
func (c *APIClient) StartCluster(id string) (json.RawMessage, error) {
	return c.doPost("/api/clusters/" + url.PathEscape(id) + "/start")
}

// StopCluster calls POST /api/clusters/{id}/stop.
func (c *APIClient) StopCluster(id string) (json.RawMessage, error) {
	return c.doPost("/api/clusters/" + url.PathEscape(id) + "/stop")
}

// GetClusterEvents calls GET /api/clusters/{id}/events.
func (c *APIClient) GetClusterEvents(id string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	return c.doGet("/api/clusters/"+url.PathEscape(id)+"/events", q)
}

// ── Policies ─────────────────────────────────────────────────────────────

// ListPolicies calls GET /api/policies.
func (c *APIClient) ListPolicies() (json.RawMessage, error) {
	return c.doGet("/api/policies", nil)
}

// GetPolicy calls GET /api/policies/{id}.
func (c *APIClient) GetPolicy(id string) (json.RawMessage, error) {
	return c.doGet("/api/policies/"+url.PathEscape(id), nil)
}

// ── Fleet metrics ────────────────────────────────────────────────────────

// GetMetricsSummary calls GET /api/metrics/summary.
func (c *APIClient) GetMetricsSummary() (json.RawMessage, error) {
	return c.doGet("/api/metrics/summary", nil)
}

// ListIdleClusters calls GET /api/metrics/idle-clusters.
func (c *APIClient) ListIdleClusters() (json.RawMessage, error) {
	return c.doGet("/api/metrics/idle-clusters", nil)
}

// ── Optimization ─────────────────────────────────────────────────────────

// GetOptimizationSummary calls GET /api/optimization/summary.
func (c *APIClient) GetOptimizationSummary() (json.RawMessage, error) {
	return c.doGet("/api/optimization/summary", nil)
}

// GetSparkConfigRecommendations calls GET /api/optimization/spark-config-recommendations.
func (c *APIClient) GetSparkConfigRecommendations() (json.RawMessage, error) {
	return c.doGet("/api/optimization/spark-config-recommendations", nil)
}

// GetCostRecommendations calls GET /api/optimization/cost-recommendations.
func (c *APIClient) GetCostRecommendations() (json.RawMessage, error) {
	return c.doGet("/api/optimization/cost-recommendations", nil)
}

// GetAutoscalingRecommendations calls GET /api/optimization/autoscaling-recommendations.
func (c *APIClient) GetAutoscalingRecommendations() (json.RawMessage, error) {
	return c.doGet("/api/optimization/autoscaling-recommendations", nil)
}

// GetNodeTypeRecommendations calls GET /api/optimization/node-type-recommendations.
func (c *APIClient) GetNodeTypeRecommendations() (json.RawMessage, error) {
	return c.doGet("/api/optimization/node-type-recommendations", nil)
}

// GetUtilizationTrends calls GET /api/optimization/trends.
func (c *APIClient) GetUtilizationTrends(days int) (json.RawMessage, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", fmt.Sprintf("%d", days))
	}
	return c.doGet("/api/optimization/trends", q)
}

// CollectMetrics calls POST /api/optimization/collect-metrics.
func (c *APIClient) CollectMetrics() (json.RawMessage, error) {
	return c.doPost("/api/optimization/collect-metrics")
}
