package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNotFound is returned when the workspace API reports a missing resource.
var ErrNotFound = errors.New("workspace: resource not found")

// Config configures the workspace API client.
type Config struct {
	// Host is the workspace URL, e.g. https://dbc-123.cloud.databricks.com.
	Host string
	// Token is a personal access token. Ignored when ClientID is set.
	Token string
	// ClientID / ClientSecret enable OAuth machine-to-machine auth against
	// the workspace token endpoint.
	ClientID     string
	ClientSecret string
	// MaxRetries bounds transient-failure retries (default 3).
	MaxRetries int
	// Timeout is the per-request timeout (default 30s).
	Timeout time.Duration
}

// Client talks to the workspace REST API. It is safe for concurrent use.
type Client struct {
	host  string
	http  *http.Client
	token string
	log   *zap.SugaredLogger
}

// leveledLogger adapts zap to retryablehttp's LeveledLogger interface.
type leveledLogger struct{ log *zap.SugaredLogger }

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Errorw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warnw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debugw(msg, kv...) }

// New creates a Client. OAuth client credentials are preferred when
// configured; otherwise the personal access token is sent as a bearer token.
func New(cfg Config, log *zap.SugaredLogger) (*Client, error) {
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		return nil, fmt.Errorf("workspace host is empty")
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.HTTPClient.Timeout = timeout
	rc.Logger = leveledLogger{log: log}

	c := &Client{
		host: host,
		log:  log,
	}

	if cfg.ClientID != "" {
		oauth := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     host + "/oidc/v1/token",
			Scopes:       []string{"all-apis"},
		}
		// The oauth2 transport must wrap the retrying client, so token
		// refresh and retries compose. oauth2 picks the base client up
		// from the context.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, rc.StandardClient())
		c.http = oauth.Client(ctx)
	} else {
		if cfg.Token == "" {
			return nil, fmt.Errorf("workspace token is empty and no OAuth client configured")
		}
		c.token = cfg.Token
		c.http = rc.StandardClient()
	}

	return c, nil
}

// Host returns the configured workspace URL.
func (c *Client) Host() string { return c.host }

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.host + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s %s response: %w", method, path, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s returned HTTP %d: %s", method, path, resp.StatusCode, truncate(string(data), 512))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding %s %s response: %w", method, path, err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ListClusters returns up to limit clusters. The upstream list is unordered;
// a limit avoids timeouts on large workspaces.
func (c *Client) ListClusters(ctx context.Context, limit int) ([]Cluster, error) {
	var page struct {
		Clusters []Cluster `json:"clusters"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/2.1/clusters/list", nil, nil, &page); err != nil {
		return nil, fmt.Errorf("listing clusters: %w", err)
	}
	clusters := page.Clusters
	if limit > 0 && len(clusters) > limit {
		c.log.Infow("cluster list truncated", "limit", limit, "total", len(clusters))
		clusters = clusters[:limit]
	}
	return clusters, nil
}

// GetCluster fetches one cluster by ID.
func (c *Client) GetCluster(ctx context.Context, clusterID string) (*Cluster, error) {
	q := url.Values{"cluster_id": {clusterID}}
	var cluster Cluster
	if err := c.do(ctx, http.MethodGet, "/api/2.1/clusters/get", q, nil, &cluster); err != nil {
		return nil, fmt.Errorf("getting cluster %s: %w", clusterID, err)
	}
	return &cluster, nil
}

// StartCluster asks the workspace to start a terminated cluster.
func (c *Client) StartCluster(ctx context.Context, clusterID string) error {
	body := map[string]string{"cluster_id": clusterID}
	if err := c.do(ctx, http.MethodPost, "/api/2.1/clusters/start", nil, body, nil); err != nil {
		return fmt.Errorf("starting cluster %s: %w", clusterID, err)
	}
	return nil
}

// StopCluster terminates a running cluster. The configuration is preserved
// and the cluster can be started again later.
func (c *Client) StopCluster(ctx context.Context, clusterID string) error {
	body := map[string]string{"cluster_id": clusterID}
	if err := c.do(ctx, http.MethodPost, "/api/2.1/clusters/delete", nil, body, nil); err != nil {
		return fmt.Errorf("stopping cluster %s: %w", clusterID, err)
	}
	return nil
}

// ClusterEvents returns recent lifecycle events for a cluster.
func (c *Client) ClusterEvents(ctx context.Context, clusterID string, limit int) (*EventsPage, error) {
	body := map[string]any{"cluster_id": clusterID, "limit": limit}
	var page EventsPage
	if err := c.do(ctx, http.MethodPost, "/api/2.1/clusters/events", nil, body, &page); err != nil {
		return nil, fmt.Errorf("getting events for cluster %s: %w", clusterID, err)
	}
	if page.TotalCount == 0 {
		page.TotalCount = len(page.Events)
	}
	return &page, nil
}

// ListPolicies returns all cluster policies.
func (c *Client) ListPolicies(ctx context.Context) ([]Policy, error) {
	var page struct {
		Policies []Policy `json:"policies"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/2.0/policies/clusters/list", nil, nil, &page); err != nil {
		return nil, fmt.Errorf("listing policies: %w", err)
	}
	return page.Policies, nil
}

// GetPolicy fetches one cluster policy by ID.
func (c *Client) GetPolicy(ctx context.Context, policyID string) (*Policy, error) {
	q := url.Values{"policy_id": {policyID}}
	var p Policy
	if err := c.do(ctx, http.MethodGet, "/api/2.0/policies/clusters/get", q, nil, &p); err != nil {
		return nil, fmt.Errorf("getting policy %s: %w", policyID, err)
	}
	return &p, nil
}

// ListWarehouses returns the workspace's SQL warehouses.
func (c *Client) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	var page struct {
		Warehouses []Warehouse `json:"warehouses"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/2.0/sql/warehouses", nil, nil, &page); err != nil {
		return nil, fmt.Errorf("listing warehouses: %w", err)
	}
	return page.Warehouses, nil
}

// ResolveWarehouse picks the warehouse used for statement execution: the
// configured ID when set, otherwise the first RUNNING warehouse, otherwise
// the first warehouse at all.
func (c *Client) ResolveWarehouse(ctx context.Context, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	warehouses, err := c.ListWarehouses(ctx)
	if err != nil {
		return "", err
	}
	for _, wh := range warehouses {
		if wh.State == "RUNNING" {
			c.log.Infow("using warehouse", "name", wh.Name, "id", wh.ID)
			return wh.ID, nil
		}
	}
	if len(warehouses) > 0 {
		c.log.Infow("using warehouse", "name", warehouses[0].Name, "id", warehouses[0].ID)
		return warehouses[0].ID, nil
	}
	return "", fmt.Errorf("no SQL warehouse available; set sqlWarehouseId in the config")
}

// ListJobRuns returns job runs whose start time falls in [from, to]
// millisecond epochs.
func (c *Client) ListJobRuns(ctx context.Context, from, to int64) ([]JobRun, error) {
	q := url.Values{
		"start_time_from": {strconv.FormatInt(from, 10)},
		"start_time_to":   {strconv.FormatInt(to, 10)},
	}
	var page struct {
		Runs []JobRun `json:"runs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/2.1/jobs/runs/list", q, nil, &page); err != nil {
		return nil, fmt.Errorf("listing job runs: %w", err)
	}
	return page.Runs, nil
}
