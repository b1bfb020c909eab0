package mcp

// AllTools returns the tool definitions exposed over tools/list.
func AllTools() []Tool {
	return []Tool{
		{
			Name: "list_clusters",
			Description: "List all clusters in the Databricks workspace. Returns cluster ID, name, " +
				"state (RUNNING, TERMINATED, PENDING, etc.), creator, node types, worker count, " +
				"Spark version, uptime in minutes, and estimated DBU per hour. " +
				"Use this to get an overview of all clusters or find specific clusters by state.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"state": {
						Type:        "string",
						Description: "Optional filter by cluster state",
						Enum:        []string{"RUNNING", "TERMINATED", "PENDING", "RESTARTING", "RESIZING", "TERMINATING", "ERROR"},
					},
					"limit": {
						Type:        "integer",
						Description: "Maximum number of clusters to return (default: 100, max: 500)",
					},
				},
			},
		},
		{
			Name: "get_cluster",
			Description: "Get detailed information about a specific cluster by ID. Returns full configuration " +
				"including Spark settings, environment variables, tags, cloud attributes, " +
				"termination reason (if terminated), and security settings. " +
				"Use this when you need complete details about a single cluster.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"cluster_id": {
						Type:        "string",
						Description: "The unique cluster ID (e.g., '0123-456789-abcdef12')",
					},
				},
				Required: []string{"cluster_id"},
			},
		},
		{
			Name: "start_cluster",
			Description: "Start a terminated or stopped cluster. The cluster will transition through PENDING " +
				"state before becoming RUNNING. Only works on clusters in TERMINATED or ERROR state. " +
				"Use this to spin up a cluster that was previously stopped.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"cluster_id": {
						Type:        "string",
						Description: "The unique cluster ID to start",
					},
				},
				Required: []string{"cluster_id"},
			},
		},
		{
			Name: "stop_cluster",
			Description: "Stop a running cluster. This is a SAFE operation - the cluster configuration is " +
				"preserved and can be started again later. The cluster will transition through " +
				"TERMINATING state before becoming TERMINATED. Any running jobs will be interrupted. " +
				"Use this to save costs by stopping idle clusters.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"cluster_id": {
						Type:        "string",
						Description: "The unique cluster ID to stop",
					},
				},
				Required: []string{"cluster_id"},
			},
		},
		{
			Name: "get_cluster_events",
			Description: "Get recent events for a cluster. Returns event history including state changes, " +
				"resize operations, errors, and other cluster lifecycle events. " +
				"Use this to debug cluster issues or understand recent cluster activity.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"cluster_id": {
						Type:        "string",
						Description: "The unique cluster ID",
					},
					"limit": {
						Type:        "integer",
						Description: "Maximum number of events to return (default: 50, max: 100)",
					},
				},
				Required: []string{"cluster_id"},
			},
		},
		{
			Name: "list_policies",
			Description: "List all cluster policies in the workspace. Returns policy ID, name, description, " +
				"and creator. Cluster policies define constraints and defaults for cluster creation. " +
				"Use this to see available policies or find a policy by name.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{},
			},
		},
		{
			Name: "get_policy",
			Description: "Get detailed information about a specific cluster policy. Returns the full policy " +
				"definition including all constraints, defaults, and overrides. " +
				"Use this to understand what a policy allows or restricts.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"policy_id": {
						Type:        "string",
						Description: "The unique policy ID",
					},
				},
				Required: []string{"policy_id"},
			},
		},
		{
			Name: "get_metrics_summary",
			Description: "Get fleet-wide cluster metrics: total, running, pending, and terminated counts, " +
				"total running workers, and the estimated hourly DBU burn across the fleet.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{},
			},
		},
		{
			Name: "list_idle_clusters",
			Description: "List running clusters that have been idle past the alert threshold, with the " +
				"idle duration, estimated wasted DBU, and a recommendation for each. " +
				"Use this to find clusters worth stopping right now.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{},
			},
		},
		{
			Name: "get_optimization_summary",
			Description: "Get the headline optimization rollup: clusters analyzed, oversized and " +
				"underutilized counts, recommendation count, and total potential monthly savings.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{},
			},
		},
		{
			Name: "get_spark_config_recommendations",
			Description: "Analyze every cluster's Spark configuration (AQE, shuffle partitions, " +
				"serializer, dynamic allocation, memory settings) and return per-cluster findings " +
				"with severity and estimated performance impact.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{},
			},
		},
		{
			Name: "get_cost_recommendations",
			Description: "Analyze every cluster for cost savings: spot/preemptible usage, instance " +
				"generation, storage configuration. Returns per-cluster findings with estimated " +
				"savings percentages.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{},
			},
		},
		{
			Name: "get_autoscaling_recommendations",
			Description: "Analyze every cluster's autoscale bounds and auto-termination setting. " +
				"Flags wide or narrow ranges, high minimums, and missing auto-termination.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{},
			},
		},
		{
			Name: "get_node_type_recommendations",
			Description: "Analyze every cluster's node types against the instance catalog: family fit " +
				"for the workload, generation upgrades, and driver sizing.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{},
			},
		},
		{
			Name: "get_utilization_trends",
			Description: "Get fleet-wide daily utilization aggregates with moving averages: efficiency " +
				"score, DBU consumption, and oversized counts over the requested period.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"days": {
						Type:        "integer",
						Description: "Number of days of history to analyze (default: 30, max: 90)",
					},
				},
			},
		},
		{
			Name: "collect_metrics",
			Description: "Trigger an on-demand utilization metrics collection pass for yesterday. " +
				"Computes per-cluster DBU usage and efficiency scores and persists them for " +
				"trend analysis.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{},
			},
		},
	}
}
