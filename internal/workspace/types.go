package workspace

// ClusterState is the lifecycle state reported by the clusters API.
type ClusterState string

const (
	StatePending     ClusterState = "PENDING"
	StateRunning     ClusterState = "RUNNING"
	StateRestarting  ClusterState = "RESTARTING"
	StateResizing    ClusterState = "RESIZING"
	StateTerminating ClusterState = "TERMINATING"
	StateTerminated  ClusterState = "TERMINATED"
	StateError       ClusterState = "ERROR"
	StateUnknown     ClusterState = "UNKNOWN"
)

// ParseState maps an upstream state string onto the closed ClusterState set.
// Unrecognized values degrade to StateUnknown so a fleet scan never fails on
// a state added upstream after this code shipped.
func ParseState(s string) ClusterState {
	switch ClusterState(s) {
	case StatePending, StateRunning, StateRestarting, StateResizing,
		StateTerminating, StateTerminated, StateError:
		return ClusterState(s)
	}
	return StateUnknown
}

// ClusterSource records what created a cluster.
type ClusterSource string

const (
	SourceUI                  ClusterSource = "UI"
	SourceAPI                 ClusterSource = "API"
	SourceJob                 ClusterSource = "JOB"
	SourceModels              ClusterSource = "MODELS"
	SourcePipeline            ClusterSource = "PIPELINE"
	SourcePipelineMaintenance ClusterSource = "PIPELINE_MAINTENANCE"
	SourceSQL                 ClusterSource = "SQL"
)

// CloudProvider identifies which cloud a cluster runs on.
type CloudProvider string

const (
	CloudAWS     CloudProvider = "aws"
	CloudAzure   CloudProvider = "azure"
	CloudGCP     CloudProvider = "gcp"
	CloudUnknown CloudProvider = "unknown"
)

// AutoScale is the worker-count range for autoscaling clusters.
type AutoScale struct {
	MinWorkers int `json:"min_workers"`
	MaxWorkers int `json:"max_workers"`
}

// AWSAttributes is the AWS-specific placement block of a cluster.
type AWSAttributes struct {
	Availability        string `json:"availability,omitempty"`
	ZoneID              string `json:"zone_id,omitempty"`
	FirstOnDemand       int    `json:"first_on_demand,omitempty"`
	SpotBidPricePercent int    `json:"spot_bid_price_percent,omitempty"`
	EBSVolumeType       string `json:"ebs_volume_type,omitempty"`
	EBSVolumeCount      int    `json:"ebs_volume_count,omitempty"`
	EBSVolumeSize       int    `json:"ebs_volume_size,omitempty"`
	InstanceProfileARN  string `json:"instance_profile_arn,omitempty"`
}

// AzureAttributes is the Azure-specific placement block of a cluster.
type AzureAttributes struct {
	Availability    string  `json:"availability,omitempty"`
	FirstOnDemand   int     `json:"first_on_demand,omitempty"`
	SpotBidMaxPrice float64 `json:"spot_bid_max_price,omitempty"`
}

// GCPAttributes is the GCP-specific placement block of a cluster.
type GCPAttributes struct {
	UsePreemptibleExecutors bool   `json:"use_preemptible_executors,omitempty"`
	Availability            string `json:"availability,omitempty"`
	ZoneID                  string `json:"zone_id,omitempty"`
	GoogleServiceAccount    string `json:"google_service_account,omitempty"`
}

// Cluster is the configuration record returned by the clusters API. Only the
// fields the backend consumes are mapped; everything else is dropped during
// decoding. At most one of NumWorkers / Autoscale is meaningfully populated,
// and at most one cloud attribute block is non-nil.
type Cluster struct {
	ClusterID        string        `json:"cluster_id"`
	ClusterName      string        `json:"cluster_name"`
	State            ClusterState  `json:"state"`
	StateMessage     string        `json:"state_message,omitempty"`
	CreatorUserName  string        `json:"creator_user_name,omitempty"`
	ClusterSource    ClusterSource `json:"cluster_source,omitempty"`
	NodeTypeID       string        `json:"node_type_id,omitempty"`
	DriverNodeTypeID string        `json:"driver_node_type_id,omitempty"`

	NumWorkers int        `json:"num_workers,omitempty"`
	Autoscale  *AutoScale `json:"autoscale,omitempty"`

	AWSAttributes   *AWSAttributes   `json:"aws_attributes,omitempty"`
	AzureAttributes *AzureAttributes `json:"azure_attributes,omitempty"`
	GCPAttributes   *GCPAttributes   `json:"gcp_attributes,omitempty"`

	SparkVersion string            `json:"spark_version,omitempty"`
	SparkConf    map[string]string `json:"spark_conf,omitempty"`
	SparkEnvVars map[string]string `json:"spark_env_vars,omitempty"`

	AutoterminationMinutes int    `json:"autotermination_minutes,omitempty"`
	PolicyID               string `json:"policy_id,omitempty"`
	EnableElasticDisk      bool   `json:"enable_elastic_disk,omitempty"`
	SingleUserName         string `json:"single_user_name,omitempty"`
	DataSecurityMode       string `json:"data_security_mode,omitempty"`

	DefaultTags map[string]string `json:"default_tags,omitempty"`
	CustomTags  map[string]string `json:"custom_tags,omitempty"`

	// Millisecond epochs as delivered by the API. Zero means absent.
	StartTime        int64 `json:"start_time,omitempty"`
	LastActivityTime int64 `json:"last_activity_time,omitempty"`
	TerminatedTime   int64 `json:"terminated_time,omitempty"`

	TerminationReason *TerminationReason `json:"termination_reason,omitempty"`
}

// TerminationReason describes why a cluster terminated.
type TerminationReason struct {
	Code    string `json:"code,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// DisplayName returns the cluster name, substituting a placeholder for
// clusters created without one.
func (c *Cluster) DisplayName() string {
	if c.ClusterName == "" {
		return "Unnamed Cluster"
	}
	return c.ClusterName
}

// EffectiveWorkers returns the worker count used by every downstream
// computation: num_workers for fixed clusters, the integer-truncated average
// of the autoscale bounds otherwise. There is no live-count field in this
// model.
func (c *Cluster) EffectiveWorkers() int {
	if c.Autoscale != nil {
		return (c.Autoscale.MinWorkers + c.Autoscale.MaxWorkers) / 2
	}
	return c.NumWorkers
}

// Provider detects the cloud from the mutually exclusive attribute blocks.
// First match wins.
func (c *Cluster) Provider() CloudProvider {
	switch {
	case c.AWSAttributes != nil:
		return CloudAWS
	case c.AzureAttributes != nil:
		return CloudAzure
	case c.GCPAttributes != nil:
		return CloudGCP
	}
	return CloudUnknown
}

// UsesSpot reports whether the cluster's workers run on interruptible
// capacity, per the cloud-specific availability encoding.
func (c *Cluster) UsesSpot() bool {
	switch {
	case c.AWSAttributes != nil:
		a := c.AWSAttributes.Availability
		return a == "SPOT" || a == "SPOT_WITH_FALLBACK"
	case c.AzureAttributes != nil:
		a := c.AzureAttributes.Availability
		return a == "SPOT_AZURE" || a == "SPOT_WITH_FALLBACK_AZURE"
	case c.GCPAttributes != nil:
		return c.GCPAttributes.UsePreemptibleExecutors
	}
	return false
}

// Event is one entry from the cluster events API.
type Event struct {
	ClusterID string         `json:"cluster_id"`
	Timestamp int64          `json:"timestamp"`
	Type      string         `json:"type"`
	Details   map[string]any `json:"details,omitempty"`
}

// EventsPage is a page of cluster events.
type EventsPage struct {
	Events        []Event `json:"events"`
	NextPageToken string  `json:"next_page_token,omitempty"`
	TotalCount    int     `json:"total_count"`
}

// Policy is a cluster policy record.
type Policy struct {
	PolicyID                        string `json:"policy_id"`
	Name                            string `json:"name"`
	Definition                      string `json:"definition,omitempty"`
	Description                     string `json:"description,omitempty"`
	CreatorUserName                 string `json:"creator_user_name,omitempty"`
	CreatedAtTimestamp              int64  `json:"created_at_timestamp,omitempty"`
	IsDefault                       bool   `json:"is_default,omitempty"`
	MaxClustersPerUser              int    `json:"max_clusters_per_user,omitempty"`
	PolicyFamilyID                  string `json:"policy_family_id,omitempty"`
	PolicyFamilyDefinitionOverrides string `json:"policy_family_definition_overrides,omitempty"`
}

// Warehouse is a SQL warehouse record, consumed only for statement routing.
type Warehouse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// JobRun is the subset of a job run consumed by the collector.
type JobRun struct {
	RunID       int64 `json:"run_id"`
	StartTime   int64 `json:"start_time"`
	ClusterSpec *struct {
		ExistingClusterID string `json:"existing_cluster_id,omitempty"`
	} `json:"cluster_spec,omitempty"`
}
