// Package config loads the LakeOps configuration from YAML with environment
// overrides for workspace credentials.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for LakeOps.
type Config struct {
	Workspace      WorkspaceConfig    `yaml:"workspace"`
	APIServer      APIServerConfig    `yaml:"apiServer"`
	SQLWarehouseID string             `yaml:"sqlWarehouseId"`
	Metrics        MetricsConfig      `yaml:"metrics"`
	Optimization   OptimizationConfig `yaml:"optimization"`
	Collector      CollectorConfig    `yaml:"collector"`
	Database       DatabaseConfig     `yaml:"database"`
}

// WorkspaceConfig holds workspace connection settings. Token auth wins when
// both a token and OAuth credentials are set.
type WorkspaceConfig struct {
	Host         string `yaml:"host"`
	Token        string `yaml:"token"`
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
}

type APIServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// MetricsConfig names the Unity Catalog location mirrored by the collector.
type MetricsConfig struct {
	Catalog string `yaml:"catalog"`
	Schema  string `yaml:"schema"`
}

type OptimizationConfig struct {
	OversizedThreshold     float64 `yaml:"oversizedThreshold"`
	UnderutilizedThreshold float64 `yaml:"underutilizedThreshold"`
	DBURateUSD             float64 `yaml:"dbuRateUsd"`
	ClusterLimit           int     `yaml:"clusterLimit"`
}

type CollectorConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retentionDays"`
}

// DefaultConfig returns a Config with sensible defaults. Workspace
// credentials can be set via DATABRICKS_* env vars.
func DefaultConfig() *Config {
	cfg := &Config{
		APIServer: APIServerConfig{
			Address: "0.0.0.0",
			Port:    8080,
		},
		Metrics: MetricsConfig{
			Catalog: "main",
			Schema:  "cluster_manager_app",
		},
		Optimization: OptimizationConfig{
			OversizedThreshold:     30.0,
			UnderutilizedThreshold: 50.0,
			DBURateUSD:             0.15,
			ClusterLimit:           200,
		},
		Collector: CollectorConfig{
			Enabled:  true,
			Schedule: "0 2 * * *",
		},
		Database: DatabaseConfig{
			Path:          "/data/lakeops.db",
			RetentionDays: 90,
		},
	}

	cfg.applyEnvOverrides()
	return cfg
}

// LoadFromFile loads config from a YAML file, overlaying on defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides fills in empty fields from environment variables. This
// handles the app-runtime case where the platform injects credentials rather
// than a config file.
func (c *Config) applyEnvOverrides() {
	if c.Workspace.Host == "" {
		c.Workspace.Host = os.Getenv("DATABRICKS_HOST")
	}
	if c.Workspace.Token == "" {
		c.Workspace.Token = os.Getenv("DATABRICKS_TOKEN")
	}
	if c.Workspace.ClientID == "" {
		c.Workspace.ClientID = os.Getenv("DATABRICKS_CLIENT_ID")
	}
	if c.Workspace.ClientSecret == "" {
		c.Workspace.ClientSecret = os.Getenv("DATABRICKS_CLIENT_SECRET")
	}
	if c.SQLWarehouseID == "" {
		c.SQLWarehouseID = os.Getenv("DATABRICKS_WAREHOUSE_ID")
	}
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.Workspace.Host == "" {
		return fmt.Errorf("workspace host is required: set in config file or DATABRICKS_HOST env var")
	}

	if c.Workspace.Token == "" && (c.Workspace.ClientID == "" || c.Workspace.ClientSecret == "") {
		return fmt.Errorf("workspace credentials are required: set a token or an OAuth client id/secret pair")
	}

	if c.APIServer.Port <= 0 || c.APIServer.Port > 65535 {
		return fmt.Errorf("invalid API server port %d", c.APIServer.Port)
	}

	if c.Optimization.OversizedThreshold < 0 || c.Optimization.OversizedThreshold > 100 {
		return fmt.Errorf("oversizedThreshold must be in [0, 100], got %.1f", c.Optimization.OversizedThreshold)
	}
	if c.Optimization.UnderutilizedThreshold < 0 || c.Optimization.UnderutilizedThreshold > 100 {
		return fmt.Errorf("underutilizedThreshold must be in [0, 100], got %.1f", c.Optimization.UnderutilizedThreshold)
	}
	if c.Optimization.DBURateUSD <= 0 {
		return fmt.Errorf("dbuRateUsd must be positive, got %.2f", c.Optimization.DBURateUSD)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	return nil
}
