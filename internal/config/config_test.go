package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Workspace.Host = "https://example.cloud.databricks.com"
	cfg.Workspace.Token = "dapi-test"
	return cfg
}

func TestDefaultConfig_ReturnsExpectedDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Metrics.Catalog != "main" {
		t.Errorf("Metrics.Catalog = %q, want %q", cfg.Metrics.Catalog, "main")
	}
	if cfg.Metrics.Schema != "cluster_manager_app" {
		t.Errorf("Metrics.Schema = %q, want %q", cfg.Metrics.Schema, "cluster_manager_app")
	}
	if cfg.Optimization.OversizedThreshold != 30.0 {
		t.Errorf("OversizedThreshold = %v, want %v", cfg.Optimization.OversizedThreshold, 30.0)
	}
	if cfg.Optimization.UnderutilizedThreshold != 50.0 {
		t.Errorf("UnderutilizedThreshold = %v, want %v", cfg.Optimization.UnderutilizedThreshold, 50.0)
	}
	if cfg.Optimization.DBURateUSD != 0.15 {
		t.Errorf("DBURateUSD = %v, want %v", cfg.Optimization.DBURateUSD, 0.15)
	}
	if cfg.Optimization.ClusterLimit != 200 {
		t.Errorf("ClusterLimit = %d, want %d", cfg.Optimization.ClusterLimit, 200)
	}
	if !cfg.Collector.Enabled {
		t.Error("Collector.Enabled = false, want true")
	}
	if cfg.Collector.Schedule != "0 2 * * *" {
		t.Errorf("Collector.Schedule = %q, want %q", cfg.Collector.Schedule, "0 2 * * *")
	}
	if cfg.APIServer.Port != 8080 {
		t.Errorf("APIServer.Port = %d, want %d", cfg.APIServer.Port, 8080)
	}
	if cfg.Database.RetentionDays != 90 {
		t.Errorf("Database.RetentionDays = %d, want %d", cfg.Database.RetentionDays, 90)
	}
}

func TestDefaultConfig_Validate_ReturnsNil(t *testing.T) {
	cfg := validConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
}

func TestLoadFromFile_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yamlContent := []byte(`workspace:
  host: https://test.cloud.databricks.com
  token: dapi-abc
sqlWarehouseId: wh-123
optimization:
  oversizedThreshold: 25
`)
	if err := os.WriteFile(path, yamlContent, 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile(%q) returned error: %v", path, err)
	}

	if cfg.Workspace.Host != "https://test.cloud.databricks.com" {
		t.Errorf("Workspace.Host = %q, want %q", cfg.Workspace.Host, "https://test.cloud.databricks.com")
	}
	if cfg.SQLWarehouseID != "wh-123" {
		t.Errorf("SQLWarehouseID = %q, want %q", cfg.SQLWarehouseID, "wh-123")
	}
	if cfg.Optimization.OversizedThreshold != 25.0 {
		t.Errorf("OversizedThreshold = %v, want %v", cfg.Optimization.OversizedThreshold, 25.0)
	}
}

func TestLoadFromFile_MergesWithDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.yaml")

	// Only set a few fields; the rest should come from defaults.
	yamlContent := []byte(`workspace:
  host: https://test.cloud.databricks.com
  token: dapi-abc
`)
	if err := os.WriteFile(path, yamlContent, 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile(%q) returned error: %v", path, err)
	}

	if cfg.Workspace.Token != "dapi-abc" {
		t.Errorf("Workspace.Token = %q, want %q", cfg.Workspace.Token, "dapi-abc")
	}

	// Default fields should still be present
	if cfg.Metrics.Catalog != "main" {
		t.Errorf("Metrics.Catalog = %q, want default %q", cfg.Metrics.Catalog, "main")
	}
	if cfg.Optimization.UnderutilizedThreshold != 50.0 {
		t.Errorf("UnderutilizedThreshold = %v, want default %v", cfg.Optimization.UnderutilizedThreshold, 50.0)
	}
	if cfg.APIServer.Port != 8080 {
		t.Errorf("APIServer.Port = %d, want default %d", cfg.APIServer.Port, 8080)
	}
	if cfg.Database.Path != "/data/lakeops.db" {
		t.Errorf("Database.Path = %q, want default %q", cfg.Database.Path, "/data/lakeops.db")
	}
}

func TestLoadFromFile_InvalidPath(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("LoadFromFile with invalid path expected error, got nil")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")

	badContent := []byte(`workspace: [invalid
  yaml: {{broken
`)
	if err := os.WriteFile(path, badContent, 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	_, err := LoadFromFile(path)
	if err == nil {
		t.Fatal("LoadFromFile with invalid YAML expected error, got nil")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATABRICKS_HOST", "https://env.cloud.databricks.com")
	t.Setenv("DATABRICKS_TOKEN", "dapi-env")
	t.Setenv("DATABRICKS_WAREHOUSE_ID", "wh-env")

	cfg := DefaultConfig()

	if cfg.Workspace.Host != "https://env.cloud.databricks.com" {
		t.Errorf("Workspace.Host = %q, want env value", cfg.Workspace.Host)
	}
	if cfg.Workspace.Token != "dapi-env" {
		t.Errorf("Workspace.Token = %q, want env value", cfg.Workspace.Token)
	}
	if cfg.SQLWarehouseID != "wh-env" {
		t.Errorf("SQLWarehouseID = %q, want env value", cfg.SQLWarehouseID)
	}
}

func TestEnvOverrides_FileValueWins(t *testing.T) {
	t.Setenv("DATABRICKS_HOST", "https://env.cloud.databricks.com")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := []byte(`workspace:
  host: https://file.cloud.databricks.com
  token: dapi-file
`)
	if err := os.WriteFile(path, yamlContent, 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile returned error: %v", err)
	}
	if cfg.Workspace.Host != "https://file.cloud.databricks.com" {
		t.Errorf("Workspace.Host = %q, want file value", cfg.Workspace.Host)
	}
}

func TestValidate_MissingHost(t *testing.T) {
	cfg := validConfig()
	cfg.Workspace.Host = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with missing host expected error, got nil")
	}
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Workspace.Token = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with no credentials expected error, got nil")
	}
}

func TestValidate_OAuthCredentialsSuffice(t *testing.T) {
	cfg := validConfig()
	cfg.Workspace.Token = ""
	cfg.Workspace.ClientID = "client-id"
	cfg.Workspace.ClientSecret = "client-secret"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with OAuth credentials returned error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.APIServer.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with port 0 expected error, got nil")
	}
}

func TestValidate_ThresholdBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Optimization.OversizedThreshold = 150

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with threshold > 100 expected error, got nil")
	}

	cfg = validConfig()
	cfg.Optimization.UnderutilizedThreshold = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with negative threshold expected error, got nil")
	}
}

func TestValidate_DBURate(t *testing.T) {
	cfg := validConfig()
	cfg.Optimization.DBURateUSD = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with zero DBU rate expected error, got nil")
	}
}
