package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Store.DataDir != "data/processed" {
		t.Errorf("default DataDir = %q, want data/processed", cfg.Store.DataDir)
	}
	if cfg.Query.Timeout != 30*time.Second {
		t.Error("default Query.Timeout should be 30s")
	}
	if cfg.APICache.Capacity != 200 || cfg.APICache.TTL != 10*time.Minute {
		t.Errorf("default api cache = %+v, want capacity=200 ttl=10m", cfg.APICache)
	}
	if cfg.StatsCache.Capacity != 50 || cfg.StatsCache.TTL != 30*time.Minute {
		t.Errorf("default stats cache = %+v, want capacity=50 ttl=30m", cfg.StatsCache)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("default HTTP.Port = %d, want 8080", cfg.HTTP.Port)
	}
}

func TestLoad_NoFileFallsBackToEnvAndDefaults(t *testing.T) {
	t.Setenv("CEA_DATA_DIR", "/srv/cea/data")
	t.Setenv("CEA_HTTP_PORT", "9090")
	t.Setenv("CEA_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.DataDir != "/srv/cea/data" {
		t.Errorf("DataDir = %q, want env override", cfg.Store.DataDir)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.HTTP.Port)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins = %v, want 2 entries", cfg.HTTP.CORSOrigins)
	}
	// Unset values still fall back to defaults.
	if cfg.Query.Timeout != 30*time.Second {
		t.Error("Query.Timeout should default to 30s when unset")
	}
}

func TestLoad_YAMLOverlayThenEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "store:\n  dataDir: /from/yaml\napiCache:\n  capacity: 10\n  ttl: 1m\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CEA_DATA_DIR", "/from/env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.DataDir != "/from/env" {
		t.Errorf("DataDir = %q, want env to win over yaml", cfg.Store.DataDir)
	}
	if cfg.APICache.Capacity != 10 {
		t.Errorf("APICache.Capacity = %d, want yaml value 10", cfg.APICache.Capacity)
	}
	if cfg.APICache.TTL != time.Minute {
		t.Errorf("APICache.TTL = %v, want 1m", cfg.APICache.TTL)
	}
	// Fields the yaml didn't set still fall back to defaults.
	if cfg.StatsCache.Capacity != 50 {
		t.Errorf("StatsCache.Capacity = %d, want default 50", cfg.StatsCache.Capacity)
	}
}
