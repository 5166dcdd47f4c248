// Package config loads the engine's configuration: environment variables
// first, an optional YAML overlay second, with defaults filling whatever
// neither sets. The grouped-struct-plus-normalize shape mirrors the
// teacher's Config/normalize pattern (config.go).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheConfig groups the settings for one response-cache pool.
type CacheConfig struct {
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// StoreConfig groups settings for opening the SQLite-backed store.
type StoreConfig struct {
	// DataDir is the directory holding cea-transactions.db, datasets.json,
	// and per-dataset metadata snapshots.
	DataDir string `yaml:"dataDir"`

	// PageCacheKB is SQLite's in-process page cache size in KB.
	PageCacheKB int `yaml:"pageCacheKB"`

	// MmapSizeBytes is the memory-mapped I/O window in bytes.
	MmapSizeBytes int64 `yaml:"mmapSizeBytes"`

	// S3Bucket, if set, is consulted at startup to fetch missing data files
	// before opening the store locally. Empty means local-only.
	S3Bucket string `yaml:"s3Bucket"`
	S3Prefix string `yaml:"s3Prefix"`
	S3Region string `yaml:"s3Region"`
}

// QueryConfig groups query execution limits.
type QueryConfig struct {
	// Timeout bounds a single request's aggregation work (spec §5).
	Timeout time.Duration `yaml:"timeout"`
}

// HTTPConfig groups HTTP server settings.
type HTTPConfig struct {
	Port         int      `yaml:"port"`
	CORSOrigins  []string `yaml:"corsOrigins"`
}

// Config is the top-level configuration for the server. cmd/precompute does
// not load it; that tool takes only its -data flag.
type Config struct {
	Store StoreConfig `yaml:"store"`
	Query QueryConfig `yaml:"query"`
	HTTP  HTTPConfig  `yaml:"http"`

	APICache   CacheConfig `yaml:"apiCache"`
	StatsCache CacheConfig `yaml:"statsCache"`
}

// Default returns the configuration spec §4.4/§5/§6 specifies as defaults.
func Default() Config {
	return Config{
		Store: StoreConfig{
			DataDir:       "data/processed",
			PageCacheKB:   10 * 1024,
			MmapSizeBytes: 30 * 1024 * 1024,
		},
		Query: QueryConfig{
			Timeout: 30 * time.Second,
		},
		HTTP: HTTPConfig{
			Port: 8080,
		},
		APICache:   CacheConfig{Capacity: 200, TTL: 10 * time.Minute},
		StatsCache: CacheConfig{Capacity: 50, TTL: 30 * time.Minute},
	}
}

// Load builds a Config from defaults, an optional YAML file at yamlPath (if
// it exists), and environment variables, in that order of increasing
// precedence — matching the teacher's "defaults, then override" shape in
// DefaultConfig()/normalize().
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", yamlPath, err)
		}
	}

	if v := os.Getenv("CEA_DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
	}
	if v := os.Getenv("CEA_CORS_ORIGINS"); v != "" {
		cfg.HTTP.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("CEA_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = port
		}
	}
	if v := os.Getenv("DATA_S3_BUCKET"); v != "" {
		cfg.Store.S3Bucket = v
	}
	if v := os.Getenv("DATA_S3_PREFIX"); v != "" {
		cfg.Store.S3Prefix = v
	}
	if v := os.Getenv("DATA_S3_REGION"); v != "" {
		cfg.Store.S3Region = v
	}

	cfg.normalize()
	return cfg, nil
}

// normalize fills any zero-valued fields with defaults, mirroring the
// teacher's Config.normalize().
func (c *Config) normalize() {
	d := Default()
	if c.Store.DataDir == "" {
		c.Store.DataDir = d.Store.DataDir
	}
	if c.Store.PageCacheKB == 0 {
		c.Store.PageCacheKB = d.Store.PageCacheKB
	}
	if c.Store.MmapSizeBytes == 0 {
		c.Store.MmapSizeBytes = d.Store.MmapSizeBytes
	}
	if c.Query.Timeout == 0 {
		c.Query.Timeout = d.Query.Timeout
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = d.HTTP.Port
	}
	if c.APICache.Capacity == 0 {
		c.APICache.Capacity = d.APICache.Capacity
	}
	if c.APICache.TTL == 0 {
		c.APICache.TTL = d.APICache.TTL
	}
	if c.StatsCache.Capacity == 0 {
		c.StatsCache.Capacity = d.StatsCache.Capacity
	}
	if c.StatsCache.TTL == 0 {
		c.StatsCache.TTL = d.StatsCache.TTL
	}
}
