// Package config loads pagechunk settings: defaults, then an optional YAML
// file, then a .env file, then PAGECHUNK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/pagechunk/internal/chunker"
	"github.com/dgallion1/pagechunk/internal/logging"
	"github.com/dgallion1/pagechunk/internal/source"
)

const envPrefix = "PAGECHUNK_"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Chunking  chunker.Config  `yaml:"chunking"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Source    source.Options  `yaml:"source"`
	Store     StoreConfig     `yaml:"store"`
	Pathstore PathstoreConfig `yaml:"pathstore"`
	Log       logging.Config  `yaml:"log"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	APIKey         string        `yaml:"api_key"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

type PipelineConfig struct {
	// Worker pool
	WorkerCount          int `yaml:"worker_count"`
	MaxQueueSize         int `yaml:"max_queue_size"`
	MaxConcurrentPublish int `yaml:"max_concurrent_publish"`

	// Job state
	JobTTL      time.Duration `yaml:"job_ttl"`
	StatsWindow time.Duration `yaml:"stats_window"`

	DedupWindow      int    `yaml:"dedup_window"`
	CarryBreadcrumbs bool   `yaml:"carry_breadcrumbs"`
	PageMarker       string `yaml:"page_marker"` // Regexp for level-1 headers that only mark page starts
}

type StoreConfig struct {
	SQLitePath string `yaml:"sqlite_path"` // Empty disables the result store
}

type PathstoreConfig struct {
	URL    string `yaml:"url"` // Empty disables publishing
	APIKey string `yaml:"api_key"`
	Prefix string `yaml:"prefix"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8090",
			MaxUploadBytes: 52428800, // 50MB
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   120 * time.Second,
		},
		Chunking: chunker.DefaultConfig(),
		Pipeline: PipelineConfig{
			WorkerCount:          4,
			MaxQueueSize:         100,
			MaxConcurrentPublish: 10,
			JobTTL:               time.Hour,
			StatsWindow:          time.Hour,
			DedupWindow:          5,
		},
		Source:    source.DefaultOptions(),
		Pathstore: PathstoreConfig{Prefix: "pagechunk"},
		Log: logging.Config{
			Level:       "info",
			Format:      "json",
			ServiceName: "pagechunk",
		},
	}
}

// Load reads configuration. path may be empty; a missing .env file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Chunking.Validate(); err != nil {
		return err
	}
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}
	if c.Pipeline.WorkerCount <= 0 {
		return fmt.Errorf("worker_count must be positive, got %d", c.Pipeline.WorkerCount)
	}
	if c.Pipeline.MaxQueueSize <= 0 {
		return fmt.Errorf("max_queue_size must be positive, got %d", c.Pipeline.MaxQueueSize)
	}
	if c.Pipeline.DedupWindow < 0 {
		return fmt.Errorf("dedup_window must not be negative, got %d", c.Pipeline.DedupWindow)
	}
	if c.Pathstore.URL != "" && c.Pathstore.APIKey == "" {
		return errors.New("pathstore api_key is required when pathstore url is set")
	}
	return nil
}

// ValidateServer checks the settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("%sAPI_KEY is required", envPrefix)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Port = envOr("PORT", cfg.Server.Port)
	cfg.Server.APIKey = envOr("API_KEY", cfg.Server.APIKey)
	cfg.Server.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.Server.MaxUploadBytes)

	cfg.Chunking.TargetSize = envInt("TARGET_SIZE", cfg.Chunking.TargetSize)
	cfg.Chunking.MinSize = envInt("MIN_SIZE", cfg.Chunking.MinSize)
	cfg.Chunking.MaxSize = envInt("MAX_SIZE", cfg.Chunking.MaxSize)
	cfg.Chunking.MergingEnabled = envBool("MERGING_ENABLED", cfg.Chunking.MergingEnabled)

	cfg.Pipeline.WorkerCount = envInt("WORKER_COUNT", cfg.Pipeline.WorkerCount)
	cfg.Pipeline.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.Pipeline.MaxQueueSize)
	cfg.Pipeline.MaxConcurrentPublish = envInt("MAX_CONCURRENT_PUBLISH", cfg.Pipeline.MaxConcurrentPublish)
	cfg.Pipeline.JobTTL = envDuration("JOB_TTL", cfg.Pipeline.JobTTL)
	cfg.Pipeline.DedupWindow = envInt("DEDUP_WINDOW", cfg.Pipeline.DedupWindow)
	cfg.Pipeline.CarryBreadcrumbs = envBool("CARRY_BREADCRUMBS", cfg.Pipeline.CarryBreadcrumbs)

	cfg.Source.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.Source.PDFFallbackPdftotext)
	cfg.Source.CSVRowsPerPage = envInt("CSV_ROWS_PER_PAGE", cfg.Source.CSVRowsPerPage)

	cfg.Store.SQLitePath = envOr("SQLITE_PATH", cfg.Store.SQLitePath)

	cfg.Pathstore.URL = envOr("PATHSTORE_URL", cfg.Pathstore.URL)
	cfg.Pathstore.APIKey = envOr("PATHSTORE_API_KEY", cfg.Pathstore.APIKey)
	cfg.Pathstore.Prefix = envOr("PATHSTORE_PREFIX", cfg.Pathstore.Prefix)

	cfg.Log.Level = envOr("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("LOG_FORMAT", cfg.Log.Format)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(envPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(envPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
