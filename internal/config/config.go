// Package config loads environment-overridable settings for the transaction
// relay service, with an optional YAML file overlay applied before the
// environment is consulted.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every environment-overridable setting from spec.md §6,
// plus the reconciliation and dedup-TTL settings added by SPEC_FULL.md.
type Config struct {
	StoreURL           string `yaml:"store_url"`
	PostingServiceURL  string `yaml:"posting_service_url"`
	WorkerConcurrency  int    `yaml:"worker_concurrency"`
	MaxRetries         int    `yaml:"max_retries"`
	RetryDelaySeconds  int    `yaml:"retry_delay_seconds"`
	ResponseTimeoutMs  int    `yaml:"response_timeout_ms"`
	QueueMaxSize       int    `yaml:"queue_max_size"`

	DedupTTLSeconds             int `yaml:"dedup_ttl_seconds"`
	StatusTTLSeconds            int `yaml:"status_ttl_seconds"`
	ReconcileIntervalSeconds    int `yaml:"reconcile_interval_seconds"`
	ReconcileStaleAfterSeconds  int `yaml:"reconcile_stale_after_seconds"`

	HTTPAddr          string `yaml:"http_addr"`
	RateLimitPerSecond int   `yaml:"rate_limit_per_second"`
	RateLimitBurst     int   `yaml:"rate_limit_burst"`
}

// Default returns the configuration with every default from spec.md §6 and
// SPEC_FULL.md §6 applied.
func Default() Config {
	return Config{
		StoreURL:          "redis://localhost:6379/0",
		PostingServiceURL: "http://localhost:8080",
		WorkerConcurrency: 10,
		MaxRetries:        5,
		RetryDelaySeconds: 2,
		ResponseTimeoutMs: 100,
		QueueMaxSize:      10000,

		DedupTTLSeconds:            86400,
		StatusTTLSeconds:           86400,
		ReconcileIntervalSeconds:   300,
		ReconcileStaleAfterSeconds: 600,

		HTTPAddr:           ":8000",
		RateLimitPerSecond: 50,
		RateLimitBurst:     100,
	}
}

// Load builds a Config starting from Default, applying a YAML file at path
// (if it exists) as an overlay, then applying environment variable
// overrides. An empty path skips the file overlay.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := applyYAMLFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.StoreURL, "STORE_URL")
	setString(&cfg.PostingServiceURL, "POSTING_SERVICE_URL")
	setInt(&cfg.WorkerConcurrency, "WORKER_CONCURRENCY")
	setInt(&cfg.MaxRetries, "MAX_RETRIES")
	setInt(&cfg.RetryDelaySeconds, "RETRY_DELAY_SECONDS")
	setInt(&cfg.ResponseTimeoutMs, "RESPONSE_TIMEOUT_MS")
	setInt(&cfg.QueueMaxSize, "QUEUE_MAX_SIZE")
	setInt(&cfg.DedupTTLSeconds, "DEDUP_TTL_SECONDS")
	setInt(&cfg.StatusTTLSeconds, "STATUS_TTL_SECONDS")
	setInt(&cfg.ReconcileIntervalSeconds, "RECONCILE_INTERVAL_SECONDS")
	setInt(&cfg.ReconcileStaleAfterSeconds, "RECONCILE_STALE_AFTER_SECONDS")
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setInt(&cfg.RateLimitPerSecond, "RATE_LIMIT_PER_SECOND")
	setInt(&cfg.RateLimitBurst, "RATE_LIMIT_BURST")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}

// Validate rejects settings that would violate the invariants of spec.md §3.
func (c Config) Validate() error {
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("worker_concurrency must be positive, got %d", c.WorkerConcurrency)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", c.MaxRetries)
	}
	if c.QueueMaxSize <= 0 {
		return fmt.Errorf("queue_max_size must be positive, got %d", c.QueueMaxSize)
	}
	if c.DedupTTLSeconds <= 0 || c.StatusTTLSeconds <= 0 {
		return fmt.Errorf("dedup_ttl_seconds and status_ttl_seconds must be positive")
	}
	return nil
}

// ResponseTimeout returns ResponseTimeoutMs as a time.Duration.
func (c Config) ResponseTimeout() time.Duration {
	return time.Duration(c.ResponseTimeoutMs) * time.Millisecond
}

// RetryDelay returns RetryDelaySeconds as a time.Duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// DedupTTL returns DedupTTLSeconds as a time.Duration.
func (c Config) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLSeconds) * time.Second
}

// StatusTTL returns StatusTTLSeconds as a time.Duration.
func (c Config) StatusTTL() time.Duration {
	return time.Duration(c.StatusTTLSeconds) * time.Second
}

// ReconcileInterval returns ReconcileIntervalSeconds as a time.Duration.
func (c Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSeconds) * time.Second
}

// ReconcileStaleAfter returns ReconcileStaleAfterSeconds as a time.Duration.
func (c Config) ReconcileStaleAfter() time.Duration {
	return time.Duration(c.ReconcileStaleAfterSeconds) * time.Second
}
