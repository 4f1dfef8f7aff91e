// Package config provides configuration loading and validation for the
// sync engine.
//
// Configuration file: YAML at the path passed to Load
// (e.g. /etc/blesync-engine/config.yaml).
// Schema version: 1
//
// Validation:
//   - Fields absent from the file keep their Defaults() values.
//   - Numeric ranges enforced (e.g., jitter_ratio ∈ [0,1], max_attempts ≥ 0).
//   - Invalid config on startup: the caller refuses to start.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/octorelay/blesync-engine/internal/storage"
)

// Version, GitCommit, BuildTime can be set at build time via -ldflags -X.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Config is the root configuration structure for the sync engine. All
// fields have defaults; see Defaults() for values.
type Config struct {
	// SchemaVersion must be "1". Validate rejects any other value.
	SchemaVersion string `yaml:"schema_version"`

	Retry      RetryConfig      `yaml:"retry"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	PageSizing PageSizingConfig `yaml:"page_sizing"`
	Actor      ActorConfig      `yaml:"actor"`
	Storage    StorageConfig    `yaml:"storage"`

	Observability ObservabilityConfig `yaml:"observability"`
}

// RetryConfig parameterizes the exponential-backoff RetryPolicy (spec §4.2).
type RetryConfig struct {
	// MaxAttempts is the number of attempts allowed before giving up.
	// Default: 5.
	MaxAttempts int `yaml:"max_attempts"`

	// MinBackoffMs is the first retry's delay. Default: 200.
	MinBackoffMs int64 `yaml:"min_backoff_ms"`

	// MaxBackoffMs caps the exponential growth. Default: 30000.
	MaxBackoffMs int64 `yaml:"max_backoff_ms"`

	// JitterRatio is the multiplicative jitter range, in [0,1]. Default: 0.2.
	JitterRatio float64 `yaml:"jitter_ratio"`
}

// BreakerConfig parameterizes the per-stage circuit breakers (spec §4.3).
// One block applies to every stage (bond/connect/read/deliver/ack) — they
// share policy parameters but never share BreakerState.
type BreakerConfig struct {
	// FailuresToOpen is the breaker's opening threshold. A value of 1 opens
	// a Closed breaker on its first failure; BreakerPolicy keeps no failure
	// count, so with a larger value a Closed breaker only records the
	// failure and stays Closed. Default: 3.
	FailuresToOpen int `yaml:"failures_to_open"`

	// CoolDownMs is how long the breaker stays Open before probing again.
	// Default: 5000.
	CoolDownMs int64 `yaml:"cool_down_ms"`
}

// PageSizingConfig parameterizes the adaptive PageSizingPolicy (spec §4.4).
type PageSizingConfig struct {
	MinPage    uint32 `yaml:"min_page"`
	MaxPage    uint32 `yaml:"max_page"`
	GrowStep   uint32 `yaml:"grow_step"`
	ShrinkStep uint32 `yaml:"shrink_step"`
}

// ActorConfig holds per-actor operational parameters.
type ActorConfig struct {
	// DefaultPageSize seeds a freshly bootstrapped aggregate before any
	// adaptive sizing has taken place. Default: 50.
	DefaultPageSize uint32 `yaml:"default_page_size"`

	// MailboxCapacity is validated to be >= 1 but is not read by
	// actor.New, which takes no capacity argument and always gives each
	// actor a buffered mailbox channel of 256 messages. Default: 256.
	MailboxCapacity int `yaml:"mailbox_capacity"`

	// DeliverySinkCapacity bounds the LogDeliveryPort's output channel.
	// Default: 1024.
	DeliverySinkCapacity int `yaml:"delivery_sink_capacity"`
}

// StorageConfig holds BoltDB parameters.
type StorageConfig struct {
	// DBPath is the absolute path to the BoltDB file.
	// Default: /var/lib/blesync-engine/blesync.db.
	DBPath string `yaml:"db_path"`
}

// ObservabilityConfig holds metrics and logging parameters.
type ObservabilityConfig struct {
	// MetricsAddr is the Prometheus metrics HTTP bind address.
	// Default: 127.0.0.1:9091.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls the minimum log level (debug, info, warn, error).
	// Default: info.
	LogLevel string `yaml:"log_level"`

	// LogFormat controls the log output format (json, console).
	// Default: json.
	LogFormat string `yaml:"log_format"`
}

// Defaults returns a Config populated with all default values.
func Defaults() Config {
	return Config{
		SchemaVersion: "1",
		Retry: RetryConfig{
			MaxAttempts:  5,
			MinBackoffMs: 200,
			MaxBackoffMs: 30000,
			JitterRatio:  0.2,
		},
		Breaker: BreakerConfig{
			FailuresToOpen: 3,
			CoolDownMs:     5000,
		},
		PageSizing: PageSizingConfig{
			MinPage:    10,
			MaxPage:    200,
			GrowStep:   20,
			ShrinkStep: 10,
		},
		Actor: ActorConfig{
			DefaultPageSize:      50,
			MailboxCapacity:      256,
			DeliverySinkCapacity: 1024,
		},
		Storage: StorageConfig{
			DBPath: storage.DefaultDBPath,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: "127.0.0.1:9091",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load reads and validates a config file from the given path. Returns
// the merged config (defaults overridden by file values).
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks all config fields for correctness, returning a
// descriptive error listing every violation found.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.SchemaVersion != "1" {
		errs = append(errs, fmt.Sprintf("schema_version must be \"1\", got %q", cfg.SchemaVersion))
	}
	if cfg.Retry.MaxAttempts < 0 {
		errs = append(errs, fmt.Sprintf("retry.max_attempts must be >= 0, got %d", cfg.Retry.MaxAttempts))
	}
	if cfg.Retry.MinBackoffMs <= 0 {
		errs = append(errs, fmt.Sprintf("retry.min_backoff_ms must be > 0, got %d", cfg.Retry.MinBackoffMs))
	}
	if cfg.Retry.MaxBackoffMs < cfg.Retry.MinBackoffMs {
		errs = append(errs, fmt.Sprintf("retry.max_backoff_ms (%d) must be >= retry.min_backoff_ms (%d)", cfg.Retry.MaxBackoffMs, cfg.Retry.MinBackoffMs))
	}
	if cfg.Retry.JitterRatio < 0.0 || cfg.Retry.JitterRatio > 1.0 {
		errs = append(errs, fmt.Sprintf("retry.jitter_ratio must be in [0.0, 1.0], got %f", cfg.Retry.JitterRatio))
	}
	if cfg.Breaker.FailuresToOpen < 1 {
		errs = append(errs, fmt.Sprintf("breaker.failures_to_open must be >= 1, got %d", cfg.Breaker.FailuresToOpen))
	}
	if cfg.Breaker.CoolDownMs <= 0 {
		errs = append(errs, fmt.Sprintf("breaker.cool_down_ms must be > 0, got %d", cfg.Breaker.CoolDownMs))
	}
	if cfg.PageSizing.MinPage < 1 {
		errs = append(errs, fmt.Sprintf("page_sizing.min_page must be >= 1, got %d", cfg.PageSizing.MinPage))
	}
	if cfg.PageSizing.MaxPage < cfg.PageSizing.MinPage {
		errs = append(errs, fmt.Sprintf("page_sizing.max_page (%d) must be >= page_sizing.min_page (%d)", cfg.PageSizing.MaxPage, cfg.PageSizing.MinPage))
	}
	if cfg.Actor.DefaultPageSize < cfg.PageSizing.MinPage || cfg.Actor.DefaultPageSize > cfg.PageSizing.MaxPage {
		errs = append(errs, fmt.Sprintf("actor.default_page_size (%d) must be within [page_sizing.min_page, page_sizing.max_page]", cfg.Actor.DefaultPageSize))
	}
	if cfg.Actor.MailboxCapacity < 1 {
		errs = append(errs, fmt.Sprintf("actor.mailbox_capacity must be >= 1, got %d", cfg.Actor.MailboxCapacity))
	}
	if cfg.Storage.DBPath == "" {
		errs = append(errs, "storage.db_path must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", joinStrings(errs, "\n  - "))
	}
	return nil
}

// joinStrings joins a slice of strings with a separator.
func joinStrings(ss []string, sep string) string {
	if len(ss) == 0 {
		return ""
	}
	result := ss[0]
	for _, s := range ss[1:] {
		result += sep + s
	}
	return result
}
