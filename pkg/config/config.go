// Package config provides the orchestrator's typed configuration: loaded once at
// startup from YAML with environment-variable overrides, validated before use, and
// handed to every component by reference. No component reads a package-level global.
package config

import (
	"fmt"
	"time"
)

// SchemaVersion is bumped whenever a field is added, removed, or reinterpreted.
const SchemaVersion = "1.0"

// Config is the orchestrator's complete runtime configuration (spec table §6.7).
// Field names track the configuration keys verbatim; durations are stored as
// time.Duration so call sites never re-derive units.
type Config struct {
	SchemaVersion string `yaml:"schema_version"`

	// Workflow Engine / quality & deployment loops.
	MaxReviewIter    int `yaml:"max_review_iter"`
	MinQuality       int `yaml:"min_quality"`
	MaxBuildRetries  int `yaml:"max_build_retries"`
	StepsGrowthDelta int `yaml:"steps_growth_delta"`

	// Agent Registry & token tracker.
	AgentCaching  bool    `yaml:"agent_caching"`
	ContextLimit  int     `yaml:"context_limit"`
	WarnFraction  float64 `yaml:"warn_fraction"`
	CritFraction  float64 `yaml:"crit_fraction"`
	DefaultModel  string  `yaml:"default_model"`

	// Session Store.
	TTLSession time.Duration `yaml:"ttl_session"`
	NHistory   int           `yaml:"n_history"`

	// Message Router / classifier cache.
	ClassifyTTL       time.Duration `yaml:"classify_ttl"`
	ClassifyCacheSize int           `yaml:"classify_cache_size"`
	RouterSoftDeadline time.Duration `yaml:"router_soft_deadline"`

	// Notification Channel.
	MaxMsgChars int           `yaml:"max_msg_chars"`
	ChunkDelay  time.Duration `yaml:"chunk_delay"`

	// A2A / Retry & Circuit Breaker.
	AgentTaskTimeout time.Duration `yaml:"agent_task_timeout"`
	FailThreshold    int           `yaml:"fail_threshold"`
	BreakerTimeout   time.Duration `yaml:"breaker_timeout"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`
	RetryFactor      float64       `yaml:"retry_factor"`
	RetryMaxDelay    time.Duration `yaml:"retry_max_delay"`
	RetryMaxAttempts int           `yaml:"retry_max_attempts"`

	// Orchestrator State Store.
	StateStalenessBound time.Duration `yaml:"state_staleness_bound"`
	DBPath              string        `yaml:"db_path"`
}

// Default returns the configuration with every default from spec §6.7 populated.
func Default() *Config {
	return &Config{
		SchemaVersion: SchemaVersion,

		MaxReviewIter:    10,
		MinQuality:       9,
		MaxBuildRetries:  10,
		StepsGrowthDelta: 5,

		AgentCaching: false,
		ContextLimit: 200000,
		WarnFraction: 0.75,
		CritFraction: 0.90,
		DefaultModel: "gpt-4",

		TTLSession: 60 * time.Minute,
		NHistory:   10,

		ClassifyTTL:        60 * time.Minute,
		ClassifyCacheSize:  1024,
		RouterSoftDeadline: 5 * time.Second,

		MaxMsgChars: 4096,
		ChunkDelay:  500 * time.Millisecond,

		AgentTaskTimeout: 120 * time.Second,
		FailThreshold:    5,
		BreakerTimeout:   60 * time.Second,
		RetryBaseDelay:   200 * time.Millisecond,
		RetryFactor:      2.0,
		RetryMaxDelay:    30 * time.Second,
		RetryMaxAttempts: 5,

		StateStalenessBound: 7 * 24 * time.Hour,
		DBPath:              "orchestrator.db",
	}
}

// Validate checks field ranges and cross-field invariants. Load calls this after
// merging YAML and environment overrides; out-of-range values fail startup rather
// than being silently clamped.
func (c *Config) Validate() error {
	if c.SchemaVersion != SchemaVersion {
		return fmt.Errorf("config: unsupported schema_version %q (expected %q)", c.SchemaVersion, SchemaVersion)
	}
	if c.MaxReviewIter <= 0 {
		return fmt.Errorf("config: max_review_iter must be positive, got %d", c.MaxReviewIter)
	}
	if c.MinQuality < 1 || c.MinQuality > 10 {
		return fmt.Errorf("config: min_quality must be in [1,10], got %d", c.MinQuality)
	}
	if c.MaxBuildRetries <= 0 {
		return fmt.Errorf("config: max_build_retries must be positive, got %d", c.MaxBuildRetries)
	}
	if c.ContextLimit <= 0 {
		return fmt.Errorf("config: context_limit must be positive, got %d", c.ContextLimit)
	}
	if c.WarnFraction <= 0 || c.WarnFraction >= 1 {
		return fmt.Errorf("config: warn_fraction must be in (0,1), got %f", c.WarnFraction)
	}
	if c.CritFraction <= c.WarnFraction || c.CritFraction >= 1 {
		return fmt.Errorf("config: crit_fraction must be in (warn_fraction,1), got %f", c.CritFraction)
	}
	if c.NHistory <= 0 {
		return fmt.Errorf("config: n_history must be positive, got %d", c.NHistory)
	}
	if c.MaxMsgChars <= 0 {
		return fmt.Errorf("config: max_msg_chars must be positive, got %d", c.MaxMsgChars)
	}
	if c.AgentTaskTimeout <= 0 {
		return fmt.Errorf("config: agent_task_timeout must be positive, got %s", c.AgentTaskTimeout)
	}
	if c.FailThreshold <= 0 {
		return fmt.Errorf("config: fail_threshold must be positive, got %d", c.FailThreshold)
	}
	if c.BreakerTimeout <= 0 {
		return fmt.Errorf("config: breaker_timeout must be positive, got %s", c.BreakerTimeout)
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("config: retry_max_attempts must be positive, got %d", c.RetryMaxAttempts)
	}
	if c.RetryFactor <= 1.0 {
		return fmt.Errorf("config: retry_factor must be > 1.0, got %f", c.RetryFactor)
	}
	if c.DBPath == "" {
		return fmt.Errorf("config: db_path must not be empty")
	}
	return nil
}
