package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment-variable overrides, e.g. ORCHESTRATOR_MIN_QUALITY.
const EnvPrefix = "ORCHESTRATOR_"

// Load reads a YAML file (if path is non-empty and exists), layers environment
// overrides on top, and validates the result. It never returns a Config that
// failed Validate: callers can treat a non-nil error as "do not start".
//
// This mirrors the teacher's load-then-validate structure: parsing and override
// application never fail on an unknown key silently clamping a value, they fail
// the whole load.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Absent file is not an error; defaults plus env overrides apply.
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("config: environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overrideField pairs an environment-variable suffix with a setter invoked when
// that variable is present, so applyEnvOverrides stays a flat declarative table
// instead of a long if-chain.
type overrideField struct {
	suffix string
	set    func(cfg *Config, raw string) error
}

var overrideFields = []overrideField{
	{"MAX_REVIEW_ITER", intField(func(c *Config) *int { return &c.MaxReviewIter })},
	{"MIN_QUALITY", intField(func(c *Config) *int { return &c.MinQuality })},
	{"MAX_BUILD_RETRIES", intField(func(c *Config) *int { return &c.MaxBuildRetries })},
	{"STEPS_GROWTH_DELTA", intField(func(c *Config) *int { return &c.StepsGrowthDelta })},
	{"AGENT_CACHING", boolField(func(c *Config) *bool { return &c.AgentCaching })},
	{"CONTEXT_LIMIT", intField(func(c *Config) *int { return &c.ContextLimit })},
	{"WARN_FRACTION", floatField(func(c *Config) *float64 { return &c.WarnFraction })},
	{"CRIT_FRACTION", floatField(func(c *Config) *float64 { return &c.CritFraction })},
	{"DEFAULT_MODEL", stringField(func(c *Config) *string { return &c.DefaultModel })},
	{"TTL_SESSION", durationField(func(c *Config) *time.Duration { return &c.TTLSession })},
	{"N_HISTORY", intField(func(c *Config) *int { return &c.NHistory })},
	{"CLASSIFY_TTL", durationField(func(c *Config) *time.Duration { return &c.ClassifyTTL })},
	{"CLASSIFY_CACHE_SIZE", intField(func(c *Config) *int { return &c.ClassifyCacheSize })},
	{"ROUTER_SOFT_DEADLINE", durationField(func(c *Config) *time.Duration { return &c.RouterSoftDeadline })},
	{"MAX_MSG_CHARS", intField(func(c *Config) *int { return &c.MaxMsgChars })},
	{"CHUNK_DELAY", durationField(func(c *Config) *time.Duration { return &c.ChunkDelay })},
	{"AGENT_TASK_TIMEOUT", durationField(func(c *Config) *time.Duration { return &c.AgentTaskTimeout })},
	{"FAIL_THRESHOLD", intField(func(c *Config) *int { return &c.FailThreshold })},
	{"BREAKER_TIMEOUT", durationField(func(c *Config) *time.Duration { return &c.BreakerTimeout })},
	{"RETRY_BASE_DELAY", durationField(func(c *Config) *time.Duration { return &c.RetryBaseDelay })},
	{"RETRY_FACTOR", floatField(func(c *Config) *float64 { return &c.RetryFactor })},
	{"RETRY_MAX_DELAY", durationField(func(c *Config) *time.Duration { return &c.RetryMaxDelay })},
	{"RETRY_MAX_ATTEMPTS", intField(func(c *Config) *int { return &c.RetryMaxAttempts })},
	{"STATE_STALENESS_BOUND", durationField(func(c *Config) *time.Duration { return &c.StateStalenessBound })},
	{"DB_PATH", stringField(func(c *Config) *string { return &c.DBPath })},
}

func applyEnvOverrides(cfg *Config) error {
	for _, f := range overrideFields {
		raw, ok := os.LookupEnv(EnvPrefix + f.suffix)
		if !ok || raw == "" {
			continue
		}
		if err := f.set(cfg, raw); err != nil {
			return fmt.Errorf("%s%s=%q: %w", EnvPrefix, f.suffix, raw, err)
		}
	}
	return nil
}

func intField(sel func(*Config) *int) func(*Config, string) error {
	return func(c *Config, raw string) error {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		*sel(c) = v
		return nil
	}
}

func floatField(sel func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, raw string) error {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return err
		}
		*sel(c) = v
		return nil
	}
}

func boolField(sel func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, raw string) error {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		*sel(c) = v
		return nil
	}
}

func stringField(sel func(*Config) *string) func(*Config, string) error {
	return func(c *Config, raw string) error {
		*sel(c) = raw
		return nil
	}
}

func durationField(sel func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, raw string) error {
		v, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		*sel(c) = v
		return nil
	}
}
