// Package config loads the assistant settings file. It only translates the
// YAML surface into the plain settings structures the pipeline consumes;
// nothing in here is read from the environment at run time.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/publift/go-stageflow/pkg/assistant"
	"github.com/publift/go-stageflow/pkg/pipeline/model"
	"github.com/publift/go-stageflow/pkg/tool/ratelimit"
)

var ErrUnknownPolicy = errors.New("unknown failure policy")

// PipelineConfig models the pipeline section.
type PipelineConfig struct {
	StageRetries int    `yaml:"stage_retries"`
	Timeout      string `yaml:"timeout"`
}

// ToolConfig models the tools section.
type ToolConfig struct {
	MaxRetries    int     `yaml:"max_retries"`
	Timeout       string  `yaml:"timeout"`
	BackoffBase   string  `yaml:"backoff_base"`
	BackoffMax    string  `yaml:"backoff_max"`
	BackoffJitter float64 `yaml:"backoff_jitter"`
}

// LimitConfig models one per-resource rate limit entry.
type LimitConfig struct {
	Calls  int    `yaml:"calls"`
	Window string `yaml:"window"`
}

// Config models the assistant settings file. Absent fields keep the
// built-in defaults.
type Config struct {
	Pipeline PipelineConfig         `yaml:"pipeline"`
	Tools    ToolConfig             `yaml:"tools"`
	Limits   map[string]LimitConfig `yaml:"limits"`
	Policies map[string]string      `yaml:"policies"`
	CacheTTL string                 `yaml:"cache_ttl"`
}

// Load reads and parses a settings file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read config file %s", path)
	}

	cfg := &Config{}
	err = yaml.Unmarshal(raw, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse config file %s", path)
	}

	return cfg, nil
}

// Settings converts the file surface into assistant settings, starting
// from the built-in defaults and overriding only what the file sets.
func (c *Config) Settings() (assistant.Settings, error) {
	settings := assistant.DefaultSettings()

	if c.Pipeline.StageRetries > 0 {
		settings.Pipeline.StageRetries = c.Pipeline.StageRetries
	}
	if err := overrideDuration(&settings.Pipeline.Timeout, c.Pipeline.Timeout); err != nil {
		return settings, errors.Wrap(err, "pipeline.timeout")
	}

	if c.Tools.MaxRetries > 0 {
		settings.Tool.MaxRetries = c.Tools.MaxRetries
	}
	if err := overrideDuration(&settings.Tool.CallTimeout, c.Tools.Timeout); err != nil {
		return settings, errors.Wrap(err, "tools.timeout")
	}
	if err := overrideDuration(&settings.Tool.Backoff.Base, c.Tools.BackoffBase); err != nil {
		return settings, errors.Wrap(err, "tools.backoff_base")
	}
	if err := overrideDuration(&settings.Tool.Backoff.Max, c.Tools.BackoffMax); err != nil {
		return settings, errors.Wrap(err, "tools.backoff_max")
	}
	if c.Tools.BackoffJitter > 0 {
		settings.Tool.Backoff.Jitter = c.Tools.BackoffJitter
	}

	if err := overrideDuration(&settings.CacheTTL, c.CacheTTL); err != nil {
		return settings, errors.Wrap(err, "cache_ttl")
	}

	for resource, limit := range c.Limits {
		window, err := time.ParseDuration(limit.Window)
		if err != nil {
			return settings, errors.Wrapf(err, "limits.%s.window", resource)
		}
		settings.Limits[resource] = ratelimit.Limit{Calls: limit.Calls, Window: window}
	}

	for stage, raw := range c.Policies {
		policy, err := parsePolicy(raw)
		if err != nil {
			return settings, errors.Wrapf(err, "policies.%s", stage)
		}
		settings.Policies[stage] = policy
	}

	return settings, nil
}

func overrideDuration(dst *time.Duration, raw string) error {
	if raw == "" {
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = parsed

	return nil
}

func parsePolicy(raw string) (model.FailurePolicy, error) {
	switch model.FailurePolicy(raw) {
	case model.AbortPipeline, model.SkipAndContinue, model.RetryThenSkip:
		return model.FailurePolicy(raw), nil
	default:
		return "", errors.Wrap(ErrUnknownPolicy, raw)
	}
}
