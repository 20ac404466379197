package config

import (
	"time"

	"github.com/aristath/taskgraph/internal/retry"
)

// RetryConfig holds the retry policy fields in config-file form.
// Delays are expressed in seconds to keep the JSON readable.
type RetryConfig struct {
	MaxRetries          int     `json:"max_retries"`
	InitialDelaySeconds float64 `json:"initial_delay_seconds"`
	MaxDelaySeconds     float64 `json:"max_delay_seconds"`
	BackoffFactor       float64 `json:"backoff_factor"`
	Jitter              bool    `json:"jitter"`
}

// Policy converts the config-file form into a retry.Policy.
func (c RetryConfig) Policy() *retry.Policy {
	return &retry.Policy{
		MaxRetries:    c.MaxRetries,
		InitialDelay:  time.Duration(c.InitialDelaySeconds * float64(time.Second)),
		MaxDelay:      time.Duration(c.MaxDelaySeconds * float64(time.Second)),
		BackoffFactor: c.BackoffFactor,
		Jitter:        c.Jitter,
	}
}

// SchedulerConfig configures the execution engine.
type SchedulerConfig struct {
	DefaultTimeoutSeconds float64     `json:"default_timeout_seconds"` // 0 leaves tasks unbounded
	MaxConcurrency        int         `json:"max_concurrency"`         // 0 runs whole levels at once
	Strict                bool        `json:"strict"`                  // Fail on cycles/unknown deps instead of omitting
	Retry                 RetryConfig `json:"retry"`
}

// DefaultTimeout returns the scheduler default timeout as a duration.
func (c SchedulerConfig) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutSeconds * float64(time.Second))
}

// ServiceConfig points at the chat-completions service used by the analysis
// and translation tasks. The API key is read from the named environment
// variable, never from the config file itself.
type ServiceConfig struct {
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	APIKeyEnv string `json:"api_key_env"`
}

// PipelineConfig describes the translation pipeline built by the CLI.
type PipelineConfig struct {
	Languages []string `json:"languages"`
}

// HistoryConfig configures the optional run-history database.
type HistoryConfig struct {
	Path string `json:"path"` // Empty disables history recording
}

// Config is the top-level configuration.
type Config struct {
	Scheduler SchedulerConfig `json:"scheduler"`
	Service   ServiceConfig   `json:"service"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	History   HistoryConfig   `json:"history"`
}
