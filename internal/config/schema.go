// Package config handles loading, defaulting and hot-reloading lily
// configuration. All tunables (retry counts, batch bounds, thresholds)
// live here and are passed into constructors explicitly.
package config

import "time"

// Config is the top-level configuration.
type Config struct {
	// Writer is the modernization capability.
	Writer ProviderConfig `mapstructure:"writer" yaml:"writer"`

	// Checker is the QA capability. Independently swappable from Writer.
	Checker ProviderConfig `mapstructure:"checker" yaml:"checker"`

	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
}

// ProviderConfig configures one LLM capability.
type ProviderConfig struct {
	Type        string  `mapstructure:"type" yaml:"type"` // "openai", "mock"
	Model       string  `mapstructure:"model" yaml:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR}
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	RateLimit   float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// PipelineConfig holds orchestration tunables.
type PipelineConfig struct {
	// MaxRetryAttempts bounds the self-healing retry loop per batch call.
	MaxRetryAttempts int `mapstructure:"max_retry_attempts" yaml:"max_retry_attempts"`

	// SafetyMargin is the fraction of the context window held back when
	// validating a request (0.2 reserves 20%).
	SafetyMargin float64 `mapstructure:"safety_margin" yaml:"safety_margin"`

	// TargetUtilization is the fraction of the context window a batch
	// aims to fill.
	TargetUtilization float64 `mapstructure:"target_utilization" yaml:"target_utilization"`

	MinBatchSize int `mapstructure:"min_batch_size" yaml:"min_batch_size"`
	MaxBatchSize int `mapstructure:"max_batch_size" yaml:"max_batch_size"`

	// MaxConcurrentCalls caps in-flight backend calls across all chapters.
	MaxConcurrentCalls int64 `mapstructure:"max_concurrent_calls" yaml:"max_concurrent_calls"`

	// CallTimeout is the per-call wall-clock timeout, independent of the
	// token-window check.
	CallTimeout time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`

	// MinFidelity is the score below which a validated pair counts as a
	// quality failure for stage routing.
	MinFidelity int `mapstructure:"min_fidelity" yaml:"min_fidelity"`
}
