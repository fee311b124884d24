package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Writer: ProviderConfig{
			Type:        "openai",
			Model:       "openai/gpt-5-mini",
			APIKey:      "${OPENAI_API_KEY}",
			RateLimit:   3.0,
			Temperature: 0.2,
			MaxTokens:   8192,
		},
		Checker: ProviderConfig{
			Type:        "openai",
			Model:       "openai/gpt-4o-mini",
			APIKey:      "${OPENAI_API_KEY}",
			RateLimit:   3.0,
			Temperature: 0.0,
			MaxTokens:   4096,
		},
		Pipeline: PipelineConfig{
			MaxRetryAttempts:   3,
			SafetyMargin:       0.2,
			TargetUtilization:  0.2,
			MinBatchSize:       1,
			MaxBatchSize:       3,
			MaxConcurrentCalls: 8,
			CallTimeout:        120 * time.Second,
			MinFidelity:        60,
		},
	}
}
