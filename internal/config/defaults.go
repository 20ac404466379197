package config

// DefaultConfig returns the built-in configuration: generous retries with
// jitter, unbounded per-task timeout, whole levels run concurrently, and a
// small default language set for the translation pipeline.
func DefaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			DefaultTimeoutSeconds: 0,
			MaxConcurrency:        0,
			Strict:                false,
			Retry: RetryConfig{
				MaxRetries:          3,
				InitialDelaySeconds: 1,
				MaxDelaySeconds:     30,
				BackoffFactor:       2.0,
				Jitter:              true,
			},
		},
		Service: ServiceConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "TASKGRAPH_API_KEY",
		},
		Pipeline: PipelineConfig{
			Languages: []string{"Spanish", "French", "German"},
		},
		History: HistoryConfig{
			Path: "",
		},
	}
}
