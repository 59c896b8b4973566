package resilience

import "time"

// Settings is the configuration shape for one upstream's retry and breaker
// policy, decoded by viper.
type Settings struct {
	MaxAttempts      int           `mapstructure:"max_attempts"`
	InitialBackoff   time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff       time.Duration `mapstructure:"max_backoff"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

// RetryConfig converts s to a RetryConfig. Zero fields keep their defaults.
func (s Settings) RetryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	if s.MaxAttempts > 0 {
		cfg.MaxAttempts = s.MaxAttempts
	}
	if s.InitialBackoff > 0 {
		cfg.InitialBackoff = s.InitialBackoff
	}
	if s.MaxBackoff > 0 {
		cfg.MaxBackoff = s.MaxBackoff
	}
	return cfg
}

// Retry is RetryConfig with each retry logged for upstream.
func (s Settings) Retry(upstream, operation string) RetryConfig {
	cfg := s.RetryConfig()
	cfg.OnRetry = RetryLogger(upstream, operation)
	return cfg
}

// Breaker builds a circuit breaker for upstream from s.
func (s Settings) Breaker(upstream string) *Breaker {
	return NewBreaker(upstream, BreakerConfig{
		FailureThreshold: s.FailureThreshold,
		ResetTimeout:     s.ResetTimeout,
	})
}
