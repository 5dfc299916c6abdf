package db

import (
	"time"

	"github.com/smallbiznis/assessly/internal/config"
)

// RetryConfig bounds retries of conditional writes.
type RetryConfig struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
	// Timeout bounds each attempt independently of the caller's deadline.
	Timeout time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: 3,
		Delay:    50 * time.Millisecond,
		MaxDelay: time.Second,
		Timeout:  5 * time.Second,
	}
}

// RetryConfigFrom maps the store section of the application config.
func RetryConfigFrom(cfg config.Config) RetryConfig {
	return RetryConfig{
		Attempts: cfg.Store.RetryAttempts,
		Delay:    cfg.Store.RetryDelay,
		MaxDelay: cfg.Store.RetryMaxDelay,
		Timeout:  cfg.Store.Timeout,
	}.withDefaults()
}

func (c RetryConfig) withDefaults() RetryConfig {
	defaults := DefaultRetryConfig()
	if c.Attempts == 0 {
		c.Attempts = defaults.Attempts
	}
	if c.Delay <= 0 {
		c.Delay = defaults.Delay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaults.MaxDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	return c
}
