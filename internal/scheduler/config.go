package scheduler

import (
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/assessly/internal/config"
)

const (
	JobExpireInvites            = "expire_invites"
	JobReleaseStaleReservations = "release_stale_reservations"
	JobRelayLifecycleEvents     = "relay_lifecycle_events"
)

var ErrInvalidConfig = errors.New("scheduler: invalid config")

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval         time.Duration
	BatchSize           int
	MaxBatchesPerRun    int
	JobTimeout          time.Duration
	ReservationStaleAge time.Duration
	// EnabledJobs restricts the run to the named jobs. Empty runs everything.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:         time.Minute,
		BatchSize:           100,
		MaxBatchesPerRun:    10,
		JobTimeout:          30 * time.Second,
		ReservationStaleAge: 15 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MaxBatchesPerRun <= 0 {
		c.MaxBatchesPerRun = defaults.MaxBatchesPerRun
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.ReservationStaleAge <= 0 {
		c.ReservationStaleAge = defaults.ReservationStaleAge
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:         cfg.Scheduler.RunInterval,
		BatchSize:           cfg.Scheduler.BatchSize,
		ReservationStaleAge: cfg.Scheduler.ReservationStaleAge,
		EnabledJobs:         cfg.Scheduler.EnabledJobs,
	}
}

func (c Config) isJobEnabled(job string) bool {
	if len(c.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range c.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), job) {
			return true
		}
	}
	return false
}
