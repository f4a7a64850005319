package tasks

import (
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/bookie/internal/config"
)

// Config holds configuration for the task queue system.
type Config struct {
	// Workers is the number of concurrent task workers.
	Workers int

	// MaxRetries caps attempts for queues that retry.
	MaxRetries int

	// RetryDelay is the backoff between attempts.
	RetryDelay time.Duration

	// TaskTimeout bounds the long-running backfill task.
	TaskTimeout time.Duration

	// ReleaseAfter returns claimed tasks to the queue when a worker died.
	ReleaseAfter time.Duration

	// CleanupInterval is how often finished tasks are purged.
	CleanupInterval time.Duration

	// RetentionDuration is how long finished tasks are kept.
	RetentionDuration time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           2,
		MaxRetries:        3,
		RetryDelay:        time.Minute,
		TaskTimeout:       30 * time.Minute,
		ReleaseAfter:      45 * time.Minute,
		CleanupInterval:   time.Hour,
		RetentionDuration: 24 * time.Hour,
	}
}

// ConfigFrom maps the application settings, keeping defaults for unset values.
func ConfigFrom(cfg config.Tasks) Config {
	c := DefaultConfig()
	if cfg.Workers > 0 {
		c.Workers = cfg.Workers
	}
	if cfg.MaxRetries > 0 {
		c.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		c.RetryDelay = cfg.RetryDelay
	}
	if cfg.TaskTimeout > 0 {
		c.TaskTimeout = cfg.TaskTimeout
	}
	if cfg.ReleaseAfter > 0 {
		c.ReleaseAfter = cfg.ReleaseAfter
	}
	if cfg.CleanupInterval > 0 {
		c.CleanupInterval = cfg.CleanupInterval
	}
	if cfg.RetentionDuration > 0 {
		c.RetentionDuration = cfg.RetentionDuration
	}
	return c
}

// finishedRetention keeps finished tasks for a day, with payloads only for failures.
func finishedRetention() *backlite.Retention {
	return &backlite.Retention{
		Duration:   24 * time.Hour,
		OnlyFailed: false,
		Data:       &backlite.RetainData{OnlyFailed: true},
	}
}
