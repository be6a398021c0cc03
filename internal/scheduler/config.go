package scheduler

import (
	"time"

	"github.com/merceton/merceton/internal/config"
)

// Config controls how often jobs run and how long each may take.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	JobTimeout  time.Duration
	LockTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: time.Hour,
		JobTimeout:  10 * time.Minute,
		LockTTL:     15 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	c := DefaultConfig()
	c.Enabled = cfg.SchedulerEnabled
	c.RunInterval = cfg.SchedulerInterval
	return c.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	// The lock must outlive the job or a second instance can start mid-run.
	if c.LockTTL <= c.JobTimeout {
		c.LockTTL = c.JobTimeout + 5*time.Minute
	}
	return c
}
