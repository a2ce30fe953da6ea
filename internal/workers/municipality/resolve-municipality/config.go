package resolvemunicipality

import (
	"fmt"
	"time"

	"geoincra-portal/internal/common/config"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	DefaultState  string
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       10 * time.Second,
		DefaultState:  "RO",
	}
}

// FromAppConfig overlays the worker entry and the municipality defaults of cfg.
func FromAppConfig(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	wc := config.GetWorkerConfig(cfg, TaskType)
	c.Enabled = wc.Enabled
	if wc.MaxJobsActive > 0 {
		c.MaxJobsActive = wc.MaxJobsActive
	}
	if wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	if cfg.Municipality.DefaultState != "" {
		c.DefaultState = cfg.Municipality.DefaultState
	}
	return c
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}
