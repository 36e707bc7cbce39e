package app

import (
	"errors"
	"fmt"
	"time"
)

// Run modes.
const (
	ModeOnce  = "once"
	ModeServe = "serve"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// WorkflowPath is a .hcl file or a directory of them. Empty selects the
	// embedded definition.
	WorkflowPath string
	Mode         string
	// LogicalDate selects the interval of a once run. Zero means the most
	// recent completed interval.
	LogicalDate time.Time
	// EnvFile is read for settings in addition to the environment.
	EnvFile string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeOnce
	}
	if cfg.Mode != ModeOnce && cfg.Mode != ModeServe {
		return nil, fmt.Errorf("invalid mode %q: must be '%s' or '%s'", cfg.Mode, ModeOnce, ModeServe)
	}
	if cfg.Mode == ModeServe && !cfg.LogicalDate.IsZero() {
		return nil, errors.New("a logical date can only be given in 'once' mode")
	}
	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", cfg.WorkerCount)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	return &cfg, nil
}
