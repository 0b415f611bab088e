// Package config defines process configuration and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - External errors must be wrapped via this package's sentinel errors.
package config

import "time"

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr configures the Prometheus listen address, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// ExercisePath points at a YAML exercise definition. Empty selects the
	// built-in demo pull-up.
	ExercisePath string `koanf:"exercise_path"`

	// FramesPath points at a JSON Lines pose-frame recording. Empty selects
	// the synthetic generator.
	FramesPath string `koanf:"frames_path"`

	// QueueSize bounds the in-memory event sink queue.
	QueueSize int `koanf:"queue_size"`

	// EventBuffer sets the buffer of the session's Events channel.
	EventBuffer int `koanf:"event_buffer"`

	// SimFPS, SimReps, and SimRepPeriodMS shape the synthetic pose stream
	// used by the demo runner.
	SimFPS         int `koanf:"sim_fps"`
	SimReps        int `koanf:"sim_reps"`
	SimRepPeriodMS int `koanf:"sim_rep_period_ms"`
}

// SimRepPeriod returns the synthetic rep period as a duration.
func (c *Config) SimRepPeriod() time.Duration {
	return time.Duration(c.SimRepPeriodMS) * time.Millisecond
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		MetricsAddr:    ":9090",
		QueueSize:      1024,
		EventBuffer:    256,
		SimFPS:         30,
		SimReps:        5,
		SimRepPeriodMS: 3000,
	}
}
