// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the cycler scheduling core.
type Config struct {
	// DummyMode runs the dummy task driver instead of invoking the
	// class-defined external command (spec §4.3, run_if_ready step 3).
	DummyMode bool

	// DummyRate is the dummy driver's clock-rate multiplier.
	DummyRate float64

	// MaxFinished bounds the number of finished-but-not-retired
	// instances of a runahead-limited class (spec §4.3, default 4).
	MaxFinished int

	// TickInterval is the periodic wake-up period for the scheduler
	// loop's step 1 when no message has arrived (spec §4.5).
	TickInterval time.Duration

	// JobStatusDir is the directory the job status file collaborator
	// writes per-job KEY=VALUE files into (spec §6).
	JobStatusDir string

	// Debug enables debug logging.
	Debug bool
}

// NewDefault creates a new configuration with default values.
func NewDefault() *Config {
	return &Config{
		DummyMode:    getEnvBoolOrDefault("CYCLER_DUMMY_MODE", true),
		DummyRate:    getEnvFloatOrDefault("CYCLER_DUMMY_RATE", 1.0),
		MaxFinished:  getEnvIntOrDefault("CYCLER_MAX_FINISHED", 4),
		TickInterval: 1 * time.Second,
		JobStatusDir: getEnvOrDefault("CYCLER_JOB_STATUS_DIR", "./job-status"),
		Debug:        getEnvBoolOrDefault("CYCLER_DEBUG", false),
	}
}

// Load loads configuration overrides from environment variables.
func (c *Config) Load() {
	c.DummyMode = getEnvBoolOrDefault("CYCLER_DUMMY_MODE", c.DummyMode)
	c.DummyRate = getEnvFloatOrDefault("CYCLER_DUMMY_RATE", c.DummyRate)
	c.MaxFinished = getEnvIntOrDefault("CYCLER_MAX_FINISHED", c.MaxFinished)

	if interval := os.Getenv("CYCLER_TICK_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			c.TickInterval = d
		}
	}

	if dir := os.Getenv("CYCLER_JOB_STATUS_DIR"); dir != "" {
		c.JobStatusDir = dir
	}

	c.Debug = getEnvBoolOrDefault("CYCLER_DEBUG", c.Debug)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return ErrInvalidTickInterval
	}

	if c.MaxFinished <= 0 {
		return ErrInvalidMaxFinished
	}

	if c.DummyRate <= 0 {
		return ErrInvalidDummyRate
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
