// Package config defines the evaluator configuration and how it is loaded.
//
// Conventions:
// - New builds a Config holding the defaults.
// - Load layers a YAML file and REFEVAL_* environment variables on top.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"strings"
)

// Defaults.
const (
	DefaultDataDir = "data"
	DefaultDataset = "random-core"
	DefaultLimit   = 10
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// DataDir is the directory holding <dataset>.jsonl files.
	DataDir string `koanf:"data_dir"`

	// Dataset names the dataset to evaluate against.
	Dataset string `koanf:"dataset"`

	// Limit caps how many leading recommendations are considered per record.
	Limit int `koanf:"limit"`

	// MetricsFile, when set, receives the Prometheus metrics after a run.
	MetricsFile string `koanf:"metrics_file"`

	// MetricsNamespace overrides the Prometheus namespace.
	MetricsNamespace string `koanf:"metrics_namespace"`

	// MetricsSubsystem overrides the Prometheus subsystem.
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsLatencyBuckets replaces the millisecond buckets of the latency
	// histograms. Values must be strictly increasing.
	MetricsLatencyBuckets []float64 `koanf:"metrics_latency_buckets"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		DataDir:          DefaultDataDir,
		Dataset:          DefaultDataset,
		Limit:            DefaultLimit,
		MetricsNamespace: "refeval",
		MetricsSubsystem: "evaluator",
	}
}

// Validate checks that the configuration can drive an evaluation.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Dataset) == "":
		return fmt.Errorf("%w: dataset must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.DataDir) == "":
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	case c.Limit <= 0:
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidConfig, c.Limit)
	}
	for i := 1; i < len(c.MetricsLatencyBuckets); i++ {
		if c.MetricsLatencyBuckets[i] <= c.MetricsLatencyBuckets[i-1] {
			return fmt.Errorf("%w: metrics_latency_buckets must be strictly increasing", ErrInvalidConfig)
		}
	}
	return nil
}
