// Package config holds the scheduler's configuration, loaded from a
// config file, environment variables, and flag-derived defaults.
package config

import (
	"errors"

	"github.com/corvid-systems/lintsched/internal/batch"
)

// Config is the top-level configuration for lintsched.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer"`
	Test      TestConfig      `mapstructure:"test"`
	Report    ReportConfig    `mapstructure:"report"`
}

// SchedulerConfig holds admission, retry, and sampling knobs.
type SchedulerConfig struct {
	MaxWorkers          int     `mapstructure:"max_workers"`
	ContainerLimitMB    int64   `mapstructure:"container_limit_mb"`
	MemThresholdPercent float64 `mapstructure:"mem_threshold_percent"`
	MaxRetries          int     `mapstructure:"max_retries"`
	// BatchSize, when positive, overrides InitialBatchDivisor and fixes
	// the initial partition to exactly this many files per batch. Zero
	// (the default) derives the batch size from InitialBatchDivisor
	// instead, via batch.ComputeBatchSize.
	BatchSize int `mapstructure:"batch_size"`
	// InitialBatchDivisor derives the initial batch size as
	// ceil(totalFiles/InitialBatchDivisor) when BatchSize is unset,
	// so the initial partition scales with corpus size instead of
	// requiring a fixed count to be chosen up front.
	InitialBatchDivisor int `mapstructure:"initial_batch_divisor"`
	SampleIntervalMS    int `mapstructure:"sample_interval_ms"`
	WorkerTimeoutSec    int `mapstructure:"worker_timeout_sec"`
}

// ResolveBatchSize returns the initial batch size to use for totalFiles:
// the explicit BatchSize override if positive, else the value derived
// from InitialBatchDivisor.
func (c SchedulerConfig) ResolveBatchSize(totalFiles int) int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}

	return batch.ComputeBatchSize(totalFiles, c.InitialBatchDivisor)
}

// AnalyzerConfig describes the external analyzer command each worker
// invokes. The orchestrator never interprets its output beyond the two
// documented counts.
type AnalyzerConfig struct {
	Command    string   `mapstructure:"command"`
	Args       []string `mapstructure:"args"`
	TimeoutSec int      `mapstructure:"timeout_sec"`
}

// TestConfig drives the optional failure-injection harness. Scenario
// "none" (the default) makes every injection code path unreachable.
type TestConfig struct {
	Scenario   string `mapstructure:"scenario"`
	TargetFile string `mapstructure:"target_file"`
	OOMRetries int    `mapstructure:"oom_retries"`
}

// ReportConfig controls how the final Summary is persisted and rendered.
type ReportConfig struct {
	Dir             string `mapstructure:"dir"`
	Format          string `mapstructure:"format"`
	CompressResults bool   `mapstructure:"compress_results"`
}

// Sentinel errors for configuration validation.
var (
	ErrInvalidMaxWorkers       = errors.New("scheduler.max_workers must be non-negative")
	ErrInvalidContainerLimit   = errors.New("scheduler.container_limit_mb must be non-negative")
	ErrInvalidThresholdPercent = errors.New("scheduler.mem_threshold_percent must be between 0 and 100")
	ErrInvalidMaxRetries       = errors.New("scheduler.max_retries must be non-negative")
	ErrInvalidBatchSize        = errors.New("scheduler.batch_size must be non-negative")
	ErrInvalidSampleInterval   = errors.New("scheduler.sample_interval_ms must be non-negative")
	ErrInvalidTestScenario     = errors.New("test.scenario is not recognized")
	ErrInvalidReportFormat     = errors.New("report.format must be \"text\" or \"yaml\"")
)

const maxThresholdPercent = 100.0

// validScenarios enumerates every failure-injection scenario the worker
// driver recognizes.
var validScenarios = map[string]bool{
	"":                true,
	"none":            true,
	"oom-single":      true,
	"oom-persistent":  true,
	"parse-error":     true,
	"rule-crash":      true,
	"random-oom":      true,
	"slow-worker":     true,
	"all":             true,
}

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	err := c.validateScheduler()
	if err != nil {
		return err
	}

	return c.validateReportAndTest()
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.MaxWorkers < 0 {
		return ErrInvalidMaxWorkers
	}

	if c.Scheduler.ContainerLimitMB < 0 {
		return ErrInvalidContainerLimit
	}

	if c.Scheduler.MemThresholdPercent < 0 || c.Scheduler.MemThresholdPercent > maxThresholdPercent {
		return ErrInvalidThresholdPercent
	}

	if c.Scheduler.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}

	if c.Scheduler.BatchSize < 0 {
		return ErrInvalidBatchSize
	}

	if c.Scheduler.SampleIntervalMS < 0 {
		return ErrInvalidSampleInterval
	}

	return nil
}

func (c *Config) validateReportAndTest() error {
	if !validScenarios[c.Test.Scenario] {
		return ErrInvalidTestScenario
	}

	switch c.Report.Format {
	case "", "text", "yaml":
	default:
		return ErrInvalidReportFormat
	}

	return nil
}
