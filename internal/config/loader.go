package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/corvid-systems/lintsched/internal/admission"
	"github.com/corvid-systems/lintsched/pkg/units"
)

// configName is the config file name without extension.
const configName = ".lintsched"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for lintsched settings.
const envPrefix = "LINTSCHED"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Defaults for scheduler knobs not already covered by admission.DefaultLimits.
const (
	DefaultMaxRetries = 2
	// DefaultBatchSize of 0 means "derive from DefaultInitialBatchDivisor"
	// rather than a fixed batch size; see SchedulerConfig.ResolveBatchSize.
	DefaultBatchSize           = 0
	DefaultInitialBatchDivisor = 4
	DefaultSampleIntervalMS    = 500
	DefaultWorkerTimeoutSec    = 0 // disabled
	DefaultAnalyzerTimeout     = 120
	DefaultReportFormat        = "text"
	DefaultReportDir           = "."
)

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	// TEST_SCENARIO / TEST_TARGET_FILE / TEST_OOM_RETRIES are the
	// documented unprefixed env vars, layered on top of the viper-bound
	// LINTSCHED_TEST_* equivalents for operators used to the legacy names.
	applyLegacyTestEnv(&cfg)

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyLegacyTestEnv(cfg *Config) {
	if v := os.Getenv("TEST_SCENARIO"); v != "" {
		cfg.Test.Scenario = v
	}

	if v := os.Getenv("TEST_TARGET_FILE"); v != "" {
		cfg.Test.TargetFile = v
	}

	if v := os.Getenv("TEST_OOM_RETRIES"); v != "" {
		var n int

		_, err := fmt.Sscanf(v, "%d", &n)
		if err == nil {
			cfg.Test.OOMRetries = n
		}
	}
}

func applyDefaults(viperCfg *viper.Viper) {
	defaultLimits := admission.DefaultLimits()

	viperCfg.SetDefault("scheduler.max_workers", defaultLimits.MaxWorkers)
	viperCfg.SetDefault("scheduler.container_limit_mb", defaultLimits.ContainerLimitBytes/units.MiB)
	viperCfg.SetDefault("scheduler.mem_threshold_percent", defaultLimits.ThresholdPercent)
	viperCfg.SetDefault("scheduler.max_retries", DefaultMaxRetries)
	viperCfg.SetDefault("scheduler.batch_size", DefaultBatchSize)
	viperCfg.SetDefault("scheduler.initial_batch_divisor", DefaultInitialBatchDivisor)
	viperCfg.SetDefault("scheduler.sample_interval_ms", DefaultSampleIntervalMS)
	viperCfg.SetDefault("scheduler.worker_timeout_sec", DefaultWorkerTimeoutSec)

	viperCfg.SetDefault("analyzer.timeout_sec", DefaultAnalyzerTimeout)

	viperCfg.SetDefault("test.scenario", "none")

	viperCfg.SetDefault("report.format", DefaultReportFormat)
	viperCfg.SetDefault("report.dir", DefaultReportDir)
}
