// Package config provides configuration management for the matchedge engine.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MATCHEDGE_STAKING_MIN_EDGE.
const EnvPrefix = "MATCHEDGE"

const defaultConfigPath = "config/config.yaml"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// Set environment variable prefix
	v.SetEnvPrefix(EnvPrefix)

	// Enable automatic binding of environment variables
	v.AutomaticEnv()

	// Replace dots with underscores in environment variable names
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load reads and parses the configuration from file and environment variables
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	// Read the configuration file
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for every optional field.
// A missing file is not an error: defaults and environment variables are used instead.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()
	SetDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// SetDefaults registers the documented default of every option on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "matchedge")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.key_ttl_hours", 48)

	v.SetDefault("kafka.outcomes_topic", "matchedge.settled-outcomes")
	v.SetDefault("kafka.artifacts_topic", "matchedge.artifacts")
	v.SetDefault("kafka.batch_timeout_ms", 50)

	v.SetDefault("model.oof_folds", 5)
	v.SetDefault("model.seed", 42)
	v.SetDefault("model.min_learners", 2)
	v.SetDefault("model.learners", []string{"random_forest", "gradient_boosting", "stochastic_boosting", "extra_trees"})
	v.SetDefault("model.search_trials", 0)
	v.SetDefault("model.search_budget_seconds", 300)
	v.SetDefault("model.include_raw_features", false)
	v.SetDefault("model.holdout_fraction", 0.15)
	v.SetDefault("model.parallelism", 4)

	v.SetDefault("calibration.refit_interval_seconds", 180)
	v.SetDefault("calibration.min_samples", 20)
	v.SetDefault("calibration.isotonic_min_samples", 200)
	v.SetDefault("calibration.window_hours", 24)
	v.SetDefault("calibration.max_samples", 2000)
	v.SetDefault("calibration.holdout_fraction", 0.25)
	v.SetDefault("calibration.guardrail_margin", 0.002)

	v.SetDefault("staking.min_edge", 0.04)
	v.SetDefault("staking.value_edge", 0.07)
	v.SetDefault("staking.premium_edge", 0.10)
	v.SetDefault("staking.premium_confidence", 0.50)
	v.SetDefault("staking.kelly_fraction", 0.125)
	v.SetDefault("staking.max_stake_pct", 0.05)

	v.SetDefault("serving.request_timeout_seconds", 10)
	v.SetDefault("serving.league_cache_size", 8)
	v.SetDefault("serving.prediction_cache_ttl_minutes", 4320)
	v.SetDefault("serving.artifact_dir", "artifacts")
	v.SetDefault("serving.baseline", []float64{0.46, 0.27, 0.27})

	v.SetDefault("retraining.schedule", "0 4 * * *")
	v.SetDefault("retraining.lookback_days", 730)
	v.SetDefault("retraining.prune_schedule", "30 3 * * *")
	v.SetDefault("retraining.outcome_retention_days", 365)

	v.SetDefault("odds_feed.requests_per_second", 5)
	v.SetDefault("odds_feed.max_retries", 3)
	v.SetDefault("odds_feed.timeout_seconds", 10)
	v.SetDefault("odds_feed.results_schedule", "15 * * * *")
	v.SetDefault("odds_feed.results_lookback_days", 3)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("health.port", 8080)
	v.SetDefault("health.grpc_port", 8081)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.daemon_addr", "127.0.0.1:2000")
	v.SetDefault("tracing.sampling_rate", 0.05)
}

// ReloadFromEnv reloads the configuration from MATCHEDGE_CONFIG_PATH when set.
func ReloadFromEnv(cfg *Config) error {
	if envPath := os.Getenv(EnvPrefix + "_CONFIG_PATH"); envPath != "" {
		newCfg, err := LoadWithDefaults(envPath)
		if err != nil {
			return err
		}
		*cfg = *newCfg
	}

	return nil
}
