// Package config provides configuration management for the matchedge engine.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Model       ModelConfig       `mapstructure:"model" validate:"required"`
	Calibration CalibrationConfig `mapstructure:"calibration" validate:"required"`
	Staking     StakingConfig     `mapstructure:"staking" validate:"required"`
	Serving     ServingConfig     `mapstructure:"serving" validate:"required"`
	Retraining  RetrainingConfig  `mapstructure:"retraining"`
	OddsFeed    OddsFeedConfig    `mapstructure:"odds_feed"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Health      HealthConfig      `mapstructure:"health"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Secrets     SecretsConfig     `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Host               string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port               int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required_if=Enabled true"`
	User               string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"omitempty,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"omitempty,gt=0"`
}

// RedisConfig configures the calibration window mirror.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	KeyTTL   int    `mapstructure:"key_ttl_hours" validate:"gte=0"`
}

// KafkaConfig configures the settled-outcome and artifact event publisher.
type KafkaConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Brokers        []string `mapstructure:"brokers" validate:"required_if=Enabled true"`
	OutcomesTopic  string   `mapstructure:"outcomes_topic" validate:"required_if=Enabled true"`
	ArtifactsTopic string   `mapstructure:"artifacts_topic" validate:"required_if=Enabled true"`
	BatchTimeoutMs int      `mapstructure:"batch_timeout_ms" validate:"gte=0"`
}

// ModelConfig controls the stacking ensemble training job.
type ModelConfig struct {
	OOFFolds            int      `mapstructure:"oof_folds" validate:"required,gte=5"`
	Seed                int64    `mapstructure:"seed"`
	MinLearners         int      `mapstructure:"min_learners" validate:"required,gte=2"`
	Learners            []string `mapstructure:"learners" validate:"required,min=2,dive,learner"`
	SearchTrials        int      `mapstructure:"search_trials" validate:"gte=0"`
	SearchBudgetSeconds int      `mapstructure:"search_budget_seconds" validate:"gte=0"`
	IncludeRawFeatures  bool     `mapstructure:"include_raw_features"`
	HoldoutFraction     float64  `mapstructure:"holdout_fraction" validate:"gte=0,lt=1"`
	Parallelism         int      `mapstructure:"parallelism" validate:"gte=0"`
}

// CalibrationConfig controls the periodic probability calibrator.
type CalibrationConfig struct {
	RefitIntervalSeconds int     `mapstructure:"refit_interval_seconds" validate:"required,gt=0"`
	MinSamples           int     `mapstructure:"min_samples" validate:"required,gt=0"`
	IsotonicMinSamples   int     `mapstructure:"isotonic_min_samples" validate:"required,gt=0"`
	WindowHours          int     `mapstructure:"window_hours" validate:"required,gt=0"`
	MaxSamples           int     `mapstructure:"max_samples" validate:"required,gt=0"`
	HoldoutFraction      float64 `mapstructure:"holdout_fraction" validate:"required,fraction"`
	GuardrailMargin      float64 `mapstructure:"guardrail_margin" validate:"gte=0"`
}

// StakingConfig controls edge detection and Kelly sizing.
type StakingConfig struct {
	MinEdge           float64 `mapstructure:"min_edge" validate:"gte=0"`
	ValueEdge         float64 `mapstructure:"value_edge" validate:"gte=0"`
	PremiumEdge       float64 `mapstructure:"premium_edge" validate:"gte=0"`
	PremiumConfidence float64 `mapstructure:"premium_confidence" validate:"gte=0,lte=1"`
	KellyFraction     float64 `mapstructure:"kelly_fraction" validate:"required,fraction"`
	MaxStakePct       float64 `mapstructure:"max_stake_pct" validate:"required,fraction"`
}

// ServingConfig controls prediction serving.
type ServingConfig struct {
	RequestTimeoutSeconds     int       `mapstructure:"request_timeout_seconds" validate:"required,gt=0"`
	LeagueCacheSize           int       `mapstructure:"league_cache_size" validate:"required,gt=0"`
	PredictionCacheTTLMinutes int       `mapstructure:"prediction_cache_ttl_minutes" validate:"required,gt=0"`
	ArtifactDir               string    `mapstructure:"artifact_dir" validate:"required"`
	DefaultLeague             string    `mapstructure:"default_league"`
	Baseline                  []float64 `mapstructure:"baseline" validate:"len=3,dive,gt=0,lt=1"`
}

// RetrainingConfig schedules the offline training job inside the engine.
type RetrainingConfig struct {
	Enabled              bool     `mapstructure:"enabled"`
	Schedule             string   `mapstructure:"schedule" validate:"omitempty,cronspec"`
	LookbackDays         int      `mapstructure:"lookback_days" validate:"gte=0"`
	Leagues              []string `mapstructure:"leagues"`
	PruneSchedule        string   `mapstructure:"prune_schedule" validate:"omitempty,cronspec"`
	OutcomeRetentionDays int      `mapstructure:"outcome_retention_days" validate:"gte=0"`
}

// OddsFeedConfig configures the HTTP client for match context and odds.
type OddsFeedConfig struct {
	BaseURL             string  `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey              string  `mapstructure:"api_key"`
	RequestsPerSecond   float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	MaxRetries          int     `mapstructure:"max_retries" validate:"gte=0"`
	TimeoutSeconds      int     `mapstructure:"timeout_seconds" validate:"gte=0"`
	ResultsSchedule     string  `mapstructure:"results_schedule" validate:"omitempty,cronspec"`
	ResultsLookbackDays int     `mapstructure:"results_lookback_days" validate:"gte=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Path    string `mapstructure:"path"`
}

// TracingConfig configures AWS X-Ray segments.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	DaemonAddr   string  `mapstructure:"daemon_addr" validate:"required_if=Enabled true"`
	SamplingRate float64 `mapstructure:"sampling_rate" validate:"gte=0,lte=1"`
}

// HealthConfig configures the HTTP and gRPC health endpoints.
type HealthConfig struct {
	Port     int `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	GRPCPort int `mapstructure:"grpc_port" validate:"omitempty,min=1,max=65535"`
}

// SecretsConfig names an optional AWS Secrets Manager secret.
type SecretsConfig struct {
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// RequestTimeout returns the serving deadline.
func (s ServingConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// PredictionCacheTTL returns how long served predictions stay available for settlement.
func (s ServingConfig) PredictionCacheTTL() time.Duration {
	return time.Duration(s.PredictionCacheTTLMinutes) * time.Minute
}

// RefitInterval returns the calibration cycle interval.
func (c CalibrationConfig) RefitInterval() time.Duration {
	return time.Duration(c.RefitIntervalSeconds) * time.Second
}

// Window returns the rolling window age limit.
func (c CalibrationConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

// Lookback returns how far back training history reaches.
func (r RetrainingConfig) Lookback() time.Duration {
	return time.Duration(r.LookbackDays) * 24 * time.Hour
}

// OutcomeRetention returns how long settled outcomes are kept. Zero keeps them forever.
func (r RetrainingConfig) OutcomeRetention() time.Duration {
	return time.Duration(r.OutcomeRetentionDays) * 24 * time.Hour
}

// ResultsLookback returns how far back each results ingestion run reaches.
func (o OddsFeedConfig) ResultsLookback() time.Duration {
	return time.Duration(o.ResultsLookbackDays) * 24 * time.Hour
}

// SearchBudget returns the hyperparameter search time budget.
func (m ModelConfig) SearchBudget() time.Duration {
	return time.Duration(m.SearchBudgetSeconds) * time.Second
}
