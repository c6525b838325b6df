// Package config provides configuration management for the matchedge engine.
package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// KnownLearners lists the base learner kinds the model bank can build.
var KnownLearners = map[string]bool{
	"random_forest":       true,
	"gradient_boosting":   true,
	"stochastic_boosting": true,
	"extra_trees":         true,
}

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Registration only fails on empty tags or nil funcs.
	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("fraction", validateFraction)
	_ = v.RegisterValidation("cronspec", validateCronSpec)
	_ = v.RegisterValidation("learner", validateLearner)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	// Additional cross-field validations
	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

// validateEnvironment validates the environment field
func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

// validateLogLevel validates the log level field
func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// validateFraction accepts values in (0, 1].
func validateFraction(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return f > 0 && f <= 1
}

func validateCronSpec(fl validator.FieldLevel) bool {
	_, err := cron.ParseStandard(fl.Field().String())
	return err == nil
}

func validateLearner(fl validator.FieldLevel) bool {
	return KnownLearners[fl.Field().String()]
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	if cfg.Calibration.IsotonicMinSamples <= cfg.Calibration.MinSamples {
		return fmt.Errorf("calibration isotonic_min_samples (%d) must exceed min_samples (%d)",
			cfg.Calibration.IsotonicMinSamples, cfg.Calibration.MinSamples)
	}
	if cfg.Calibration.MaxSamples < cfg.Calibration.MinSamples {
		return fmt.Errorf("calibration max_samples cannot be below min_samples")
	}

	if cfg.Staking.ValueEdge < cfg.Staking.MinEdge {
		return fmt.Errorf("staking value_edge cannot be below min_edge")
	}
	if cfg.Staking.PremiumEdge < cfg.Staking.ValueEdge {
		return fmt.Errorf("staking premium_edge cannot be below value_edge")
	}

	if cfg.Model.MinLearners > len(cfg.Model.Learners) {
		return fmt.Errorf("model min_learners (%d) exceeds configured learners (%d)",
			cfg.Model.MinLearners, len(cfg.Model.Learners))
	}

	if len(cfg.Serving.Baseline) == 3 {
		sum := cfg.Serving.Baseline[0] + cfg.Serving.Baseline[1] + cfg.Serving.Baseline[2]
		if math.Abs(sum-1) > 1e-6 {
			return fmt.Errorf("serving baseline must sum to 1, got %.4f", sum)
		}
	}

	if cfg.Retraining.Enabled && cfg.Retraining.Schedule == "" {
		return fmt.Errorf("retraining schedule is required when retraining is enabled")
	}

	// Validate production environment requirements
	if cfg.IsProduction() && cfg.Database.Enabled && cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
	}

	// Validate connection pool settings
	if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
		return fmt.Errorf("max_idle_connections cannot exceed max_connections")
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.Namespace()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required", "required_if":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max", "len":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "fraction":
			errMsg += fmt.Sprintf("- Field '%s' must be in (0, 1], got '%v'\n", field, value)
		case "cronspec":
			errMsg += fmt.Sprintf("- Field '%s' is not a valid cron expression: '%v'\n", field, value)
		case "learner":
			errMsg += fmt.Sprintf("- Field '%s' names an unknown learner '%v'\n", field, value)
		case "oneof":
			errMsg += fmt.Sprintf("- Field '%s' has invalid value '%v'\n", field, value)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}
