// Package app assembles the engine's dependencies from configuration. The
// binaries under cmd/ share it so they wire storage, sinks and the registry
// the same way.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/database"
	"github.com/yourusername/matchedge/internal/events"
	"github.com/yourusername/matchedge/internal/features"
	"github.com/yourusername/matchedge/internal/health"
	"github.com/yourusername/matchedge/internal/logger"
	"github.com/yourusername/matchedge/internal/registry"
	"github.com/yourusername/matchedge/internal/repository"
	"github.com/yourusername/matchedge/internal/service"
)

// LoadConfig reads configuration with defaults, overlays AWS secrets when a
// secret is configured and validates the result.
func LoadConfig(ctx context.Context, path string) (*config.Config, error) {
	cfg, err := config.LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Options selects which optional backends Open connects.
type Options struct {
	Database bool
	Redis    bool
	Kafka    bool
}

// AllBackends connects every backend enabled in configuration.
var AllBackends = Options{Database: true, Redis: true, Kafka: true}

// Stack holds the shared components of a binary.
type Stack struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Builder   *features.Builder
	Registry  *registry.Registry
	DB        *database.DB
	Repos     *repository.Repositories
	Mirror    *repository.RedisWindowMirror
	Publisher *events.Publisher

	closers []func()
}

// Open connects the backends enabled in cfg and selected by opts and builds
// the model registry with every available record sink.
func Open(ctx context.Context, cfg *config.Config, log *logrus.Logger, opts Options) (*Stack, error) {
	s := &Stack{
		Config:  cfg,
		Logger:  log,
		Builder: features.NewBuilder(log),
	}

	if opts.Database && cfg.Database.Enabled {
		db, err := database.Initialize(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		s.DB = db
		s.Repos = repository.NewRepositories(db)
		s.closers = append(s.closers, db.Close)
		log.Info("Database connection established")
	}

	if opts.Redis && cfg.Redis.Enabled {
		mirror, err := repository.NewRedisWindowMirror(ctx, cfg.Redis, cfg.Calibration.MaxSamples)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.Mirror = mirror
		s.closers = append(s.closers, func() {
			if err := mirror.Close(); err != nil {
				log.WithError(err).Warn("Failed to close redis client")
			}
		})
		log.WithField("addr", cfg.Redis.Addr).Info("Calibration window mirror connected")
	}

	if opts.Kafka && cfg.Kafka.Enabled {
		pub, err := events.NewPublisher(cfg.Kafka)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create event publisher: %w", err)
		}
		s.Publisher = pub
		s.closers = append(s.closers, func() {
			if err := pub.Close(); err != nil {
				log.WithError(err).Warn("Failed to flush event publisher")
			}
		})
		log.WithField("brokers", cfg.Kafka.Brokers).Info("Event publisher ready")
	}

	store, err := registry.NewFileStore(cfg.Serving.ArtifactDir)
	if err != nil {
		s.Close()
		return nil, err
	}
	var sinks []registry.RecordSink
	if s.Repos != nil {
		sinks = append(sinks, s.Repos.Artifact)
	}
	if s.Publisher != nil {
		sinks = append(sinks, s.Publisher)
	}
	reg, err := registry.New(store, cfg.Serving.LeagueCacheSize, cfg.Calibration, log, sinks...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Registry = reg
	s.closers = append(s.closers, reg.Close)
	return s, nil
}

// ServiceOptions returns the outcome sinks and window source for a
// PredictionService.
func (s *Stack) ServiceOptions() []service.Option {
	var opts []service.Option
	if s.Repos != nil {
		opts = append(opts, service.WithOutcomeSink("postgres", s.Repos.Outcome))
	}
	if s.Mirror != nil {
		opts = append(opts, service.WithOutcomeSink("redis", s.Mirror), service.WithWindowSource(s.Mirror))
	}
	if s.Publisher != nil {
		opts = append(opts, service.WithOutcomeSink("kafka", s.Publisher))
	}
	return opts
}

// Checks returns the readiness probes of the connected backends.
func (s *Stack) Checks() map[string]health.Pinger {
	checks := make(map[string]health.Pinger)
	if s.DB != nil {
		checks["postgres"] = s.DB
	}
	if s.Mirror != nil {
		checks["redis"] = s.Mirror
	}
	return checks
}

// Close releases backends in reverse order of opening.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg *config.Config) *logrus.Logger {
	log := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	log.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"log_level":   cfg.App.LogLevel,
	}).Debug("Logger configured")
	return log
}
