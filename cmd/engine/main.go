// Package main runs the prediction engine daemon: it keeps live artifacts
// warm, supervises calibration, ingests results, retrains on schedule and
// exposes health and metrics endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/matchedge/internal/app"
	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/health"
	"github.com/yourusername/matchedge/internal/metrics"
	"github.com/yourusername/matchedge/internal/oddsfeed"
	"github.com/yourusername/matchedge/internal/scheduler"
	"github.com/yourusername/matchedge/internal/service"
	"github.com/yourusername/matchedge/internal/tracing"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig(ctx, *configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appLog := app.NewLogger(cfg)
	appLog.WithFields(logrus.Fields{
		"version":     Version,
		"commit":      GitCommit,
		"environment": cfg.App.Environment,
	}).Info("matchedge engine starting")

	if err := run(ctx, cfg, appLog); err != nil {
		appLog.WithError(err).Fatal("Engine stopped with error")
	}
	appLog.Info("matchedge engine shut down")
}

func run(ctx context.Context, cfg *config.Config, appLog *logrus.Logger) error {
	metrics.InitRegistry()
	if err := tracing.Initialize(tracing.Config{
		ServiceName:    cfg.App.Name,
		ServiceVersion: Version,
		Enabled:        cfg.Tracing.Enabled,
		SamplingRate:   cfg.Tracing.SamplingRate,
		DaemonAddr:     cfg.Tracing.DaemonAddr,
	}, appLog); err != nil {
		return err
	}

	stack, err := app.Open(ctx, cfg, appLog, app.AllBackends)
	if err != nil {
		return err
	}
	defer stack.Close()

	predictions, err := service.NewPredictionService(stack.Registry, stack.Builder, cfg, appLog, stack.ServiceOptions()...)
	if err != nil {
		return err
	}
	defer predictions.Close()

	leagues := cfg.Retraining.Leagues
	if len(leagues) == 0 && cfg.Serving.DefaultLeague != "" {
		leagues = []string{cfg.Serving.DefaultLeague}
	}
	predictions.Warm(ctx, leagues...)

	sched := scheduler.NewScheduler(appLog)
	if err := addJobs(cfg, stack, predictions, sched, leagues, appLog); err != nil {
		return err
	}
	if len(sched.Status()) > 0 {
		if err := sched.Start(); err != nil {
			return err
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				appLog.WithError(err).Warn("Scheduler stop failed")
			}
		}()
	} else {
		appLog.Info("No scheduled jobs configured")
	}

	healthServer := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Port:        cfg.Health.Port,
		Logger:      appLog,
		Checks:      stack.Checks(),
		Reporter: func(ctx context.Context) (interface{}, bool) {
			// Baseline fallback still answers predictions, so degraded is serving.
			return predictions.Health(ctx), true
		},
	})
	if err := healthServer.Start(ctx); err != nil {
		return err
	}
	healthServer.SetReady(true)

	if cfg.Health.GRPCPort > 0 {
		grpcServer := health.NewGRPCServer(healthServer, cfg.Health.GRPCPort, appLog)
		if err := grpcServer.Start(ctx); err != nil {
			return err
		}
	}

	if cfg.Metrics.Enabled {
		startMetricsServer(ctx, cfg.Metrics, appLog)
	}

	appLog.WithField("leagues", leagues).Info("Engine running")
	<-ctx.Done()
	appLog.Info("Shutdown signal received")
	healthServer.SetReady(false)
	return nil
}

func addJobs(cfg *config.Config, stack *app.Stack, predictions *service.PredictionService, sched *scheduler.Scheduler, leagues []string, appLog *logrus.Logger) error {
	if cfg.Retraining.Enabled && cfg.Retraining.Schedule != "" {
		if stack.Repos == nil {
			appLog.Warn("Retraining enabled without a database; skipping retraining job")
		} else {
			trainer, err := service.NewTrainingService(stack.Registry, stack.Builder, cfg, stack.Repos.Match, appLog)
			if err != nil {
				return err
			}
			err = sched.AddJob("retraining", cfg.Retraining.Schedule, 2*time.Hour, func(ctx context.Context) error {
				_, err := trainer.Retrain(ctx)
				return err
			})
			if err != nil {
				return err
			}
		}
	}

	if stack.Repos != nil && cfg.Retraining.PruneSchedule != "" {
		err := sched.AddJob("outcome-prune", cfg.Retraining.PruneSchedule, 10*time.Minute, func(ctx context.Context) error {
			_, err := service.PruneOutcomes(ctx, stack.Repos.Outcome, cfg.Retraining.OutcomeRetention(), time.Now().UTC(), appLog)
			return err
		})
		if err != nil {
			return err
		}
	}

	if cfg.OddsFeed.BaseURL != "" && cfg.OddsFeed.ResultsSchedule != "" && len(leagues) > 0 {
		feed := oddsfeed.NewClient(cfg.OddsFeed, appLog)
		var store service.MatchWriter = discardMatches{}
		if stack.Repos != nil {
			store = stack.Repos.Match
		}
		ingestion := service.NewIngestionService(feed, store, predictions, stack.Builder, appLog, 0)
		err := sched.AddJob("results-ingestion", cfg.OddsFeed.ResultsSchedule, 15*time.Minute, func(ctx context.Context) error {
			end := time.Now().UTC()
			_, err := ingestion.IngestResults(ctx, leagues, end.Add(-cfg.OddsFeed.ResultsLookback()), end)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func startMetricsServer(ctx context.Context, cfg config.MetricsConfig, appLog *logrus.Logger) {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		appLog.WithField("port", cfg.Port).Info("Metrics server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.WithError(err).Error("Metrics server error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
