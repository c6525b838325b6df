package ml

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TrainingRunsTotal tracks training runs by status
	TrainingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchedge_training_runs_total",
			Help: "Total number of ensemble training runs",
		},
		[]string{"status"}, // success, insufficient_models, failure
	)

	// TrainingDuration tracks wall time of training runs
	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matchedge_training_duration_seconds",
			Help:    "Ensemble training duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// LearnerExclusionsTotal tracks base learners dropped from the bank
	LearnerExclusionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchedge_learner_exclusions_total",
			Help: "Total number of base learners excluded from a training run",
		},
		[]string{"learner"},
	)

	// OOFLogLoss tracks the latest out-of-fold log-loss per learner
	OOFLogLoss = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matchedge_oof_logloss",
			Help: "Out-of-fold log-loss of the most recent training run",
		},
		[]string{"learner"},
	)

	// SearchTrialsTotal tracks hyperparameter search trials
	SearchTrialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchedge_search_trials_total",
			Help: "Total number of hyperparameter search trials",
		},
		[]string{"learner"},
	)

	// PredictionCacheHitRatio tracks the settlement cache hit ratio
	PredictionCacheHitRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "matchedge_prediction_cache_hit_ratio",
			Help: "Served prediction cache hit ratio",
		},
	)
)
