// Package metrics provides the centralized Prometheus registry for the prediction engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchedge",
		Name:      "predictions_total",
		Help:      "Total predictions served by league and source (model or baseline)",
	}, []string{"league", "source"})
	PredictionErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchedge",
		Name:      "prediction_errors_total",
		Help:      "Total failed prediction requests by error kind",
	}, []string{"kind"})
	ValueBetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchedge",
		Name:      "value_bets_total",
		Help:      "Total value bets detected by tier",
	}, []string{"tier"})
	OutcomesSettledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchedge",
		Name:      "outcomes_settled_total",
		Help:      "Total settled outcomes by league and whether a calibrator consumed them",
	}, []string{"league", "routed"})
	SinkErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchedge",
		Name:      "sink_errors_total",
		Help:      "Total settled outcome sink failures by sink",
	}, []string{"sink"})
	RetrainingRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchedge",
		Name:      "retraining_runs_total",
		Help:      "Total scheduled retraining runs by league and result",
	}, []string{"league", "result"})
)

// Gauge metrics
var (
	LiveArtifacts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "matchedge",
		Name:      "live_artifacts",
		Help:      "Number of league artifacts currently held in memory",
	})
)

// Histogram metrics
var (
	PredictionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "matchedge",
		Name:      "prediction_latency_seconds",
		Help:      "Latency of prediction requests in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"league"})
	StakeFraction = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "matchedge",
		Name:      "stake_bankroll_fraction",
		Help:      "Recommended stake as a fraction of bankroll",
		Buckets:   []float64{0.0025, 0.005, 0.01, 0.02, 0.03, 0.04, 0.05},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(PredictionsTotal)
		registry.MustRegister(PredictionErrorsTotal)
		registry.MustRegister(ValueBetsTotal)
		registry.MustRegister(OutcomesSettledTotal)
		registry.MustRegister(SinkErrorsTotal)
		registry.MustRegister(RetrainingRunsTotal)

		registry.MustRegister(LiveArtifacts)

		registry.MustRegister(PredictionLatency)
		registry.MustRegister(StakeFraction)

		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(BacktestDuration)
		registry.MustRegister(BacktestROI)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler. It also exposes the collectors
// other packages register on the default registry.
func Handler() http.Handler {
	gatherers := prometheus.Gatherers{GetRegistry(), prometheus.DefaultGatherer}
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}

// RecordPrediction records a served prediction.
func RecordPrediction(league string, baseline bool, durationSeconds float64) {
	source := "model"
	if baseline {
		source = "baseline"
	}
	PredictionsTotal.WithLabelValues(league, source).Inc()
	PredictionLatency.WithLabelValues(league).Observe(durationSeconds)
}

// RecordPredictionError records a failed prediction request.
func RecordPredictionError(kind string) {
	PredictionErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordValueBet records a detected value bet.
func RecordValueBet(tier string) {
	ValueBetsTotal.WithLabelValues(tier).Inc()
}

// RecordStake records a recommended stake fraction.
func RecordStake(fraction float64) {
	StakeFraction.Observe(fraction)
}

// RecordOutcomeSettled records a settled outcome.
func RecordOutcomeSettled(league string, routed bool) {
	label := "false"
	if routed {
		label = "true"
	}
	OutcomesSettledTotal.WithLabelValues(league, label).Inc()
}

// RecordSinkError records a failed sink write.
func RecordSinkError(sink string) {
	SinkErrorsTotal.WithLabelValues(sink).Inc()
}

// RecordRetrainingRun records a scheduled retraining outcome.
func RecordRetrainingRun(league, result string) {
	RetrainingRunsTotal.WithLabelValues(league, result).Inc()
}

// UpdateLiveArtifacts sets the number of in-memory league artifacts.
func UpdateLiveArtifacts(count int) {
	LiveArtifacts.Set(float64(count))
}
