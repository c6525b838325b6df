package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backtest counter vectors
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchedge",
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by league and status",
	}, []string{"league", "status"})
)

// Backtest histograms and gauges
var (
	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "matchedge",
		Name:      "backtest_duration_seconds",
		Help:      "Duration of backtest runs in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})
	BacktestROI = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "matchedge",
		Name:      "backtest_roi",
		Help:      "Return on investment of the latest backtest per league",
	}, []string{"league"})
)

// RecordBacktestRun records a backtest run event.
// status should be one of: "success", "failure"
func RecordBacktestRun(league, status string, durationSeconds float64) {
	BacktestRunsTotal.WithLabelValues(league, status).Inc()
	BacktestDuration.Observe(durationSeconds)
}

// UpdateBacktestROI updates the latest backtest ROI for a league.
func UpdateBacktestROI(league string, roi float64) {
	BacktestROI.WithLabelValues(league).Set(roi)
}
