package calibration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts calibration cycles by league and result.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchedge_calibration_cycles_total",
			Help: "Calibration cycles by outcome (deployed or a rejection reason)",
		},
		[]string{"league", "result"},
	)

	// CurveBrier is the held-out Brier score of the live curve.
	CurveBrier = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matchedge_calibration_curve_brier",
			Help: "Held-out Brier score of the deployed calibration curve",
		},
		[]string{"league"},
	)

	// WindowSamples is the current rolling window size.
	WindowSamples = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matchedge_calibration_window_samples",
			Help: "Settled samples in the calibration window",
		},
		[]string{"league"},
	)
)
