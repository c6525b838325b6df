package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PromotionsTotal counts promotion decisions by league and result.
	PromotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchedge_registry_promotions_total",
			Help: "Artifact promotion decisions",
		},
		[]string{"league", "result"},
	)

	// ArtifactLoadFailuresTotal counts live artifacts that could not be loaded.
	ArtifactLoadFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchedge_registry_load_failures_total",
			Help: "Live artifact load failures",
		},
		[]string{"league"},
	)
)
