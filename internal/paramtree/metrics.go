package paramtree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Override metrics
	overridesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metakit_paramtree_overrides_total",
			Help: "Total number of successful parameter overrides",
		},
		[]string{"mode"},
	)

	reboundLeaves = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metakit_paramtree_rebound_leaves_total",
			Help: "Total number of parameter slots rebound by overrides",
		},
	)

	overrideErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metakit_paramtree_override_errors_total",
			Help: "Total number of rejected overrides by error code",
		},
		[]string{"code"},
	)

	// Hot-swap metrics
	hotSwapTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metakit_paramtree_hotswap_transitions_total",
			Help: "Total number of hot-swap transitions by target state",
		},
		[]string{"state"},
	)
)
