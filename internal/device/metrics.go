package device

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Enumeration metrics
	enumerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metakit_device_enumerations_total",
			Help: "Total number of nvidia-smi enumerations by result",
		},
		[]string{"result"},
	)

	enumerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "metakit_device_enumeration_duration_seconds",
			Help:    "Duration of nvidia-smi invocations",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Selection metrics
	selections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metakit_device_selections_total",
			Help: "Total number of device selections by outcome",
		},
		[]string{"outcome"},
	)

	selectedDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metakit_device_selected",
			Help: "Number of devices returned by the last successful selection",
		},
	)
)
