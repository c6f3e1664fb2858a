// Package metrics exposes prometheus collectors for alignment runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts alignment runs by method and terminal status.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beamtune",
		Name:      "runs_total",
		Help:      "Alignment runs by method and terminal status.",
	}, []string{"method", "status"})

	// ProbesTotal counts motor/detector round-trips by method.
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beamtune",
		Name:      "probes_total",
		Help:      "Motor/detector probe round-trips by method.",
	}, []string{"method"})

	// RunDuration observes wall-clock run duration by method.
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "beamtune",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of alignment runs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
)
