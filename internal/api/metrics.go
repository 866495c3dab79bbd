package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "welfareshield",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route pattern and status code",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "welfareshield",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "route"})

	profileResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "welfareshield",
		Subsystem: "profile",
		Name:      "resolutions_total",
		Help:      "Profile resolutions by entity type and outcome (ok, not_found, invalid, error)",
	}, []string{"entity_type", "outcome"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "welfareshield",
		Subsystem: "session",
		Name:      "active",
		Help:      "Session snapshots currently held in memory",
	})

	snapshotResets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "welfareshield",
		Subsystem: "session",
		Name:      "resets_total",
		Help:      "Snapshot resets requested through the API",
	})
)
