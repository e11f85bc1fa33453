// Package metrics exposes prometheus instrumentation for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nostrelay_events_accepted_total",
			Help: "Total number of events that passed validation",
		},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nostrelay_events_rejected_total",
			Help: "Total number of events rejected, by reason",
		},
		[]string{"reason"},
	)

	ValidationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nostrelay_validation_duration_seconds",
			Help:    "Time taken to validate events",
			Buckets: prometheus.DefBuckets,
		},
	)

	PeerConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nostrelay_peer_connections",
			Help: "Number of currently open peer connections",
		},
	)
)
