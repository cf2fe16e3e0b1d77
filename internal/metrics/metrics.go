// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bedrock_status"

var (
	// QueryTotal counts status queries by result kind (ok, timeout, decode, transport, ...).
	QueryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "query_total",
		Help:      "Total number of status queries by result",
	}, []string{"result"})

	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_duration_seconds",
		Help:      "Time spent waiting for status replies",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	Online = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "online",
		Help:      "Whether the last query got a valid reply",
	})

	Players = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "players",
		Help:      "Players online reported by the server",
	})

	MaxPlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "max_players",
		Help:      "Player limit reported by the server",
	})

	// PresenceUpdates counts presence publish attempts by result (ok, error, skipped).
	PresenceUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "presence_updates_total",
		Help:      "Total number of presence publish attempts by result",
	}, []string{"result"})
)

func init() {
	// Register label values so that counters are present even when zero.
	for _, result := range []string{"ok", "timeout", "decode", "transport"} {
		QueryTotal.WithLabelValues(result)
	}
	for _, result := range []string{"ok", "error", "skipped"} {
		PresenceUpdates.WithLabelValues(result)
	}
}
