// Package metrics exposes Prometheus collectors for the check-in engine and
// the backend client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storypath_ticks_total",
		Help: "Check-in ticks by outcome",
	}, []string{"outcome"})
	CheckinsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storypath_checkins_total",
		Help: "Check-in submissions by result",
	}, []string{"result"})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "storypath_active_sessions",
		Help: "Mounted check-in sessions",
	})
	BackendRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storypath_backend_requests_total",
		Help: "StoryPath backend requests by operation and status class",
	}, []string{"op", "status"})
	BackendDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storypath_backend_duration_ms",
		Help:    "StoryPath backend request duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		CheckinsTotal,
		ActiveSessions,
		BackendRequestsTotal,
		BackendDurationMs,
	)
}

func Handler() http.Handler { return promhttp.Handler() }
