package services

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upkeeper_request_total",
			Help: "Total HTTP API requests",
		},
		[]string{"route"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upkeeper_request_duration_seconds",
			Help:    "Duration of HTTP API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	daemonRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "upkeeper_daemon_restarts_total",
			Help: "Automatic and manual daemon restarts",
		},
	)

	daemonCrashes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "upkeeper_daemon_crashes_total",
			Help: "Daemon liveness losses observed by the monitor",
		},
	)

	tunnelReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "upkeeper_tunnel_reconnects_total",
			Help: "Tunnel reconnect attempts",
		},
	)

	activeDaemons = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "upkeeper_active_daemons",
			Help: "Daemons currently tracked by the supervisor",
		},
	)

	activeTunnels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "upkeeper_active_tunnels",
			Help: "Tunnels currently tracked by the supervisor",
		},
	)
)

// Local mirrors of the request counters, because the prometheus client
// offers no cheap way to read a counter back for the healthz summary.
var (
	totalRequests int64
	totalErrors   int64
)

func init() {
	prometheus.MustRegister(requestCount)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(daemonRestarts)
	prometheus.MustRegister(daemonCrashes)
	prometheus.MustRegister(tunnelReconnects)
	prometheus.MustRegister(activeDaemons)
	prometheus.MustRegister(activeTunnels)
}

// IncrementRequestCount records one handled HTTP request.
func IncrementRequestCount(route string) {
	requestCount.WithLabelValues(route).Inc()
	atomic.AddInt64(&totalRequests, 1)
}

// RecordRequestDuration records one request's handling time.
func RecordRequestDuration(route string, seconds float64) {
	requestDuration.WithLabelValues(route).Observe(seconds)
}

// IncrementErrorCount records one request that ended in a 4xx/5xx.
func IncrementErrorCount(route string) {
	atomic.AddInt64(&totalErrors, 1)
}

// GetTotalRequestCount returns the requests handled since startup.
func GetTotalRequestCount() int64 {
	return atomic.LoadInt64(&totalRequests)
}

// GetTotalErrorCount returns the failed requests since startup.
func GetTotalErrorCount() int64 {
	return atomic.LoadInt64(&totalErrors)
}
