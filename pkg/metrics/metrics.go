package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTP metrics
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botcontrol_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		},
		[]string{"path", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "botcontrol_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

// LoginAttempts counts login attempts by result (success, invalid, disabled, throttled, error)
var LoginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "botcontrol_login_attempts_total",
		Help: "Login attempts by result",
	},
	[]string{"result"},
)

// Service control metrics
var (
	CommandsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botcontrol_commands_published_total",
			Help: "Commands published to the worker by command and result",
		},
		[]string{"command", "result"},
	)

	HeartbeatsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botcontrol_heartbeats_received_total",
			Help: "Heartbeat messages consumed by outcome (ok, malformed)",
		},
		[]string{"outcome"},
	)

	LastHeartbeat = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "botcontrol_last_heartbeat_timestamp_seconds",
			Help: "Unix time of the last heartbeat received from the worker",
		},
	)
)

// CacheRequests counts cache lookups by cache name and result (hit, miss)
var CacheRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "botcontrol_cache_requests_total",
		Help: "Cache lookups by cache and result",
	},
	[]string{"cache", "result"},
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration)
	prometheus.MustRegister(LoginAttempts)
	prometheus.MustRegister(CommandsPublished, HeartbeatsReceived, LastHeartbeat)
	prometheus.MustRegister(CacheRequests)
}
