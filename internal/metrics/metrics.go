// Package metrics holds the Prometheus collectors shared by the server's
// components. Collectors register with the default registry on package load
// and are exposed through Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LiveConnections tracks registered live-channel connections
	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uav_live_connections",
		Help: "Live-channel connections currently registered",
	})

	// Broadcasts counts fan-out operations by envelope type
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uav_live_broadcasts_total",
		Help: "Broadcasts sent to live-channel connections by envelope type",
	}, []string{"type"})

	// SendFailures counts per-connection delivery failures by reason
	SendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uav_live_send_failures_total",
		Help: "Per-connection delivery failures by reason",
	}, []string{"reason"})

	// InboundMessages counts client messages by type and outcome
	InboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uav_live_inbound_messages_total",
		Help: "Inbound live-channel messages by type and result",
	}, []string{"type", "result"})

	// RelayFrames counts cross-instance relay frames by direction and result
	RelayFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uav_relay_frames_total",
		Help: "Relay frames by direction (published, received, skipped) and result",
	}, []string{"direction", "result"})

	// TelemetryMirrored counts telemetry points written to the time-series sink
	TelemetryMirrored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uav_telemetry_mirror_points_total",
		Help: "Telemetry points written to the time-series sink by result",
	}, []string{"result"})

	// HTTPRequestDuration tracks REST latency by route and status
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uav_http_request_duration_seconds",
		Help:    "REST request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	}, []string{"method", "route", "status"})
)

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
