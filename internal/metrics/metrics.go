package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all Relayworks metrics
const namespace = "relayworks"

// Registry is the Prometheus registry exposed on /metrics.
var Registry = prometheus.NewRegistry()

// AppInfo exposes build information as labels (value is always 1).
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// RealtimeConnections tracks currently open websocket connections.
var RealtimeConnections = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_connections",
		Help:      "Number of websocket connections currently admitted",
	},
)

// RealtimeHandshakeRejected counts handshakes refused before admission.
var RealtimeHandshakeRejected = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_handshake_rejected_total",
		Help:      "Websocket handshakes rejected before the connection was admitted",
	},
	[]string{"reason"},
)

// RealtimeEventsPublished counts envelopes published to the backplane.
var RealtimeEventsPublished = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_events_published_total",
		Help:      "Events published to the pub/sub backplane",
	},
	[]string{"event"},
)

// RealtimeEventsDelivered counts pushes queued onto local connections.
var RealtimeEventsDelivered = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_events_delivered_total",
		Help:      "Events delivered to local websocket connections",
	},
	[]string{"event"},
)

// AuthTokenRotations counts refresh-token rotation outcomes.
var AuthTokenRotations = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_token_rotations_total",
		Help:      "Refresh token rotation attempts by outcome",
	},
	[]string{"outcome"},
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Init records build metadata. Call once at startup.
func Init(version, commit, buildDate string) {
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
