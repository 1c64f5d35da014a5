package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection lifecycle metrics
var (
	// ActiveConnections tracks currently open SSE connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_active_connections",
			Help: "Currently open SSE connections",
		},
	)

	// ConnectionsOpenedTotal tracks total connections opened
	ConnectionsOpenedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sse_connections_opened_total",
			Help: "Total SSE connections opened",
		},
	)

	// ConnectionsReplacedTotal tracks connections closed because the same
	// user opened a new one
	ConnectionsReplacedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sse_connections_replaced_total",
			Help: "Total SSE connections replaced by a reconnect of the same user",
		},
	)

	// ConnectionsClosedTotal tracks connection removals by reason
	ConnectionsClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_connections_closed_total",
			Help: "Total SSE connections closed by reason",
		},
		[]string{"reason"},
	)
)

// Close reasons used with ConnectionsClosedTotal.
const (
	ReasonExplicit    = "explicit"
	ReasonReplaced    = "replaced"
	ReasonSendFailure = "send_failure"
	ReasonTransport   = "transport_error"
	ReasonShutdown    = "shutdown"
)

// Delivery metrics
var (
	// EventsSentTotal tracks delivered events by type
	EventsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_events_sent_total",
			Help: "Total events delivered to clients by event type",
		},
		[]string{"type"},
	)

	// SendFailuresTotal tracks failed per-connection sends
	SendFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sse_send_failures_total",
			Help: "Total failed sends (slow or closed connections)",
		},
	)

	// FanOutDuration tracks time spent fanning one event out
	FanOutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sse_fanout_duration_seconds",
			Help:    "Duration of a single event fan-out in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)
)

// Heartbeat metrics
var (
	// HeartbeatTicksTotal tracks heartbeat scheduler ticks
	HeartbeatTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sse_heartbeat_ticks_total",
			Help: "Total heartbeat scheduler ticks",
		},
	)

	// HeartbeatDuration tracks time spent per heartbeat tick
	HeartbeatDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sse_heartbeat_duration_seconds",
			Help:    "Duration of a heartbeat tick in seconds",
			Buckets: []float64{.0001, .001, .01, .05, .1, .5, 1},
		},
	)
)

// Relay metrics
var (
	// RelayPublishedTotal tracks events forwarded to the relay channel
	RelayPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_published_total",
			Help: "Total events published to the relay channel",
		},
	)

	// RelayReceivedTotal tracks events received from other instances
	RelayReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_received_total",
			Help: "Total events received from the relay channel and dispatched locally",
		},
	)

	// RelaySkippedTotal tracks own-origin messages dropped by the subscriber
	RelaySkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_skipped_total",
			Help: "Total relay messages skipped because this instance published them",
		},
	)

	// RelayErrorsTotal tracks relay publish or decode errors
	RelayErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_errors_total",
			Help: "Total relay publish or decode errors",
		},
	)
)
