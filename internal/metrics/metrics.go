package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebSocket connection metrics
var (
	// ConnectedClients tracks currently connected WebSocket clients
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webchat_connected_clients",
			Help: "Number of currently connected WebSocket clients",
		},
	)

	// ConnectionsTotal tracks WebSocket connection attempts by status
	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webchat_connections_total",
			Help: "Total WebSocket connection attempts by status",
		},
		[]string{"status"},
	)

	// DisconnectionsTotal tracks WebSocket disconnections by reason
	DisconnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webchat_disconnections_total",
			Help: "Total WebSocket disconnections by reason",
		},
		[]string{"reason"},
	)
)

// Message flow metrics
var (
	// MessagesTotal tracks messages accepted from clients and published to the bus
	MessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webchat_messages_total",
			Help: "Total number of messages published to the broadcast bus",
		},
	)

	// DroppedMessagesTotal tracks inbound messages dropped by reason
	DroppedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webchat_dropped_messages_total",
			Help: "Total inbound messages dropped by reason",
		},
		[]string{"reason"},
	)

	// BusReceivedTotal tracks messages delivered by the bus listener
	BusReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webchat_bus_received_total",
			Help: "Total messages received from the broadcast bus",
		},
	)

	// BroadcastDuration tracks time to fan a bus message out to all local peers
	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webchat_broadcast_duration_seconds",
			Help:    "Time to fan one bus message out to all local peers",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// PeerSendOutcomes tracks per-peer send results during fan-out
	PeerSendOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webchat_peer_send_outcomes_total",
			Help: "Per-peer send outcomes during fan-out (ok/already_closed/timeout/internal_error)",
		},
		[]string{"outcome"},
	)
)

// Redis metrics, populated by the client hooks
var (
	// RedisOpsTotal tracks total Redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks Redis connection errors
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// History metrics
var (
	// HistoryAppendsTotal tracks history append attempts by status
	HistoryAppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webchat_history_appends_total",
			Help: "Total history append attempts by status",
		},
		[]string{"status"},
	)
)
