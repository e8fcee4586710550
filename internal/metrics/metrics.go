// Package metrics defines the Prometheus collectors for the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hub metrics
var (
	// HubConnectedSessions tracks the number of live WebSocket sessions.
	HubConnectedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_sessions",
			Help: "Number of live WebSocket sessions",
		},
	)

	// HubFramesTotal tracks inbound frames by kind and outcome.
	HubFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_frames_total",
			Help: "Inbound frames by kind and outcome (ok/error)",
		},
		[]string{"kind", "outcome"},
	)

	// HubBroadcastsTotal tracks outbound broadcast fan-outs by frame kind.
	HubBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_broadcasts_total",
			Help: "Broadcast fan-outs by frame kind",
		},
		[]string{"kind"},
	)

	// HubSlowSessionsEvicted tracks sessions dropped for failed delivery.
	HubSlowSessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_sessions_evicted_total",
			Help: "Sessions removed because frame delivery failed or lagged",
		},
	)

	// HubNotesLive tracks the current size of the Note Store.
	HubNotesLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_notes_live",
			Help: "Current number of notes in the in-memory store",
		},
	)
)

// Persistence metrics
var (
	// PersistQueueDepth tracks pending operations awaiting flush.
	PersistQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "persist_queue_depth",
			Help: "Pending persistence operations awaiting flush",
		},
	)

	// PersistOpsDroppedTotal tracks operations dropped at queue capacity.
	PersistOpsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "persist_ops_dropped_total",
			Help: "Persistence operations dropped because the queue was full",
		},
	)

	// PersistFlushesTotal tracks flush cycles by status.
	PersistFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persist_flushes_total",
			Help: "Flush cycles by status (ok/error)",
		},
		[]string{"status"},
	)

	// PersistOpsFlushedTotal tracks operations applied to the durable store.
	PersistOpsFlushedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persist_ops_flushed_total",
			Help: "Operations applied to the durable store by kind",
		},
		[]string{"kind"},
	)

	// PersistFlushDuration tracks flush cycle latency in seconds.
	PersistFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "persist_flush_duration_seconds",
			Help:    "Flush cycle duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)

// WebSocket transport metrics
var (
	// WebSocketPingFailures tracks failed heartbeat probes.
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Heartbeat probes that failed to send",
		},
	)

	// WebSocketIdleDisconnects tracks sessions closed for inactivity.
	WebSocketIdleDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_idle_disconnects_total",
			Help: "Sessions closed after exceeding the idle timeout",
		},
	)

	// WebSocketConnectionsRejected tracks upgrade requests turned away.
	WebSocketConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "WebSocket upgrade requests rejected by reason",
		},
		[]string{"reason"},
	)
)

// Storage metrics
var (
	// StorageErrorsTotal tracks durable store failures by operation.
	StorageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_errors_total",
			Help: "Durable store failures by operation",
		},
		[]string{"operation"},
	)
)
