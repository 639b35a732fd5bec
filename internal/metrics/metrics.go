// Package metrics exposes prometheus gauges/counters/histograms for the
// reference HTTP harness around the deterministic core. The core itself
// never imports this package — metrics are an ambient transport-layer
// concern, recorded by internal/middleware and internal/handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ==========================================================================
	// HTTP Metrics
	// ==========================================================================
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// ==========================================================================
	// Persistence Metrics
	// ==========================================================================
	SnapshotSaveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_save_total",
			Help: "Total number of core snapshot saves",
		},
		[]string{"backend", "status"},
	)

	SnapshotSaveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_save_duration_seconds",
			Help:    "Snapshot save duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"backend"},
	)

	SnapshotSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapshot_size_bytes",
			Help:    "Size of the serialized core snapshot",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12),
		},
	)

	// ==========================================================================
	// Simulation tick metrics (core.Core.MonthTick/FrameTick/HourTick)
	// ==========================================================================
	TickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tick_duration_seconds",
			Help:    "Duration of a core tick by kind (month, frame, hour)",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"kind"},
	)

	DealsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "finance_deals_active_total",
			Help: "Number of active finance deals",
		},
	)

	RepossessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finance_repossessions_total",
			Help: "Total number of vehicle/land repossessions",
		},
	)

	VehiclesTrackedTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reliability_vehicles_tracked_total",
			Help: "Number of vehicles under reliability tracking",
		},
	)

	MalfunctionsActiveTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reliability_malfunctions_active_total",
			Help: "Number of vehicles currently in an active malfunction",
		},
	)

	SearchesActiveTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketplace_searches_active_total",
			Help: "Number of in-progress marketplace searches",
		},
	)

	ListingsGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_listings_generated_total",
			Help: "Total number of listings surfaced by completed searches",
		},
	)

	RestorationsActiveTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "service_restorations_active_total",
			Help: "Number of in-progress service-truck restorations",
		},
	)

	CreditScoreDistribution = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "credit_score_distribution",
			Help:    "Distribution of farm credit scores on RecordEvent",
			Buckets: []float64{300, 400, 500, 580, 620, 670, 700, 740, 780, 800, 850},
		},
	)

	// ==========================================================================
	// SSE Metrics
	// ==========================================================================
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	SSEMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_messages_sent_total",
			Help: "Total SSE messages sent",
		},
		[]string{"event_type"},
	)

	SSESubscribersPerFarm = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sse_subscribers_per_farm",
			Help:    "Number of SSE subscribers reached per broadcast notification",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	// ==========================================================================
	// Request dispatch metrics (internal/events.Dispatcher)
	// ==========================================================================
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total number of dispatched client requests",
		},
		[]string{"kind", "status"}, // status: ok, rejected
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_errors_total",
			Help: "Total number of rejected requests by error kind",
		},
		[]string{"kind", "error_kind"},
	)
)
