package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bam_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bam_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Realtime metrics
	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bam_live_connections",
			Help: "Currently registered websocket connections",
		},
	)

	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bam_active_rooms",
			Help: "Rooms with at least one member",
		},
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bam_events_delivered_total",
			Help: "Real-time events delivered to connections",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bam_events_dropped_total",
			Help: "Real-time events that could not be delivered",
		},
		[]string{"reason"},
	)

	// Geofence metrics
	LocationUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bam_location_updates_total",
			Help: "Location updates by outcome (accepted, debounced, inaccurate)",
		},
		[]string{"outcome"},
	)

	ZoneTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bam_zone_transitions_total",
			Help: "Geofence transitions by kind (enter, exit)",
		},
		[]string{"kind"},
	)

	ProximityAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bam_proximity_alerts_total",
			Help: "Proximity alerts emitted after de-duplication",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bam_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bam_store_latency_seconds",
			Help:    "Durable store operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
		[]string{"op"},
	)

	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bam_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)
)
