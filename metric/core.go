package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all worker-level metrics
type Metrics struct {
	// Fetch interception metrics
	FetchesIntercepted *prometheus.CounterVec
	StrategyResults    *prometheus.CounterVec
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	NamespacesSwept    prometheus.Counter

	// Offline action queue metrics
	ActionsEnqueued *prometheus.CounterVec
	ActionsReplayed *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
	FlushCycles     *prometheus.CounterVec

	// Connectivity metrics
	ConnectivityState       prometheus.Gauge
	ConnectivityTransitions *prometheus.CounterVec

	// Push bridge metrics
	NotificationsShown   *prometheus.CounterVec
	NotificationsClicked *prometheus.CounterVec

	// NATS metrics
	NATSConnected prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all worker metrics
func NewMetrics() *Metrics {
	return &Metrics{
		FetchesIntercepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vibely",
				Subsystem: "fetch",
				Name:      "intercepted_total",
				Help:      "Total number of intercepted requests by strategy",
			},
			[]string{"strategy", "namespace"},
		),

		StrategyResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vibely",
				Subsystem: "fetch",
				Name:      "strategy_results_total",
				Help:      "Strategy execution results (cache_hit, network, fallback, offline_document, error)",
			},
			[]string{"strategy", "result"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vibely",
				Subsystem: "cachestore",
				Name:      "hits_total",
				Help:      "Cache hits by namespace purpose",
			},
			[]string{"purpose"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vibely",
				Subsystem: "cachestore",
				Name:      "misses_total",
				Help:      "Cache misses by namespace purpose",
			},
			[]string{"purpose"},
		),

		NamespacesSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "vibely",
				Subsystem: "cachestore",
				Name:      "namespaces_swept_total",
				Help:      "Stale cache namespaces deleted at activate",
			},
		),

		ActionsEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vibely",
				Subsystem: "queue",
				Name:      "actions_enqueued_total",
				Help:      "Offline actions enqueued by type",
			},
			[]string{"type"},
		),

		ActionsReplayed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vibely",
				Subsystem: "queue",
				Name:      "actions_replayed_total",
				Help:      "Offline action replay outcomes",
			},
			[]string{"type", "status"},
		),

		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "vibely",
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Number of actions awaiting replay",
			},
		),

		FlushCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vibely",
				Subsystem: "queue",
				Name:      "flush_cycles_total",
				Help:      "Queue flush cycles by outcome (drained, halted, empty)",
			},
			[]string{"outcome"},
		),

		ConnectivityState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "vibely",
				Subsystem: "connectivity",
				Name:      "online",
				Help:      "Connectivity state (1=online, 0=offline)",
			},
		),

		ConnectivityTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vibely",
				Subsystem: "connectivity",
				Name:      "transitions_total",
				Help:      "Connectivity transitions by direction",
			},
			[]string{"direction"},
		),

		NotificationsShown: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vibely",
				Subsystem: "push",
				Name:      "notifications_shown_total",
				Help:      "Notifications displayed by type",
			},
			[]string{"type"},
		),

		NotificationsClicked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vibely",
				Subsystem: "push",
				Name:      "notifications_clicked_total",
				Help:      "Notification clicks by type and action",
			},
			[]string{"type", "action"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "vibely",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection state (1=connected, 0=disconnected)",
			},
		),
	}
}
