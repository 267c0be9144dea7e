// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram

	// Planning metrics
	OffersValidated   prometheus.Counter
	OffersRejected    *prometheus.CounterVec
	OperationsPlanned prometheus.Counter
	PlanSkips         *prometheus.CounterVec
	Deferrals         prometheus.Counter

	// Execution metrics
	PurchasesTotal   prometheus.Counter
	PurchaseFailures *prometheus.CounterVec
	StarsSpent       prometheus.Counter
	SendLatency      prometheus.Histogram

	// Feed metrics
	FeedMessages   prometheus.Counter
	FeedReconnects prometheus.Counter
	NewOffersSeen  prometheus.Counter

	// Delivery metrics
	ReportChunksSent prometheus.Counter
	ReportFailures   prometheus.Counter

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "giftbuyer"
	}

	return &Metrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "runs_total",
			Help:      "Total number of autobuy runs by outcome",
		}, []string{"outcome"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "run_duration_seconds",
			Help:      "Full autobuy run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		OffersValidated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "planning",
			Name:      "offers_validated_total",
			Help:      "Total number of offers accepted by validation",
		}),
		OffersRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "planning",
			Name:      "offers_rejected_total",
			Help:      "Total number of offers rejected by validation, by reason",
		}, []string{"reason"}),
		OperationsPlanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "planning",
			Name:      "operations_planned_total",
			Help:      "Total number of purchase operations emitted by planning",
		}),
		PlanSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "planning",
			Name:      "plan_skips_total",
			Help:      "Total number of planning skips by reason",
		}, []string{"reason"}),
		Deferrals: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "planning",
			Name:      "deferrals_total",
			Help:      "Total number of lock deferrals recorded during planning",
		}),

		PurchasesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "purchases_total",
			Help:      "Total number of successful purchases",
		}),
		PurchaseFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "purchase_failures_total",
			Help:      "Total number of failed purchase attempts by code",
		}, []string{"code"}),
		StarsSpent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "stars_spent_total",
			Help:      "Total stars spent on successful purchases",
		}),
		SendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "send_latency_seconds",
			Help:      "Purchase port send latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		FeedMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Total number of offer feed messages received",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of offer feed reconnects",
		}),
		NewOffersSeen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "new_offers_total",
			Help:      "Total number of previously unseen offers in the feed",
		}),

		ReportChunksSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "report_chunks_sent_total",
			Help:      "Total number of report chunks dispatched",
		}),
		ReportFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "report_failures_total",
			Help:      "Total number of failed report deliveries",
		}),

		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp_seconds",
			Help:      "Unix timestamp of the last successful autobuy run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Default returns the process-wide metrics instance, registering it on first use.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewMetrics("")
	})
	return defaultMetrics
}
