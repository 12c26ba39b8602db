package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline holds the alerting pipeline collectors
type Pipeline struct {
	AlertsProcessed    *prometheus.CounterVec
	AlertsDeduplicated prometheus.Counter
	AlertsRateLimited  prometheus.Counter
	AlertsResolved     prometheus.Counter
	AlertsEscalated    prometheus.Counter
	Deliveries         *prometheus.CounterVec
	DeliveryDuration   prometheus.Histogram
	StoreFailures      *prometheus.CounterVec
}

// NewPipeline creates and registers the pipeline collectors. Duplicate
// registrations (repeated construction in tests) are tolerated.
func NewPipeline() *Pipeline {
	p := &Pipeline{
		AlertsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claudeflow_alerts_processed_total",
			Help: "Total number of critical errors processed by the alert manager",
		}, []string{"type", "severity"}),

		AlertsDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "claudeflow_alerts_deduplicated_total",
			Help: "Total number of occurrences merged into an existing alert",
		}),

		AlertsRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "claudeflow_alerts_rate_limited_total",
			Help: "Total number of alerts suppressed by the hourly rate limit",
		}),

		AlertsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "claudeflow_alerts_resolved_total",
			Help: "Total number of alerts marked resolved",
		}),

		AlertsEscalated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "claudeflow_alerts_escalated_total",
			Help: "Total number of alerts escalated after staying unresolved",
		}),

		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claudeflow_alert_deliveries_total",
			Help: "Total number of notification deliveries by channel and outcome",
		}, []string{"channel_type", "status"}),

		DeliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "claudeflow_alert_delivery_duration_seconds",
			Help:    "Time spent delivering one notification, including retries",
			Buckets: prometheus.DefBuckets,
		}),

		StoreFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claudeflow_alert_store_failures_total",
			Help: "Total number of alert store operations that failed open",
		}, []string{"operation"}),
	}

	collectors := []prometheus.Collector{
		p.AlertsProcessed,
		p.AlertsDeduplicated,
		p.AlertsRateLimited,
		p.AlertsResolved,
		p.AlertsEscalated,
		p.Deliveries,
		p.DeliveryDuration,
		p.StoreFailures,
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}

	return p
}
