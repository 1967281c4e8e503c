// Package metrics Prometheus 指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry 独立注册表，避免与默认注册表重复注册
var Registry = prometheus.NewRegistry()

var (
	HTTPInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fbads_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbads_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fbads_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbads_webhook_events_total",
			Help: "Stripe webhook events by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	SyncJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbads_sync_jobs_total",
			Help: "Facebook sync jobs by kind and final status.",
		},
		[]string{"kind", "status"},
	)
)

// webhook 处理结果
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPInFlight,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		WebhookEventsTotal,
		SyncJobsTotal,
	)
}

// Handler /metrics 处理器
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
