package infrastructure

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitovidale/editia-orchestrator/domain"
)

// Metrics holds the orchestrator's Prometheus collectors on a private registry.
type Metrics struct {
	registry         *prometheus.Registry
	submissions      *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	upstreamFailures *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "editia",
			Name:      "video_submissions_total",
			Help:      "Video generation submissions by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "editia",
			Name:      "render_transitions_total",
			Help:      "Render status transitions applied, by target status and source.",
		}, []string{"status", "source"}),
		upstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "editia",
			Name:      "upstream_failures_total",
			Help:      "Failed calls to text-generation and render services.",
		}, []string{"service", "operation"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "editia",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.submissions,
		m.transitions,
		m.upstreamFailures,
		m.requestDuration,
	)
	return m
}

func (m *Metrics) ObserveSubmission(outcome string) {
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTransition(status domain.RenderStatus, source string) {
	m.transitions.WithLabelValues(string(status), source).Inc()
}

func (m *Metrics) ObserveUpstreamFailure(service, operation string) {
	m.upstreamFailures.WithLabelValues(service, operation).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request latency labelled by the matched route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
