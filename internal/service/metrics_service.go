package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// escalation sweeper.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	escalatedTotal  *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
	sweepFailures   prometheus.Counter
	reportJobsTotal *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	escalatedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grievances_escalated_total",
		Help: "Grievances escalated by the sweeper, labelled by target status",
	}, []string{"to"})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "escalation_sweep_duration_seconds",
		Help:    "Duration of escalation sweep runs",
		Buckets: prometheus.DefBuckets,
	})

	sweepFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "escalation_sweep_failures_total",
		Help: "Grievances that failed to escalate during sweeps",
	})

	reportJobsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_jobs_total",
		Help: "Report export jobs by terminal status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, escalatedTotal, sweepDuration, sweepFailures, reportJobsTotal, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		escalatedTotal:  escalatedTotal,
		sweepDuration:   sweepDuration,
		sweepFailures:   sweepFailures,
		reportJobsTotal: reportJobsTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordEscalation counts one sweeper-driven escalation.
func (m *MetricsService) RecordEscalation(to string) {
	if m == nil {
		return
	}
	m.escalatedTotal.WithLabelValues(to).Inc()
}

// ObserveSweep records the duration and failure count of one sweep run.
func (m *MetricsService) ObserveSweep(duration time.Duration, failed int) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
	if failed > 0 {
		m.sweepFailures.Add(float64(failed))
	}
}

// RecordReportJob counts a report job reaching a terminal status.
func (m *MetricsService) RecordReportJob(status string) {
	if m == nil {
		return
	}
	m.reportJobsTotal.WithLabelValues(status).Inc()
}
