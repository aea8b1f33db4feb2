package observer

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "damage_assessor"

// Metrics owns a private prometheus registry for job and HTTP series
type Metrics struct {
	registry *prometheus.Registry

	jobEvents      *prometheus.CounterVec
	jobsInFlight   prometheus.Gauge
	jobDuration    *prometheus.HistogramVec
	queueLag       prometheus.Histogram
	severityScores prometheus.Histogram
	regionsTotal   *prometheus.CounterVec

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
}

// NewMetrics registers every series on a fresh registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	jobEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "events_total",
			Help:      "Job lifecycle events by type.",
		},
		[]string{"event"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Number of jobs currently processing.",
		},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Job processing duration in seconds by outcome.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status"},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job creation and processing start.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	severityScores := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "severity_score",
			Help:      "Distribution of aggregate severity scores.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
	)
	regionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "regions_total",
			Help:      "Detected damage regions by category.",
		},
		[]string{"category"},
	)
	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		},
	)

	registry.MustRegister(
		jobEvents, jobsInFlight, jobDuration, queueLag, severityScores, regionsTotal,
		requestTotal, requestDuration, requestInFlight,
	)

	return &Metrics{
		registry:        registry,
		jobEvents:       jobEvents,
		jobsInFlight:    jobsInFlight,
		jobDuration:     jobDuration,
		queueLag:        queueLag,
		severityScores:  severityScores,
		regionsTotal:    regionsTotal,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
	}
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterQueueGauges exports worker queue depth and capacity from fn
func (m *Metrics) RegisterQueueGauges(depth, capacity func() float64) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "queue_depth",
			Help:      "Jobs waiting for a worker.",
		}, depth),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "queue_capacity",
			Help:      "Maximum number of waiting jobs.",
		}, capacity),
	)
}

// RequestStarted tracks one in-flight request; call the returned func when done
func (m *Metrics) RequestStarted() func(method, path string, status int) {
	start := time.Now()
	m.requestInFlight.Inc()
	return func(method, path string, status int) {
		m.requestInFlight.Dec()
		m.requestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// MetricsObserver turns job events into prometheus series
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver(metrics *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: metrics}
}

// OnEvent handles job events by updating series
func (o *MetricsObserver) OnEvent(_ context.Context, event JobEvent) {
	m := o.metrics
	if event.EventType != JobProgress {
		m.jobEvents.WithLabelValues(string(event.EventType)).Inc()
	}

	switch event.EventType {
	case JobStarted:
		m.jobsInFlight.Inc()
		m.queueLag.Observe(event.QueueLag.Seconds())
	case JobCompleted:
		m.jobsInFlight.Dec()
		m.jobDuration.WithLabelValues("completed").Observe(event.ProcessingTime.Seconds())
		m.severityScores.Observe(event.SeverityScore)
		for category, n := range event.RegionCounts {
			m.regionsTotal.WithLabelValues(category).Add(float64(n))
		}
	case JobFailed:
		if event.WasProcessing {
			m.jobsInFlight.Dec()
		}
		m.jobDuration.WithLabelValues("failed").Observe(event.ProcessingTime.Seconds())
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}
