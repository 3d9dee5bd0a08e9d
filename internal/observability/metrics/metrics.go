package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service registry: HTTP server metrics plus counters for
// the adaptive workflow (routes taken, fallbacks, correction retries,
// hallucination flags, retrieval volumes).
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	turnsTotal        *prometheus.CounterVec
	turnRetries       *prometheus.HistogramVec
	webFallbacksTotal *prometheus.CounterVec
	fusedCandidates   *prometheus.HistogramVec
	gradedKept        *prometheus.HistogramVec
	ingestedChunks    *prometheus.HistogramVec
	ingestedDocsTotal *prometheus.CounterVec
	workflowDuration  *prometheus.HistogramVec
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "arag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arag",
			Subsystem: "workflow",
			Name:      "turns_total",
			Help:      "Completed chat turns by final route and hallucination flag.",
		},
		[]string{"service", "route", "hallucination"},
	)
	turnRetries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arag",
			Subsystem: "workflow",
			Name:      "correction_retries",
			Help:      "Distribution of hallucination-correction retries per turn.",
			Buckets:   []float64{0, 1, 2, 3},
		},
		[]string{"service"},
	)
	webFallbacksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arag",
			Subsystem: "workflow",
			Name:      "web_fallbacks_total",
			Help:      "Transitions into web search by trigger.",
		},
		[]string{"service", "trigger"},
	)
	fusedCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arag",
			Subsystem: "retrieval",
			Name:      "fused_candidates",
			Help:      "Fused ranking size per vectorstore retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	gradedKept := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arag",
			Subsystem: "retrieval",
			Name:      "graded_kept",
			Help:      "Documents surviving relevance grading per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	ingestedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arag",
			Subsystem: "ingest",
			Name:      "chunks",
			Help:      "Chunk count per ingested document.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
		},
		[]string{"service"},
	)
	ingestedDocsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arag",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total successfully ingested documents.",
		},
		[]string{"service"},
	)
	workflowDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arag",
			Subsystem: "workflow",
			Name:      "duration_seconds",
			Help:      "Chat turn duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "route"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		turnsTotal,
		turnRetries,
		webFallbacksTotal,
		fusedCandidates,
		gradedKept,
		ingestedChunks,
		ingestedDocsTotal,
		workflowDuration,
	)

	return &Metrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		turnsTotal:        turnsTotal,
		turnRetries:       turnRetries,
		webFallbacksTotal: webFallbacksTotal,
		fusedCandidates:   fusedCandidates,
		gradedKept:        gradedKept,
		ingestedChunks:    ingestedChunks,
		ingestedDocsTotal: ingestedDocsTotal,
		workflowDuration:  workflowDuration,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) RecordTurn(service, route, hallucination string, retries int, duration time.Duration) {
	m.turnsTotal.WithLabelValues(service, route, hallucination).Inc()
	m.turnRetries.WithLabelValues(service).Observe(float64(retries))
	m.workflowDuration.WithLabelValues(service, route).Observe(duration.Seconds())
}

func (m *Metrics) RecordWebFallback(service, trigger string) {
	m.webFallbacksTotal.WithLabelValues(service, trigger).Inc()
}

func (m *Metrics) RecordRetrieval(service string, fused, kept int) {
	m.fusedCandidates.WithLabelValues(service).Observe(float64(fused))
	m.gradedKept.WithLabelValues(service).Observe(float64(kept))
}

func (m *Metrics) RecordIngest(service string, chunks int) {
	m.ingestedDocsTotal.WithLabelValues(service).Inc()
	m.ingestedChunks.WithLabelValues(service).Observe(float64(chunks))
}

// WorkflowRecorder binds workflow-event metrics to a service label so the
// core workflow can report without knowing about prometheus.
type WorkflowRecorder struct {
	m       *Metrics
	service string
}

func (m *Metrics) WorkflowRecorder(service string) *WorkflowRecorder {
	return &WorkflowRecorder{m: m, service: service}
}

func (r *WorkflowRecorder) WebFallback(trigger string) {
	r.m.RecordWebFallback(r.service, trigger)
}

func (r *WorkflowRecorder) RetrievalSizes(fused, kept int) {
	r.m.RecordRetrieval(r.service, fused, kept)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
