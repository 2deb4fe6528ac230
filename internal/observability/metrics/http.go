package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrieveRequestsTotal  *prometheus.CounterVec
	retrieveFallbackTotal  *prometheus.CounterVec
	retrievePartialTotal   *prometheus.CounterVec
	retrievedDocuments     *prometheus.HistogramVec
	retrieveStageDuration  *prometheus.HistogramVec

	insightRequestsTotal *prometheus.CounterVec
	insightCacheTotal    *prometheus.CounterVec
	insightDuration      *prometheus.HistogramVec
	insightDegradedTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rie",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rie",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rie",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrieveRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rie",
			Subsystem: "retrieve",
			Name:      "requests_total",
			Help:      "Total completed retrieve operations.",
		},
		[]string{"service"},
	)
	retrieveFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rie",
			Subsystem: "retrieve",
			Name:      "fallback_total",
			Help:      "Total retrieve operations that triggered the broadening fallback.",
		},
		[]string{"service"},
	)
	retrievePartialTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rie",
			Subsystem: "retrieve",
			Name:      "partial_total",
			Help:      "Total retrieve operations that degraded to a single retriever.",
		},
		[]string{"service"},
	)
	retrievedDocuments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rie",
			Subsystem: "retrieve",
			Name:      "documents",
			Help:      "Distribution of grouped documents returned per retrieve operation.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)
	retrieveStageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rie",
			Subsystem: "retrieve",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage retrieve pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	insightRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rie",
			Subsystem: "insights",
			Name:      "requests_total",
			Help:      "Total completed insight requests by kind.",
		},
		[]string{"service", "kind"},
	)
	insightCacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rie",
			Subsystem: "insights",
			Name:      "cache_total",
			Help:      "Total insight cache lookups by outcome.",
		},
		[]string{"service", "outcome"},
	)
	insightDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rie",
			Subsystem: "insights",
			Name:      "duration_seconds",
			Help:      "Insight generation duration in seconds by kind.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "kind"},
	)
	insightDegradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rie",
			Subsystem: "insights",
			Name:      "degraded_total",
			Help:      "Total insight tasks that fell back to their documented degraded value (LLM timeout or error).",
		},
		[]string{"service", "kind"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrieveRequestsTotal,
		retrieveFallbackTotal,
		retrievePartialTotal,
		retrievedDocuments,
		retrieveStageDuration,
		insightRequestsTotal,
		insightCacheTotal,
		insightDuration,
		insightDegradedTotal,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		retrieveRequestsTotal: retrieveRequestsTotal,
		retrieveFallbackTotal: retrieveFallbackTotal,
		retrievePartialTotal:  retrievePartialTotal,
		retrievedDocuments:    retrievedDocuments,
		retrieveStageDuration: retrieveStageDuration,
		insightRequestsTotal:  insightRequestsTotal,
		insightCacheTotal:     insightCacheTotal,
		insightDuration:       insightDuration,
		insightDegradedTotal:  insightDegradedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
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
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/retrieve"):
		return "/v1/retrieve"
	case strings.HasPrefix(path, "/v1/insights"):
		return "/v1/insights"
	default:
		return path
	}
}

// RecordRetrieve records one completed retrieve operation: document count,
// whether the fallback controller ran, and whether either retriever
// degraded to partial results.
func (m *HTTPServerMetrics) RecordRetrieve(service string, documentCount int, fallbackUsed, partial bool) {
	m.retrieveRequestsTotal.WithLabelValues(service).Inc()
	m.retrievedDocuments.WithLabelValues(service).Observe(float64(documentCount))
	if fallbackUsed {
		m.retrieveFallbackTotal.WithLabelValues(service).Inc()
	}
	if partial {
		m.retrievePartialTotal.WithLabelValues(service).Inc()
	}
}

func (m *HTTPServerMetrics) RecordRetrieveStage(service, stage string, duration time.Duration) {
	m.retrieveStageDuration.WithLabelValues(service, stage).Observe(duration.Seconds())
}

// RecordInsight records one completed insights request under its requested
// kind: whether it was served from cache, and its duration when freshly
// computed.
func (m *HTTPServerMetrics) RecordInsight(service, kind string, duration time.Duration, cacheHit bool) {
	m.insightRequestsTotal.WithLabelValues(service, kind).Inc()
	outcome := "miss"
	if cacheHit {
		outcome = "hit"
	}
	m.insightCacheTotal.WithLabelValues(service, outcome).Inc()
	if !cacheHit {
		m.insightDuration.WithLabelValues(service, kind).Observe(duration.Seconds())
	}
}

func (m *HTTPServerMetrics) RecordInsightDegraded(service, kind string) {
	m.insightDegradedTotal.WithLabelValues(service, kind).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
