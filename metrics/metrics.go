// Package metrics exposes ingest and HTTP counters for Prometheus.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flyer"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	payloads      *prometheus.CounterVec
	dropped       prometheus.Counter
	malformed     prometheus.Counter
	records       prometheus.Counter
	unknownKeys   prometheus.Counter
	formatErrors  prometheus.Counter
	stateKeys     prometheus.Gauge
	brokerUp      *prometheus.GaugeVec
	streamClients prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		payloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_received_total",
			Help:      "Feed payloads received by source.",
		}, []string{"source"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_dropped_total",
			Help:      "Payloads dropped because the ingest queue was full.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_malformed_total",
			Help:      "Payloads rejected as malformed.",
		}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_applied_total",
			Help:      "Raw records merged into the session state.",
		}),
		unknownKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_unknown_total",
			Help:      "Records whose key is not in the unit catalog.",
		}),
		formatErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "format_errors_total",
			Help:      "Records that could not be formatted for display.",
		}),
		stateKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state_keys",
			Help:      "Number of keys in the raw session state.",
		}),
		brokerUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_connected",
			Help:      "Feed connection state (1 connected, 0 disconnected).",
		}, []string{"transport"}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected websocket clients.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.payloads,
		m.dropped,
		m.malformed,
		m.records,
		m.unknownKeys,
		m.formatErrors,
		m.stateKeys,
		m.brokerUp,
		m.streamClients,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the private registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Flush keeps streaming responses working through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the websocket upgrader take over the connection.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func (m *Metrics) PayloadReceived(source string) {
	if m == nil {
		return
	}
	m.payloads.WithLabelValues(source).Inc()
}

func (m *Metrics) PayloadDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) PayloadMalformed() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

// RecordsApplied counts n merged records, unknown of which had no catalog
// entry.
func (m *Metrics) RecordsApplied(n, unknown int) {
	if m == nil {
		return
	}
	m.records.Add(float64(n))
	m.unknownKeys.Add(float64(unknown))
}

func (m *Metrics) FormatErrors(n int) {
	if m == nil {
		return
	}
	m.formatErrors.Add(float64(n))
}

func (m *Metrics) SetStateKeys(n int) {
	if m == nil {
		return
	}
	m.stateKeys.Set(float64(n))
}

func (m *Metrics) SetConnected(transport string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.brokerUp.WithLabelValues(transport).Set(v)
}

func (m *Metrics) SetStreamClients(n int) {
	if m == nil {
		return
	}
	m.streamClients.Set(float64(n))
}
