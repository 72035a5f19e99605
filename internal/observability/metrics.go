package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	paymentsTotal     *prometheus.CounterVec
	receiptsCancelled prometheus.Counter
	overdueGauge      prometheus.Gauge
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scholaris_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scholaris_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scholaris_fee_payments_total",
		Help: "Fee payments recorded, by payment mode.",
	}, []string{"mode"})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scholaris_fee_receipts_cancelled_total",
		Help: "Fee receipts cancelled.",
	})
	overdue := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scholaris_fee_installments_overdue",
		Help: "Unpaid installments past due, as of the last scan.",
	})
	registry.MustRegister(requests, duration, payments, cancelled, overdue)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		paymentsTotal:     payments,
		receiptsCancelled: cancelled,
		overdueGauge:      overdue,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// PaymentRecorded counts an accepted fee payment.
func (m *Metrics) PaymentRecorded(mode string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(mode).Inc()
}

// ReceiptCancelled counts a receipt cancellation.
func (m *Metrics) ReceiptCancelled() {
	if m == nil {
		return
	}
	m.receiptsCancelled.Inc()
}

// SetOverdueInstallments publishes the latest overdue scan result.
func (m *Metrics) SetOverdueInstallments(n int) {
	if m == nil {
		return
	}
	m.overdueGauge.Set(float64(n))
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
