package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wrenchworks/cmms-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// work order engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	ordersCreated     *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	completions          prometheus.Counter
	sequenceExhausted    prometheus.Counter
	notificationsDropped prometheus.Counter
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

	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "work_orders_created_total",
		Help: "Work orders created, labelled by auto-assignment outcome",
	}, []string{"assigned"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "work_order_transitions_total",
		Help: "Status transitions applied",
	}, []string{"from", "to"})

	completions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "work_orders_completed_total",
		Help: "Work orders completed",
	})

	sequenceExhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "work_order_sequence_exhausted_total",
		Help: "Number allocation attempts rejected at the yearly cap",
	})

	notificationsDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_dropped_total",
		Help: "Notifications discarded because the delivery queue was full",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, ordersCreated, transitions, completions, sequenceExhausted, notificationsDropped, goroutines)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		ordersCreated:        ordersCreated,
		transitions:          transitions,
		completions:          completions,
		sequenceExhausted:    sequenceExhausted,
		notificationsDropped: notificationsDropped,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// WorkOrderCreated records a creation and whether a rule matched.
func (m *MetricsService) WorkOrderCreated(assigned bool) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(strconv.FormatBool(assigned)).Inc()
}

// StatusTransition records one applied transition.
func (m *MetricsService) StatusTransition(from, to models.WorkOrderStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
	if to == models.StatusCompleted {
		m.completions.Inc()
	}
}

// SequenceExhausted records a rejected allocation at the yearly cap.
func (m *MetricsService) SequenceExhausted() {
	if m == nil {
		return
	}
	m.sequenceExhausted.Inc()
}

// NotificationDropped records a notification discarded on a full queue.
func (m *MetricsService) NotificationDropped() {
	if m == nil {
		return
	}
	m.notificationsDropped.Inc()
}
