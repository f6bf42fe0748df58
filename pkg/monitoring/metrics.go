package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Admission operation metrics
	admissionOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_operations_total",
			Help: "Total number of admission core operations",
		},
		[]string{"operation", "status"},
	)

	admissionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_errors_total",
			Help: "Total number of admission errors by type",
		},
		[]string{"operation", "error_type"},
	)

	assignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignments_total",
			Help: "Total number of assignment rounds by outcome",
		},
		[]string{"outcome"},
	)

	slotBookings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "current_slot_bookings",
			Help: "Bookings recorded against the current slot",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		admissionOperationsTotal,
		admissionErrorsTotal,
		assignmentsTotal,
		slotBookings,
	)
}

// RecordOperation records an admission core operation outcome
func RecordOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	admissionOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordError records an admission error by taxonomy type
func RecordError(operation, errorType string) {
	admissionErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordAssignment records an assignment round outcome
// (assigned, no_requests, no_candidate, emergency)
func RecordAssignment(outcome string) {
	assignmentsTotal.WithLabelValues(outcome).Inc()
}

// SetCurrentBookings updates the current slot booking gauge
func SetCurrentBookings(bookings uint8) {
	slotBookings.Set(float64(bookings))
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the response status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments HTTP handlers with request metrics
func Middleware(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(recorder.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(duration)
	})
}
