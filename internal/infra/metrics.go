package infra

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP request processing in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// Domain metrics
	MeasurementsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "measurements_created_total",
		Help: "Total number of measurements persisted",
	})
	PublishErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publish_errors_total",
		Help: "Total number of failed downstream publications",
	}, []string{"sink"})
	MQTTMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mqtt_messages_total",
		Help: "Total number of MQTT messages received, by outcome",
	}, []string{"result"})

	// Database metrics
	DBQueryDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database operations in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	registerOnce      sync.Once
	metricsServerOnce sync.Once
)

func init() {
	InitMetrics()
}

// InitMetrics registers all Prometheus collectors used by the application.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			MeasurementsCreatedTotal,
			PublishErrorsTotal,
			MQTTMessagesTotal,
			DBQueryDurationSeconds,
		)
	})
}

// Handler returns an HTTP handler that exposes the registered Prometheus metrics.
func Handler() http.Handler {
	InitMetrics()
	return promhttp.Handler()
}

// StartMetricsServer exposes Prometheus metrics on the given port at /metrics.
// An empty port disables the server.
func StartMetricsServer(port string, logger *Logger) {
	if port == "" {
		return
	}
	InitMetrics()
	metricsServerOnce.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf(context.Background(), "metrics server error: %v", err)
			}
		}()
	})
}

// HTTPMiddleware instruments HTTP handlers with request/latency metrics.
// The route resolver is called after the handler ran so routers that fill in
// the matched pattern during dispatch can be used.
func HTTPMiddleware(routeResolver func(*http.Request) string) func(http.Handler) http.Handler {
	InitMetrics()
	if routeResolver == nil {
		routeResolver = func(r *http.Request) string {
			return r.URL.Path
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			defer func() {
				route := routeResolver(r)
				if route == "" {
					route = "unmatched"
				}
				HTTPRequestDurationSeconds.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
				HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.Status())).Inc()
			}()

			next.ServeHTTP(recorder, r)
		})
	}
}

// ObserveDBQuery records the duration of a database operation.
func ObserveDBQuery(operation string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	DBQueryDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncMeasurementsCreated increments the persisted measurement counter.
func IncMeasurementsCreated() {
	MeasurementsCreatedTotal.Inc()
}

// IncPublishErrors counts a failed publication for the given sink.
func IncPublishErrors(sink string) {
	PublishErrorsTotal.WithLabelValues(sink).Inc()
}

// IncMQTTMessages counts an MQTT message by processing result.
func IncMQTTMessages(result string) {
	MQTTMessagesTotal.WithLabelValues(result).Inc()
}

// statusRecorder captures the response status code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Status() int {
	return r.status
}
