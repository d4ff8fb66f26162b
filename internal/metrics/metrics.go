package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Run outcomes
const (
	RunCompleted = "completed"
	RunAborted   = "aborted"
	RunFailed    = "failed"
	RunLocked    = "locked"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinicflow_http_requests_total",
			Help: "Total admin API requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinicflow_http_request_duration_seconds",
			Help:    "Admin API request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	reminderRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinicflow_reminder_runs_total",
			Help: "Reminder runs by outcome",
		},
		[]string{"outcome"},
	)

	reminderAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinicflow_reminder_sms_attempts_total",
			Help: "SMS send attempts by provider and logged status",
		},
		[]string{"provider", "status"},
	)

	remindersSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinicflow_reminders_skipped_total",
			Help: "Candidates skipped by eligibility reason",
		},
		[]string{"reason"},
	)

	gatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinicflow_sms_gateway_latency_seconds",
			Help:    "Time spent in one provider call",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	lastRunCandidates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clinicflow_reminder_last_run_candidates",
			Help: "Candidates found by the most recent run",
		},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clinicflow_sms_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0 closed, 1 open, 2 half-open)",
		},
		[]string{"provider"},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinicflow_rate_limit_rejections_total",
			Help: "Admin API requests rejected by rate limiter",
		},
		[]string{"scope"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRun records how a reminder run ended
func RecordRun(outcome string) {
	reminderRuns.WithLabelValues(outcome).Inc()
}

// RecordAttempt records one logged SMS attempt
func RecordAttempt(provider, status string) {
	reminderAttempts.WithLabelValues(provider, status).Inc()
}

// RecordSkipped records a candidate that was not eligible yet
func RecordSkipped(reason string) {
	remindersSkipped.WithLabelValues(reason).Inc()
}

// RecordGatewayLatency records the duration of one provider call
func RecordGatewayLatency(provider string, d time.Duration) {
	gatewayLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// SetLastRunCandidates sets the candidate count of the latest run
func SetLastRunCandidates(n int) {
	lastRunCandidates.Set(float64(n))
}

// SetBreakerState publishes a circuit breaker state as its numeric value
func SetBreakerState(provider string, state int) {
	breakerState.WithLabelValues(provider).Set(float64(state))
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection(scope string) {
	rateLimitRejections.WithLabelValues(scope).Inc()
}

// Push sends the reminder metrics to a Prometheus Pushgateway. One-shot
// `reminders send` invocations exit before any scrape could see them.
func Push(url, job string) error {
	return push.New(url, job).
		Collector(reminderRuns).
		Collector(reminderAttempts).
		Collector(remindersSkipped).
		Collector(gatewayLatency).
		Collector(lastRunCandidates).
		Collector(breakerState).
		Push()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
