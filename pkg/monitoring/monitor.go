package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// AttemptsStarted outcome: created / resumed / abandoned
	AttemptsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_attempts_started_total",
			Help: "Start-exam requests that produced an attempt",
		},
		[]string{"outcome"},
	)

	// AccessDenied 按 errorType 统计报名/开考被拒
	AccessDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_access_denied_total",
			Help: "Registration and start-exam denials",
		},
		[]string{"operation", "error_type"},
	)

	Registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_registrations_total",
			Help: "Successful exam registrations",
		},
		[]string{"payment_status"},
	)

	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_submissions_total",
			Help: "Submitted attempts",
		},
		[]string{"qualified"},
	)

	ResultsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_results_published_total",
			Help: "Attempts whose published flag changed",
		},
		[]string{"action"},
	)

	CreditConsumeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_credit_consume_failures_total",
			Help: "Credits that could not be marked used after an attempt was created",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AttemptsStarted,
			AccessDenied,
			Registrations,
			Submissions,
			ResultsPublished,
			CreditConsumeFailures,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
