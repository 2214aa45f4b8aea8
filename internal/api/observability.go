package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

var (
	reqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "grc",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	reqTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "grc", Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"method", "path", "status"},
	)
	mutationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "grc", Name: "record_mutations_total", Help: "Successful record writes by collection and operation"},
		[]string{"collection", "op"},
	)
	refRejectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "grc", Name: "reference_rejections_total", Help: "Writes rejected because a linked record did not resolve"},
		[]string{"resource"},
	)
	authFailureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "grc", Name: "auth_failures_total", Help: "Rejected logins and registrations by reason"},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(reqDuration, reqTotal, mutationTotal, refRejectTotal, authFailureTotal)
}

// MetricsMiddleware records basic HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		dur := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		observer := reqDuration.WithLabelValues(c.Request.Method, path, status)
		// attach exemplar with trace_id if present
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			if eo, ok := observer.(prometheus.ExemplarObserver); ok {
				eo.ObserveWithExemplar(dur, prometheus.Labels{"trace_id": sc.TraceID().String()})
			} else {
				observer.Observe(dur)
			}
		} else {
			observer.Observe(dur)
		}
		reqTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// RecordMutation counts one successful write.
func RecordMutation(collection, op string) { mutationTotal.WithLabelValues(collection, op).Inc() }

func recordRefReject(resource string) { refRejectTotal.WithLabelValues(resource).Inc() }

func recordAuthFailure(reason string) { authFailureTotal.WithLabelValues(reason).Inc() }
