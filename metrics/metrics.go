// Package metrics provides Prometheus instrumentation for the search service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	verificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Total number of payment verification attempts",
		},
		[]string{"outcome"},
	)

	settlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_settlements_total",
			Help: "Total number of payment settlement attempts",
		},
		[]string{"outcome"},
	)

	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searches_total",
			Help: "Total number of executed searches",
		},
		[]string{"mode"},
	)
)

// Middleware returns gin middleware that records request counts and
// latencies. The route template is used as the path label so dynamic
// segments do not blow up cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		httpDuration.WithLabelValues(
			c.Request.Method,
			path,
		).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus metrics endpoint handler.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// ObserveVerification records one verification attempt.
func ObserveVerification(valid bool) {
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	verificationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSettlement records one settlement attempt.
func ObserveSettlement(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	settlementsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSearch records one executed search by the mode it resolved to.
func ObserveSearch(mode string) {
	searchesTotal.WithLabelValues(mode).Inc()
}
