package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/governance-ledger/internal/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govledger_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "govledger_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	entriesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govledger_entries_appended_total",
		Help: "Governance ledger entries appended, by kind.",
	}, []string{"kind"})

	appendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "govledger_append_failures_total",
		Help: "Governance ledger appends that failed.",
	})

	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govledger_verifications_total",
		Help: "Chain verifications by result.",
	}, []string{"result"})

	headIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "govledger_head_index",
		Help: "Index of the last verified entry, -1 when the ledger is empty.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		requestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAppend counts an append attempt. It has the shape of
// ledger.MetricsRecorder so stores can report directly.
func RecordAppend(kind string, err error) {
	if err != nil {
		appendFailures.Inc()
		return
	}
	entriesAppended.WithLabelValues(kind).Inc()
}

// RecordVerification counts a verification run and tracks the head.
func RecordVerification(res *ledger.Verification) {
	if !res.OK() {
		verificationsTotal.WithLabelValues("invalid").Inc()
		return
	}
	verificationsTotal.WithLabelValues("valid").Inc()
	if res.Head == nil {
		headIndex.Set(-1)
		return
	}
	headIndex.Set(float64(res.Head.Index))
}
