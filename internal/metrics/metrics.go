// Package metrics exposes the service's Prometheus collectors: HTTP
// request metrics plus the submission/delivery domain metrics the health
// endpoint and dashboards consume. Modeled on the teacher's
// internal/app/metrics package (a package-level registry, counter/
// histogram/gauge vectors, an InstrumentHandler wrapper), generalized from
// HTTP-plus-function-execution metrics to HTTP-plus-delivery-pipeline
// metrics.
package metrics

import (
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
)

// Registry holds every collector this service registers, kept separate
// from the global default registry so tests can construct isolated
// instances.
var Registry = prometheus.NewRegistry()

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "transaction_relay",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transaction_relay",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "transaction_relay",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transaction_relay",
		Subsystem: "submission",
		Name:      "total",
		Help:      "Total number of submit() calls by outcome.",
	}, []string{"outcome"}) // accepted | duplicate | rejected_validation | rejected_queue_full | rejected_store_error | tracking_failed | stranded

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "transaction_relay",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Current depth of the work queue.",
	})

	deliveryOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transaction_relay",
		Subsystem: "delivery",
		Name:      "outcomes_total",
		Help:      "Total number of delivery attempts by terminal outcome.",
	}, []string{"outcome"}) // completed | failed

	deliveryRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transaction_relay",
		Subsystem: "delivery",
		Name:      "retries_total",
		Help:      "Total number of pre-write failure retries.",
	}, []string{"worker_id"})

	deliveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "transaction_relay",
		Subsystem: "delivery",
		Name:      "duration_seconds",
		Help:      "Duration from dequeue to terminal state.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	reconcileRequeued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "transaction_relay",
		Subsystem: "reconcile",
		Name:      "requeued_total",
		Help:      "Total number of stale StatusRecords requeued by the reconciliation sweep.",
	})
)

// totalHTTPRequests and totalHTTPErrors back ErrorRate for the health
// endpoint. Kept as plain atomics rather than read off httpRequests (a
// label-partitioned CounterVec) since the health check needs one cheap
// ratio, not a breakdown by method/path/status.
var (
	totalHTTPRequests uint64
	totalHTTPErrors   uint64
)

// processStart is the process's creation time per gopsutil, used by Uptime
// so the reported uptime reflects the OS process rather than whichever
// instant this package happened to initialize.
var processStart = loadProcessStart()

func loadProcessStart() time.Time {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return time.Now()
	}
	createdMs, err := proc.CreateTime()
	if err != nil {
		return time.Now()
	}
	return time.UnixMilli(createdMs)
}

// Uptime reports how long this process has been running.
func Uptime() time.Duration {
	return time.Since(processStart)
}

// ErrorRate reports the fraction of HTTP requests so far that completed
// with a 5xx status, for the health endpoint's error_rate field.
func ErrorRate() float64 {
	total := atomic.LoadUint64(&totalHTTPRequests)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&totalHTTPErrors)) / float64(total)
}

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		submissionsTotal,
		queueDepth,
		deliveryOutcomes,
		deliveryRetries,
		deliveryDuration,
		reconcileRequeued,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMiddleware wraps every request with in-flight gauge, request counter,
// and duration histogram recording, keyed by the matched route template
// rather than the raw path so templated routes like
// /api/transactions/:id collapse to one series.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		duration := time.Since(start)
		status := c.Writer.Status()
		httpRequests.WithLabelValues(c.Request.Method, path, http.StatusText(status)).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(duration.Seconds())

		atomic.AddUint64(&totalHTTPRequests, 1)
		if status >= http.StatusInternalServerError {
			atomic.AddUint64(&totalHTTPErrors, 1)
		}
	}
}

// RecordSubmission records a submit() outcome.
func RecordSubmission(outcome string) {
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// SetQueueDepth records the current queue depth, as observed by
// submission.Service.QueueDepth (which the health endpoint calls).
func SetQueueDepth(depth int64) {
	queueDepth.Set(float64(depth))
}

// RecordDeliveryOutcome records a terminal delivery outcome
// ("completed" or "failed") and the time it took to reach it.
func RecordDeliveryOutcome(outcome string, duration time.Duration) {
	deliveryOutcomes.WithLabelValues(outcome).Inc()
	deliveryDuration.Observe(duration.Seconds())
}

// RecordRetry records one pre-write failure retry by the named worker.
func RecordRetry(workerID string) {
	deliveryRetries.WithLabelValues(workerID).Inc()
}

// RecordReconcileRequeue records one stale record requeued by the sweep.
func RecordReconcileRequeue() {
	reconcileRequeued.Inc()
}
