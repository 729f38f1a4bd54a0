package receipt

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	// requestsTotal counts OCR requests by outcome ("ok" or an error kind)
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticket_ocr",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Total number of OCR requests, labeled by outcome.",
	}, []string{"outcome"})

	// scanDurationSeconds is the time spent waiting for the model
	scanDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ticket_ocr",
		Subsystem: "gateway",
		Name:      "scan_duration_seconds",
		Help:      "Time spent in the upstream model call, labeled by outcome.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"outcome"})

	// imageWritesTotal counts background image writes by result
	imageWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticket_ocr",
		Subsystem: "writer",
		Name:      "image_writes_total",
		Help:      "Total number of receipt image writes, labeled by result.",
	}, []string{"result"})

	// writerOverflowTotal counts jobs that ran outside the worker pool because the queue was full
	writerOverflowTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ticket_ocr",
		Subsystem: "writer",
		Name:      "queue_overflow_total",
		Help:      "Total number of image writes started on a detached goroutine because the queue was full.",
	})
)

// RegisterMetrics registers gateway metrics with the default Prometheus registry.
// Safe to call multiple times.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			requestsTotal,
			scanDurationSeconds,
			imageWritesTotal,
			writerOverflowTotal,
		)
	})
}

// MetricsHandler serves the default registry
func MetricsHandler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}
