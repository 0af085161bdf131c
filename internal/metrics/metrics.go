package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP requests and
// pipeline job execution.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	jobsTotal       *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	postsProcessed  prometheus.Counter
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "threadsight",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "threadsight",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	jobsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "threadsight",
		Subsystem: "pipeline",
		Name:      "jobs_total",
		Help:      "Pipeline jobs by terminal status.",
	}, []string{"status"})

	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "threadsight",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual pipeline stages.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"stage"})

	postsProcessed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "threadsight",
		Subsystem: "pipeline",
		Name:      "posts_processed_total",
		Help:      "Total posts ingested by completed runs.",
	})

	for _, c := range []prometheus.Collector{requestDuration, requestTotal, jobsTotal, stageDuration, postsProcessed} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		jobsTotal:       jobsTotal,
		stageDuration:   stageDuration,
		postsProcessed:  postsProcessed,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// JobFinished records a job reaching a terminal status.
func (c *Collector) JobFinished(status string) {
	c.jobsTotal.WithLabelValues(status).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// AddPosts records posts ingested by a completed run.
func (c *Collector) AddPosts(n int) {
	c.postsProcessed.Add(float64(n))
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
