package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trackfinder",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trackfinder",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
	}, []string{"method", "path"})

	// Upstream map data services
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trackfinder",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Upstream calls by service and outcome, retries included",
	}, []string{"service", "outcome"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trackfinder",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Upstream call latency including retries",
		Buckets:   []float64{0.25, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"service"})

	MalformedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trackfinder",
		Subsystem: "upstream",
		Name:      "malformed_records_total",
		Help:      "Upstream elements skipped because they could not be parsed",
	})

	// Pipeline
	Searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trackfinder",
		Subsystem: "search",
		Name:      "total",
		Help:      "Road searches by outcome",
	}, []string{"outcome"})

	WaysExported = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "trackfinder",
		Subsystem: "search",
		Name:      "ways_exported",
		Help:      "Placemarks per exported document",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trackfinder",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trackfinder",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	})
)

// ObserveUpstream records the outcome and latency of an upstream call
func ObserveUpstream(service string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamRequests.WithLabelValues(service, outcome).Inc()
	upstreamDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
}

// Middleware records request metrics using the chi route pattern as the path label.
// Requests that match no route share the "unmatched" label.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// raw paths would give every unknown URL its own series
		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the Prometheus /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
