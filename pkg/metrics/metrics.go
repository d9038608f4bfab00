package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Tracks the number of HTTP requests.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Tracks the latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nanofeed_mutations_total",
		Help: "Writes to the social graph by kind and outcome.",
	}, []string{"kind", "result"})

	counterRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nanofeed_counter_repairs_total",
		Help: "Maintained counters corrected by reconciliation.",
	}, []string{"counter"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nanofeed_cache_lookups_total",
		Help: "Profile cache lookups by result.",
	}, []string{"result"})
)

// GetRegistry returns a registry holding the runtime collectors and every
// service metric.
func GetRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		requestsTotal,
		requestDuration,
		mutationsTotal,
		counterRepairs,
		cacheLookups,
	)

	return registry
}

func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordMutation counts a write, labelled "ok" or "error".
func RecordMutation(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	mutationsTotal.WithLabelValues(kind, result).Inc()
}

func RecordRepair(counter string, n int) {
	if n > 0 {
		counterRepairs.WithLabelValues(counter).Add(float64(n))
	}
}

func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}
