package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Remote API metrics
	RemoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikimirror_remote_requests_total",
			Help: "Total number of remote API calls by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	RemoteRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wikimirror_remote_request_duration_seconds",
			Help:    "Remote API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	// Cache metrics
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikimirror_cache_lookups_total",
			Help: "Cache lookups by kind and result (process, hit, miss, stale, negative)",
		},
		[]string{"kind", "result"},
	)

	CachePopulateErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikimirror_cache_populate_errors_total",
			Help: "Populate callbacks that failed, by kind",
		},
		[]string{"kind"},
	)

	// Resolution metrics
	CanMirrorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikimirror_can_mirror_total",
			Help: "Resolved canMirror evaluations by result",
		},
		[]string{"result"},
	)

	SnapshotHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wikimirror_snapshot_hits_total",
			Help: "Pages served from the static snapshot cache",
		},
	)

	ThrottledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wikimirror_throttled_total",
			Help: "Live page fetches refused by the per-user rate limit",
		},
	)

	// Fork workflow metrics
	ForksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikimirror_forks_total",
			Help: "Published mirror log entries by type (import, delete)",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		RemoteRequestsTotal,
		RemoteRequestDuration,
		CacheLookupsTotal,
		CachePopulateErrorsTotal,
		CanMirrorTotal,
		SnapshotHitsTotal,
		ThrottledTotal,
		ForksTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation and records it into a histogram
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time into the histogram for the given labels
func (t *Timer) ObserveDuration(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
