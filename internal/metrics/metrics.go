// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	upstreamFetchesTotal       *prometheus.CounterVec
	upstreamBytesTotal         *prometheus.CounterVec
	listingPagesTotal          *prometheus.CounterVec
	listingIDsDiscoveredTotal  prometheus.Counter
	detailRequestsTotal        *prometheus.CounterVec
	detailThrottleRetriesTotal prometheus.Counter
	pipelineStageDuration      *prometheus.HistogramVec
	pipelineRestartsTotal      prometheus.Counter
	snapshotsRecordedTotal     prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		upstreamFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_upstream_fetches_total",
				Help: "Total number of upstream fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		upstreamBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_upstream_bytes_total",
				Help: "Total number of bytes fetched from upstream, labeled by site.",
			},
			[]string{"site"},
		)

		listingPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_listing_pages_total",
				Help: "Listing pages scanned, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		listingIDsDiscoveredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_listing_ids_discovered_total",
				Help: "Target-month item ids discovered by listing scans.",
			},
		)

		detailRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_detail_requests_total",
				Help: "Detail requests, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		detailThrottleRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_detail_throttle_retries_total",
				Help: "Detail requests retried after an upstream throttling cooldown.",
			},
		)

		pipelineStageDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Duration of pipeline stages, labeled by stage and status.",
				Buckets: []float64{1, 5, 30, 60, 300, 900, 1800, 3600},
			},
			[]string{"stage", "status"},
		)

		pipelineRestartsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_restarts_total",
				Help: "Number of times the stage sequence restarted after a failure.",
			},
		)

		snapshotsRecordedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_snapshots_recorded_total",
				Help: "Genre popularity snapshots appended to the history store.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one upstream fetch.
func ObserveFetch(site string, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	upstreamFetchesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		upstreamBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveListingPage records a scanned listing page outcome.
func ObserveListingPage(outcome string) {
	Init()
	listingPagesTotal.WithLabelValues(outcome).Inc()
}

// AddDiscoveredIDs adds to the discovered id counter.
func AddDiscoveredIDs(n int) {
	Init()
	if n > 0 {
		listingIDsDiscoveredTotal.Add(float64(n))
	}
}

// ObserveDetail records a detail request outcome.
func ObserveDetail(outcome string) {
	Init()
	detailRequestsTotal.WithLabelValues(outcome).Inc()
}

// IncThrottleRetries counts a throttled detail request that will be retried.
func IncThrottleRetries() {
	Init()
	detailThrottleRetriesTotal.Inc()
}

// ObserveStage records how long a pipeline stage ran.
func ObserveStage(stage, status string, duration time.Duration) {
	Init()
	pipelineStageDuration.WithLabelValues(stage, status).Observe(duration.Seconds())
}

// IncPipelineRestarts counts a restart of the stage sequence.
func IncPipelineRestarts() {
	Init()
	pipelineRestartsTotal.Inc()
}

// IncSnapshotsRecorded counts an appended snapshot.
func IncSnapshotsRecorded() {
	Init()
	snapshotsRecordedTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
