// Package metrics exposes Prometheus collectors for the glossary harvester.
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

// Record outcomes.
const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeUnindexed = "unindexed"
)

// Index sync results.
const (
	SyncCreated = "created"
	SyncMerged  = "merged"
	SyncFailed  = "failed"
)

var (
	recordsTotal               *prometheus.CounterVec
	termsCreatedTotal          prometheus.Counter
	definitionsCreatedTotal    prometheus.Counter
	variantsCreatedTotal       prometheus.Counter
	indexSyncTotal             *prometheus.CounterVec
	crawlPagesTotal            *prometheus.CounterVec
	queueDepth                 prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glossary_records_total",
				Help: "Total number of glossary records processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		termsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "glossary_terms_created_total",
			Help: "Total number of Term rows inserted.",
		})

		definitionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "glossary_definitions_created_total",
			Help: "Total number of Definition rows inserted.",
		})

		variantsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "glossary_variants_created_total",
			Help: "Total number of Variant rows inserted, self-variants excluded.",
		})

		indexSyncTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glossary_index_sync_total",
				Help: "Total number of index document writes, labeled by result.",
			},
			[]string{"result"},
		)

		crawlPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glossary_crawl_pages_total",
				Help: "Total number of glossary pages crawled, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "glossary_queue_depth",
			Help: "Number of records waiting for the ingest worker.",
		})

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
	Init()
	return promhttp.Handler()
}

// ObserveRecord counts one processed record.
func ObserveRecord(outcome string) {
	Init()
	recordsTotal.WithLabelValues(outcome).Inc()
}

// ObserveWrites counts the relational rows a record created.
func ObserveWrites(termCreated, definitionCreated bool, variantsCreated int) {
	Init()
	if termCreated {
		termsCreatedTotal.Inc()
	}
	if definitionCreated {
		definitionsCreatedTotal.Inc()
	}
	if variantsCreated > 0 {
		variantsCreatedTotal.Add(float64(variantsCreated))
	}
}

// ObserveIndexSync counts one index document write.
func ObserveIndexSync(result string) {
	Init()
	indexSyncTotal.WithLabelValues(result).Inc()
}

// ObserveCrawl counts one crawled page.
func ObserveCrawl(site string, status string) {
	Init()
	crawlPagesTotal.WithLabelValues(SanitizeSite(site), status).Inc()
}

// SetQueueDepth reports the current ingest backlog.
func SetQueueDepth(n int) {
	Init()
	queueDepth.Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
