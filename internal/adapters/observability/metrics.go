package observability

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "aleev", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aleev", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	PlatformRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "aleev", Name: "platform_requests_total", Help: "Outbound platform API requests."},
		[]string{"platform", "op", "status"},
	)
	PlatformLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aleev", Name: "platform_request_duration_seconds",
			Help:    "Outbound platform API request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"platform", "op"},
	)
	IngestReviews = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "aleev", Name: "ingest_reviews_total", Help: "Reviews seen by reconciliation."},
		[]string{"platform", "outcome"}, // outcome: new|updated
	)
	IngestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "aleev", Name: "ingest_errors_total", Help: "Per-pair reconciliation failures."},
		[]string{"platform"},
	)
	ReplyEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "aleev", Name: "reply_events_total", Help: "Reply lifecycle events."},
		[]string{"event"}, // generated|flagged|crisis|approved|sent|send_failed
	)
	RollupSnapshots = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "aleev", Name: "rollup_snapshots_total", Help: "Metrics rollup outcomes."},
		[]string{"outcome"}, // written|failed
	)
	AuditEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "aleev", Name: "audit_events_total", Help: "Audit sink outcomes."},
		[]string{"outcome"}, // written|dropped|failed
	)
)

// Serve starts the standalone metrics listener used by the batch binaries.
// Empty METRICS_ADDR disables it.
func Serve() {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		HTTPRequests, HTTPLatency,
		PlatformRequests, PlatformLatency,
		IngestReviews, IngestErrors,
		ReplyEvents, RollupSnapshots, AuditEvents,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObservePlatform(platform, op string, status int, dur time.Duration) {
	PlatformRequests.WithLabelValues(platform, op, strconv.Itoa(status)).Inc()
	PlatformLatency.WithLabelValues(platform, op).Observe(dur.Seconds())
}

func ObserveIngest(platform string, created bool) {
	outcome := "updated"
	if created {
		outcome = "new"
	}
	IngestReviews.WithLabelValues(platform, outcome).Inc()
}

func ObserveIngestError(platform string) {
	IngestErrors.WithLabelValues(platform).Inc()
}

func ObserveReply(event string) {
	ReplyEvents.WithLabelValues(event).Inc()
}

func ObserveRollup(outcome string) {
	RollupSnapshots.WithLabelValues(outcome).Inc()
}

func ObserveAudit(outcome string) { // outcome: written|dropped|failed
	AuditEvents.WithLabelValues(outcome).Inc()
}
