package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "worksheetlab"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Generation pipeline metrics
var (
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of worksheet generation attempts",
		},
		[]string{"subject", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Worksheet generation time distribution",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 180},
		},
		[]string{"subject"},
	)

	PDFsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdfs_rendered_total",
			Help:      "Total number of worksheet PDFs rendered",
		},
		[]string{"subject"},
	)
)

// Quota metrics
var (
	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Total number of requests rejected by the quota gate",
		},
		[]string{"kind"},
	)

	BonusDebits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bonus_debits_total",
			Help:      "Total number of bonus credits debited",
		},
		[]string{"kind"},
	)

	DebitReconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debit_reconciliations_total",
			Help:      "Bonus debit retries processed by the reconciler",
		},
		[]string{"status"},
	)
)

// AI usage tracking (aggregate totals, no user label to avoid cardinality)
var (
	AITokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_tokens_total",
			Help:      "Total number of AI tokens consumed",
		},
		[]string{"direction"},
	)
)

// Recorder bridges the service-layer metric interfaces to the
// registered prometheus collectors.
type Recorder struct{}

func (Recorder) QuotaRejected(kind string) {
	QuotaRejections.WithLabelValues(kind).Inc()
}

func (Recorder) BonusDebited(kind string) {
	BonusDebits.WithLabelValues(kind).Inc()
}

func (Recorder) GenerationObserved(subject, outcome string, seconds float64) {
	GenerationsTotal.WithLabelValues(subject, outcome).Inc()
	GenerationDuration.WithLabelValues(subject).Observe(seconds)
}

func (Recorder) PDFRendered(subject string) {
	PDFsRendered.WithLabelValues(subject).Inc()
}

func (Recorder) AITokens(input, output int) {
	AITokensTotal.WithLabelValues("input").Add(float64(input))
	AITokensTotal.WithLabelValues("output").Add(float64(output))
}
