package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgpersona_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tgpersona_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Pipeline metrics
	MessagesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tgpersona_messages_ingested_total",
			Help: "Total message events received from the bridge",
		},
	)

	AggregationFirings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tgpersona_aggregation_firings_total",
			Help: "Total quiet-period aggregation firings",
		},
	)

	SelfSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tgpersona_self_suppressed_total",
			Help: "Bursts not armed because the last live message was our own",
		},
	)

	DispatchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tgpersona_dispatch_failures_total",
			Help: "Completion calls that failed or returned malformed decisions",
		},
	)

	DispatchDeclined = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tgpersona_dispatch_declined_total",
			Help: "Decisions where the completion service declined to respond",
		},
	)

	DispatchRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tgpersona_dispatch_rate_limited_total",
			Help: "Firings skipped by the per-conversation dispatch limiter",
		},
	)

	// Review metrics
	DraftsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgpersona_drafts_created_total",
			Help: "Total drafts written to the approval store",
		},
		[]string{"urgency"},
	)

	DraftActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgpersona_draft_actions_total",
			Help: "Reviewer actions applied to drafts",
		},
		[]string{"action"}, // "approve", "edit", "reject", "submit"
	)

	UnauthorizedActions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tgpersona_unauthorized_actions_total",
			Help: "Draft actions attempted by identities other than the reviewer",
		},
	)

	DigestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tgpersona_digests_sent_total",
			Help: "Digest summaries delivered to the reviewer",
		},
	)

	// Infrastructure metrics
	CompletionLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tgpersona_completion_latency_seconds",
			Help:    "Completion service call latency",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	StoreLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tgpersona_store_latency_seconds",
			Help:    "Approval store operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
