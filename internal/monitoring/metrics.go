package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPC call latency (seconds)
	RPCRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unicorn_rpc_request_duration_seconds",
			Help:    "Solana RPC call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"method", "outcome"},
	)

	// Submitted transactions by outcome kind
	SubmissionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unicorn_submissions_total",
			Help: "Total number of submitted launchpad transactions",
		},
		[]string{"instruction", "outcome"},
	)

	FetchRetryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unicorn_fetch_retries_total",
			Help: "Account fetches retried after a transport failure",
		},
	)

	PriceMismatchCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unicorn_price_mismatches_total",
			Help: "Reconciliations where the stored price disagreed with the curve",
		},
		[]string{"project"},
	)

	SnapshotCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unicorn_snapshots_total",
			Help: "Project snapshots taken by the worker",
		},
		[]string{"status"}, // status: success, failed
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unicorn_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)
)

// ObserveRPC records one RPC call started at start.
func ObserveRPC(method string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RPCRequestDuration.WithLabelValues(method, outcome).Observe(time.Since(start).Seconds())
}

func RecordSubmission(instruction, outcome string) {
	SubmissionCount.WithLabelValues(instruction, outcome).Inc()
}

func RecordPriceMismatch(project string) {
	PriceMismatchCount.WithLabelValues(project).Inc()
}

func RecordSnapshot(ok bool) {
	if ok {
		SnapshotCount.WithLabelValues("success").Inc()
		return
	}
	SnapshotCount.WithLabelValues("failed").Inc()
}

func RecordHTTPRequest(method, path, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
