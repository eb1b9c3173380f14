package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total API requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owsetup_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "owsetup_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// targeting key/value resolutions labelled by key and outcome (hit, found, created, error)
	TargetingLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owsetup_targeting_lookups_total",
			Help: "Custom targeting key/value resolutions",
		},
		[]string{"key", "outcome"},
	)

	// calls to the ad server API labelled by service, method and outcome
	RemoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owsetup_remote_calls_total",
			Help: "Total ad server API calls",
		},
		[]string{"service", "method", "outcome"},
	)

	// ad server API calls delayed by the client-side throttle
	RemoteCallsThrottled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owsetup_remote_calls_throttled_total",
			Help: "Ad server API calls that waited for a rate limit token",
		},
		[]string{"service"},
	)

	// ad server API latency
	RemoteCallLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "owsetup_remote_call_duration_seconds",
			Help:    "Duration of ad server API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method"},
	)

	// objects created on the ad server, by kind
	ObjectsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owsetup_objects_created_total",
			Help: "Orders, line items, creatives and associations created",
		},
		[]string{"kind"},
	)

	// setup runs labelled by final status
	SetupRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owsetup_runs_total",
			Help: "Total setup runs",
		},
		[]string{"status"},
	)

	// price buckets produced per run
	BucketsPerRun = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "owsetup_buckets_per_run",
			Help:    "Number of price buckets expanded per run",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// number of errors writing the run ledger or audit events
	PersistErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owsetup_persist_errors_total",
			Help: "Total ledger and audit persistence errors",
		},
		[]string{"sink"},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		TargetingLookups,
		RemoteCalls,
		RemoteCallsThrottled,
		RemoteCallLatency,
		ObjectsCreated,
		SetupRuns,
		BucketsPerRun,
		PersistErrors,
	)
}
