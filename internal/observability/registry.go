package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics.
// Components receive it by injection rather than touching the globals.
type MetricsRegistry interface {
	// HTTP Request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Targeting metrics
	IncrementTargetingLookups(key, outcome string)

	// Ad server API metrics
	IncrementRemoteCalls(service, method, outcome string)
	RecordRemoteCallLatency(service, method string, duration time.Duration)
	IncrementThrottled(service string)
	AddObjectsCreated(kind string, n int)

	// Run metrics
	IncrementSetupRuns(status string)
	RecordBucketsPerRun(n int)
	IncrementPersistErrors(sink string)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

// HTTP Request metrics
func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// Targeting metrics
func (r *PrometheusRegistry) IncrementTargetingLookups(key, outcome string) {
	TargetingLookups.WithLabelValues(key, outcome).Inc()
}

// Ad server API metrics
func (r *PrometheusRegistry) IncrementRemoteCalls(service, method, outcome string) {
	RemoteCalls.WithLabelValues(service, method, outcome).Inc()
}

func (r *PrometheusRegistry) RecordRemoteCallLatency(service, method string, duration time.Duration) {
	RemoteCallLatency.WithLabelValues(service, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementThrottled(service string) {
	RemoteCallsThrottled.WithLabelValues(service).Inc()
}

func (r *PrometheusRegistry) AddObjectsCreated(kind string, n int) {
	ObjectsCreated.WithLabelValues(kind).Add(float64(n))
}

// Run metrics
func (r *PrometheusRegistry) IncrementSetupRuns(status string) {
	SetupRuns.WithLabelValues(status).Inc()
}

func (r *PrometheusRegistry) RecordBucketsPerRun(n int) {
	BucketsPerRun.Observe(float64(n))
}

func (r *PrometheusRegistry) IncrementPersistErrors(sink string) {
	PersistErrors.WithLabelValues(sink).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementTargetingLookups(key, outcome string)                        {}
func (r *NoOpRegistry) IncrementRemoteCalls(service, method, outcome string)                 {}
func (r *NoOpRegistry) RecordRemoteCallLatency(service, method string, d time.Duration)      {}
func (r *NoOpRegistry) IncrementThrottled(service string)                                    {}
func (r *NoOpRegistry) AddObjectsCreated(kind string, n int)                                 {}
func (r *NoOpRegistry) IncrementSetupRuns(status string)                                     {}
func (r *NoOpRegistry) RecordBucketsPerRun(n int)                                            {}
func (r *NoOpRegistry) IncrementPersistErrors(sink string)                                   {}
