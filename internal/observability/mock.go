package observability

import (
	"sync"
	"time"
)

// MockMetricsRegistry records counter increments so tests can assert on them.
type MockMetricsRegistry struct {
	mu             sync.Mutex
	Lookups        map[string]int // "key/outcome"
	RemoteCalls    map[string]int // "service.method/outcome"
	Throttled      map[string]int
	Created        map[string]int
	Runs           map[string]int
	PersistErrors  map[string]int
	BucketsPerRun  []int
	RequestsByPath map[string]int
}

// NewMockMetricsRegistry returns an empty MockMetricsRegistry.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{
		Lookups:        map[string]int{},
		RemoteCalls:    map[string]int{},
		Throttled:      map[string]int{},
		Created:        map[string]int{},
		Runs:           map[string]int{},
		PersistErrors:  map[string]int{},
		RequestsByPath: map[string]int{},
	}
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestsByPath[endpoint]++
}

func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}

func (m *MockMetricsRegistry) IncrementTargetingLookups(key, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups[key+"/"+outcome]++
}

func (m *MockMetricsRegistry) IncrementRemoteCalls(service, method, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoteCalls[service+"."+method+"/"+outcome]++
}

func (m *MockMetricsRegistry) RecordRemoteCallLatency(service, method string, d time.Duration) {}

func (m *MockMetricsRegistry) IncrementThrottled(service string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Throttled[service]++
}

func (m *MockMetricsRegistry) AddObjectsCreated(kind string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created[kind] += n
}

func (m *MockMetricsRegistry) IncrementSetupRuns(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Runs[status]++
}

func (m *MockMetricsRegistry) RecordBucketsPerRun(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BucketsPerRun = append(m.BucketsPerRun, n)
}

func (m *MockMetricsRegistry) IncrementPersistErrors(sink string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersistErrors[sink]++
}

// LookupCount returns how many times key resolved with outcome.
func (m *MockMetricsRegistry) LookupCount(key, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Lookups[key+"/"+outcome]
}
