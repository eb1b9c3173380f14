package analytics

import (
	"context"
	"sort"
	"sync"

	"github.com/patrickwarner/openwrap-setup/internal/models"
)

var _ AuditService = (*MockAnalytics)(nil)

// MockAnalytics keeps setup events in memory for testing.
type MockAnalytics struct {
	mu     sync.Mutex
	Events []models.SetupEvent
	Err    error
}

// NewMockAnalytics creates a new mock analytics instance
func NewMockAnalytics() *MockAnalytics {
	return &MockAnalytics{}
}

// RecordSetupEvents appends events unless Err is set.
func (m *MockAnalytics) RecordSetupEvents(ctx context.Context, events []models.SetupEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, events...)
	return nil
}

// EventsByRun filters recorded events by run id.
func (m *MockAnalytics) EventsByRun(ctx context.Context, runID string) ([]models.SetupEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.SetupEvent
	for _, ev := range m.Events {
		if ev.RunID == runID {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
