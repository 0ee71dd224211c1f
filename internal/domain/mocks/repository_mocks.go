package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/paywatch/paywatch/internal/domain"
)

// MockEventRepository is a mock implementation of domain.EventRepository
// for testing.
type MockEventRepository struct {
	mu        sync.Mutex
	Events    []domain.PaymentEvent
	AppendErr error
	ReadErr   error
}

func (m *MockEventRepository) Append(ctx context.Context, event domain.PaymentEvent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return "", m.AppendErr
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	m.Events = append(m.Events, event)
	return event.ID, nil
}

func (m *MockEventRepository) Recent(ctx context.Context, scopeID string, limit int) ([]domain.PaymentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	var out []domain.PaymentEvent
	for i := len(m.Events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.Events[i].ScopeID == scopeID {
			out = append(out, m.Events[i])
		}
	}
	return out, nil
}

func (m *MockEventRepository) All(ctx context.Context, scopeID string) ([]domain.PaymentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	var out []domain.PaymentEvent
	for _, e := range m.Events {
		if e.ScopeID == scopeID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockEventRepository) Get(ctx context.Context, id string) (domain.PaymentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return domain.PaymentEvent{}, m.ReadErr
	}
	for _, e := range m.Events {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.PaymentEvent{}, domain.ErrNotFound
}

// EventCount reports how many events have been appended, safely across
// goroutines.
func (m *MockEventRepository) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}

// MockEventObserver records observer notifications for testing.
type MockEventObserver struct {
	mu       sync.Mutex
	Observed []domain.PaymentEvent
}

func (m *MockEventObserver) EventAppended(event domain.PaymentEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Observed = append(m.Observed, event)
}

func (m *MockEventObserver) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Observed)
}
