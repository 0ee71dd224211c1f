package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/paywatch/paywatch/internal/domain"
)

// EventRepository is the in-process append-only event log. It is safe for
// concurrent appends and reads; readers always see fully published events
// and never hold references into the internal slice.
type EventRepository struct {
	logger    *slog.Logger
	maxEvents int // 0 means unbounded

	mu        sync.RWMutex
	events    []domain.PaymentEvent
	byID      map[string]uint64 // id -> absolute append sequence
	base      uint64            // sequence of events[0]
	observers []domain.EventObserver
}

// NewEventRepository creates an in-memory event repository. maxEvents
// bounds retained history; when full, the oldest events are evicted.
func NewEventRepository(maxEvents int, logger *slog.Logger) *EventRepository {
	return &EventRepository{
		logger:    logger.With("component", "memory_event_repository"),
		maxEvents: maxEvents,
		byID:      make(map[string]uint64),
	}
}

// RegisterObserver adds an observer notified after each append. Observers
// must hand the event off without blocking.
func (r *EventRepository) RegisterObserver(obs domain.EventObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, obs)
}

// Append publishes the event atomically and notifies observers. It never
// fails for a structurally valid event.
func (r *EventRepository) Append(ctx context.Context, event domain.PaymentEvent) (string, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	r.mu.Lock()
	if r.maxEvents > 0 && len(r.events) >= r.maxEvents {
		evicted := r.events[0]
		delete(r.byID, evicted.ID)
		r.events = r.events[1:]
		r.base++
		r.logger.Debug("evicted oldest event at capacity", "event_id", evicted.ID)
	}
	// Sequences are absolute; subtracting base yields the slice index,
	// so eviction never rewrites surviving entries.
	r.byID[event.ID] = r.base + uint64(len(r.events))
	r.events = append(r.events, event)
	observers := r.observers
	r.mu.Unlock()

	// Observers enqueue and return; no lock is held across their work.
	for _, obs := range observers {
		obs.EventAppended(event)
	}

	return event.ID, nil
}

// Recent returns up to limit most-recent events for the scope, newest
// first.
func (r *EventRepository) Recent(ctx context.Context, scopeID string, limit int) ([]domain.PaymentEvent, error) {
	if limit <= 0 {
		return []domain.PaymentEvent{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.PaymentEvent, 0, limit)
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.events[i].ScopeID == scopeID {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}

// All returns a snapshot of the full scoped slice in insertion order.
func (r *EventRepository) All(ctx context.Context, scopeID string) ([]domain.PaymentEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.PaymentEvent, 0, len(r.events))
	for _, e := range r.events {
		if e.ScopeID == scopeID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Get returns a single event by id.
func (r *EventRepository) Get(ctx context.Context, id string) (domain.PaymentEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seq, ok := r.byID[id]
	if !ok {
		return domain.PaymentEvent{}, domain.ErrNotFound
	}
	return r.events[seq-r.base], nil
}

// Len reports the number of retained events across all scopes.
func (r *EventRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}
