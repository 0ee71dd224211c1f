package domain

import (
	"context"
	"errors"
)

// ErrInvalidEvent is returned by the ingestion boundary when a candidate
// event is structurally malformed. It is never returned on business-logic
// grounds.
var ErrInvalidEvent = errors.New("invalid event")

// ErrNotFound is returned when an event id is unknown to the store.
var ErrNotFound = errors.New("event not found")

// EventRepository owns the append-only log of payment events. All other
// components read through this interface and never retain mutable
// references into the store.
type EventRepository interface {
	// Append publishes a fully constructed event and returns its id,
	// assigning one if absent. It never fails due to downstream side
	// effects such as alerting or archival.
	Append(ctx context.Context, event PaymentEvent) (string, error)

	// Recent returns up to limit most-recent events for the scope,
	// newest first. It reflects all appends that completed before the
	// call started.
	Recent(ctx context.Context, scopeID string, limit int) ([]PaymentEvent, error)

	// All returns the full scoped slice in insertion order. The result
	// is a stable snapshot: later appends do not mutate it.
	All(ctx context.Context, scopeID string) ([]PaymentEvent, error)

	// Get returns a single event by id, for lifecycle inspection.
	Get(ctx context.Context, id string) (PaymentEvent, error)
}

// EventObserver is notified after an event has been fully published to
// the store. Implementations must not block: the append path hands the
// event off and returns immediately.
type EventObserver interface {
	EventAppended(event PaymentEvent)
}
