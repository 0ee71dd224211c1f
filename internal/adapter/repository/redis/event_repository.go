package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/paywatch/paywatch/internal/domain"
)

const (
	scopeStreamPrefix = "payment_events:"
	eventIndexKey     = "payment_events:by_id"
	eventField        = "event"
)

// EventRepository implements domain.EventRepository on Redis Streams, one
// stream per scope plus an id index hash. It lets several gateway
// instances share one event log; the consistency contract matches the
// in-memory store (appends visible once XADD returns).
type EventRepository struct {
	client *redis.Client
	logger *slog.Logger

	mu        sync.RWMutex
	observers []domain.EventObserver
}

// NewEventRepository creates a Redis-backed event repository.
func NewEventRepository(client *redis.Client, logger *slog.Logger) *EventRepository {
	return &EventRepository{
		client: client,
		logger: logger.With("component", "redis_event_repository"),
	}
}

// RegisterObserver adds an observer notified after each local append.
// Observers must not block.
func (r *EventRepository) RegisterObserver(obs domain.EventObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, obs)
}

func scopeStream(scopeID string) string {
	return scopeStreamPrefix + scopeID
}

// Append publishes the event to the scope's stream and the id index.
func (r *EventRepository) Append(ctx context.Context, event domain.PaymentEvent) (string, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment event: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: scopeStream(event.ScopeID),
		Values: map[string]interface{}{eventField: data},
	})
	pipe.HSet(ctx, eventIndexKey, event.ID, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to append event to redis: %w", err)
	}

	r.mu.RLock()
	observers := r.observers
	r.mu.RUnlock()
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

	msgs, err := r.client.XRevRangeN(ctx, scopeStream(scopeID), "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent events: %w", err)
	}
	return r.decode(msgs), nil
}

// All returns the full scoped stream in insertion order.
func (r *EventRepository) All(ctx context.Context, scopeID string) ([]domain.PaymentEvent, error) {
	msgs, err := r.client.XRange(ctx, scopeStream(scopeID), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read scoped events: %w", err)
	}
	return r.decode(msgs), nil
}

// Get returns a single event by id from the index hash.
func (r *EventRepository) Get(ctx context.Context, id string) (domain.PaymentEvent, error) {
	raw, err := r.client.HGet(ctx, eventIndexKey, id).Result()
	if err == redis.Nil {
		return domain.PaymentEvent{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("failed to look up event %s: %w", id, err)
	}

	var event domain.PaymentEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("failed to unmarshal event %s: %w", id, err)
	}
	return event, nil
}

func (r *EventRepository) decode(msgs []redis.XMessage) []domain.PaymentEvent {
	out := make([]domain.PaymentEvent, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values[eventField].(string)
		if !ok {
			r.logger.Warn("skipping malformed stream entry", "stream_id", msg.ID)
			continue
		}
		var event domain.PaymentEvent
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			r.logger.Warn("skipping undecodable stream entry", "stream_id", msg.ID, "error", err)
			continue
		}
		out = append(out, event)
	}
	return out
}
