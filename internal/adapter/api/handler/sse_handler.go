package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/paywatch/paywatch/internal/domain"
)

// EventBroker fans appended payment events out to connected SSE clients
// so dashboards see new transactions without polling. It observes the
// store; a slow client never blocks the append path or other clients.
type EventBroker struct {
	logger  *slog.Logger
	clients map[chan []byte]struct{}
	mu      sync.RWMutex
	feed    chan domain.PaymentEvent
}

// NewEventBroker creates an EventBroker and starts its broadcast loop.
func NewEventBroker(ctx context.Context, logger *slog.Logger) *EventBroker {
	broker := &EventBroker{
		logger:  logger,
		clients: make(map[chan []byte]struct{}),
		feed:    make(chan domain.PaymentEvent, 1000),
	}
	go broker.run(ctx)
	return broker
}

// EventAppended implements domain.EventObserver. Full feed means the
// event is skipped for streaming only; the store already holds it.
func (b *EventBroker) EventAppended(event domain.PaymentEvent) {
	select {
	case b.feed <- event:
	default:
		b.logger.Warn("SSE feed full, skipping event broadcast", "event_id", event.ID)
	}
}

// ServeHTTP handles new client connections for the live event stream.
func (b *EventBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	messageChan := make(chan []byte, 16)
	b.addClient(messageChan)
	defer b.removeClient(messageChan)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messageChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: payment\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// ClientCount reports connected clients, for tests and logging.
func (b *EventBroker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *EventBroker) addClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
	b.logger.Info("SSE client connected")
}

func (b *EventBroker) removeClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
		b.logger.Info("SSE client disconnected")
	}
}

func (b *EventBroker) broadcast(msg []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- msg:
		default:
			// Slow client, drop this message for it.
		}
	}
}

func (b *EventBroker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.feed:
			jsonData, err := json.Marshal(event)
			if err != nil {
				b.logger.Error("failed to marshal event for SSE", "error", err, "event_id", event.ID)
				continue
			}
			b.broadcast(jsonData)
		}
	}
}
