package notifier

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/paywatch/paywatch/internal/domain"
)

const deliveryTimeout = 5 * time.Second

// Dispatcher observes store appends and delivers one alert per failed
// event, asynchronously. Deliveries are rate-limited and time-bounded;
// failures are logged, never retried, never surfaced to the append path.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
	limiter  *rate.Limiter
	queue    chan domain.PaymentEvent
	sent     func(status string) // optional metrics hook
}

// NewDispatcher creates an alert dispatcher. perMinute caps deliveries;
// sent is invoked per attempt with "sent", "error" or "dropped" (nil to
// disable).
func NewDispatcher(n Notifier, perMinute int, logger *slog.Logger, sent func(status string)) *Dispatcher {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &Dispatcher{
		notifier: n,
		logger:   logger.With("component", "alert_dispatcher"),
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		queue:    make(chan domain.PaymentEvent, 256),
		sent:     sent,
	}
}

// EventAppended implements domain.EventObserver. Settled events never
// alert; failed events are enqueued without blocking the append path.
func (d *Dispatcher) EventAppended(event domain.PaymentEvent) {
	if event.Outcome.Settled() {
		return
	}
	select {
	case d.queue <- event:
	default:
		d.report("dropped")
		d.logger.Warn("alert queue full, dropping alert", "event_id", event.ID)
	}
}

// Run delivers queued alerts until ctx is cancelled. No lock is held
// across the network call.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.queue:
			if !d.limiter.Allow() {
				d.report("dropped")
				d.logger.Warn("alert rate limit exceeded, dropping alert", "event_id", event.ID)
				continue
			}
			d.deliver(ctx, event)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event domain.PaymentEvent) {
	deliverCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	if err := d.notifier.Notify(deliverCtx, event); err != nil {
		d.report("error")
		d.logger.Error("alert delivery failed", "error", err, "event_id", event.ID)
		return
	}
	d.report("sent")
}

func (d *Dispatcher) report(status string) {
	if d.sent != nil {
		d.sent(status)
	}
}
