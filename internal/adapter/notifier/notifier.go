package notifier

import (
	"context"

	"github.com/paywatch/paywatch/internal/domain"
)

// Notifier delivers a best-effort notification for one failed payment
// event.
type Notifier interface {
	Notify(ctx context.Context, event domain.PaymentEvent) error
}

// Fallback routes alerts through the webhook when a destination URL is
// configured, otherwise through the secondary notifier. The choice is
// re-evaluated per alert, so setting a URL at runtime takes effect
// immediately.
type Fallback struct {
	Webhook   *WebhookNotifier
	Secondary Notifier
}

func (f *Fallback) Notify(ctx context.Context, event domain.PaymentEvent) error {
	if f.Webhook.URL() != "" {
		return f.Webhook.Notify(ctx, event)
	}
	return f.Secondary.Notify(ctx, event)
}
