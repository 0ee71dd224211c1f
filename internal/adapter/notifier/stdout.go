package notifier

import (
	"context"
	"fmt"

	"github.com/paywatch/paywatch/internal/domain"
)

// StdoutNotifier prints failure alerts to standard output, for local
// development.
type StdoutNotifier struct{}

func NewStdoutNotifier() *StdoutNotifier {
	return &StdoutNotifier{}
}

func (n *StdoutNotifier) Notify(ctx context.Context, event domain.PaymentEvent) error {
	fmt.Printf(
		"--- PAYMENT FAILED ---\nEndpoint: %s\nReason: %s\nStatus: %d\nPayer: %s\n----------------------\n",
		event.Endpoint,
		event.FailureReason,
		event.Outcome,
		event.Payer,
	)
	return nil
}
