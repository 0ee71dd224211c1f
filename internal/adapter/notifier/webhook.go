package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/paywatch/paywatch/internal/domain"
)

const alertColorRed = 15158332

// webhookPayload is the fixed-shape alert body, compatible with
// Discord-style incoming webhooks.
type webhookPayload struct {
	Username string         `json:"username"`
	Embeds   []webhookEmbed `json:"embeds"`
}

type webhookEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []webhookField `json:"fields"`
	Timestamp string         `json:"timestamp"`
}

type webhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// WebhookNotifier posts failure alerts to a configurable destination URL.
// The target may be changed at runtime through the settings endpoint; an
// empty target disables delivery.
type WebhookNotifier struct {
	client *http.Client

	mu  sync.RWMutex
	url string
}

// NewWebhookNotifier creates a WebhookNotifier with the given initial
// target URL (may be empty).
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		client: &http.Client{Timeout: 5 * time.Second},
		url:    url,
	}
}

// SetURL replaces the destination; an empty string disables alerts.
func (n *WebhookNotifier) SetURL(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.url = url
}

// URL returns the current destination.
func (n *WebhookNotifier) URL() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.url
}

// Notify posts the alert payload for one failed event. Delivery is
// best-effort and exactly one attempt is made.
func (n *WebhookNotifier) Notify(ctx context.Context, event domain.PaymentEvent) error {
	url := n.URL()
	if url == "" {
		return nil
	}

	body, err := json.Marshal(BuildPayload(event))
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert destination returned status %d", resp.StatusCode)
	}
	return nil
}

// BuildPayload assembles the fixed-shape notification for a failed event:
// endpoint, failure reason, outcome code, truncated payer, timestamp.
func BuildPayload(event domain.PaymentEvent) any {
	payer := "Unknown"
	if event.Payer != "" {
		truncated := event.Payer
		if len(truncated) > 8 {
			truncated = truncated[:8]
		}
		payer = fmt.Sprintf("`%s...`", truncated)
	}

	reason := string(event.FailureReason)
	if reason == "" {
		reason = string(domain.FailureUnknown)
	}

	return webhookPayload{
		Username: "Paywatch Alert",
		Embeds: []webhookEmbed{
			{
				Title: "Payment Failed",
				Color: alertColorRed,
				Fields: []webhookField{
					{Name: "Endpoint", Value: fmt.Sprintf("`%s`", event.Endpoint), Inline: true},
					{Name: "Reason", Value: fmt.Sprintf("`%s`", reason), Inline: true},
					{Name: "Status", Value: fmt.Sprintf("%d", event.Outcome), Inline: true},
					{Name: "Payer", Value: payer},
				},
				Timestamp: time.UnixMilli(event.StartedAt).UTC().Format(time.RFC3339),
			},
		},
	}
}
