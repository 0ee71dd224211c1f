package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/paywatch/paywatch/internal/adapter/notifier"
)

// SettingsHandler exposes the alert webhook URL for runtime
// reconfiguration, so operators can point alerts at a new channel
// without a restart.
type SettingsHandler struct {
	webhook *notifier.WebhookNotifier
	logger  *slog.Logger
}

func NewSettingsHandler(webhook *notifier.WebhookNotifier, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{webhook: webhook, logger: logger}
}

// Get returns the current settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"webhook_url": h.webhook.URL(),
		"enabled":     h.webhook.URL() != "",
	})
}

// Update replaces the webhook URL. An empty URL disables delivery.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WebhookURL string `json:"webhook_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	if body.WebhookURL != "" {
		u, err := url.Parse(body.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			writeError(w, http.StatusBadRequest, "webhook_url must be an http(s) URL")
			return
		}
	}

	h.webhook.SetURL(body.WebhookURL)
	h.logger.Info("alert webhook updated", "enabled", body.WebhookURL != "")

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"webhook_url": body.WebhookURL,
	})
}
