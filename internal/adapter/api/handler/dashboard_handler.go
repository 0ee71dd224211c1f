package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paywatch/paywatch/internal/domain"
	"github.com/paywatch/paywatch/internal/usecase"
)

// subscriptionPriceUSDC is the price hint advertised with a 402
// challenge, 10000 atomic units.
const subscriptionPriceUSDC = "0.01"

// DashboardHandler serves the read side: aggregated summaries, raw
// events, and subscription checks. All answers are computed from the
// event store at request time.
type DashboardHandler struct {
	summarize    *usecase.SummarizeUseCase
	subscription *usecase.SubscriptionUseCase
	repo         domain.EventRepository
	logger       *slog.Logger
	scopeID      string
	recentLimit  int
	window       time.Duration
}

// NewDashboardHandler creates a new DashboardHandler bound to one
// dashboard scope.
func NewDashboardHandler(
	summarize *usecase.SummarizeUseCase,
	subscription *usecase.SubscriptionUseCase,
	repo domain.EventRepository,
	logger *slog.Logger,
	scopeID string,
	recentLimit int,
	window time.Duration,
) *DashboardHandler {
	return &DashboardHandler{
		summarize:    summarize,
		subscription: subscription,
		repo:         repo,
		logger:       logger,
		scopeID:      scopeID,
		recentLimit:  recentLimit,
		window:       window,
	}
}

// Summary returns the full dashboard aggregate for the scope.
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.summarize.Summary(r.Context(), h.scopeID)
	if err != nil {
		h.logger.Error("failed to build dashboard summary", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// RecentEvents returns the newest events, newest first. An optional
// ?limit= caps the result below the configured default.
func (h *DashboardHandler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := h.recentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	events, err := h.repo.Recent(r.Context(), h.scopeID, limit)
	if err != nil {
		h.logger.Error("failed to read recent events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}
	if events == nil {
		events = []domain.PaymentEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// EventByID returns one event with its full lifecycle, for the
// transaction inspector.
func (h *DashboardHandler) EventByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	event, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.Error("failed to read event", "error", err, "event_id", id)
		writeError(w, http.StatusInternalServerError, "failed to read event")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Subscription answers whether a payer currently holds rolling access.
// Without an active window the response is 402 with the payment
// challenge headers the checkpoint would issue.
func (h *DashboardHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	payer := r.URL.Query().Get("payer")

	status, err := h.subscription.Check(r.Context(), h.scopeID, payer, h.window)
	if err != nil {
		h.logger.Error("failed to check subscription", "error", err, "payer", payer)
		writeError(w, http.StatusInternalServerError, "failed to check subscription")
		return
	}

	body := map[string]any{
		"status":         status.String(),
		"payer":          payer,
		"window_seconds": int64(h.window.Seconds()),
	}
	if status == usecase.AccessActive {
		writeJSON(w, http.StatusOK, body)
		return
	}

	w.Header().Set("Payment-Required", "true")
	w.Header().Set("Payment-Price", subscriptionPriceUSDC)
	writeJSON(w, http.StatusPaymentRequired, body)
}
