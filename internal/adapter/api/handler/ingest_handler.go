package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/paywatch/paywatch/internal/adapter/metrics"
	"github.com/paywatch/paywatch/internal/domain"
	"github.com/paywatch/paywatch/internal/usecase"
)

const maxEventBodyBytes = 64 << 10

// IngestHandler accepts externally emitted payment events. Instrumented
// checkpoints report through the tracking middleware instead; this
// endpoint exists for gateways running outside this process.
type IngestHandler struct {
	useCase *usecase.IngestEventUseCase
	metrics *metrics.GatewayMetrics
	logger  *slog.Logger
	scopeID string
}

// NewIngestHandler creates a new IngestHandler. scopeID is the dashboard
// scope applied when the payload does not carry one.
func NewIngestHandler(uc *usecase.IngestEventUseCase, m *metrics.GatewayMetrics, logger *slog.Logger, scopeID string) *IngestHandler {
	return &IngestHandler{
		useCase: uc,
		metrics: m,
		logger:  logger,
		scopeID: scopeID,
	}
}

// ServeHTTP processes one posted candidate event.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEventBodyBytes)

	var cand usecase.CandidateEvent
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&cand); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if cand.ScopeID == "" {
		cand.ScopeID = h.scopeID
	}

	event, err := h.useCase.Ingest(r.Context(), cand)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEvent) {
			h.metrics.EventsTotal.WithLabelValues("error_validation").Inc()
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to ingest event", "error", err, "endpoint", cand.Endpoint)
		writeError(w, http.StatusInternalServerError, "failed to store event")
		return
	}

	// Per-outcome counting happens at the store, where both ingress
	// paths converge.
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok": true,
		"id": event.ID,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
