package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/paywatch/paywatch/internal/adapter/geo"
	"github.com/paywatch/paywatch/internal/adapter/lifecycle"
	"github.com/paywatch/paywatch/internal/domain"
)

// CandidateEvent is what the instrumentation wrapper (or any external
// emitter) hands to the ingestion boundary. Amounts are never accepted
// from the caller; revenue is derived from the endpoint's configured
// price.
type CandidateEvent struct {
	ScopeID    string                  `json:"scope_id"`
	Endpoint   string                  `json:"endpoint"`
	Status     int                     `json:"status"`
	DurationMs int64                   `json:"duration_ms"`
	TxHash     string                  `json:"tx_hash,omitempty"`
	Payer      string                  `json:"payer,omitempty"`
	Lifecycle  []domain.LifecycleStage `json:"lifecycle,omitempty"`
}

// IngestEventUseCase validates a candidate, reconstructs its lifecycle,
// derives revenue from the route price table, and appends the finished
// event to the store.
type IngestEventUseCase struct {
	repo    domain.EventRepository
	recon   *lifecycle.Reconstructor
	locator *geo.Locator
	prices  map[string]float64 // endpoint -> USDC per settled request
	logger  *slog.Logger
	now     func() time.Time
}

// NewIngestEventUseCase creates a new IngestEventUseCase. prices maps
// endpoint paths to their per-request USDC price.
func NewIngestEventUseCase(repo domain.EventRepository, recon *lifecycle.Reconstructor, locator *geo.Locator, prices map[string]float64, logger *slog.Logger) *IngestEventUseCase {
	return &IngestEventUseCase{
		repo:    repo,
		recon:   recon,
		locator: locator,
		prices:  prices,
		logger:  logger,
		now:     time.Now,
	}
}

// Ingest validates, enriches, and appends one event. It rejects only
// structurally malformed input with domain.ErrInvalidEvent; every
// structurally valid candidate is stored.
func (uc *IngestEventUseCase) Ingest(ctx context.Context, cand CandidateEvent) (domain.PaymentEvent, error) {
	if err := uc.validate(cand); err != nil {
		return domain.PaymentEvent{}, err
	}

	outcome := domain.Outcome(cand.Status)
	startedAt := uc.now().UnixMilli() - cand.DurationMs

	stages, failureReason := uc.recon.Reconstruct(outcome, startedAt, cand.DurationMs, cand.Lifecycle)

	event := domain.PaymentEvent{
		ID:            uuid.NewString(),
		ScopeID:       cand.ScopeID,
		Endpoint:      cand.Endpoint,
		Outcome:       outcome,
		StartedAt:     startedAt,
		DurationMs:    cand.DurationMs,
		FailureReason: failureReason,
		Payer:         cand.Payer,
		Lifecycle:     stages,
	}

	// Revenue and the settlement reference only exist on settled
	// events; a failed payment never generates revenue.
	if outcome.Settled() {
		event.AmountUSDC = uc.prices[cand.Endpoint]
		event.TxHash = cand.TxHash
	}

	locKey := event.Payer
	if locKey == "" {
		locKey = event.ID
	}
	event.Location = uc.locator.Locate(locKey)

	if _, err := uc.repo.Append(ctx, event); err != nil {
		uc.logger.Error("failed to append payment event", "error", err, "event_id", event.ID)
		return domain.PaymentEvent{}, err
	}

	return event, nil
}

func (uc *IngestEventUseCase) validate(cand CandidateEvent) error {
	if cand.ScopeID == "" {
		return fmt.Errorf("%w: missing scope_id", domain.ErrInvalidEvent)
	}
	if cand.Endpoint == "" {
		return fmt.Errorf("%w: missing endpoint", domain.ErrInvalidEvent)
	}
	if !domain.Outcome(cand.Status).Valid() {
		return fmt.Errorf("%w: status must be one of 200, 402, 403", domain.ErrInvalidEvent)
	}
	if cand.DurationMs < 0 {
		return fmt.Errorf("%w: duration_ms must be >= 0", domain.ErrInvalidEvent)
	}
	return nil
}
