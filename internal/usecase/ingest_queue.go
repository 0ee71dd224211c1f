package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/paywatch/paywatch/internal/domain"
)

// AsyncIngestor decouples the payment-gated request path from event
// ingestion. Submit enqueues and returns immediately; a background worker
// drains the queue. When the queue is full the candidate is dropped and
// counted, never blocking the caller.
type AsyncIngestor struct {
	uc      *IngestEventUseCase
	queue   chan CandidateEvent
	logger  *slog.Logger
	dropped func() // optional metrics hook
}

// NewAsyncIngestor creates an AsyncIngestor with a bounded queue. dropped
// is invoked once per discarded candidate; pass nil to disable.
func NewAsyncIngestor(uc *IngestEventUseCase, queueSize int, logger *slog.Logger, dropped func()) *AsyncIngestor {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &AsyncIngestor{
		uc:      uc,
		queue:   make(chan CandidateEvent, queueSize),
		logger:  logger,
		dropped: dropped,
	}
}

// Submit hands a candidate to the background worker without waiting.
func (a *AsyncIngestor) Submit(cand CandidateEvent) {
	select {
	case a.queue <- cand:
	default:
		if a.dropped != nil {
			a.dropped()
		}
		a.logger.Warn("ingest queue full, dropping event", "endpoint", cand.Endpoint)
	}
}

// Depth reports the number of queued candidates, for metrics.
func (a *AsyncIngestor) Depth() int {
	return len(a.queue)
}

// Run drains the queue until ctx is cancelled. Ingestion errors are
// logged and discarded; they never reach the request path.
func (a *AsyncIngestor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cand := <-a.queue:
			if _, err := a.uc.Ingest(ctx, cand); err != nil {
				if errors.Is(err, domain.ErrInvalidEvent) {
					a.logger.Warn("dropping malformed event", "error", err, "endpoint", cand.Endpoint)
					continue
				}
				a.logger.Error("failed to ingest event", "error", err, "endpoint", cand.Endpoint)
			}
		}
	}
}
