package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/paywatch/paywatch/internal/domain"
)

const (
	defaultArchiveBatchSize = 500
	defaultArchiveInterval  = 5 * time.Second
)

// ArchiveWriter is the durable sink for payment events (e.g. Postgres).
type ArchiveWriter interface {
	WriteEvents(ctx context.Context, events []domain.PaymentEvent) error
}

// ArchiveEventsUseCase mirrors appended events into a durable archive. It
// observes the store, batches events, and flushes on size or interval.
// Archival is a side channel: failures are logged and the batch dropped,
// never surfaced to the append path.
type ArchiveEventsUseCase struct {
	writer    ArchiveWriter
	logger    *slog.Logger
	queue     chan domain.PaymentEvent
	batchSize int
	interval  time.Duration
}

// NewArchiveEventsUseCase creates an archive flusher observing store
// appends.
func NewArchiveEventsUseCase(writer ArchiveWriter, logger *slog.Logger) *ArchiveEventsUseCase {
	return &ArchiveEventsUseCase{
		writer:    writer,
		logger:    logger,
		queue:     make(chan domain.PaymentEvent, 4096),
		batchSize: defaultArchiveBatchSize,
		interval:  defaultArchiveInterval,
	}
}

// EventAppended implements domain.EventObserver. It never blocks; when
// the queue is full the event is dropped from the archive only.
func (uc *ArchiveEventsUseCase) EventAppended(event domain.PaymentEvent) {
	select {
	case uc.queue <- event:
	default:
		uc.logger.Warn("archive queue full, dropping event", "event_id", event.ID)
	}
}

// Run batches and flushes until ctx is cancelled, then performs a final
// flush of whatever is buffered.
func (uc *ArchiveEventsUseCase) Run(ctx context.Context) {
	ticker := time.NewTicker(uc.interval)
	defer ticker.Stop()

	batch := make([]domain.PaymentEvent, 0, uc.batchSize)

	flush := func(flushCtx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := uc.writer.WriteEvents(flushCtx, batch); err != nil {
			uc.logger.Error("failed to archive event batch", "error", err, "count", len(batch))
		} else {
			uc.logger.Debug("archived event batch", "count", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(shutdownCtx)
			cancel()
			return
		case e := <-uc.queue:
			batch = append(batch, e)
			if len(batch) >= uc.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}
