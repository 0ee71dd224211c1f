package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/paywatch/paywatch/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockArchiveWriter struct {
	mu       sync.Mutex
	batches  [][]domain.PaymentEvent
	writeErr error
}

func (m *mockArchiveWriter) WriteEvents(ctx context.Context, events []domain.PaymentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	batch := make([]domain.PaymentEvent, len(events))
	copy(batch, events)
	m.batches = append(m.batches, batch)
	return nil
}

func (m *mockArchiveWriter) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func (m *mockArchiveWriter) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func TestArchiveEventsUseCase(t *testing.T) {
	t.Run("Final Flush On Shutdown", func(t *testing.T) {
		writer := &mockArchiveWriter{}
		uc := NewArchiveEventsUseCase(writer, newTestLogger())

		for i := 0; i < 3; i++ {
			uc.EventAppended(domain.PaymentEvent{ID: "evt-" + string(rune('a'+i))})
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			uc.Run(ctx)
			close(done)
		}()

		// Give the worker a moment to drain the queue into its batch.
		time.Sleep(50 * time.Millisecond)
		cancel()
		<-done

		if got := writer.total(); got != 3 {
			t.Errorf("expected 3 archived events after final flush, got %d", got)
		}
	})

	t.Run("Flushes When Batch Fills", func(t *testing.T) {
		writer := &mockArchiveWriter{}
		uc := NewArchiveEventsUseCase(writer, newTestLogger())
		uc.batchSize = 2
		uc.interval = time.Hour // only size-based flushes

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			uc.Run(ctx)
			close(done)
		}()

		for i := 0; i < 4; i++ {
			uc.EventAppended(domain.PaymentEvent{ID: "evt"})
		}

		deadline := time.After(2 * time.Second)
		for writer.batchCount() < 2 {
			select {
			case <-deadline:
				t.Fatalf("expected 2 size-triggered batches, got %d", writer.batchCount())
			case <-time.After(5 * time.Millisecond):
			}
		}
		cancel()
		<-done

		if got := writer.total(); got != 4 {
			t.Errorf("expected all 4 events archived, got %d", got)
		}
	})

	t.Run("Write Failure Drops Batch", func(t *testing.T) {
		writer := &mockArchiveWriter{writeErr: errors.New("connection refused")}
		uc := NewArchiveEventsUseCase(writer, newTestLogger())
		uc.interval = 10 * time.Millisecond

		uc.EventAppended(domain.PaymentEvent{ID: "evt-1"})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			uc.Run(ctx)
			close(done)
		}()

		time.Sleep(50 * time.Millisecond)

		// The archive recovers; the failed batch is gone, not retried.
		writer.mu.Lock()
		writer.writeErr = nil
		writer.mu.Unlock()

		uc.EventAppended(domain.PaymentEvent{ID: "evt-2"})
		time.Sleep(50 * time.Millisecond)
		cancel()
		<-done

		if got := writer.total(); got != 1 {
			t.Errorf("expected only the post-recovery event archived, got %d", got)
		}

		writer.mu.Lock()
		defer writer.mu.Unlock()
		if len(writer.batches) != 1 || writer.batches[0][0].ID != "evt-2" {
			t.Errorf("unexpected batches: %+v", writer.batches)
		}
	})
}
