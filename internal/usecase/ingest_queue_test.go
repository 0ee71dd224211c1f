package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/paywatch/paywatch/internal/adapter/metrics"
	memoryrepo "github.com/paywatch/paywatch/internal/adapter/repository/memory"
	"github.com/paywatch/paywatch/internal/domain/mocks"
)

func TestAsyncIngestor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Submit Never Blocks And Worker Ingests", func(t *testing.T) {
		repo := &mocks.MockEventRepository{}
		ing := NewAsyncIngestor(newTestIngest(repo), 16, logger, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go ing.Run(ctx)

		start := time.Now()
		ing.Submit(CandidateEvent{ScopeID: "A", Endpoint: "/w", Status: 200, DurationMs: 5})
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Errorf("submit took %v, expected near-zero latency", elapsed)
		}

		deadline := time.After(2 * time.Second)
		for {
			if repo.EventCount() == 1 {
				break
			}
			select {
			case <-deadline:
				t.Fatal("event was never ingested by the worker")
			case <-time.After(5 * time.Millisecond):
			}
		}
	})

	t.Run("Drops On Full Queue", func(t *testing.T) {
		repo := &mocks.MockEventRepository{}
		var drops int
		ing := NewAsyncIngestor(newTestIngest(repo), 1, logger, func() { drops++ })

		// No worker running: second submit must overflow, not block.
		ing.Submit(CandidateEvent{ScopeID: "A", Endpoint: "/w", Status: 200, DurationMs: 5})
		ing.Submit(CandidateEvent{ScopeID: "A", Endpoint: "/w", Status: 200, DurationMs: 5})

		if drops != 1 {
			t.Errorf("expected 1 dropped candidate, got %d", drops)
		}
		if ing.Depth() != 1 {
			t.Errorf("expected queue depth 1, got %d", ing.Depth())
		}
	})

	t.Run("Queue Path Events Are Counted Per Outcome", func(t *testing.T) {
		repo := memoryrepo.NewEventRepository(0, logger)
		m := metrics.NewGatewayMetrics(prometheus.NewRegistry())
		repo.RegisterObserver(m)
		ing := NewAsyncIngestor(newTestIngest(repo), 16, logger, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go ing.Run(ctx)

		ing.Submit(CandidateEvent{ScopeID: "A", Endpoint: "/w", Status: 200, DurationMs: 5})
		ing.Submit(CandidateEvent{ScopeID: "A", Endpoint: "/w", Status: 402, DurationMs: 5})

		deadline := time.After(2 * time.Second)
		for repo.Len() != 2 {
			select {
			case <-deadline:
				t.Fatalf("expected 2 ingested events, got %d", repo.Len())
			case <-time.After(5 * time.Millisecond):
			}
		}

		if got := testutil.ToFloat64(m.EventsTotal.WithLabelValues("settled")); got != 1 {
			t.Errorf("expected 1 settled event counted, got %v", got)
		}
		if got := testutil.ToFloat64(m.EventsTotal.WithLabelValues("payment_required")); got != 1 {
			t.Errorf("expected 1 payment_required event counted, got %v", got)
		}
	})

	t.Run("Malformed Candidates Are Discarded", func(t *testing.T) {
		repo := &mocks.MockEventRepository{}
		ing := NewAsyncIngestor(newTestIngest(repo), 16, logger, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go ing.Run(ctx)

		ing.Submit(CandidateEvent{Endpoint: "/w", Status: 200}) // missing scope
		ing.Submit(CandidateEvent{ScopeID: "A", Endpoint: "/w", Status: 200, DurationMs: 5})

		deadline := time.After(2 * time.Second)
		for {
			if repo.EventCount() == 1 {
				break
			}
			select {
			case <-deadline:
				t.Fatalf("expected exactly the valid event to land, got %d", repo.EventCount())
			case <-time.After(5 * time.Millisecond):
			}
		}
	})
}
