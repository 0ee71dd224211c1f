package handler

import (
	"bufio"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paywatch/paywatch/internal/domain"
)

func TestEventBroker(t *testing.T) {
	t.Run("Broadcasts Appended Event To Client", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		broker := NewEventBroker(ctx, newTestHandlerLogger())

		server := httptest.NewServer(broker)
		defer server.Close()

		resp, err := server.Client().Get(server.URL)
		if err != nil {
			t.Fatalf("connect to stream: %v", err)
		}
		defer resp.Body.Close()

		if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
			t.Fatalf("expected event-stream content type, got %q", ct)
		}

		// Wait for the connection to register before broadcasting.
		deadline := time.Now().Add(2 * time.Second)
		for broker.ClientCount() == 0 {
			if time.Now().After(deadline) {
				t.Fatal("client never registered")
			}
			time.Sleep(5 * time.Millisecond)
		}

		broker.EventAppended(domain.PaymentEvent{
			ID:       "evt-live",
			ScopeID:  "scope-1",
			Endpoint: "/api/premium/weather",
			Outcome:  domain.OutcomeSettled,
		})

		reader := bufio.NewReader(resp.Body)
		lineCh := make(chan string, 4)
		go func() {
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					return
				}
				lineCh <- line
			}
		}()

		var got []string
		timeout := time.After(2 * time.Second)
		for len(got) < 2 {
			select {
			case line := <-lineCh:
				if strings.TrimSpace(line) != "" {
					got = append(got, line)
				}
			case <-timeout:
				t.Fatalf("timed out waiting for SSE frame, got %v", got)
			}
		}

		if !strings.HasPrefix(got[0], "event: payment") {
			t.Errorf("expected payment event frame, got %q", got[0])
		}
		if !strings.Contains(got[1], `"evt-live"`) {
			t.Errorf("expected event JSON in data line, got %q", got[1])
		}
	})

	t.Run("Client Removed On Disconnect", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		broker := NewEventBroker(ctx, newTestHandlerLogger())

		server := httptest.NewServer(broker)
		defer server.Close()

		resp, err := server.Client().Get(server.URL)
		if err != nil {
			t.Fatalf("connect to stream: %v", err)
		}

		deadline := time.Now().Add(2 * time.Second)
		for broker.ClientCount() == 0 {
			if time.Now().After(deadline) {
				t.Fatal("client never registered")
			}
			time.Sleep(5 * time.Millisecond)
		}

		resp.Body.Close()

		deadline = time.Now().Add(2 * time.Second)
		for broker.ClientCount() != 0 {
			if time.Now().After(deadline) {
				t.Fatal("client never deregistered after disconnect")
			}
			time.Sleep(5 * time.Millisecond)
		}
	})

	t.Run("Full Feed Never Blocks Append Path", func(t *testing.T) {
		// No run loop draining the feed: context already cancelled.
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		broker := NewEventBroker(ctx, newTestHandlerLogger())

		done := make(chan struct{})
		go func() {
			for i := 0; i < 2000; i++ {
				broker.EventAppended(domain.PaymentEvent{ID: "evt"})
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("EventAppended blocked on a full feed")
		}
	})
}
