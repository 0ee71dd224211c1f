package integration

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paywatch/paywatch/internal/adapter/api"
	"github.com/paywatch/paywatch/internal/adapter/api/handler"
	"github.com/paywatch/paywatch/internal/adapter/api/middleware"
	"github.com/paywatch/paywatch/internal/adapter/geo"
	"github.com/paywatch/paywatch/internal/adapter/lifecycle"
	"github.com/paywatch/paywatch/internal/adapter/metrics"
	"github.com/paywatch/paywatch/internal/adapter/notifier"
	memoryrepo "github.com/paywatch/paywatch/internal/adapter/repository/memory"
	"github.com/paywatch/paywatch/internal/domain"
	"github.com/paywatch/paywatch/internal/pkg/config"
	"github.com/paywatch/paywatch/internal/usecase"

	"github.com/prometheus/client_golang/prometheus"
)

const scopeID = "scope-integration"

// TestGatewayPipeline drives the full in-process pipeline: a payment
// checkpoint wrapped by the tracking middleware, the async ingestion
// queue, the event store with its observers, and the query API.
func TestGatewayPipeline(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Alert destination capturing webhook deliveries.
	var alertMu sync.Mutex
	var alerts []map[string]any
	alertServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("malformed alert payload: %v", err)
		}
		alertMu.Lock()
		alerts = append(alerts, payload)
		alertMu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer alertServer.Close()

	// Store plus observers.
	repo := memoryrepo.NewEventRepository(1000, logger)

	webhook := notifier.NewWebhookNotifier(alertServer.URL)
	dispatcher := notifier.NewDispatcher(webhook, 60, logger, nil)
	repo.RegisterObserver(dispatcher)
	go dispatcher.Run(ctx)

	broker := handler.NewEventBroker(ctx, logger)
	repo.RegisterObserver(broker)

	// Ingestion pipeline.
	prices := map[string]float64{"/api/premium/weather": 0.001}
	ingestUseCase := usecase.NewIngestEventUseCase(repo, lifecycle.NewReconstructor(), geo.NewLocator(), prices, logger)
	ingestor := usecase.NewAsyncIngestor(ingestUseCase, 64, logger, nil)
	go ingestor.Run(ctx)

	// A fake payment checkpoint: settles when the caller presents a
	// payment, otherwise issues a 402 challenge.
	checkpoint := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payer := r.Header.Get("X-Test-Payer")
		if payer == "" {
			w.WriteHeader(http.StatusPaymentRequired)
			return
		}
		settlement, _ := json.Marshal(map[string]any{"txHash": "0xintegration", "payer": payer})
		w.Header().Set("X-Payment-Response", base64.StdEncoding.EncodeToString(settlement))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"forecast": "sunny"}`))
	})
	gated := httptest.NewServer(middleware.Tracking(scopeID, ingestor, logger)(checkpoint))
	defer gated.Close()

	// Query API over the same store.
	cfg := &config.Config{
		ScopeID:            scopeID,
		RecentLimit:        50,
		SubscriptionWindow: 5 * time.Minute,
	}
	m := metrics.NewGatewayMetrics(prometheus.NewRegistry())
	apiServer := httptest.NewServer(api.NewRouter(api.RouterDeps{
		Config:       cfg,
		Logger:       logger,
		Repo:         repo,
		Ingest:       handler.NewIngestHandler(ingestUseCase, m, logger, scopeID),
		Summarize:    usecase.NewSummarizeUseCase(repo, cfg.RecentLimit),
		Subscription: usecase.NewSubscriptionUseCase(repo),
		Settings:     handler.NewSettingsHandler(webhook, logger),
		Broker:       broker,
	}))
	defer apiServer.Close()

	// Drive traffic through the checkpoint: two settlements and one
	// request without payment.
	for _, payer := range []string{"0xalice", "0xalice", ""} {
		req, err := http.NewRequest(http.MethodGet, gated.URL+"/api/premium/weather", nil)
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		if payer != "" {
			req.Header.Set("X-Test-Payer", payer)
		}
		resp, err := gated.Client().Do(req)
		if err != nil {
			t.Fatalf("checkpoint request: %v", err)
		}
		resp.Body.Close()
	}

	// One event posted straight to the ingestion endpoint.
	resp, err := http.Post(apiServer.URL+"/api/events", "application/json",
		strings.NewReader(`{"endpoint": "/api/premium/weather", "status": 403, "duration_ms": 120, "payer": "0xmallory"}`))
	if err != nil {
		t.Fatalf("post event: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 from ingest endpoint, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	waitFor(t, 3*time.Second, func() bool { return repo.Len() == 4 })

	t.Run("Dashboard Summary Reflects Traffic", func(t *testing.T) {
		resp, err := http.Get(apiServer.URL + "/api/dashboard")
		if err != nil {
			t.Fatalf("get dashboard: %v", err)
		}
		defer resp.Body.Close()

		var summary domain.DashboardSummary
		if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
			t.Fatalf("decode summary: %v", err)
		}
		if summary.TotalEvents != 4 {
			t.Errorf("expected 4 events in summary, got %d", summary.TotalEvents)
		}
		if summary.SuccessRate != 0.5 {
			t.Errorf("expected 0.5 success rate, got %f", summary.SuccessRate)
		}
		if summary.TotalRevenueUSDC != 0.002 {
			t.Errorf("expected 0.002 USDC revenue, got %f", summary.TotalRevenueUSDC)
		}
		if len(summary.TopWallets) != 1 || summary.TopWallets[0].Address != "0xalice" {
			t.Errorf("expected 0xalice as top wallet, got %+v", summary.TopWallets)
		}
	})

	t.Run("Recent Events Carry Lifecycle", func(t *testing.T) {
		resp, err := http.Get(apiServer.URL + "/api/events?limit=10")
		if err != nil {
			t.Fatalf("get events: %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Events []domain.PaymentEvent `json:"events"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode events: %v", err)
		}
		if len(body.Events) != 4 {
			t.Fatalf("expected 4 recent events, got %d", len(body.Events))
		}
		for _, e := range body.Events {
			if len(e.Lifecycle) == 0 {
				t.Errorf("event %s missing reconstructed lifecycle", e.ID)
			}
		}
	})

	t.Run("Subscription Active For Settled Payer", func(t *testing.T) {
		resp, err := http.Get(apiServer.URL + "/api/subscription?payer=0xalice")
		if err != nil {
			t.Fatalf("get subscription: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected active subscription, got %d", resp.StatusCode)
		}
	})

	t.Run("Subscription Challenge For Stranger", func(t *testing.T) {
		resp, err := http.Get(apiServer.URL + "/api/subscription?payer=0xnobody")
		if err != nil {
			t.Fatalf("get subscription: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusPaymentRequired {
			t.Errorf("expected 402 challenge, got %d", resp.StatusCode)
		}
		if resp.Header.Get("Payment-Required") != "true" {
			t.Error("expected Payment-Required header on challenge")
		}
	})

	t.Run("Failed Events Alerted", func(t *testing.T) {
		// Two failures flowed through: the bare 402 and the posted 403.
		waitFor(t, 3*time.Second, func() bool {
			alertMu.Lock()
			defer alertMu.Unlock()
			return len(alerts) == 2
		})

		alertMu.Lock()
		defer alertMu.Unlock()
		for _, payload := range alerts {
			if payload["username"] != "Paywatch Alert" {
				t.Errorf("unexpected alert username: %v", payload["username"])
			}
		}
	})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
