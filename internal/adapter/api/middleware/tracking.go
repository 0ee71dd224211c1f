package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/paywatch/paywatch/internal/domain"
	"github.com/paywatch/paywatch/internal/usecase"
)

// paymentResponseHeader carries base64-encoded settlement metadata
// attached by the checkpoint on successful settlement.
const paymentResponseHeader = "X-Payment-Response"

// EventSink receives the assembled candidate without blocking; the
// AsyncIngestor satisfies it.
type EventSink interface {
	Submit(cand usecase.CandidateEvent)
}

// StageRecorder collects real lifecycle stage timings captured around the
// checkpoint's outbound calls. Each request gets its own recorder via the
// request context, so concurrent requests never share interception state
// and nothing global is patched.
type StageRecorder struct {
	mu     sync.Mutex
	stages []domain.LifecycleStage
}

func NewStageRecorder() *StageRecorder {
	return &StageRecorder{}
}

// Record appends one captured stage.
func (r *StageRecorder) Record(name string, timestampMs, durationMs int64, meta map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, domain.LifecycleStage{
		Name:        name,
		TimestampMs: timestampMs,
		DurationMs:  durationMs,
		Meta:        meta,
	})
}

// Stages returns a copy of everything recorded so far.
func (r *StageRecorder) Stages() []domain.LifecycleStage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LifecycleStage, len(r.stages))
	copy(out, r.stages)
	return out
}

type stageRecorderKey struct{}

// WithStageRecorder attaches a recorder to the context.
func WithStageRecorder(ctx context.Context, rec *StageRecorder) context.Context {
	return context.WithValue(ctx, stageRecorderKey{}, rec)
}

// StageRecorderFrom returns the request-scoped recorder, or nil when the
// request is not being tracked.
func StageRecorderFrom(ctx context.Context) *StageRecorder {
	rec, _ := ctx.Value(stageRecorderKey{}).(*StageRecorder)
	return rec
}

// Tracking wraps the payment checkpoint handler and records every gated
// request as a telemetry candidate. The checkpoint's response is returned
// to the caller untouched, and the hand-off to ingestion is
// fire-and-forget: telemetry can never fail or delay the payment path.
// Each request gets a fresh recorder bound to its context, so a panic in
// the checkpoint propagates without emitting telemetry and leaves no
// recorder state for later requests to inherit.
func Tracking(scopeID string, sink EventSink, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := NewStageRecorder()
			ctx := WithStageRecorder(r.Context(), rec)
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r.WithContext(ctx))

			durationMs := time.Since(start).Milliseconds()

			cand := usecase.CandidateEvent{
				ScopeID:    scopeID,
				Endpoint:   r.URL.Path,
				Status:     rw.statusCode,
				DurationMs: durationMs,
				Lifecycle:  rec.Stages(),
			}

			if rw.statusCode == int(domain.OutcomeSettled) {
				if raw := rw.Header().Get(paymentResponseHeader); raw != "" {
					cand.TxHash, cand.Payer = decodeSettlement(raw)
					if cand.TxHash == "" && cand.Payer == "" {
						logger.Debug("unparseable settlement header", "endpoint", r.URL.Path)
					}
				}
			}

			sink.Submit(cand)
		})
	}
}

// decodeSettlement parses the base64 JSON settlement payload. Malformed
// headers are swallowed: telemetry degrades to nulled fields rather than
// touching the payment flow.
func decodeSettlement(raw string) (txHash, payer string) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", ""
	}

	var payload struct {
		TxHash      string `json:"txHash"`
		Payer       string `json:"payer"`
		Sender      string `json:"sender"`
		Transaction struct {
			Hash string `json:"hash"`
		} `json:"transaction"`
	}
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return "", ""
	}

	txHash = payload.TxHash
	if txHash == "" {
		txHash = payload.Transaction.Hash
	}
	payer = payload.Payer
	if payer == "" {
		payer = payload.Sender
	}
	return txHash, payer
}
