package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/paywatch/paywatch/internal/domain"
)

// EventArchive is the durable Postgres sink for payment events. The
// in-memory store remains the source of truth for reads; the archive
// exists so history survives process restarts.
type EventArchive struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEventArchive creates a new Postgres event archive.
func NewEventArchive(db *sql.DB, logger *slog.Logger) *EventArchive {
	return &EventArchive{db: db, logger: logger.With("component", "postgres_event_archive")}
}

// WriteEvents writes a batch using the COPY protocol, staged through a
// temp table and upserted on event_id so replayed batches stay
// idempotent.
func (a *EventArchive) WriteEvents(ctx context.Context, events []domain.PaymentEvent) error {
	if len(events) == 0 {
		return nil
	}

	txn, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback() // Rollback is a no-op if Commit() is called

	tempTableName := "payment_events_temp_import"
	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+tempTableName+` (LIKE payment_events INCLUDING DEFAULTS) ON COMMIT DROP;`)
	if err != nil {
		return err
	}

	stmt, err := txn.Prepare(pq.CopyIn(tempTableName,
		"event_id", "scope_id", "endpoint", "status", "amount_usdc",
		"started_at", "duration_ms", "tx_hash", "payer", "failure_reason", "lifecycle"))
	if err != nil {
		return err
	}

	for _, event := range events {
		lifecycle, err := json.Marshal(event.Lifecycle)
		if err != nil {
			_ = stmt.Close()
			return err
		}
		_, err = stmt.ExecContext(ctx,
			event.ID,
			event.ScopeID,
			event.Endpoint,
			int(event.Outcome),
			event.AmountUSDC,
			time.UnixMilli(event.StartedAt).UTC(),
			event.DurationMs,
			nullable(event.TxHash),
			nullable(event.Payer),
			nullable(string(event.FailureReason)),
			lifecycle,
		)
		if err != nil {
			_ = stmt.Close()
			return err
		}
	}

	if err := stmt.Close(); err != nil {
		return err
	}

	upsertQuery := `
		INSERT INTO payment_events (event_id, scope_id, endpoint, status, amount_usdc, started_at, duration_ms, tx_hash, payer, failure_reason, lifecycle)
		SELECT event_id, scope_id, endpoint, status, amount_usdc, started_at, duration_ms, tx_hash, payer, failure_reason, lifecycle FROM ` + tempTableName + `
		ON CONFLICT (event_id) DO NOTHING;
	`
	if _, err := txn.ExecContext(ctx, upsertQuery); err != nil {
		return err
	}

	return txn.Commit()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
