package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGRecorder appends events to the recovery_audit_events table.
type PGRecorder struct {
	db Execer
}

// NewPGRecorder returns a recorder writing through db.
func NewPGRecorder(db Execer) *PGRecorder {
	return &PGRecorder{db: db}
}

// Record inserts ev. The table rejects updates and deletes.
func (r *PGRecorder) Record(ctx context.Context, ev Event) error {
	detail := ev.Detail
	if detail == nil {
		detail = map[string]any{}
	}
	body, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("audit: marshal detail: %w", err)
	}

	var accountID any
	if ev.AccountID != "" {
		accountID = ev.AccountID
	}
	var requestID any
	if ev.RequestID != "" {
		requestID = ev.RequestID
	}

	const q = `
INSERT INTO recovery_audit_events (id, operation, outcome, email_hash, account_id, request_id, detail, occurred_at)
VALUES ($1, $2, $3, $4, $5::uuid, $6, $7::jsonb, $8)
`
	if _, err := r.db.Exec(ctx, q, ev.ID, string(ev.Operation), ev.Outcome, ev.EmailHash, accountID, requestID, body, ev.OccurredAt.UTC()); err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}
