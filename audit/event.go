// Package audit records one append-only event per account-recovery request.
// Events carry a keyed hash of the claimed email instead of the address itself
// and are never read back by the recovery flow.
package audit

import (
	"context"
	"time"
)

// Operation names the recovery endpoint that produced an event.
type Operation string

const (
	OperationVerify Operation = "verify"
	OperationReset  Operation = "reset"
)

// Event is a single audit record.
type Event struct {
	ID         string
	Operation  Operation
	Outcome    string
	EmailHash  string
	AccountID  string
	RequestID  string
	Detail     map[string]any
	OccurredAt time.Time
}

// Recorder persists audit events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}
