package migrations

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExecer struct {
	statements []string
	failOn     string
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	if r.failOn != "" && strings.Contains(sql, r.failOn) {
		return pgconn.CommandTag{}, errors.New("boom")
	}
	r.statements = append(r.statements, sql)
	return pgconn.CommandTag{}, nil
}

func TestNames_Ordered(t *testing.T) {
	names, err := Names()
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	want := []string{"0001_accounts.sql", "0002_profiles.sql", "0003_recovery_audit.sql"}
	if len(names) != len(want) {
		t.Fatalf("expected %d migrations, got %v", len(want), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("migration %d: expected %s got %s", i, want[i], names[i])
		}
	}
}

func TestApply_RunsAllInOrder(t *testing.T) {
	exec := &recordingExecer{}
	if err := Apply(context.Background(), exec); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(exec.statements) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(exec.statements))
	}
	if !strings.Contains(exec.statements[0], "CREATE TABLE IF NOT EXISTS accounts") {
		t.Fatalf("expected accounts migration first")
	}
	if !strings.Contains(exec.statements[2], "recovery_audit_events") {
		t.Fatalf("expected audit migration last")
	}
}

func TestApply_StopsOnError(t *testing.T) {
	exec := &recordingExecer{failOn: "account_roles"}
	err := Apply(context.Background(), exec)
	if err == nil || !strings.Contains(err.Error(), "0002_profiles.sql") {
		t.Fatalf("expected failure naming 0002_profiles.sql, got %v", err)
	}
	if len(exec.statements) != 1 {
		t.Fatalf("expected only the first migration to run, got %d", len(exec.statements))
	}
}
