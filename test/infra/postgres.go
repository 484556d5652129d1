package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationName tags every harness connection so chaos only kills our own
// backends.
const ApplicationName = "recovery-test"

// ErrUnavailable means neither a DSN nor Docker was available.
var ErrUnavailable = errors.New("infra: no postgres available")

// Harness owns the lifecycle of the Postgres test database and pgx pool.
type Harness struct {
	container *PGContainer
	pool      *pgxpool.Pool
	dsn       string
	teardown  func(context.Context) error
}

// NewHarness prefers DATABASE_URL or RECOVERY_TEST_PG_DSN, migrating into a
// throwaway schema, and falls back to a Postgres 16 container.
func NewHarness(ctx context.Context) (*Harness, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = os.Getenv(DSNEnv)
	}
	isolate := dsn != ""

	container := &PGContainer{}
	if dsn == "" {
		if !DockerAvailable(ctx) {
			return nil, ErrUnavailable
		}
		var err error
		container, dsn, err = StartPostgres16(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("start postgres container: %w", err)
		}
	}

	pool, teardown, err := ApplyMigrations(ctx, dsn, isolate)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &Harness{
		container: container,
		pool:      pool,
		dsn:       dsn,
		teardown:  teardown,
	}, nil
}

// Start returns a ready harness or skips the test when no database is
// reachable. Resources are released through t.Cleanup.
func Start(t testing.TB) *Harness {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	h, err := NewHarness(ctx)
	if errors.Is(err, ErrUnavailable) {
		t.Skip("no DATABASE_URL and Docker unavailable; skipping integration test")
	}
	if err != nil {
		t.Fatalf("start harness: %v", err)
	}
	t.Cleanup(func() { h.Close(context.Background()) })
	return h
}

// Pool exposes the configured pgx pool.
func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

// DSN returns the connection string for direct connections (e.g., chaos).
func (h *Harness) DSN() string {
	return h.dsn
}

// Close tears down resources.
func (h *Harness) Close(ctx context.Context) {
	if h.pool != nil {
		h.pool.Close()
	}
	if h.teardown != nil {
		_ = h.teardown(ctx)
	}
	_ = h.container.Terminate(ctx)
}

// Reset truncates every table for a clean slate. TRUNCATE does not fire the
// append-only row trigger on the audit table.
func (h *Harness) Reset(ctx context.Context) error {
	tables := []string{
		"recovery_audit_events",
		"account_roles",
		"owners",
		"agents",
		"accounts",
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reset begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, tbl := range tables {
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+tbl+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", tbl, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reset commit: %w", err)
	}

	return nil
}

// DockerAvailable reports whether a docker daemon answers.
func DockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}
