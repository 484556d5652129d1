package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"propmarket/recovery"
)

// Target is a claim an actor submits over and over.
type Target struct {
	Email string
	Name  string
	Phone string
}

func stopped(ctx context.Context, stop <-chan struct{}) (bool, error) {
	select {
	case <-ctx.Done():
		return true, ctx.Err()
	case <-stop:
		return true, nil
	default:
		return false, nil
	}
}

// Claimant verifies and resets its own account with the right details.
// Refusals are tolerated because chaos can turn a lookup into a fault.
func Claimant(ctx context.Context, svc *recovery.Service, t Target, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		if _, err := svc.Verify(ctx, recovery.VerifyRequest{Email: t.Email, Name: t.Name, Phone: t.Phone}); err != nil {
			return fmt.Errorf("claimant verify: %w", err)
		}
		err := svc.Reset(ctx, recovery.ResetRequest{
			Email:       t.Email,
			Name:        t.Name,
			Phone:       t.Phone,
			NewPassword: fmt.Sprintf("pw-%016x", rand.Uint64()),
		})
		var verr *recovery.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("claimant reset: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Impostor knows a real email but not the phone. It must never be
// authorized.
func Impostor(ctx context.Context, svc *recovery.Service, t Target, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		guess := fmt.Sprintf("%010d", rand.Int63n(1e10))
		res, err := svc.Verify(ctx, recovery.VerifyRequest{Email: t.Email, Name: t.Name, Phone: guess})
		if err != nil {
			return fmt.Errorf("impostor verify: %w", err)
		}
		if res.Found && guess != recovery.NormalizePhone(t.Phone) {
			return fmt.Errorf("impostor verified %s with phone %s", t.Email, guess)
		}
		err = svc.Reset(ctx, recovery.ResetRequest{
			Email: t.Email, Name: t.Name, Phone: guess, NewPassword: "impostor-pass",
		})
		if err == nil {
			return fmt.Errorf("impostor reset succeeded for %s", t.Email)
		}
		if !errors.Is(err, recovery.ErrNotAuthorized) {
			return fmt.Errorf("impostor reset: unexpected error: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Prober enumerates addresses that were never registered.
func Prober(ctx context.Context, svc *recovery.Service, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		email := fmt.Sprintf("probe-%d@example.net", rand.Int63())
		res, err := svc.Verify(ctx, recovery.VerifyRequest{Email: email, Name: "any body", Phone: "5550000000"})
		if err != nil {
			return fmt.Errorf("prober verify: %w", err)
		}
		if res.Found {
			return fmt.Errorf("prober found unregistered %s", email)
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// AuditTamperer tries to rewrite and delete audit rows. The table must refuse.
func AuditTamperer(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		tag, err := pool.Exec(ctx, `
			UPDATE recovery_audit_events SET outcome = 'password_reset'
			WHERE id = (SELECT id FROM recovery_audit_events ORDER BY random() LIMIT 1)`)
		if err == nil && tag.RowsAffected() > 0 {
			return fmt.Errorf("audit row rewritten")
		}
		tag, err = pool.Exec(ctx, `
			DELETE FROM recovery_audit_events
			WHERE id = (SELECT id FROM recovery_audit_events ORDER BY random() LIMIT 1)`)
		if err == nil && tag.RowsAffected() > 0 {
			return fmt.Errorf("audit row deleted")
		}
		time.Sleep(time.Duration(100+rand.Intn(100)) * time.Millisecond)
	}
}
