package identity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"propmarket/identity"
	"propmarket/test/infra"
)

func TestPGRepository_Integration(t *testing.T) {
	h := infra.Start(t)
	ctx := context.Background()
	if err := h.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	repo := identity.NewRepository(h.Pool())

	created, err := repo.CreateAccount(ctx, "mixed@example.com", "$2a$04$hash")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if _, err := uuid.Parse(created.ID); err != nil {
		t.Fatalf("expected uuid id, got %q", created.ID)
	}

	if _, err := repo.CreateAccount(ctx, "MIXED@example.com", "$2a$04$other"); !errors.Is(err, identity.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	got, err := repo.GetAccountByEmail(ctx, "Mixed@Example.com")
	if err != nil {
		t.Fatalf("GetAccountByEmail: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("expected id %s, got %s", created.ID, got.ID)
	}

	if err := repo.UpdatePasswordHash(ctx, created.ID, "$2a$04$new"); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
	byID, err := repo.GetAccountByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetAccountByID: %v", err)
	}
	if byID.PasswordHash != "$2a$04$new" {
		t.Fatalf("hash not updated: %q", byID.PasswordHash)
	}

	if err := repo.UpdatePasswordHash(ctx, uuid.NewString(), "$2a$04$x"); !errors.Is(err, identity.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := repo.GetAccountByEmail(ctx, "absent@example.com"); !errors.Is(err, identity.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
