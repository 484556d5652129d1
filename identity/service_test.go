package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestDirectory(repo Repository) *Directory {
	return NewDirectory(repo, "test-secret").WithHashCost(bcrypt.MinCost)
}

func TestDirectory_RegisterAndSignIn(t *testing.T) {
	repo := newFakeRepository()
	dir := newTestDirectory(repo)

	req := RegisterRequest{
		Email:    "Alice@Example.com ",
		Password: "supersafe",
	}

	ctx := context.Background()
	account, err := dir.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}
	if account.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", account.Email)
	}

	resp, err := dir.SignIn(ctx, SignInRequest{Email: "alice@example.com", Password: req.Password})
	if err != nil {
		t.Fatalf("sign in: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("sign in: expected token, got empty string")
	}
	if resp.Account.ID != account.ID {
		t.Fatalf("sign in: expected account id %q got %q", account.ID, resp.Account.ID)
	}

	tokenAccountID, err := dir.VerifyToken(resp.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if tokenAccountID != account.ID {
		t.Fatalf("verify token: expected %q got %q", account.ID, tokenAccountID)
	}
}

func TestDirectory_RegisterValidation(t *testing.T) {
	dir := newTestDirectory(newFakeRepository())

	_, err := dir.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Password: "short",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	if _, err := dir.Register(context.Background(), RegisterRequest{
		Email:    "  ",
		Password: "strongpassword",
	}); !errors.Is(err, ErrEmailRequired) {
		t.Fatalf("expected ErrEmailRequired, got %v", err)
	}
}

func TestDirectory_DuplicateEmail(t *testing.T) {
	dir := newTestDirectory(newFakeRepository())

	req := RegisterRequest{Email: "alice@example.com", Password: "strongpassword"}
	if _, err := dir.Register(context.Background(), req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	req.Email = "ALICE@example.com"
	if _, err := dir.Register(context.Background(), req); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestDirectory_SignInInvalidCredentials(t *testing.T) {
	dir := newTestDirectory(newFakeRepository())

	_, err := dir.SignIn(context.Background(), SignInRequest{
		Email:    "unknown@example.com",
		Password: "irrelevant",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestDirectory_LookupAccountID(t *testing.T) {
	repo := newFakeRepository()
	dir := newTestDirectory(repo)

	account, err := dir.Register(context.Background(), RegisterRequest{Email: "bob@example.com", Password: "strongpassword"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	id, err := dir.LookupAccountID(context.Background(), " BOB@example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if id != account.ID {
		t.Fatalf("expected %q got %q", account.ID, id)
	}

	if _, err := dir.LookupAccountID(context.Background(), "nobody@example.com"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestDirectory_SetPasswordReplacesCredential(t *testing.T) {
	repo := newFakeRepository()
	dir := newTestDirectory(repo)
	ctx := context.Background()

	account, err := dir.Register(ctx, RegisterRequest{Email: "carol@example.com", Password: "oldpassword"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := dir.SetPassword(ctx, account.ID, "NewPass123!"); err != nil {
		t.Fatalf("set password: %v", err)
	}

	if _, err := dir.SignIn(ctx, SignInRequest{Email: "carol@example.com", Password: "oldpassword"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to be rejected, got %v", err)
	}
	if _, err := dir.SignIn(ctx, SignInRequest{Email: "carol@example.com", Password: "NewPass123!"}); err != nil {
		t.Fatalf("expected new password to be accepted, got %v", err)
	}
}

func TestDirectory_SetPasswordErrors(t *testing.T) {
	repo := newFakeRepository()
	dir := newTestDirectory(repo)
	ctx := context.Background()

	if err := dir.SetPassword(ctx, "", "NewPass123!"); err == nil {
		t.Fatal("expected error for empty account id")
	}
	if err := dir.SetPassword(ctx, "user-1", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := dir.SetPassword(ctx, "missing", "NewPass123!"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestDirectory_VerifyTokenRejectsExpiredAndForeign(t *testing.T) {
	repo := newFakeRepository()
	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	dir := newTestDirectory(repo).WithClock(func() time.Time { return issued })
	ctx := context.Background()

	if _, err := dir.Register(ctx, RegisterRequest{Email: "dan@example.com", Password: "strongpassword"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	resp, err := dir.SignIn(ctx, SignInRequest{Email: "dan@example.com", Password: "strongpassword"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	later := newTestDirectory(repo).WithClock(func() time.Time { return issued.Add(25 * time.Hour) })
	if _, err := later.VerifyToken(resp.Token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}

	other := NewDirectory(repo, "other-secret").WithClock(func() time.Time { return issued })
	if _, err := other.VerifyToken(resp.Token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

type fakeRepository struct {
	mu           sync.Mutex
	usersByEmail map[string]Account
	usersByID    map[string]Account
	nextID       int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		usersByEmail: make(map[string]Account),
		usersByID:    make(map[string]Account),
		nextID:       1,
	}
}

func (f *fakeRepository) CreateAccount(ctx context.Context, email, passwordHash string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.usersByEmail[strings.ToLower(email)]; exists {
		return Account{}, ErrDuplicateEmail
	}

	id := fmt.Sprintf("user-%d", f.nextID)
	f.nextID++

	account := Account{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	f.usersByEmail[strings.ToLower(account.Email)] = account
	f.usersByID[account.ID] = account

	return account, nil
}

func (f *fakeRepository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.usersByEmail[strings.ToLower(email)]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (f *fakeRepository) GetAccountByID(ctx context.Context, accountID string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.usersByID[accountID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (f *fakeRepository) UpdatePasswordHash(ctx context.Context, accountID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.usersByID[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.PasswordHash = passwordHash
	account.UpdatedAt = time.Now().UTC()
	f.usersByID[accountID] = account
	f.usersByEmail[strings.ToLower(account.Email)] = account
	return nil
}
