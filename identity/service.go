package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("identity: password must be at least 8 characters")
	// ErrEmailRequired signals a sign-up without an email address.
	ErrEmailRequired = errors.New("identity: email is required")
)

// MinPasswordLength is enforced on sign-up and on every password change.
const MinPasswordLength = 8

const tokenTTL = 24 * time.Hour

// Directory is the identity directory: one account per email, administrative
// lookup by email and password mutation by account id, plus the sign-in flow
// the mobile clients use.
type Directory struct {
	repo      Repository
	jwtSecret []byte
	hashCost  int
	now       func() time.Time
}

// SignInResult bundles the token and account returned after a successful sign-in.
type SignInResult struct {
	Token   string
	Account Account
}

// NewDirectory creates a directory over repo signing tokens with jwtSecret.
func NewDirectory(repo Repository, jwtSecret string) *Directory {
	return &Directory{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		hashCost:  bcrypt.DefaultCost,
		now:       time.Now,
	}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (d *Directory) WithHashCost(cost int) *Directory {
	d.hashCost = cost
	return d
}

// WithClock overrides the token clock.
func (d *Directory) WithClock(now func() time.Time) *Directory {
	d.now = now
	return d
}

// LookupAccountID resolves an email to its account id. It returns
// ErrAccountNotFound when the email is not registered.
func (d *Directory) LookupAccountID(ctx context.Context, email string) (string, error) {
	account, err := d.repo.GetAccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", err
	}
	return account.ID, nil
}

// SetPassword replaces the credential of accountID. It is an administrative
// operation: callers are responsible for having authorized the change.
func (d *Directory) SetPassword(ctx context.Context, accountID, newPassword string) error {
	if accountID == "" {
		return fmt.Errorf("identity: account id required")
	}
	if len(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), d.hashCost)
	if err != nil {
		return fmt.Errorf("identity: hash password: %w", err)
	}

	return d.repo.UpdatePasswordHash(ctx, accountID, string(hash))
}

// Register creates a new account.
func (d *Directory) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	if len(req.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), d.hashCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	account, err := d.repo.CreateAccount(ctx, email, string(hash))
	if err != nil {
		return nil, err
	}

	return &account, nil
}

// SignIn authenticates an account and returns a JWT token.
func (d *Directory) SignIn(ctx context.Context, req SignInRequest) (SignInResult, error) {
	account, err := d.repo.GetAccountByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return SignInResult{}, ErrInvalidCredentials
		}
		return SignInResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return SignInResult{}, ErrInvalidCredentials
	}

	token, err := d.generateToken(account.ID)
	if err != nil {
		return SignInResult{}, fmt.Errorf("identity: generate token: %w", err)
	}

	return SignInResult{
		Token:   token,
		Account: account,
	}, nil
}

// VerifyToken validates a JWT token and returns the account ID.
func (d *Directory) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return d.jwtSecret, nil
	}, jwt.WithTimeFunc(d.now))
	if err != nil {
		return "", fmt.Errorf("identity: parse token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		accountID, ok := claims["account_id"].(string)
		if !ok || accountID == "" {
			return "", fmt.Errorf("identity: invalid account_id in token")
		}
		return accountID, nil
	}

	return "", fmt.Errorf("identity: invalid token")
}

func (d *Directory) generateToken(accountID string) (string, error) {
	now := d.now()
	claims := jwt.MapClaims{
		"account_id": accountID,
		"exp":        now.Add(tokenTTL).Unix(),
		"iat":        now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(d.jwtSecret)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
