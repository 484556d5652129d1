package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrRoleLinkNotFound signals the account has no business profile attached.
	ErrRoleLinkNotFound = errors.New("profile: role link not found")
	// ErrProfileNotFound signals the referenced owner or agent row does not exist.
	ErrProfileNotFound = errors.New("profile: not found")
)

// Repository provides read access to role links and owner/agent profiles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetRoleLink fetches the role link for an account id.
func (r *Repository) GetRoleLink(ctx context.Context, accountID string) (RoleLink, error) {
	const query = `
		SELECT account_id::text, role, owner_id::text, agent_id::text
		FROM account_roles
		WHERE account_id = $1
	`

	var link RoleLink
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&link.AccountID,
		&link.Role,
		&link.OwnerID,
		&link.AgentID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RoleLink{}, ErrRoleLinkNotFound
		}
		return RoleLink{}, fmt.Errorf("profile: query role link: %w", err)
	}

	return link, nil
}

// GetOwner fetches an owner profile by its primary key.
func (r *Repository) GetOwner(ctx context.Context, id string) (Record, error) {
	const query = `
		SELECT id::text, full_name, phone, created_at
		FROM owners
		WHERE id = $1
	`
	return r.getRecord(ctx, query, id, RoleOwner)
}

// GetAgent fetches an agent profile by its primary key.
func (r *Repository) GetAgent(ctx context.Context, id string) (Record, error) {
	const query = `
		SELECT id::text, full_name, phone, created_at
		FROM agents
		WHERE id = $1
	`
	return r.getRecord(ctx, query, id, RoleAgent)
}

func (r *Repository) getRecord(ctx context.Context, query, id string, role Role) (Record, error) {
	rec := Record{Role: role}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.FullName,
		&rec.Phone,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrProfileNotFound
		}
		return Record{}, fmt.Errorf("profile: query %s by id: %w", role, err)
	}

	return rec, nil
}
