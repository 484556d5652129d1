package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"propmarket/identity"
	"propmarket/profile"
)

// Claimant describes an account plus the profile that backs its recovery.
type Claimant struct {
	Email    string
	Password string
	Role     profile.Role
	FullName string
	Phone    string
	// Unlinked leaves the account without an account_roles row.
	Unlinked bool
}

// Seeded holds the ids created for a Claimant.
type Seeded struct {
	AccountID string
	ProfileID string
}

// Seed registers c through dir and inserts its profile and role link.
func Seed(ctx context.Context, pool *pgxpool.Pool, dir *identity.Directory, c Claimant) (Seeded, error) {
	account, err := dir.Register(ctx, identity.RegisterRequest{Email: c.Email, Password: c.Password})
	if err != nil {
		return Seeded{}, fmt.Errorf("seed account %s: %w", c.Email, err)
	}
	out := Seeded{AccountID: account.ID}

	table := "owners"
	if c.Role == profile.RoleAgent {
		table = "agents"
	}
	insert := fmt.Sprintf(`INSERT INTO %s (full_name, phone) VALUES ($1, $2) RETURNING id::text`, table)
	if err := pool.QueryRow(ctx, insert, c.FullName, c.Phone).Scan(&out.ProfileID); err != nil {
		return Seeded{}, fmt.Errorf("seed %s profile: %w", c.Role, err)
	}

	if c.Unlinked {
		return out, nil
	}

	var ownerID, agentID *string
	if c.Role == profile.RoleAgent {
		agentID = &out.ProfileID
	} else {
		ownerID = &out.ProfileID
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO account_roles (account_id, role, owner_id, agent_id) VALUES ($1, $2, $3, $4)`,
		account.ID, string(c.Role), ownerID, agentID,
	); err != nil {
		return Seeded{}, fmt.Errorf("seed role link: %w", err)
	}
	return out, nil
}
