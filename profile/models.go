package profile

import "time"

// Role names the kind of business profile an account is linked to.
type Role string

const (
	RoleOwner Role = "owner"
	RoleAgent Role = "agent"
)

// Record captures the owner or agent attributes used as the knowledge factor
// for account recovery.
type Record struct {
	ID        string
	Role      Role
	FullName  string
	Phone     string
	CreatedAt time.Time
}

// RoleLink associates a directory account with exactly one business profile.
type RoleLink struct {
	AccountID string
	Role      Role
	OwnerID   *string
	AgentID   *string
}

// Valid reports whether exactly one profile reference is set and it agrees
// with Role.
func (l RoleLink) Valid() bool {
	hasOwner := l.OwnerID != nil && *l.OwnerID != ""
	hasAgent := l.AgentID != nil && *l.AgentID != ""
	switch l.Role {
	case RoleOwner:
		return hasOwner && !hasAgent
	case RoleAgent:
		return hasAgent && !hasOwner
	default:
		return false
	}
}

// ProfileID returns the reference selected by Role. Call Valid first.
func (l RoleLink) ProfileID() string {
	switch l.Role {
	case RoleOwner:
		if l.OwnerID != nil {
			return *l.OwnerID
		}
	case RoleAgent:
		if l.AgentID != nil {
			return *l.AgentID
		}
	}
	return ""
}
