package models

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes actors who own their tenant from actors enrolled
// into somebody else's tenant.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Valid reports whether r is one of the known role variants.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleMember:
		return true
	}
	return false
}

type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	TenantID  uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Email     string    `json:"email" db:"email"`
	Role      Role      `json:"role" db:"role"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EffectiveTenantID resolves the tenant that scopes every read and write
// this user performs. An owner's own ID doubles as their tenant ID; a
// member is scoped to the tenant they were enrolled into. Pure and
// deterministic for a well-formed user record.
func (u *User) EffectiveTenantID() uuid.UUID {
	switch u.Role {
	case RoleOwner:
		return u.ID
	case RoleMember:
		return u.TenantID
	}
	// Unknown roles never reach the service layer; fall back to member scoping.
	return u.TenantID
}
