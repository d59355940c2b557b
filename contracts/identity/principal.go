// Package identity hosts the minimal, stable shapes other modules consume after
// a request has been resolved to a tenant. Keep it free of persistence details.
package identity

import id "streak/pkg/domain"

// ContractVersion identifies the contract schema version for compatibility checks.
const ContractVersion = "v1.0.0"

// Role is the caller's authority inside the resolved tenant.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleMember Role = "MEMBER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleMember
}

// Principal is the output of identity resolution: who is acting, inside which
// tenant, and with what role. Every tenant-scoped operation takes one.
type Principal struct {
	ExternalUserID id.ExternalUserID
	TenantID       id.TenantID
	Role           Role
	CanonicalKey   string
}

// IsOwner reports whether the principal may manage the tenant's resources.
func (p Principal) IsOwner() bool {
	return p.Role == RoleOwner
}

// IsZero reports whether the principal was never resolved.
func (p Principal) IsZero() bool {
	return p.TenantID.IsNil() || p.ExternalUserID.IsNil() || !p.Role.Valid()
}
