package models

import (
	"strings"
	"time"

	"streak/contracts/identity"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
)

// MemberKeyPrefix namespaces canonical keys derived from a membership context
// so they can never equal an organization id.
const MemberKeyPrefix = "ctx:"

// MaxSignalLength bounds organization and membership context ids.
const MaxSignalLength = 128

// UnresolvedHint tells embedding apps how to recover from an unresolved identity.
const UnresolvedHint = "open the app from a company dashboard or from an experience page so the company or experience context is sent"

// Tenant is one isolated customer account. CanonicalKey maps to the same ID forever.
type Tenant struct {
	ID           id.TenantID `json:"id"`
	CanonicalKey string      `json:"canonical_key"`
	DisplayName  string      `json:"display_name"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func NewTenant(tenantID id.TenantID, canonicalKey, displayName string, now time.Time) (*Tenant, error) {
	if canonicalKey == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "canonical key cannot be empty")
	}
	return &Tenant{
		ID:           tenantID,
		CanonicalKey: canonicalKey,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// AttachDisplayName reports whether the name changed. Blank names never
// overwrite an existing one.
func (t *Tenant) AttachDisplayName(name string, now time.Time) bool {
	name = strings.TrimSpace(name)
	if name == "" || name == t.DisplayName {
		return false
	}
	t.DisplayName = name
	t.UpdatedAt = now
	return true
}

// Identity maps one external platform user to exactly one tenant at a time.
type Identity struct {
	ExternalUserID id.ExternalUserID `json:"external_user_id"`
	TenantID       id.TenantID       `json:"tenant_id"`
	Role           identity.Role     `json:"role"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func NewIdentity(userID id.ExternalUserID, tenantID id.TenantID, role identity.Role, now time.Time) (*Identity, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "external user id cannot be empty")
	}
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant id cannot be empty")
	}
	if !role.Valid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown role")
	}
	return &Identity{
		ExternalUserID: userID,
		TenantID:       tenantID,
		Role:           role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Repoint moves the identity to tenantID/role and reports whether anything changed.
func (i *Identity) Repoint(tenantID id.TenantID, role identity.Role, now time.Time) bool {
	if i.TenantID == tenantID && i.Role == role {
		return false
	}
	i.TenantID = tenantID
	i.Role = role
	i.UpdatedAt = now
	return true
}

// Signals are the identity inputs taken from a verified request.
type Signals struct {
	ExternalUserID      string
	OrganizationID      string
	MembershipContextID string
	DisplayName         string
}

// Normalize trims every signal.
func (s *Signals) Normalize() {
	s.ExternalUserID = strings.TrimSpace(s.ExternalUserID)
	s.OrganizationID = strings.TrimSpace(s.OrganizationID)
	s.MembershipContextID = strings.TrimSpace(s.MembershipContextID)
	s.DisplayName = strings.TrimSpace(s.DisplayName)
}

// Target is the tenant key and role a set of signals resolves to.
type Target struct {
	CanonicalKey string
	Role         identity.Role
}

// Derive computes the canonical key and role. Owner signals win when both are
// present. It never invents a key: with neither signal it fails.
func (s Signals) Derive() (Target, error) {
	if s.ExternalUserID == "" {
		return Target{}, dErrors.New(dErrors.CodeUnauthorized, "caller is not authenticated")
	}
	if len(s.OrganizationID) > MaxSignalLength || len(s.MembershipContextID) > MaxSignalLength {
		return Target{}, dErrors.New(dErrors.CodeBadRequest, "identity signal too long")
	}
	switch {
	case s.OrganizationID != "":
		if strings.HasPrefix(s.OrganizationID, MemberKeyPrefix) {
			return Target{}, dErrors.New(dErrors.CodeBadRequest, "invalid organization id")
		}
		return Target{CanonicalKey: s.OrganizationID, Role: identity.RoleOwner}, nil
	case s.MembershipContextID != "":
		return Target{CanonicalKey: MemberKey(s.MembershipContextID), Role: identity.RoleMember}, nil
	default:
		return Target{}, dErrors.WithHint(dErrors.CodeIdentityUnresolved,
			"no company or experience context was supplied", UnresolvedHint)
	}
}

// MemberKey is a pure function of the context id, so every member of the same
// context lands in the same tenant.
func MemberKey(membershipContextID string) string {
	return MemberKeyPrefix + membershipContextID
}

// Resolution is the resolver output plus what the call changed.
type Resolution struct {
	Principal       identity.Principal
	TenantCreated   bool
	IdentityCreated bool
	Reassigned      bool
	PreviousTenant  id.TenantID
	PreviousRole    identity.Role
}

// Events published by the resolver.
type TenantCreated struct {
	TenantID     string `json:"tenant_id"`
	CanonicalKey string `json:"canonical_key"`
}

type IdentityReassigned struct {
	ExternalUserID string `json:"external_user_id"`
	FromTenantID   string `json:"from_tenant_id"`
	ToTenantID     string `json:"to_tenant_id"`
	FromRole       string `json:"from_role"`
	ToRole         string `json:"to_role"`
}
