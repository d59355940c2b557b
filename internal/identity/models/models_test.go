package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streak/contracts/identity"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name    string
		signals Signals
		want    Target
		code    dErrors.Code
	}{
		{
			name:    "owner from organization",
			signals: Signals{ExternalUserID: "u1", OrganizationID: "org_1"},
			want:    Target{CanonicalKey: "org_1", Role: identity.RoleOwner},
		},
		{
			name:    "member from context",
			signals: Signals{ExternalUserID: "u2", MembershipContextID: "ctx_42"},
			want:    Target{CanonicalKey: "ctx:ctx_42", Role: identity.RoleMember},
		},
		{
			name:    "owner wins when both present",
			signals: Signals{ExternalUserID: "u1", OrganizationID: "org_1", MembershipContextID: "exp_9"},
			want:    Target{CanonicalKey: "org_1", Role: identity.RoleOwner},
		},
		{
			name:    "no user",
			signals: Signals{OrganizationID: "org_1"},
			code:    dErrors.CodeUnauthorized,
		},
		{
			name:    "no context never falls back",
			signals: Signals{ExternalUserID: "u1"},
			code:    dErrors.CodeIdentityUnresolved,
		},
		{
			name:    "organization cannot impersonate a member key",
			signals: Signals{ExternalUserID: "u1", OrganizationID: "ctx:exp_9"},
			code:    dErrors.CodeBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.signals.Derive()
			if tt.code != "" {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, tt.code), "got %v", err)
				assert.Empty(t, got.CanonicalKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemberKeyIgnoresCaller(t *testing.T) {
	a, err := Signals{ExternalUserID: "alice", MembershipContextID: "exp_1"}.Derive()
	require.NoError(t, err)
	b, err := Signals{ExternalUserID: "bob", MembershipContextID: "exp_1"}.Derive()
	require.NoError(t, err)
	assert.Equal(t, a.CanonicalKey, b.CanonicalKey)
}

func TestIdentityRepoint(t *testing.T) {
	now := time.Now()
	t1, t2 := id.NewTenantID(), id.NewTenantID()
	ident, err := NewIdentity("u1", t1, identity.RoleMember, now)
	require.NoError(t, err)

	assert.False(t, ident.Repoint(t1, identity.RoleMember, now.Add(time.Minute)))
	assert.Equal(t, now, ident.UpdatedAt)

	assert.True(t, ident.Repoint(t2, identity.RoleOwner, now.Add(time.Minute)))
	assert.Equal(t, t2, ident.TenantID)
	assert.Equal(t, identity.RoleOwner, ident.Role)
}

func TestAttachDisplayName(t *testing.T) {
	tenant, err := NewTenant(id.NewTenantID(), "org_1", "", time.Now())
	require.NoError(t, err)
	assert.False(t, tenant.AttachDisplayName("   ", time.Now()))
	assert.True(t, tenant.AttachDisplayName("Acme", time.Now()))
	assert.False(t, tenant.AttachDisplayName("Acme", time.Now()))
}
