package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	identity "streak/contracts/identity"
	id "streak/pkg/domain"
)

func TestNowPrefersPinnedTime(t *testing.T) {
	pinned := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := WithTime(context.Background(), pinned)
	assert.Equal(t, pinned, Now(ctx))
	assert.False(t, Now(context.Background()).IsZero())
}

func TestPrincipalRoundTrip(t *testing.T) {
	_, ok := Principal(context.Background())
	assert.False(t, ok, "no principal outside a resolved request")

	p := identity.Principal{
		ExternalUserID: "user_1",
		TenantID:       id.TenantID(uuid.New()),
		Role:           identity.RoleMember,
	}
	got, ok := Principal(WithPrincipal(context.Background(), p))
	assert.True(t, ok)
	assert.Equal(t, p, got)

	_, ok = Principal(WithPrincipal(context.Background(), identity.Principal{ExternalUserID: "user_1"}))
	assert.False(t, ok, "a principal without tenant is not usable")
}
