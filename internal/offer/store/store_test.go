package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streak/internal/offer/models"
	id "streak/pkg/domain"
	"streak/pkg/platform/sentinel"
)

func TestPostgresListActiveOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tenantID, challengeID, offerID := id.NewTenantID(), id.NewChallengeID(), id.NewOfferID()
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("AND active ORDER BY created_at, id")).
		WithArgs(tenantID.String(), challengeID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "challenge_id", "title", "description", "plan_id",
			"price_cents", "currency", "audience", "min_proofs", "active", "created_at", "updated_at"}).
			AddRow(offerID.String(), tenantID.String(), challengeID.String(), "Coaching", "", "plan_1",
				int64(4900), "USD", "completers", 5, true, now, now))

	list, err := NewPostgres(db).ListByChallenge(context.Background(), tenantID, challengeID, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, offerID, list[0].ID)
	assert.Equal(t, models.AudienceCompleters, list[0].Audience)
	assert.Equal(t, 5, list[0].MinProofs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE offers")).WillReturnResult(sqlmock.NewResult(0, 0))
	err = NewPostgres(db).Update(context.Background(), &models.Offer{ID: id.NewOfferID(), TenantID: id.NewTenantID()})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryTenantScope(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	o := &models.Offer{ID: id.NewOfferID(), TenantID: id.NewTenantID(), ChallengeID: id.NewChallengeID(), Active: false}
	require.NoError(t, store.Create(ctx, o))

	_, err := store.FindByID(ctx, id.NewTenantID(), o.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	active, err := store.ListByChallenge(ctx, o.TenantID, o.ChallengeID, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, store.DeleteByChallenge(ctx, o.TenantID, o.ChallengeID))
	_, err = store.FindByID(ctx, o.TenantID, o.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
