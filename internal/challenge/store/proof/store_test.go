package proof

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streak/internal/challenge/models"
	id "streak/pkg/domain"
	"streak/pkg/platform/sentinel"
)

func TestPostgresCountByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tenantID, challengeID := id.NewTenantID(), id.NewChallengeID()
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY external_user_id")).
		WithArgs(tenantID.String(), challengeID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"external_user_id", "count"}).AddRow("u1", 3).AddRow("u2", 1))

	counts, err := NewPostgres(db).CountByUser(context.Background(), tenantID, challengeID)
	require.NoError(t, err)
	assert.Equal(t, map[id.ExternalUserID]int{"u1": 3, "u2": 1}, counts)
}

func TestPostgresListFiltersByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tenantID, challengeID := id.NewTenantID(), id.NewChallengeID()
	mock.ExpectQuery(regexp.QuoteMeta("AND external_user_id = $3 ORDER BY submitted_at DESC, id DESC LIMIT $4 OFFSET $5")).
		WithArgs(tenantID.String(), challengeID.String(), "u1", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewPostgres(db).List(context.Background(), tenantID, challengeID, "u1", models.Page{Limit: 50})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInMemoryOneProofPerPeriod(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	tenantID, challengeID, enrollmentID := id.NewTenantID(), id.NewChallengeID(), id.NewEnrollmentID()
	proof := func(period string, at time.Time) *models.Proof {
		return &models.Proof{
			ID: id.NewProofID(), TenantID: tenantID, ChallengeID: challengeID, EnrollmentID: enrollmentID,
			ExternalUserID: "u1", PeriodKey: period, SubmittedAt: at,
		}
	}
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, proof("2026-W02", base)))
	assert.ErrorIs(t, store.Create(ctx, proof("2026-W02", base.Add(time.Hour))), sentinel.ErrAlreadyUsed)
	require.NoError(t, store.Create(ctx, proof("2026-W03", base.Add(7*24*time.Hour))))

	list, err := store.List(ctx, tenantID, challengeID, "", models.Page{Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2026-W03", list[0].PeriodKey)

	other, err := store.List(ctx, tenantID, challengeID, "u2", models.Page{})
	require.NoError(t, err)
	assert.Empty(t, other)
}
