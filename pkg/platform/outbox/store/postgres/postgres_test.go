package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "streak/pkg/domain"
	"streak/pkg/platform/outbox"
	"streak/pkg/platform/sentinel"
	txcontext "streak/pkg/platform/tx"
)

func TestAppendJoinsContextTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	entry, err := outbox.NewEntry(outbox.Event{Type: outbox.EventTenantCreated, TenantID: id.NewTenantID(), Data: struct{}{}}, time.Now())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox")).
		WithArgs(entry.ID, uuid.UUID(entry.TenantID), entry.AggregateType, entry.AggregateID, entry.EventType, entry.Payload, entry.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	runner := txcontext.NewPostgres(db)
	store := New(db)
	require.NoError(t, runner.RunInTx(context.Background(), func(ctx context.Context) error {
		return store.Append(ctx, entry)
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessedMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox SET processed_at")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = New(db).MarkProcessed(context.Background(), uuid.New(), time.Now())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestFetchUnprocessedScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	entryID, tenantID := uuid.New(), uuid.New()
	created := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM outbox")).WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "aggregate_type", "aggregate_id", "event_type", "payload", "created_at"}).
			AddRow(entryID.String(), tenantID.String(), "challenge", "c1", outbox.EventChallengeCreated, []byte(`{}`), created))

	entries, err := New(db).FetchUnprocessed(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id.TenantID(tenantID), entries[0].TenantID)
	assert.Equal(t, outbox.EventChallengeCreated, entries[0].EventType)
}
