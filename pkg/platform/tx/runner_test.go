package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "streak/pkg/domain-errors"
)

func TestInMemory_NestedCallsDoNotDeadlock(t *testing.T) {
	runner := NewInMemory()
	calls := 0
	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		calls++
		return runner.RunInTx(ctx, func(context.Context) error {
			calls++
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestInMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewInMemory().RunInTx(ctx, func(context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestInMemory_RollsBackRegisteredWrites(t *testing.T) {
	runner := NewInMemory()
	rows := map[string]int{"kept": 1}
	write := func(ctx context.Context, key string, v int) {
		prev, had := rows[key]
		rows[key] = v
		OnRollback(ctx, func() {
			if had {
				rows[key] = prev
				return
			}
			delete(rows, key)
		})
	}

	boom := errors.New("boom")
	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		write(ctx, "kept", 2)
		return runner.RunInTx(ctx, func(ctx context.Context) error {
			write(ctx, "added", 3)
			return boom
		})
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, map[string]int{"kept": 1}, rows)

	err = runner.RunInTx(context.Background(), func(ctx context.Context) error {
		write(ctx, "added", 3)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"kept": 1, "added": 3}, rows)
}

func TestInMemory_UndoRunsInReverseOrder(t *testing.T) {
	var order []int
	_ = NewInMemory().RunInTx(context.Background(), func(ctx context.Context) error { //nolint:errcheck // error asserted via order
		for i := 1; i <= 3; i++ {
			OnRollback(ctx, func() { order = append(order, i) })
		}
		return errors.New("fail")
	})
	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestInMemory_PanicRollsBack(t *testing.T) {
	undone := false
	assert.Panics(t, func() {
		_ = NewInMemory().RunInTx(context.Background(), func(ctx context.Context) error { //nolint:errcheck // panics
			OnRollback(ctx, func() { undone = true })
			panic("store bug")
		})
	})
	assert.True(t, undone)
}

func TestOnRollbackOutsideTransactionIsDropped(t *testing.T) {
	called := false
	OnRollback(context.Background(), func() { called = true })
	assert.False(t, called)
}

func TestPostgres_CommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM proofs").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err = NewPostgres(db).RunInTx(context.Background(), func(ctx context.Context) error {
		_, ok := From(ctx)
		require.True(t, ok, "transaction must be visible to stores")
		_, err := Exec(ctx, db).ExecContext(ctx, "DELETE FROM proofs WHERE tenant_id = $1", "t")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewPostgres(db).RunInTx(context.Background(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
