package tx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "streak/pkg/domain-errors"
)

// Runner provides a transactional boundary for multi-row mutations.
// Implementations may wrap a database transaction or an in-memory lock.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const defaultTxTimeout = 5 * time.Second

// Postgres runs fn inside a database transaction carried on the context.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgres returns a Runner backed by db.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, timeout: defaultTxTimeout}
}

func (t *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	// Nested calls join the outer transaction.
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	ctx, cancel := withDefaultTimeout(ctx, t.timeout)
	defer cancel()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is a no-op
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// InMemory serializes mutations for in-memory stores and undoes them when fn
// fails. Stores register their undo steps with OnRollback.
type InMemory struct {
	mu      sync.Mutex
	timeout time.Duration
}

// NewInMemory returns a Runner that holds a process-wide lock for the duration of fn.
func NewInMemory() *InMemory {
	return &InMemory{timeout: defaultTxTimeout}
}

// journal collects undo steps for one in-memory transaction.
type journal struct {
	owner *InMemory
	undo  []func()
}

type journalKey struct{}

func (t *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if j, ok := ctx.Value(journalKey{}).(*journal); ok && j.owner == t {
		return fn(ctx)
	}

	ctx, cancel := withDefaultTimeout(ctx, t.timeout)
	defer cancel()

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	j := &journal{owner: t}
	err := runJournaled(context.WithValue(ctx, journalKey{}, j), fn)
	if err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
	}
	return err
}

// runJournaled turns a panic in fn into a rollback before re-panicking.
func runJournaled(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	j := ctx.Value(journalKey{}).(*journal)
	defer func() {
		if r := recover(); r != nil {
			for i := len(j.undo) - 1; i >= 0; i-- {
				j.undo[i]()
			}
			panic(r)
		}
	}()
	return fn(ctx)
}

// OnRollback registers undo to run if the in-memory transaction carried by ctx
// fails. Outside such a transaction the write is final and undo is dropped.
func OnRollback(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

func withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
