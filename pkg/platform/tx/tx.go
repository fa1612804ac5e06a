// Package tx carries a SQL transaction through context so stores can join a
// compound state transition without changing their signatures. The sequencer
// opens one transaction per command; every store write inside the apply path
// joins it, which is what makes breach and estate transitions all-or-nothing
// on the postgres backend.
package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "custodia/pkg/domain-errors"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner executes a function inside a single transaction boundary. The
// in-memory backend satisfies this with NopRunner because the sequencer's
// single-writer discipline already serializes state.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type hooksKey struct{}

type commitHooks struct {
	fns []func()
}

func (h *commitHooks) run() {
	for _, fn := range h.fns {
		fn()
	}
}

func withHooks(ctx context.Context) (context.Context, *commitHooks) {
	h := &commitHooks{}
	return context.WithValue(ctx, hooksKey{}, h), h
}

// AfterCommit defers fn until the surrounding boundary commits, so observable
// side effects like metric updates never fire for a rolled-back transition.
// Outside any boundary fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if h, ok := ctx.Value(hooksKey{}).(*commitHooks); ok {
		h.fns = append(h.fns, fn)
		return
	}
	fn()
}

const defaultTxTimeout = 5 * time.Second

// SQLRunner wraps *sql.DB begin/commit/rollback and injects the transaction
// into context for the duration of fn.
type SQLRunner struct {
	DB      *sql.DB
	Timeout time.Duration
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := r.Timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	ctx, hooks := withHooks(ctx)
	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return err
	}
	hooks.run()
	return nil
}

// NopRunner runs fn without a database transaction. Used with in-memory
// stores where atomicity is provided by the single-writer sequencer. Commit
// hooks still fire only when fn succeeds.
type NopRunner struct{}

func (NopRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, hooks := withHooks(ctx)
	if err := fn(ctx); err != nil {
		return err
	}
	hooks.run()
	return nil
}
