package main

import (
	"context"
	"database/sql"
	"time"

	"custos/internal/token"
	dErrors "custos/pkg/domain-errors"
)

const defaultTokenTxTimeout = 5 * time.Second

type tokenPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newTokenPostgresTx(db *sql.DB) *tokenPostgresTx {
	return &tokenPostgresTx{db: db}
}

func (t *tokenPostgresTx) RunInTx(ctx context.Context, fn func(store token.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTokenTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(token.NewPostgresTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
