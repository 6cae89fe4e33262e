package main

import (
	"context"
	"database/sql"
	"time"

	"custos/internal/aml"
	dErrors "custos/pkg/domain-errors"
)

const defaultAMLTxTimeout = 5 * time.Second

type amlPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newAMLPostgresTx(db *sql.DB) *amlPostgresTx {
	return &amlPostgresTx{db: db}
}

func (t *amlPostgresTx) RunInTx(ctx context.Context, fn func(store aml.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultAMLTxTimeout
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

	if err := fn(aml.NewPostgresTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
