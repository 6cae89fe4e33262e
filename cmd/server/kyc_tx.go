package main

import (
	"context"
	"database/sql"
	"time"

	"custos/internal/kyc"
	dErrors "custos/pkg/domain-errors"
)

const defaultKYCTxTimeout = 5 * time.Second

type kycPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newKYCPostgresTx(db *sql.DB) *kycPostgresTx {
	return &kycPostgresTx{db: db}
}

func (t *kycPostgresTx) RunInTx(ctx context.Context, fn func(store kyc.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultKYCTxTimeout
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

	if err := fn(kyc.NewPostgresTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
