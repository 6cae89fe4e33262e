// Package tx carries an open *sql.Tx through a context so that stores
// invoked inside a transaction runner write into that transaction
// instead of opening their own connection.
package tx

import (
	"context"
	"database/sql"
)

type txKey struct{}

// WithTx returns a context carrying tx. A nil tx leaves the context
// untouched so callers can pass through unconditionally.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// From reports the transaction carried by ctx, if any. Stores that
// support transactional writes check this before falling back to their
// own connection pool.
func From(ctx context.Context) (*sql.Tx, bool) {
	t, ok := ctx.Value(txKey{}).(*sql.Tx)
	return t, ok
}
