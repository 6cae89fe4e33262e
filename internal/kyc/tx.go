package kyc

import (
	"context"
	"sync"
	"time"

	dErrors "custos/pkg/domain-errors"
)

// defaultTxTimeout is the maximum duration for a KYC transaction.
const defaultTxTimeout = 5 * time.Second

// inMemoryStoreTx serializes mutations with a single lock. Sharding by user
// would not help here: every mutation also touches the oracle counters, so
// the oracle row is the contention point regardless.
type inMemoryStoreTx struct {
	mu      sync.Mutex
	store   Store
	timeout time.Duration
}

func newInMemoryStoreTx(store Store) *inMemoryStoreTx {
	return &inMemoryStoreTx{store: store}
}

func (t *inMemoryStoreTx) RunInTx(ctx context.Context, fn func(store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(t.store)
}
