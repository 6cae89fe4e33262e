package token

import (
	"context"

	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// Ledger is the external balance ledger the token service delegates to.
// The service decides whether an operation may run; the ledger owns
// balance arithmetic and per-account frozen state. Only Transfer carries
// an authorizing key: mint and burn run under the host-authenticated
// caller, but a transfer moves someone else's balance and the ledger must
// see whose authority backs it.
type Ledger interface {
	MintTo(ctx context.Context, account domain.AccountID, amount uint64) error
	BurnFrom(ctx context.Context, account domain.AccountID, amount uint64) error
	Freeze(ctx context.Context, account domain.AccountID) error
	Thaw(ctx context.Context, account domain.AccountID) error
	Transfer(ctx context.Context, from, to domain.AccountID, amount uint64, authorizing domain.AuthorityKey) error
}

// Ledger errors shared by implementations. The service reacts to specific
// ones: Mint swallows ErrAccountNotFrozen from its follow-up thaw.
var (
	ErrAccountNotFound      = dErrors.New(dErrors.CodeNotFound, "ledger account does not exist")
	ErrAccountExists        = dErrors.New(dErrors.CodeConflict, "ledger account already exists")
	ErrAccountFrozen        = dErrors.New(dErrors.CodeConflict, "ledger account is frozen")
	ErrAccountNotFrozen     = dErrors.New(dErrors.CodeConflict, "ledger account is not frozen")
	ErrInsufficientBalance  = dErrors.New(dErrors.CodeConflict, "ledger account balance is insufficient")
	ErrUnauthorizedTransfer = dErrors.New(dErrors.CodeForbidden, "authorizing key may not move funds from this account")
)
