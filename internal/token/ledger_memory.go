package token

import (
	"context"
	"sync"

	"custos/pkg/domain"
)

type ledgerAccount struct {
	owner   domain.AuthorityKey
	balance uint64
	frozen  bool
}

// MemoryLedger implements Ledger for the in-process host. Accounts start
// frozen and transact only after an explicit thaw, which is what makes
// eligibility gating opt-in: minting credits an account, but the balance
// stays immobile until the service thaws it.
type MemoryLedger struct {
	mu       sync.Mutex
	accounts map[domain.AccountID]*ledgerAccount
	delegate domain.AuthorityKey
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{accounts: make(map[domain.AccountID]*ledgerAccount)}
}

// SetDelegate registers the permanent delegate key. A transfer authorized
// by this key bypasses the owner check; seizure depends on that.
func (l *MemoryLedger) SetDelegate(key domain.AuthorityKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delegate = key
}

// CreateAccount opens a frozen, empty account owned by owner.
func (l *MemoryLedger) CreateAccount(account domain.AccountID, owner domain.AuthorityKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[account]; ok {
		return ErrAccountExists
	}
	l.accounts[account] = &ledgerAccount{owner: owner, frozen: true}
	return nil
}

// MintTo credits an account regardless of its frozen state, creating it
// frozen and unowned when it does not exist yet.
func (l *MemoryLedger) MintTo(_ context.Context, account domain.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[account]
	if !ok {
		acct = &ledgerAccount{frozen: true}
		l.accounts[account] = acct
	}
	acct.balance += amount
	return nil
}

func (l *MemoryLedger) BurnFrom(_ context.Context, account domain.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[account]
	if !ok {
		return ErrAccountNotFound
	}
	if acct.frozen {
		return ErrAccountFrozen
	}
	if acct.balance < amount {
		return ErrInsufficientBalance
	}
	acct.balance -= amount
	return nil
}

func (l *MemoryLedger) Freeze(_ context.Context, account domain.AccountID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[account]
	if !ok {
		return ErrAccountNotFound
	}
	if acct.frozen {
		return ErrAccountFrozen
	}
	acct.frozen = true
	return nil
}

func (l *MemoryLedger) Thaw(_ context.Context, account domain.AccountID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[account]
	if !ok {
		return ErrAccountNotFound
	}
	if !acct.frozen {
		return ErrAccountNotFrozen
	}
	acct.frozen = false
	return nil
}

// Transfer moves balance between two thawed accounts. The authorizing key
// must be the source account's owner or the registered delegate; frozen
// state blocks both ends, so a seizure of a frozen account requires a
// thaw first.
func (l *MemoryLedger) Transfer(_ context.Context, from, to domain.AccountID, amount uint64, authorizing domain.AuthorityKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	src, ok := l.accounts[from]
	if !ok {
		return ErrAccountNotFound
	}
	dst, ok := l.accounts[to]
	if !ok {
		return ErrAccountNotFound
	}
	if src.frozen || dst.frozen {
		return ErrAccountFrozen
	}
	authorized := !authorizing.IsNil() &&
		(authorizing == src.owner || (!l.delegate.IsNil() && authorizing == l.delegate))
	if !authorized {
		return ErrUnauthorizedTransfer
	}
	if src.balance < amount {
		return ErrInsufficientBalance
	}
	src.balance -= amount
	dst.balance += amount
	return nil
}

// Balance reports an account's current balance.
func (l *MemoryLedger) Balance(account domain.AccountID) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[account]
	if !ok {
		return 0, ErrAccountNotFound
	}
	return acct.balance, nil
}

// Frozen reports whether an account is currently frozen.
func (l *MemoryLedger) Frozen(account domain.AccountID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[account]
	if !ok {
		return false, ErrAccountNotFound
	}
	return acct.frozen, nil
}
