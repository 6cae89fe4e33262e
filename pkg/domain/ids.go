// Package domain holds the identity types and domain values shared across
// custos services. IDs are distinct named UUID types so the compiler rejects
// cross-type assignment: a UserID can never silently stand in for an
// AuthorityKey.
package domain

import (
	"github.com/google/uuid"

	dErrors "custos/pkg/domain-errors"
)

// UserID identifies a KYC subject: the holder whose verification status,
// blacklist state, and balances are gated.
type UserID uuid.UUID

// AuthorityKey identifies a privileged principal: the issuer, the freeze
// authority, the permanent delegate, the oracle authority, or an AML authority.
type AuthorityKey uuid.UUID

// AccountID identifies a token-holding account on the external ledger.
type AccountID uuid.UUID

// MintID identifies the token mint.
type MintID uuid.UUID

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs. Construct IDs through the Parse functions at trust
// boundaries; direct casting bypasses validation.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be the nil UUID")
	}
	return u, nil
}

// ParseUserID constructs a UserID from external input.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseAuthorityKey constructs an AuthorityKey from external input.
func ParseAuthorityKey(s string) (AuthorityKey, error) {
	u, err := parseUUID(s, "authority key")
	if err != nil {
		return AuthorityKey{}, err
	}
	return AuthorityKey(u), nil
}

// ParseAccountID constructs an AccountID from external input.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account id")
	if err != nil {
		return AccountID{}, err
	}
	return AccountID(u), nil
}

// ParseMintID constructs a MintID from external input.
func ParseMintID(s string) (MintID, error) {
	u, err := parseUUID(s, "mint id")
	if err != nil {
		return MintID{}, err
	}
	return MintID(u), nil
}

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id AuthorityKey) String() string { return uuid.UUID(id).String() }
func (id AccountID) String() string    { return uuid.UUID(id).String() }
func (id MintID) String() string       { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id AuthorityKey) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AccountID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id MintID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
