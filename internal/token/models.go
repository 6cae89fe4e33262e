package token

import (
	"time"

	"custos/pkg/domain"
)

// Base-unit scaling and compliance bounds for the euro-backed token.
const (
	// EURDecimals is the number of base-unit decimals: 1 EUR = 10^9 units.
	EURDecimals = 9

	// MaxTransactionAmount caps any single value-moving operation at
	// 100,000 EUR in base units.
	MaxTransactionAmount uint64 = 100_000_000_000_000

	// MinTransferKYCLevel is the verification tier both parties of an
	// ordinary transfer must hold.
	MinTransferKYCLevel uint8 = 1

	// MinMintRedeemKYCLevel is the verification tier required to receive
	// newly minted tokens.
	MinMintRedeemKYCLevel uint8 = 2
)

// MintInfo is the single mint record. The three authority keys are fixed
// at creation and compared by identity on every privileged call; they are
// never re-derived or updated. The reserve fields hold the issuer's most
// recent attestation: a Merkle root over the off-chain deposit snapshot
// and the IPFS CID of the snapshot document it was built from.
type MintInfo struct {
	Mint              domain.MintID
	Issuer            domain.AuthorityKey
	FreezeAuthority   domain.AuthorityKey
	PermanentDelegate domain.AuthorityKey
	WhitepaperURI     string
	Active            bool
	CreationTime      time.Time
	ReserveMerkleRoot [32]byte
	ReserveIPFSCID    string
	LastReserveUpdate time.Time
}

// Reason codes carried on a transfer decision. Each names the check that
// failed; a denied decision lists every failed check, not only the first.
const (
	ReasonSenderNotEligible    = "sender_not_eligible"
	ReasonRecipientNotEligible = "recipient_not_eligible"
	ReasonSenderBlacklisted    = "sender_blacklisted"
	ReasonRecipientBlacklisted = "recipient_blacklisted"
	ReasonAmountExceedsMaximum = "amount_exceeds_maximum"
)

// TransferDecision is the outcome of screening one prospective transfer.
// It is advisory: the screening mutates nothing, and the host is expected
// to re-run its own gate when the transfer actually executes.
type TransferDecision struct {
	Allowed   bool      `json:"allowed"`
	Reasons   []string  `json:"reasons,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
