package httptransport

import (
	"encoding/hex"
	"strings"

	"custos/internal/aml"
	"custos/internal/kyc"
	"custos/internal/merkle"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// KYC requests.

// InitializeOracleRequest is the HTTP request body for POST /kyc/oracle.
type InitializeOracleRequest struct {
	AuthorityKey string `json:"authority_key"`

	// Parsed values (populated by Validate)
	parsedAuthority domain.AuthorityKey
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *InitializeOracleRequest) Validate() error {
	key, err := domain.ParseAuthorityKey(strings.TrimSpace(r.AuthorityKey))
	if err != nil {
		return err
	}
	r.parsedAuthority = key
	return nil
}

// ParsedAuthority returns the validated oracle authority key.
func (r *InitializeOracleRequest) ParsedAuthority() domain.AuthorityKey {
	return r.parsedAuthority
}

// RegisterUserRequest is the HTTP request body for POST /kyc/users.
type RegisterUserRequest struct {
	UserID       string `json:"user_id"`
	AuthorityKey string `json:"authority_key"`
	Country      string `json:"country"`
	BLZ          string `json:"blz,omitempty"`
	IBANHash     string `json:"iban_hash,omitempty"`
	Provider     string `json:"provider,omitempty"`

	// Parsed values (populated by Validate)
	parsedUserID    domain.UserID
	parsedAuthority domain.AuthorityKey
	parsedIBANHash  [32]byte
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RegisterUserRequest) Validate() error {
	// Size validation (fail fast)
	if len(r.BLZ) > 16 {
		return dErrors.New(dErrors.CodeValidation, "blz must be at most 16 characters")
	}
	if len(r.Provider) > 64 {
		return dErrors.New(dErrors.CodeValidation, "provider must be at most 64 characters")
	}

	userID, err := domain.ParseUserID(strings.TrimSpace(r.UserID))
	if err != nil {
		return err
	}
	r.parsedUserID = userID

	authority, err := domain.ParseAuthorityKey(strings.TrimSpace(r.AuthorityKey))
	if err != nil {
		return err
	}
	r.parsedAuthority = authority

	// Country semantics stay in the service; the transport only trims.
	r.Country = strings.TrimSpace(r.Country)
	r.BLZ = strings.TrimSpace(r.BLZ)
	r.Provider = strings.TrimSpace(r.Provider)

	if hash := strings.TrimSpace(r.IBANHash); hash != "" {
		raw, err := hex.DecodeString(hash)
		if err != nil || len(raw) != 32 {
			return dErrors.New(dErrors.CodeValidation, "iban_hash must be 64 hex characters")
		}
		copy(r.parsedIBANHash[:], raw)
	}
	return nil
}

// ParsedUserID returns the validated subject ID.
func (r *RegisterUserRequest) ParsedUserID() domain.UserID {
	return r.parsedUserID
}

// ParsedAuthority returns the validated registering authority key.
func (r *RegisterUserRequest) ParsedAuthority() domain.AuthorityKey {
	return r.parsedAuthority
}

// ParsedIBANHash returns the decoded IBAN hash, zero when absent.
func (r *RegisterUserRequest) ParsedIBANHash() [32]byte {
	return r.parsedIBANHash
}

// UpdateUserStatusRequest is the HTTP request body for
// POST /kyc/users/{userID}/status. The subject comes from the path.
type UpdateUserStatusRequest struct {
	AuthorityKey string `json:"authority_key"`
	Status       string `json:"status"`
	Level        uint8  `json:"level,omitempty"`
	ExpiryDays   int64  `json:"expiry_days,omitempty"`

	// Parsed values (populated by Validate)
	parsedAuthority domain.AuthorityKey
	parsedStatus    kyc.Status
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *UpdateUserStatusRequest) Validate() error {
	authority, err := domain.ParseAuthorityKey(strings.TrimSpace(r.AuthorityKey))
	if err != nil {
		return err
	}
	r.parsedAuthority = authority

	status, err := kyc.ParseStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return err
	}
	r.parsedStatus = status
	return nil
}

// ParsedAuthority returns the validated acting authority key.
func (r *UpdateUserStatusRequest) ParsedAuthority() domain.AuthorityKey {
	return r.parsedAuthority
}

// ParsedStatus returns the validated target status.
func (r *UpdateUserStatusRequest) ParsedStatus() kyc.Status {
	return r.parsedStatus
}

// AML requests.

// RegisterAuthorityRequest is the HTTP request body for POST /aml/authorities.
type RegisterAuthorityRequest struct {
	AuthorityKey string   `json:"authority_key"`
	AuthorityID  string   `json:"authority_id"`
	Powers       []string `json:"powers"`

	// Parsed values (populated by Validate)
	parsedKey    domain.AuthorityKey
	parsedPowers aml.Power
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RegisterAuthorityRequest) Validate() error {
	if len(r.AuthorityID) > 128 {
		return dErrors.New(dErrors.CodeValidation, "authority_id must be at most 128 characters")
	}

	key, err := domain.ParseAuthorityKey(strings.TrimSpace(r.AuthorityKey))
	if err != nil {
		return err
	}
	r.parsedKey = key

	powers, err := aml.ParsePowers(r.Powers)
	if err != nil {
		return err
	}
	r.parsedPowers = powers

	r.AuthorityID = strings.TrimSpace(r.AuthorityID)
	return nil
}

// ParsedKey returns the validated authority key.
func (r *RegisterAuthorityRequest) ParsedKey() domain.AuthorityKey {
	return r.parsedKey
}

// ParsedPowers returns the validated power set.
func (r *RegisterAuthorityRequest) ParsedPowers() aml.Power {
	return r.parsedPowers
}

// UpdatePowersRequest is the HTTP request body for
// POST /aml/authorities/{key}/powers. The authority comes from the path.
type UpdatePowersRequest struct {
	Powers []string `json:"powers"`

	// Parsed values (populated by Validate)
	parsedPowers aml.Power
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *UpdatePowersRequest) Validate() error {
	powers, err := aml.ParsePowers(r.Powers)
	if err != nil {
		return err
	}
	r.parsedPowers = powers
	return nil
}

// ParsedPowers returns the validated power set.
func (r *UpdatePowersRequest) ParsedPowers() aml.Power {
	return r.parsedPowers
}

// BlacklistUserRequest is the HTTP request body for POST /aml/blacklist.
// The acting authority is the authenticated principal, never a body field,
// so an authority can only blacklist in its own name.
type BlacklistUserRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`

	// Parsed values (populated by Validate)
	parsedUserID domain.UserID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *BlacklistUserRequest) Validate() error {
	if len(r.Reason) > 256 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 256 characters")
	}

	userID, err := domain.ParseUserID(strings.TrimSpace(r.UserID))
	if err != nil {
		return err
	}
	r.parsedUserID = userID

	r.Reason = strings.TrimSpace(r.Reason)
	return nil
}

// ParsedUserID returns the validated subject ID.
func (r *BlacklistUserRequest) ParsedUserID() domain.UserID {
	return r.parsedUserID
}

// DeactivateBlacklistRequest is the HTTP request body for
// POST /aml/blacklist/{userID}/deactivate. The subject comes from the
// path and the acting authority from the authenticated principal.
type DeactivateBlacklistRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *DeactivateBlacklistRequest) Validate() error {
	if len(r.Reason) > 256 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 256 characters")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	return nil
}

// Token requests.

// InitializeMintRequest is the HTTP request body for POST /token/mint-info.
type InitializeMintRequest struct {
	Mint              string `json:"mint"`
	Issuer            string `json:"issuer"`
	FreezeAuthority   string `json:"freeze_authority"`
	PermanentDelegate string `json:"permanent_delegate"`
	WhitepaperURI     string `json:"whitepaper_uri"`

	// Parsed values (populated by Validate)
	parsedMint     domain.MintID
	parsedIssuer   domain.AuthorityKey
	parsedFreeze   domain.AuthorityKey
	parsedDelegate domain.AuthorityKey
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *InitializeMintRequest) Validate() error {
	if len(r.WhitepaperURI) > 512 {
		return dErrors.New(dErrors.CodeValidation, "whitepaper_uri must be at most 512 characters")
	}

	mint, err := domain.ParseMintID(strings.TrimSpace(r.Mint))
	if err != nil {
		return err
	}
	r.parsedMint = mint

	issuer, err := domain.ParseAuthorityKey(strings.TrimSpace(r.Issuer))
	if err != nil {
		return err
	}
	r.parsedIssuer = issuer

	freeze, err := domain.ParseAuthorityKey(strings.TrimSpace(r.FreezeAuthority))
	if err != nil {
		return err
	}
	r.parsedFreeze = freeze

	delegate, err := domain.ParseAuthorityKey(strings.TrimSpace(r.PermanentDelegate))
	if err != nil {
		return err
	}
	r.parsedDelegate = delegate

	r.WhitepaperURI = strings.TrimSpace(r.WhitepaperURI)
	return nil
}

// ParsedMint returns the validated mint ID.
func (r *InitializeMintRequest) ParsedMint() domain.MintID {
	return r.parsedMint
}

// ParsedIssuer returns the validated issuer key.
func (r *InitializeMintRequest) ParsedIssuer() domain.AuthorityKey {
	return r.parsedIssuer
}

// ParsedFreezeAuthority returns the validated freeze authority key.
func (r *InitializeMintRequest) ParsedFreezeAuthority() domain.AuthorityKey {
	return r.parsedFreeze
}

// ParsedPermanentDelegate returns the validated permanent delegate key.
func (r *InitializeMintRequest) ParsedPermanentDelegate() domain.AuthorityKey {
	return r.parsedDelegate
}

// MintRequest is the HTTP request body for POST /token/mint. The caller
// is the authenticated principal.
type MintRequest struct {
	RecipientUser    string `json:"recipient_user"`
	RecipientAccount string `json:"recipient_account"`
	Amount           uint64 `json:"amount"`

	// Parsed values (populated by Validate)
	parsedUser    domain.UserID
	parsedAccount domain.AccountID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *MintRequest) Validate() error {
	user, err := domain.ParseUserID(strings.TrimSpace(r.RecipientUser))
	if err != nil {
		return err
	}
	r.parsedUser = user

	account, err := domain.ParseAccountID(strings.TrimSpace(r.RecipientAccount))
	if err != nil {
		return err
	}
	r.parsedAccount = account
	return nil
}

// ParsedRecipientUser returns the validated recipient subject ID.
func (r *MintRequest) ParsedRecipientUser() domain.UserID {
	return r.parsedUser
}

// ParsedRecipientAccount returns the validated destination account ID.
func (r *MintRequest) ParsedRecipientAccount() domain.AccountID {
	return r.parsedAccount
}

// BurnRequest is the HTTP request body for POST /token/burn.
type BurnRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`

	// Parsed values (populated by Validate)
	parsedAccount domain.AccountID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *BurnRequest) Validate() error {
	account, err := domain.ParseAccountID(strings.TrimSpace(r.Account))
	if err != nil {
		return err
	}
	r.parsedAccount = account
	return nil
}

// ParsedAccount returns the validated source account ID.
func (r *BurnRequest) ParsedAccount() domain.AccountID {
	return r.parsedAccount
}

// FreezeRequest is the HTTP request body for POST /token/freeze and
// POST /token/thaw.
type FreezeRequest struct {
	Account string `json:"account"`

	// Parsed values (populated by Validate)
	parsedAccount domain.AccountID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *FreezeRequest) Validate() error {
	account, err := domain.ParseAccountID(strings.TrimSpace(r.Account))
	if err != nil {
		return err
	}
	r.parsedAccount = account
	return nil
}

// ParsedAccount returns the validated account ID.
func (r *FreezeRequest) ParsedAccount() domain.AccountID {
	return r.parsedAccount
}

// SeizeRequest is the HTTP request body for POST /token/seize.
type SeizeRequest struct {
	TargetAccount   string `json:"target_account"`
	RecoveryAccount string `json:"recovery_account"`
	Amount          uint64 `json:"amount"`

	// Parsed values (populated by Validate)
	parsedTarget   domain.AccountID
	parsedRecovery domain.AccountID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SeizeRequest) Validate() error {
	target, err := domain.ParseAccountID(strings.TrimSpace(r.TargetAccount))
	if err != nil {
		return err
	}
	r.parsedTarget = target

	recovery, err := domain.ParseAccountID(strings.TrimSpace(r.RecoveryAccount))
	if err != nil {
		return err
	}
	r.parsedRecovery = recovery
	return nil
}

// ParsedTargetAccount returns the validated target account ID.
func (r *SeizeRequest) ParsedTargetAccount() domain.AccountID {
	return r.parsedTarget
}

// ParsedRecoveryAccount returns the validated recovery account ID.
func (r *SeizeRequest) ParsedRecoveryAccount() domain.AccountID {
	return r.parsedRecovery
}

// UpdateReserveRequest is the HTTP request body for PUT /token/reserve.
type UpdateReserveRequest struct {
	MerkleRoot string `json:"merkle_root"`
	IPFSCID    string `json:"ipfs_cid"`

	// Parsed values (populated by Validate)
	parsedRoot [32]byte
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *UpdateReserveRequest) Validate() error {
	if len(r.IPFSCID) > 128 {
		return dErrors.New(dErrors.CodeValidation, "ipfs_cid must be at most 128 characters")
	}

	raw, err := hex.DecodeString(strings.TrimSpace(r.MerkleRoot))
	if err != nil || len(raw) != 32 {
		return dErrors.New(dErrors.CodeValidation, "merkle_root must be 64 hex characters")
	}
	copy(r.parsedRoot[:], raw)

	r.IPFSCID = strings.TrimSpace(r.IPFSCID)
	return nil
}

// ParsedRoot returns the decoded Merkle root.
func (r *UpdateReserveRequest) ParsedRoot() [32]byte {
	return r.parsedRoot
}

// ProofStep is one sibling hash in a reserve inclusion proof. Side says
// whether the sibling is hashed on the left or the right of the running
// value.
type ProofStep struct {
	Hash string `json:"hash"`
	Side string `json:"side"`
}

// VerifyReserveLeafRequest is the HTTP request body for
// POST /token/reserve/verify.
type VerifyReserveLeafRequest struct {
	DepositID string      `json:"deposit_id"`
	Amount    uint64      `json:"amount"`
	Timestamp int64       `json:"timestamp"`
	Proof     []ProofStep `json:"proof"`

	// Parsed values (populated by Validate)
	parsedProof [][32]byte
	parsedSides []merkle.Side
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *VerifyReserveLeafRequest) Validate() error {
	if len(r.DepositID) > 128 {
		return dErrors.New(dErrors.CodeValidation, "deposit_id must be at most 128 characters")
	}
	if len(r.Proof) > 64 {
		return dErrors.New(dErrors.CodeValidation, "proof must have at most 64 steps")
	}

	r.DepositID = strings.TrimSpace(r.DepositID)
	if r.DepositID == "" {
		return dErrors.New(dErrors.CodeValidation, "deposit_id is required")
	}

	r.parsedProof = make([][32]byte, len(r.Proof))
	r.parsedSides = make([]merkle.Side, len(r.Proof))
	for i, step := range r.Proof {
		raw, err := hex.DecodeString(strings.TrimSpace(step.Hash))
		if err != nil || len(raw) != 32 {
			return dErrors.New(dErrors.CodeValidation, "proof hashes must be 64 hex characters")
		}
		copy(r.parsedProof[i][:], raw)

		switch strings.ToLower(strings.TrimSpace(step.Side)) {
		case "left":
			r.parsedSides[i] = merkle.SideLeft
		case "right":
			r.parsedSides[i] = merkle.SideRight
		default:
			return dErrors.New(dErrors.CodeValidation, "proof sides must be left or right")
		}
	}
	return nil
}

// ParsedProof returns the decoded sibling hashes.
func (r *VerifyReserveLeafRequest) ParsedProof() [][32]byte {
	return r.parsedProof
}

// ParsedSides returns the decoded sibling sides.
func (r *VerifyReserveLeafRequest) ParsedSides() []merkle.Side {
	return r.parsedSides
}

// CheckTransferRequest is the HTTP request body for POST /token/transfer-check.
type CheckTransferRequest struct {
	FromUser string `json:"from_user"`
	ToUser   string `json:"to_user"`
	Amount   uint64 `json:"amount"`

	// Parsed values (populated by Validate)
	parsedFrom domain.UserID
	parsedTo   domain.UserID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CheckTransferRequest) Validate() error {
	from, err := domain.ParseUserID(strings.TrimSpace(r.FromUser))
	if err != nil {
		return err
	}
	r.parsedFrom = from

	to, err := domain.ParseUserID(strings.TrimSpace(r.ToUser))
	if err != nil {
		return err
	}
	r.parsedTo = to
	return nil
}

// ParsedFromUser returns the validated sender subject ID.
func (r *CheckTransferRequest) ParsedFromUser() domain.UserID {
	return r.parsedFrom
}

// ParsedToUser returns the validated recipient subject ID.
func (r *CheckTransferRequest) ParsedToUser() domain.UserID {
	return r.parsedTo
}
