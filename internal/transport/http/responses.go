package httptransport

import (
	"encoding/hex"
	"time"

	"custos/internal/aml"
	"custos/internal/kyc"
	"custos/internal/token"
)

// OracleStateResponse is the HTTP shape of the verification registry state.
type OracleStateResponse struct {
	AuthorityKey      string    `json:"authority_key"`
	UserCount         uint64    `json:"user_count"`
	VerifiedUserCount uint64    `json:"verified_user_count"`
	LastUpdateTime    time.Time `json:"last_update_time,omitzero"`
}

// FromOracleState converts the domain oracle state to an HTTP response.
func FromOracleState(o *kyc.OracleState) *OracleStateResponse {
	return &OracleStateResponse{
		AuthorityKey:      o.Authority.String(),
		UserCount:         o.UserCount,
		VerifiedUserCount: o.VerifiedUserCount,
		LastUpdateTime:    o.LastUpdateTime,
	}
}

// UserResponse is the HTTP shape of a verification record. The IBAN hash
// is evidence for the registering authority, not for API consumers, so it
// never appears in responses.
type UserResponse struct {
	ID                string    `json:"id"`
	RegisteredBy      string    `json:"registered_by"`
	Status            string    `json:"status"`
	VerificationLevel uint8     `json:"verification_level"`
	VerificationTime  time.Time `json:"verification_time,omitzero"`
	ExpiryTime        time.Time `json:"expiry_time,omitzero"`
	Country           string    `json:"country"`
	BLZ               string    `json:"blz,omitempty"`
	Provider          string    `json:"provider,omitempty"`
}

// FromUser converts a domain verification record to an HTTP response.
func FromUser(u *kyc.User) *UserResponse {
	return &UserResponse{
		ID:                u.ID.String(),
		RegisteredBy:      u.RegisteredBy.String(),
		Status:            string(u.Status),
		VerificationLevel: u.VerificationLevel,
		VerificationTime:  u.VerificationTime,
		ExpiryTime:        u.ExpiryTime,
		Country:           u.CountryCode.String(),
		BLZ:               u.BLZ,
		Provider:          u.Provider,
	}
}

// EligibilityResponse is the HTTP response for
// GET /kyc/users/{userID}/eligibility.
type EligibilityResponse struct {
	UserID        string    `json:"user_id"`
	RequiredLevel uint8     `json:"required_level"`
	Eligible      bool      `json:"eligible"`
	CheckedAt     time.Time `json:"checked_at"`
}

// AuthorityResponse is the HTTP shape of an AML authority record.
type AuthorityResponse struct {
	Key            string    `json:"key"`
	AuthorityID    string    `json:"authority_id"`
	Powers         []string  `json:"powers"`
	Active         bool      `json:"active"`
	RegisteredTime time.Time `json:"registered_time,omitzero"`
	LastActionTime time.Time `json:"last_action_time,omitzero"`
}

// FromAuthority converts a domain authority record to an HTTP response.
func FromAuthority(a *aml.Authority) *AuthorityResponse {
	return &AuthorityResponse{
		Key:            a.Key.String(),
		AuthorityID:    a.AuthorityID,
		Powers:         a.Powers.Names(),
		Active:         a.Active,
		RegisteredTime: a.RegisteredTime,
		LastActionTime: a.LastActionTime,
	}
}

// BlacklistEntryResponse is the HTTP shape of a blacklist entry.
type BlacklistEntryResponse struct {
	UserID       string    `json:"user_id"`
	AuthorityKey string    `json:"authority_key"`
	Reason       string    `json:"reason"`
	Active       bool      `json:"active"`
	CreationTime time.Time `json:"creation_time,omitzero"`
	UpdatedTime  time.Time `json:"updated_time,omitzero"`
}

// FromBlacklistEntry converts a domain blacklist entry to an HTTP response.
func FromBlacklistEntry(e *aml.BlacklistEntry) *BlacklistEntryResponse {
	return &BlacklistEntryResponse{
		UserID:       e.UserID.String(),
		AuthorityKey: e.Authority.String(),
		Reason:       e.Reason,
		Active:       e.Active,
		CreationTime: e.CreationTime,
		UpdatedTime:  e.UpdatedTime,
	}
}

// MintInfoResponse is the HTTP shape of the mint configuration and its
// reserve attestation.
type MintInfoResponse struct {
	Mint              string    `json:"mint"`
	Issuer            string    `json:"issuer"`
	FreezeAuthority   string    `json:"freeze_authority"`
	PermanentDelegate string    `json:"permanent_delegate"`
	WhitepaperURI     string    `json:"whitepaper_uri"`
	Decimals          uint8     `json:"decimals"`
	Active            bool      `json:"active"`
	CreationTime      time.Time `json:"creation_time,omitzero"`
	ReserveMerkleRoot string    `json:"reserve_merkle_root,omitempty"`
	ReserveIPFSCID    string    `json:"reserve_ipfs_cid,omitempty"`
	LastReserveUpdate time.Time `json:"last_reserve_update,omitzero"`
}

// FromMintInfo converts the domain mint record to an HTTP response. An
// all-zero root means no attestation has been published yet and is
// rendered as an absent field rather than 64 zeros.
func FromMintInfo(info *token.MintInfo) *MintInfoResponse {
	resp := &MintInfoResponse{
		Mint:              info.Mint.String(),
		Issuer:            info.Issuer.String(),
		FreezeAuthority:   info.FreezeAuthority.String(),
		PermanentDelegate: info.PermanentDelegate.String(),
		WhitepaperURI:     info.WhitepaperURI,
		Decimals:          token.EURDecimals,
		Active:            info.Active,
		CreationTime:      info.CreationTime,
		ReserveIPFSCID:    info.ReserveIPFSCID,
		LastReserveUpdate: info.LastReserveUpdate,
	}
	if info.ReserveMerkleRoot != ([32]byte{}) {
		resp.ReserveMerkleRoot = hex.EncodeToString(info.ReserveMerkleRoot[:])
	}
	return resp
}

// VerifyReserveLeafResponse is the HTTP response for
// POST /token/reserve/verify.
type VerifyReserveLeafResponse struct {
	Valid     bool      `json:"valid"`
	CheckedAt time.Time `json:"checked_at"`
}
