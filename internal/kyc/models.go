package kyc

import (
	"time"

	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// Status is the verification state of a KYC subject. Transitions are
// authority-driven and unconstrained: any status may follow any other.
type Status string

const (
	// StatusUnverified is the state before any authority decision.
	// Registration starts records at pending; an authority may move a
	// record back to unverified to withdraw a decision entirely.
	StatusUnverified Status = "unverified"
	StatusPending    Status = "pending"
	StatusVerified   Status = "verified"
	StatusRejected   Status = "rejected"
	StatusExpired    Status = "expired"
	StatusSuspended  Status = "suspended"
)

// validStatuses is the single source of truth for valid verification states.
var validStatuses = map[Status]bool{
	StatusUnverified: true,
	StatusPending:    true,
	StatusVerified:   true,
	StatusRejected:   true,
	StatusExpired:    true,
	StatusSuspended:  true,
}

// ParseStatus constructs a Status from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unknown.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown verification status")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported states.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// MaxVerificationLevel caps the tier an authority may assign.
const MaxVerificationLevel = 3

// User is one subject's verification record. It is owned by the authority
// that registered it and is never deleted; status transitions model
// deactivation. ExpiryTime is meaningful only while Status is verified; a
// zero ExpiryTime never passes the eligibility predicate.
type User struct {
	ID                domain.UserID
	RegisteredBy      domain.AuthorityKey
	Status            Status
	VerificationLevel uint8
	VerificationTime  time.Time
	ExpiryTime        time.Time
	CountryCode       domain.CountryCode
	BLZ               string
	IBANHash          [32]byte
	Provider          string
}

// EligibleAt evaluates the eligibility predicate against a point in time:
// verified, level at or above requiredLevel, now strictly before expiry, and
// country membership when allowed is non-empty (an empty list means
// unrestricted).
func (u *User) EligibleAt(now time.Time, requiredLevel uint8, allowed []domain.CountryCode) bool {
	if u.Status != StatusVerified {
		return false
	}
	if u.VerificationLevel < requiredLevel {
		return false
	}
	if u.ExpiryTime.IsZero() || !now.Before(u.ExpiryTime) {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	for _, c := range allowed {
		if c == u.CountryCode {
			return true
		}
	}
	return false
}

// OracleState is the deployment-wide singleton behind the KYC oracle:
// the controlling authority plus the counters maintained incrementally on
// every registration and status transition. VerifiedUserCount must always
// equal the number of User records currently in StatusVerified; it is never
// recomputed by a full scan.
type OracleState struct {
	Authority         domain.AuthorityKey
	UserCount         uint64
	VerifiedUserCount uint64
	LastUpdateTime    time.Time
}

// RecordRegistration bumps the population counter for a newly created record.
func (o *OracleState) RecordRegistration(now time.Time) {
	o.UserCount++
	o.LastUpdateTime = now
}

// RecordTransition maintains VerifiedUserCount across a status change.
// prior must be the status read before the record was mutated. Repeated
// verified-to-verified updates do not double count; leaving verified
// decrements with a saturating floor at zero.
func (o *OracleState) RecordTransition(prior, next Status, now time.Time) {
	switch {
	case next == StatusVerified && prior != StatusVerified:
		o.VerifiedUserCount++
	case prior == StatusVerified && next != StatusVerified:
		if o.VerifiedUserCount > 0 {
			o.VerifiedUserCount--
		}
	}
	o.LastUpdateTime = now
}
