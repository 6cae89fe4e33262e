package audit

import (
	"time"
)

// EventCategory groups audit events for retention and review routing.
type EventCategory string

const (
	CategoryCompliance EventCategory = "compliance"
	CategorySecurity   EventCategory = "security"
	CategoryOperations EventCategory = "operations"
)

// AuditEvent identifies what happened. Every emitting site uses one of
// these constants so downstream review tooling can rely on stable names.
type AuditEvent string

const (
	EventOracleInitialized      AuditEvent = "oracle_initialized"
	EventUserRegistered         AuditEvent = "user_registered"
	EventStatusUpdated          AuditEvent = "status_updated"
	EventAuthorityRegistered    AuditEvent = "authority_registered"
	EventAuthorityDeactivated   AuditEvent = "authority_deactivated"
	EventAuthorityPowersUpdated AuditEvent = "authority_powers_updated"
	EventBlacklistCreated       AuditEvent = "blacklist_created"
	EventBlacklistDeactivated   AuditEvent = "blacklist_deactivated"
	EventMintInitialized        AuditEvent = "mint_initialized"
	EventTokensMinted           AuditEvent = "tokens_minted"
	EventTokensBurned           AuditEvent = "tokens_burned"
	EventAccountFrozen          AuditEvent = "account_frozen"
	EventAccountThawed          AuditEvent = "account_thawed"
	EventFundsSeized            AuditEvent = "funds_seized"
	EventReserveUpdated         AuditEvent = "reserve_updated"
	EventTransferChecked        AuditEvent = "transfer_checked"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventOracleInitialized:      CategoryOperations,
	EventUserRegistered:         CategoryCompliance,
	EventStatusUpdated:          CategoryCompliance,
	EventAuthorityRegistered:    CategorySecurity,
	EventAuthorityDeactivated:   CategorySecurity,
	EventAuthorityPowersUpdated: CategorySecurity,
	EventBlacklistCreated:       CategoryCompliance,
	EventBlacklistDeactivated:   CategoryCompliance,
	EventMintInitialized:        CategoryOperations,
	EventTokensMinted:           CategoryOperations,
	EventTokensBurned:           CategoryOperations,
	EventAccountFrozen:          CategorySecurity,
	EventAccountThawed:          CategorySecurity,
	EventFundsSeized:            CategoryCompliance,
	EventReserveUpdated:         CategoryOperations,
	EventTransferChecked:        CategoryCompliance,
}

// Category resolves the review category for an event name. Unknown events
// land in operations so they are never silently dropped from review.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// Event is one immutable audit record. Subject identifies what the action
// acted on (a user, an authority key, an account); Actor identifies who
// performed it. Amount is set only for value-moving token operations.
type Event struct {
	ID        int64         `json:"id,omitempty"`
	Event     AuditEvent    `json:"event"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Subject   string        `json:"subject,omitempty"`
	Actor     string        `json:"actor,omitempty"`
	Decision  string        `json:"decision,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Amount    uint64        `json:"amount,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	ClientIP  string        `json:"client_ip,omitempty"`
	UserAgent string        `json:"user_agent,omitempty"`
}
