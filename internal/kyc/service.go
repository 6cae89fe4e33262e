package kyc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"custos/internal/audit"
	kycmetrics "custos/internal/kyc/metrics"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/sentinel"
	"custos/pkg/requestcontext"
)

// Store is the persistence boundary for KYC state. The oracle row is a
// singleton; Create methods return sentinel.ErrConflict when the record
// already exists and lookups return sentinel.ErrNotFound.
type Store interface {
	CreateOracle(ctx context.Context, state *OracleState) error
	Oracle(ctx context.Context) (*OracleState, error)
	UpdateOracle(ctx context.Context, state *OracleState) error

	CreateUser(ctx context.Context, user *User) error
	User(ctx context.Context, userID domain.UserID) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
}

// StoreTx provides a transactional boundary for KYC mutations.
// Implementations may wrap a database transaction or, in-memory, a coarse
// lock. Registration and status updates touch both the user record and the
// oracle counters, so every mutation runs under it.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

// Auditor records compliance-relevant actions.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event)
}

var (
	ErrOracleNotInitialized = dErrors.New(dErrors.CodeNotFound, "kyc oracle is not initialized")
	ErrOracleExists         = dErrors.New(dErrors.CodeConflict, "kyc oracle is already initialized")
	ErrUserExists           = dErrors.New(dErrors.CodeConflict, "user is already registered")
	ErrUserNotFound         = dErrors.New(dErrors.CodeNotFound, "user is not registered")

	ErrNotRegisteringAuthority  = dErrors.New(dErrors.CodeForbidden, "caller is not the registering authority for this user")
	ErrInvalidStatus            = dErrors.New(dErrors.CodeValidation, "unknown verification status")
	ErrInvalidVerificationLevel = dErrors.New(dErrors.CodeValidation, "verification level exceeds the maximum tier")
	ErrInvalidExpiryDate        = dErrors.New(dErrors.CodeValidation, "verified status requires a positive expiry window")
)

// Service owns the KYC verification lifecycle: the oracle singleton, user
// registration, authority-driven status transitions, and the eligibility
// predicate used by token operations.
type Service struct {
	store   Store
	tx      StoreTx
	auditor Auditor
	metrics *kycmetrics.Metrics
	logger  *slog.Logger
}

type serviceConfig struct {
	tx      StoreTx
	auditor Auditor
	metrics *kycmetrics.Metrics
	logger  *slog.Logger
}

type Option func(*serviceConfig)

// WithStoreTx sets the transactional runner. Tests and memory deployments
// may omit it; a coarse-lock runner over the store is used instead.
func WithStoreTx(tx StoreTx) Option {
	return func(c *serviceConfig) { c.tx = tx }
}

func WithAuditor(a Auditor) Option {
	return func(c *serviceConfig) { c.auditor = a }
}

func WithMetrics(m *kycmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = l }
}

func NewService(store Store, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tx == nil {
		cfg.tx = newInMemoryStoreTx(store)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Service{
		store:   store,
		tx:      cfg.tx,
		auditor: cfg.auditor,
		metrics: cfg.metrics,
		logger:  cfg.logger,
	}
}

// InitializeOracle creates the deployment-wide oracle singleton with the
// given controlling authority. It can succeed exactly once.
func (s *Service) InitializeOracle(ctx context.Context, authority domain.AuthorityKey) (*OracleState, error) {
	if authority.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "authority key is required")
	}

	state := &OracleState{
		Authority:      authority,
		LastUpdateTime: requestcontext.Now(ctx),
	}
	err := s.tx.RunInTx(ctx, func(store Store) error {
		if err := store.CreateOracle(ctx, state); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return ErrOracleExists
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to initialize kyc oracle")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		Event:   audit.EventOracleInitialized,
		Subject: authority.String(),
		Actor:   authority.String(),
	})
	return state, nil
}

// RegisterParams carries a registration request. Country is the raw
// two-letter code as submitted; BLZ, IBANHash, and Provider are optional
// onboarding details from the verifying institution.
type RegisterParams struct {
	UserID    domain.UserID
	Authority domain.AuthorityKey
	Country   string
	BLZ       string
	IBANHash  [32]byte
	Provider  string
}

// Register creates a pending verification record owned by the calling
// authority and bumps the oracle population counter.
//
// Errors: ErrOracleNotInitialized, ErrUserExists, domain.ErrInvalidCountryCode,
// domain.ErrUnsupportedCountry.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*User, error) {
	if p.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if p.Authority.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "authority key is required")
	}
	country, err := domain.ParseCountryCode(p.Country)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:           p.UserID,
		RegisteredBy: p.Authority,
		Status:       StatusPending,
		CountryCode:  country,
		BLZ:          p.BLZ,
		IBANHash:     p.IBANHash,
		Provider:     p.Provider,
	}
	err = s.tx.RunInTx(ctx, func(store Store) error {
		oracle, err := store.Oracle(ctx)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return ErrOracleNotInitialized
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load kyc oracle")
		}

		if err := store.CreateUser(ctx, user); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return ErrUserExists
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user record")
		}

		oracle.RecordRegistration(requestcontext.Now(ctx))
		if err := store.UpdateOracle(ctx, oracle); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update kyc oracle")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementRegistration()
	s.emit(ctx, audit.Event{
		Event:   audit.EventUserRegistered,
		Subject: p.UserID.String(),
		Actor:   p.Authority.String(),
		Reason:  string(country),
	})
	return user, nil
}

// UpdateStatusParams carries an authority's verification decision.
// ExpiryDays is only consulted when Status is verified and must then be
// positive; the record expires that many days after the decision.
type UpdateStatusParams struct {
	UserID     domain.UserID
	Authority  domain.AuthorityKey
	Status     Status
	Level      uint8
	ExpiryDays int64
}

// UpdateStatus applies a verification decision to a user record. Only the
// authority that registered the record may change it. The oracle's verified
// population counter follows from the status held before this update, so
// repeated verified decisions never double count.
//
// Errors: ErrUserNotFound, ErrNotRegisteringAuthority, ErrInvalidStatus,
// ErrInvalidVerificationLevel, ErrInvalidExpiryDate, ErrOracleNotInitialized.
func (s *Service) UpdateStatus(ctx context.Context, p UpdateStatusParams) (*User, error) {
	if p.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if p.Authority.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "authority key is required")
	}
	if !p.Status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if p.Level > MaxVerificationLevel {
		return nil, ErrInvalidVerificationLevel
	}
	if p.Status == StatusVerified && p.ExpiryDays <= 0 {
		return nil, ErrInvalidExpiryDate
	}

	var (
		user  *User
		prior Status
	)
	err := s.tx.RunInTx(ctx, func(store Store) error {
		oracle, err := store.Oracle(ctx)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return ErrOracleNotInitialized
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load kyc oracle")
		}

		u, err := store.User(ctx, p.UserID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return ErrUserNotFound
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user record")
		}
		if u.RegisteredBy != p.Authority {
			return ErrNotRegisteringAuthority
		}

		// Snapshot the status before mutating; the counter bookkeeping
		// below depends on the pre-update value.
		prior = u.Status
		now := requestcontext.Now(ctx)

		u.Status = p.Status
		u.VerificationLevel = p.Level
		u.VerificationTime = now
		if p.Status == StatusVerified {
			u.ExpiryTime = now.Add(time.Duration(p.ExpiryDays) * 24 * time.Hour)
		} else {
			u.ExpiryTime = time.Time{}
		}
		if err := store.UpdateUser(ctx, u); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user record")
		}

		oracle.RecordTransition(prior, p.Status, now)
		if err := store.UpdateOracle(ctx, oracle); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update kyc oracle")
		}

		s.metrics.SetVerifiedUsers(oracle.VerifiedUserCount)
		user = u
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotRegisteringAuthority) {
			s.logger.WarnContext(ctx, "status update denied",
				"user_id", p.UserID.String(),
				"authority", p.Authority.String(),
				"request_id", requestcontext.RequestID(ctx))
		}
		return nil, err
	}

	s.metrics.IncrementStatusTransition(prior.String(), p.Status.String())
	s.emit(ctx, audit.Event{
		Event:    audit.EventStatusUpdated,
		Subject:  p.UserID.String(),
		Actor:    p.Authority.String(),
		Decision: p.Status.String(),
		Reason:   prior.String(),
	})
	return user, nil
}

// IsEligible evaluates the eligibility predicate for a user at the request
// time. A user that was never registered is simply not eligible; only
// infrastructure failures surface as errors.
func (s *Service) IsEligible(ctx context.Context, userID domain.UserID, requiredLevel uint8, allowed []domain.CountryCode) (bool, error) {
	user, err := s.store.User(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementEligibilityCheck(false)
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user record")
	}

	eligible := user.EligibleAt(requestcontext.Now(ctx), requiredLevel, allowed)
	s.metrics.IncrementEligibilityCheck(eligible)
	return eligible, nil
}

// User returns a verification record.
func (s *Service) User(ctx context.Context, userID domain.UserID) (*User, error) {
	user, err := s.store.User(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user record")
	}
	return user, nil
}

// Oracle returns the singleton oracle state.
func (s *Service) Oracle(ctx context.Context) (*OracleState, error) {
	state, err := s.store.Oracle(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrOracleNotInitialized
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load kyc oracle")
	}
	return state, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor != nil {
		s.auditor.Emit(ctx, event)
	}
}
