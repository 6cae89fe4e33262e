package aml

import (
	"context"
	"errors"
	"log/slog"

	"custos/internal/aml/metrics"
	"custos/internal/audit"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/sentinel"
	"custos/pkg/requestcontext"
)

// Store is the persistence boundary for AML state. Create methods return
// sentinel.ErrConflict when the record already exists and lookups return
// sentinel.ErrNotFound.
type Store interface {
	CreateAuthority(ctx context.Context, authority *Authority) error
	Authority(ctx context.Context, key domain.AuthorityKey) (*Authority, error)
	UpdateAuthority(ctx context.Context, authority *Authority) error

	CreateEntry(ctx context.Context, entry *BlacklistEntry) error
	Entry(ctx context.Context, userID domain.UserID) (*BlacklistEntry, error)
	UpdateEntry(ctx context.Context, entry *BlacklistEntry) error
}

// StoreTx provides a transactional boundary for AML mutations.
// Implementations may wrap a database transaction or, in-memory, a coarse
// lock.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

// BlacklistCache answers screenings without hitting the store. ok reports
// whether the cache held an answer at all; implementations must treat a
// missing key as a miss, never as a clear user.
type BlacklistCache interface {
	Get(ctx context.Context, userID domain.UserID) (listed bool, ok bool, err error)
	Set(ctx context.Context, userID domain.UserID, listed bool) error
}

// Auditor records compliance-relevant actions.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event)
}

var (
	ErrAuthorityExists   = dErrors.New(dErrors.CodeConflict, "aml authority is already registered")
	ErrAuthorityNotFound = dErrors.New(dErrors.CodeNotFound, "aml authority is not registered")
	ErrAuthorityInactive = dErrors.New(dErrors.CodeForbidden, "aml authority is deactivated")

	// ErrUnauthorizedAuthority means the authority is active but does not
	// hold the power the operation needs.
	ErrUnauthorizedAuthority = dErrors.New(dErrors.CodeForbidden, "aml authority lacks the required power")

	ErrUserBlacklisted = dErrors.New(dErrors.CodeConflict, "user is already blacklisted")
	ErrEntryNotFound   = dErrors.New(dErrors.CodeNotFound, "user is not blacklisted")
	ErrEntryInactive   = dErrors.New(dErrors.CodeConflict, "blacklist entry is already deactivated")
)

// Service owns the AML subsystem: the authority registry with its power bit
// field, the user blacklist, and the screening predicate used by token
// operations.
type Service struct {
	store   Store
	tx      StoreTx
	cache   BlacklistCache
	auditor Auditor
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type serviceConfig struct {
	tx      StoreTx
	cache   BlacklistCache
	auditor Auditor
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*serviceConfig)

func WithStoreTx(tx StoreTx) Option {
	return func(c *serviceConfig) { c.tx = tx }
}

// WithCache enables the screening cache. Mutations write through it so a
// cached answer never outlives a blacklist change by more than the TTL.
func WithCache(cache BlacklistCache) Option {
	return func(c *serviceConfig) { c.cache = cache }
}

func WithAuditor(a Auditor) Option {
	return func(c *serviceConfig) { c.auditor = a }
}

func WithMetrics(m *metrics.Metrics) Option {
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
		cache:   cfg.cache,
		auditor: cfg.auditor,
		metrics: cfg.metrics,
		logger:  cfg.logger,
	}
}

// RegisterAuthorityParams describes a new supervisory body.
type RegisterAuthorityParams struct {
	Key         domain.AuthorityKey
	AuthorityID string
	Powers      Power
}

// RegisterAuthority creates an active authority record. Keys are
// registered exactly once; there is no reactivation path.
func (s *Service) RegisterAuthority(ctx context.Context, p RegisterAuthorityParams) (*Authority, error) {
	if p.Key.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "authority key is required")
	}
	if p.AuthorityID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "authority id is required")
	}

	now := requestcontext.Now(ctx)
	authority := &Authority{
		Key:            p.Key,
		AuthorityID:    p.AuthorityID,
		Powers:         p.Powers,
		Active:         true,
		RegisteredTime: now,
		LastActionTime: now,
	}
	err := s.tx.RunInTx(ctx, func(store Store) error {
		if err := store.CreateAuthority(ctx, authority); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return ErrAuthorityExists
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register aml authority")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementAction("register")
	s.emit(ctx, audit.Event{
		Event:   audit.EventAuthorityRegistered,
		Subject: p.Key.String(),
		Actor:   requestcontext.Caller(ctx),
		Reason:  p.AuthorityID,
	})
	return authority, nil
}

// Authority returns a registered authority record.
func (s *Service) Authority(ctx context.Context, key domain.AuthorityKey) (*Authority, error) {
	authority, err := s.store.Authority(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrAuthorityNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load aml authority")
	}
	return authority, nil
}

// DeactivateAuthority strips an authority of all powers at once. The
// record and its history remain; there is no way back to active.
func (s *Service) DeactivateAuthority(ctx context.Context, key domain.AuthorityKey) (*Authority, error) {
	if key.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "authority key is required")
	}

	var authority *Authority
	err := s.tx.RunInTx(ctx, func(store Store) error {
		a, err := store.Authority(ctx, key)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return ErrAuthorityNotFound
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load aml authority")
		}
		if !a.Active {
			return ErrAuthorityInactive
		}

		a.Active = false
		a.LastActionTime = requestcontext.Now(ctx)
		if err := store.UpdateAuthority(ctx, a); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update aml authority")
		}
		authority = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementAction("deactivate")
	s.emit(ctx, audit.Event{
		Event:   audit.EventAuthorityDeactivated,
		Subject: key.String(),
		Actor:   requestcontext.Caller(ctx),
	})
	return authority, nil
}

// UpdatePowers replaces an authority's power bit field. The authority must
// still be active; powers cannot be granted back to a deactivated record.
func (s *Service) UpdatePowers(ctx context.Context, key domain.AuthorityKey, powers Power) (*Authority, error) {
	if key.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "authority key is required")
	}

	var authority *Authority
	err := s.tx.RunInTx(ctx, func(store Store) error {
		a, err := store.Authority(ctx, key)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return ErrAuthorityNotFound
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load aml authority")
		}
		if !a.Active {
			return ErrAuthorityInactive
		}

		a.Powers = powers
		a.LastActionTime = requestcontext.Now(ctx)
		if err := store.UpdateAuthority(ctx, a); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update aml authority")
		}
		authority = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementAction("update_powers")
	s.emit(ctx, audit.Event{
		Event:    audit.EventAuthorityPowersUpdated,
		Subject:  key.String(),
		Actor:    requestcontext.Caller(ctx),
		Decision: powerList(powers),
	})
	return authority, nil
}

// BlacklistParams identifies the user to block, the acting authority, and
// the stated reason.
type BlacklistParams struct {
	UserID    domain.UserID
	Authority domain.AuthorityKey
	Reason    string
}

// Blacklist blocks a user. The acting authority must be active and hold
// the modify_blacklist power. Re-listing a deactivated entry succeeds and
// refreshes its reason, authority, and creation time; listing an already
// active entry conflicts.
func (s *Service) Blacklist(ctx context.Context, p BlacklistParams) (*BlacklistEntry, error) {
	if p.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if p.Reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "blacklist reason is required")
	}

	var entry *BlacklistEntry
	err := s.tx.RunInTx(ctx, func(store Store) error {
		authority, err := s.requireBlacklistPower(ctx, store, p.Authority)
		if err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		existing, err := store.Entry(ctx, p.UserID)
		switch {
		case err == nil && existing.Active:
			return ErrUserBlacklisted
		case err == nil:
			existing.Authority = p.Authority
			existing.Reason = p.Reason
			existing.Active = true
			existing.CreationTime = now
			existing.UpdatedTime = now
			if err := store.UpdateEntry(ctx, existing); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update blacklist entry")
			}
			entry = existing
		case errors.Is(err, sentinel.ErrNotFound):
			entry = &BlacklistEntry{
				UserID:       p.UserID,
				Authority:    p.Authority,
				Reason:       p.Reason,
				Active:       true,
				CreationTime: now,
				UpdatedTime:  now,
			}
			if err := store.CreateEntry(ctx, entry); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create blacklist entry")
			}
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load blacklist entry")
		}

		authority.LastActionTime = now
		if err := store.UpdateAuthority(ctx, authority); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update aml authority")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, p.UserID, true)
	s.metrics.IncrementAction("blacklist")
	s.emit(ctx, audit.Event{
		Event:   audit.EventBlacklistCreated,
		Subject: p.UserID.String(),
		Actor:   p.Authority.String(),
		Reason:  p.Reason,
	})
	return entry, nil
}

// DeactivateEntry lifts the block on a user. The acting authority must be
// active and hold the modify_blacklist power; any such authority may lift
// a block, not only the one that created it.
func (s *Service) DeactivateEntry(ctx context.Context, p BlacklistParams) (*BlacklistEntry, error) {
	if p.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	var entry *BlacklistEntry
	err := s.tx.RunInTx(ctx, func(store Store) error {
		authority, err := s.requireBlacklistPower(ctx, store, p.Authority)
		if err != nil {
			return err
		}

		existing, err := store.Entry(ctx, p.UserID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return ErrEntryNotFound
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load blacklist entry")
		}
		if !existing.Active {
			return ErrEntryInactive
		}

		now := requestcontext.Now(ctx)
		existing.Active = false
		existing.UpdatedTime = now
		if err := store.UpdateEntry(ctx, existing); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update blacklist entry")
		}

		authority.LastActionTime = now
		if err := store.UpdateAuthority(ctx, authority); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update aml authority")
		}
		entry = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, p.UserID, false)
	s.metrics.IncrementAction("unblacklist")
	s.emit(ctx, audit.Event{
		Event:   audit.EventBlacklistDeactivated,
		Subject: p.UserID.String(),
		Actor:   p.Authority.String(),
		Reason:  p.Reason,
	})
	return entry, nil
}

// Entry returns the blacklist record for a user, active or not.
func (s *Service) Entry(ctx context.Context, userID domain.UserID) (*BlacklistEntry, error) {
	entry, err := s.store.Entry(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load blacklist entry")
	}
	return entry, nil
}

// IsBlacklisted reports whether a user is actively blocked. Users with no
// entry, or only a deactivated one, are clear. A cache failure is logged
// and the store answers instead; screening never fails open on a degraded
// cache.
func (s *Service) IsBlacklisted(ctx context.Context, userID domain.UserID) (bool, error) {
	if s.cache != nil {
		listed, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.WarnContext(ctx, "blacklist cache read failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx))
		} else if ok {
			s.metrics.IncrementCacheHit()
			s.metrics.IncrementCheck(listed)
			return listed, nil
		} else {
			s.metrics.IncrementCacheMiss()
		}
	}

	listed := false
	entry, err := s.store.Entry(ctx, userID)
	switch {
	case err == nil:
		listed = entry.Active
	case errors.Is(err, sentinel.ErrNotFound):
	default:
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load blacklist entry")
	}

	s.cacheSet(ctx, userID, listed)
	s.metrics.IncrementCheck(listed)
	return listed, nil
}

func (s *Service) requireBlacklistPower(ctx context.Context, store Store, key domain.AuthorityKey) (*Authority, error) {
	if key.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "authority key is required")
	}
	authority, err := store.Authority(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrAuthorityNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load aml authority")
	}
	if !authority.Active {
		return nil, ErrAuthorityInactive
	}
	if !authority.Powers.Has(PowerModifyBlacklist) {
		s.logger.WarnContext(ctx, "blacklist mutation denied",
			"authority", key.String(),
			"powers", powerList(authority.Powers),
			"request_id", requestcontext.RequestID(ctx))
		return nil, ErrUnauthorizedAuthority
	}
	return authority, nil
}

func (s *Service) cacheSet(ctx context.Context, userID domain.UserID, listed bool) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, userID, listed); err != nil {
		s.logger.WarnContext(ctx, "blacklist cache write failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx))
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor != nil {
		s.auditor.Emit(ctx, event)
	}
}

func powerList(p Power) string {
	names := p.Names()
	if len(names) == 0 {
		return "none"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += "," + n
	}
	return out
}
