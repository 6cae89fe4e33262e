package token

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"custos/internal/audit"
	"custos/internal/merkle"
	"custos/internal/token/metrics"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/sentinel"
	"custos/pkg/requestcontext"
)

// Store is the persistence boundary for the mint record. Create returns
// sentinel.ErrConflict when the record already exists and lookups return
// sentinel.ErrNotFound.
type Store interface {
	CreateMintInfo(ctx context.Context, info *MintInfo) error
	MintInfo(ctx context.Context) (*MintInfo, error)
	UpdateMintInfo(ctx context.Context, info *MintInfo) error
}

// StoreTx provides a transactional boundary for mint-info mutations.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

// EligibilityChecker is the KYC oracle predicate consulted before value
// moves toward a user.
type EligibilityChecker interface {
	IsEligible(ctx context.Context, userID domain.UserID, requiredLevel uint8, allowed []domain.CountryCode) (bool, error)
}

// BlacklistChecker is the AML screening predicate.
type BlacklistChecker interface {
	IsBlacklisted(ctx context.Context, userID domain.UserID) (bool, error)
}

// Auditor records compliance-relevant actions.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event)
}

var (
	ErrMintExists         = dErrors.New(dErrors.CodeConflict, "mint is already initialized")
	ErrMintNotInitialized = dErrors.New(dErrors.CodeNotFound, "mint is not initialized")
	ErrMintInactive       = dErrors.New(dErrors.CodeForbidden, "mint is inactive")

	ErrNotIssuer            = dErrors.New(dErrors.CodeForbidden, "caller is not the issuer")
	ErrNotFreezeAuthority   = dErrors.New(dErrors.CodeForbidden, "caller is not the freeze authority")
	ErrNotPermanentDelegate = dErrors.New(dErrors.CodeForbidden, "caller is not the permanent delegate")

	ErrInvalidWhitepaperURI = dErrors.New(dErrors.CodeValidation, "whitepaper uri must use the https or ipfs scheme")
	ErrInvalidAmount        = dErrors.New(dErrors.CodeValidation, "amount must be greater than zero")
	ErrAmountExceedsMaximum = dErrors.New(dErrors.CodeValidation, "amount exceeds the per-transaction maximum")

	ErrRecipientNotEligible = dErrors.New(dErrors.CodeEligibility, "recipient is not eligible to receive minted tokens")
)

// Service orchestrates the compliance-gated token lifecycle. Every
// operation follows the same shape: validate input, load the mint record,
// check the caller's identity and the parties' compliance state, and only
// then delegate the balance mutation to the external ledger. Any failed
// precondition aborts the operation before the ledger is touched.
type Service struct {
	store   Store
	tx      StoreTx
	ledger  Ledger
	kyc     EligibilityChecker
	aml     BlacklistChecker
	auditor Auditor
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type serviceConfig struct {
	tx      StoreTx
	auditor Auditor
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*serviceConfig)

func WithStoreTx(tx StoreTx) Option {
	return func(c *serviceConfig) { c.tx = tx }
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

func NewService(store Store, ledger Ledger, kyc EligibilityChecker, aml BlacklistChecker, opts ...Option) *Service {
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
		ledger:  ledger,
		kyc:     kyc,
		aml:     aml,
		auditor: cfg.auditor,
		metrics: cfg.metrics,
		logger:  cfg.logger,
	}
}

// InitializeMintParams fixes the mint's identity and its three authority
// keys. None of them can be changed afterwards.
type InitializeMintParams struct {
	Mint              domain.MintID
	Issuer            domain.AuthorityKey
	FreezeAuthority   domain.AuthorityKey
	PermanentDelegate domain.AuthorityKey
	WhitepaperURI     string
}

// InitializeMint creates the mint record exactly once.
func (s *Service) InitializeMint(ctx context.Context, p InitializeMintParams) (info *MintInfo, err error) {
	defer func() { s.observe("initialize_mint", err) }()

	if p.Mint.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "mint id is required")
	}
	if p.Issuer.IsNil() || p.FreezeAuthority.IsNil() || p.PermanentDelegate.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "issuer, freeze authority, and permanent delegate keys are required")
	}
	if !strings.HasPrefix(p.WhitepaperURI, "https://") && !strings.HasPrefix(p.WhitepaperURI, "ipfs://") {
		return nil, ErrInvalidWhitepaperURI
	}

	info = &MintInfo{
		Mint:              p.Mint,
		Issuer:            p.Issuer,
		FreezeAuthority:   p.FreezeAuthority,
		PermanentDelegate: p.PermanentDelegate,
		WhitepaperURI:     p.WhitepaperURI,
		Active:            true,
		CreationTime:      requestcontext.Now(ctx),
	}
	err = s.tx.RunInTx(ctx, func(store Store) error {
		if err := store.CreateMintInfo(ctx, info); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return ErrMintExists
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to initialize mint")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// An in-process ledger tracks the permanent delegate itself; a real
	// ledger carries it on the mint account.
	if l, ok := s.ledger.(interface{ SetDelegate(domain.AuthorityKey) }); ok {
		l.SetDelegate(p.PermanentDelegate)
	}

	s.emit(ctx, audit.Event{
		Event:   audit.EventMintInitialized,
		Subject: p.Mint.String(),
		Actor:   p.Issuer.String(),
		Reason:  p.WhitepaperURI,
	})
	return info, nil
}

// MintInfo returns the mint record, active or not.
func (s *Service) MintInfo(ctx context.Context) (*MintInfo, error) {
	info, err := s.store.MintInfo(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrMintNotInitialized
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load mint info")
	}
	return info, nil
}

// MintParams describes an issuance: who requested it, which user receives
// it, and on which ledger account the tokens land.
type MintParams struct {
	Caller           domain.AuthorityKey
	RecipientUser    domain.UserID
	RecipientAccount domain.AccountID
	Amount           uint64
}

// Mint issues new tokens. Only the issuer may mint, the recipient must be
// KYC-eligible at the mint/redeem tier, and the destination account is
// thawed afterwards so a first-time recipient can transact without a
// separate freeze-authority round trip.
func (s *Service) Mint(ctx context.Context, p MintParams) (err error) {
	defer func() { s.observe("mint", err) }()

	if err := validateAmount(p.Amount); err != nil {
		return err
	}
	if p.Caller.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "caller key is required")
	}
	if p.RecipientUser.IsNil() || p.RecipientAccount.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "recipient user and account are required")
	}

	info, err := s.activeMint(ctx)
	if err != nil {
		return err
	}
	if p.Caller != info.Issuer {
		s.logger.WarnContext(ctx, "mint denied",
			"caller", p.Caller.String(),
			"reason", "not_issuer",
			"request_id", requestcontext.RequestID(ctx))
		return ErrNotIssuer
	}

	eligible, err := s.kyc.IsEligible(ctx, p.RecipientUser, MinMintRedeemKYCLevel, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to screen mint recipient")
	}
	if !eligible {
		s.logger.WarnContext(ctx, "mint denied",
			"recipient", p.RecipientUser.String(),
			"reason", "recipient_not_eligible",
			"request_id", requestcontext.RequestID(ctx))
		return ErrRecipientNotEligible
	}

	if err := s.ledger.MintTo(ctx, p.RecipientAccount, p.Amount); err != nil {
		return err
	}
	// New accounts come up frozen; lift that so the recipient can move the
	// funds. An already thawed destination is not an error.
	if err := s.ledger.Thaw(ctx, p.RecipientAccount); err != nil && !errors.Is(err, ErrAccountNotFrozen) {
		return err
	}

	s.emit(ctx, audit.Event{
		Event:   audit.EventTokensMinted,
		Subject: p.RecipientAccount.String(),
		Actor:   p.Caller.String(),
		Amount:  p.Amount,
	})
	return nil
}

// BurnParams describes a redemption from the caller's own account.
type BurnParams struct {
	Caller  domain.AuthorityKey
	Account domain.AccountID
	Amount  uint64
}

// Burn redeems tokens. Redemption is self-service: no KYC re-check beyond
// what the ledger enforces for the burn itself, the holder already passed
// the gate when the tokens reached them.
func (s *Service) Burn(ctx context.Context, p BurnParams) (err error) {
	defer func() { s.observe("burn", err) }()

	if err := validateAmount(p.Amount); err != nil {
		return err
	}
	if p.Caller.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "caller key is required")
	}
	if p.Account.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "account id is required")
	}

	if _, err := s.activeMint(ctx); err != nil {
		return err
	}
	if err := s.ledger.BurnFrom(ctx, p.Account, p.Amount); err != nil {
		return err
	}

	s.emit(ctx, audit.Event{
		Event:   audit.EventTokensBurned,
		Subject: p.Account.String(),
		Actor:   p.Caller.String(),
		Amount:  p.Amount,
	})
	return nil
}

// FreezeParams names the account to toggle and who asks for it.
type FreezeParams struct {
	Caller  domain.AuthorityKey
	Account domain.AccountID
}

// Freeze makes an account non-transferable. Only the freeze authority
// recorded at mint creation may freeze.
func (s *Service) Freeze(ctx context.Context, p FreezeParams) (err error) {
	defer func() { s.observe("freeze", err) }()

	if err := s.requireFreezeAuthority(ctx, p); err != nil {
		return err
	}
	if err := s.ledger.Freeze(ctx, p.Account); err != nil {
		return err
	}

	s.emit(ctx, audit.Event{
		Event:   audit.EventAccountFrozen,
		Subject: p.Account.String(),
		Actor:   p.Caller.String(),
	})
	return nil
}

// Thaw lifts a freeze. Same authority gate as Freeze.
func (s *Service) Thaw(ctx context.Context, p FreezeParams) (err error) {
	defer func() { s.observe("thaw", err) }()

	if err := s.requireFreezeAuthority(ctx, p); err != nil {
		return err
	}
	if err := s.ledger.Thaw(ctx, p.Account); err != nil {
		return err
	}

	s.emit(ctx, audit.Event{
		Event:   audit.EventAccountThawed,
		Subject: p.Account.String(),
		Actor:   p.Caller.String(),
	})
	return nil
}

func (s *Service) requireFreezeAuthority(ctx context.Context, p FreezeParams) error {
	if p.Caller.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "caller key is required")
	}
	if p.Account.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "account id is required")
	}
	info, err := s.activeMint(ctx)
	if err != nil {
		return err
	}
	if p.Caller != info.FreezeAuthority {
		s.logger.WarnContext(ctx, "freeze toggle denied",
			"caller", p.Caller.String(),
			"reason", "not_freeze_authority",
			"request_id", requestcontext.RequestID(ctx))
		return ErrNotFreezeAuthority
	}
	return nil
}

// SeizeParams describes a regulatory seizure: funds moved from the target
// account to a recovery account without the owner's consent.
type SeizeParams struct {
	Caller          domain.AuthorityKey
	TargetAccount   domain.AccountID
	RecoveryAccount domain.AccountID
	Amount          uint64
}

// Seize executes the regulatory seizure path. Only the permanent delegate
// recorded at mint creation may seize, and the move is audited under its
// own event so seizures never blend into ordinary transfers. A frozen
// target still blocks the move at the ledger; the operational sequence
// for a frozen account is thaw, then seize.
func (s *Service) Seize(ctx context.Context, p SeizeParams) (err error) {
	defer func() { s.observe("seize", err) }()

	if err := validateAmount(p.Amount); err != nil {
		return err
	}
	if p.Caller.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "caller key is required")
	}
	if p.TargetAccount.IsNil() || p.RecoveryAccount.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "target and recovery accounts are required")
	}
	if p.TargetAccount == p.RecoveryAccount {
		return dErrors.New(dErrors.CodeInvalidInput, "recovery account must differ from the target")
	}

	info, err := s.activeMint(ctx)
	if err != nil {
		return err
	}
	if p.Caller != info.PermanentDelegate {
		s.logger.WarnContext(ctx, "seizure denied",
			"caller", p.Caller.String(),
			"reason", "not_permanent_delegate",
			"request_id", requestcontext.RequestID(ctx))
		return ErrNotPermanentDelegate
	}

	if err := s.ledger.Transfer(ctx, p.TargetAccount, p.RecoveryAccount, p.Amount, p.Caller); err != nil {
		return err
	}

	s.metrics.IncrementSeizure()
	s.emit(ctx, audit.Event{
		Event:    audit.EventFundsSeized,
		Subject:  p.TargetAccount.String(),
		Actor:    p.Caller.String(),
		Decision: p.RecoveryAccount.String(),
		Amount:   p.Amount,
	})
	return nil
}

// UpdateReserveParams carries a fresh reserve attestation.
type UpdateReserveParams struct {
	Caller  domain.AuthorityKey
	Root    [32]byte
	IPFSCID string
}

// UpdateReserve overwrites the reserve attestation. The write is
// declarative: the service does not re-verify the root against anything,
// holders spot-check it later through VerifyReserveLeaf.
func (s *Service) UpdateReserve(ctx context.Context, p UpdateReserveParams) (info *MintInfo, err error) {
	defer func() { s.observe("update_reserve", err) }()

	if p.Caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "caller key is required")
	}
	if p.IPFSCID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reserve ipfs cid is required")
	}

	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, func(store Store) error {
		m, err := store.MintInfo(ctx)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return ErrMintNotInitialized
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load mint info")
		}
		if !m.Active {
			return ErrMintInactive
		}
		if p.Caller != m.Issuer {
			s.logger.WarnContext(ctx, "reserve update denied",
				"caller", p.Caller.String(),
				"reason", "not_issuer",
				"request_id", requestcontext.RequestID(ctx))
			return ErrNotIssuer
		}

		m.ReserveMerkleRoot = p.Root
		m.ReserveIPFSCID = p.IPFSCID
		m.LastReserveUpdate = now
		if err := store.UpdateMintInfo(ctx, m); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update mint info")
		}
		info = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SetReserveUpdateTime(now)
	s.emit(ctx, audit.Event{
		Event:    audit.EventReserveUpdated,
		Subject:  info.Mint.String(),
		Actor:    p.Caller.String(),
		Decision: hex.EncodeToString(info.ReserveMerkleRoot[:]),
		Reason:   p.IPFSCID,
	})
	return info, nil
}

// VerifyReserveLeafParams carries one deposit and its inclusion proof.
type VerifyReserveLeafParams struct {
	DepositID string
	Amount    uint64
	Timestamp int64
	Proof     [][32]byte
	Sides     []merkle.Side
}

// VerifyReserveLeaf rebuilds the deposit leaf and verifies the proof
// against the stored reserve root. Pure query: a failed proof is a false
// result, never an error.
func (s *Service) VerifyReserveLeaf(ctx context.Context, p VerifyReserveLeafParams) (bool, error) {
	info, err := s.MintInfo(ctx)
	if err != nil {
		return false, err
	}
	leaf := merkle.Leaf(p.DepositID, p.Amount, p.Timestamp)
	return merkle.VerifyProof(p.Proof, info.ReserveMerkleRoot, leaf, p.Sides), nil
}

// CheckTransfer screens a prospective transfer between two users: both
// parties KYC-eligible at the transfer tier inside the supported-country
// whitelist, neither blacklisted, and the amount within the cap. The four
// record loads run concurrently; the verdict itself is pure. Nothing is
// mutated, whatever the outcome.
func (s *Service) CheckTransfer(ctx context.Context, from, to domain.UserID, amount uint64) (*TransferDecision, error) {
	if from.IsNil() || to.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "sender and recipient user ids are required")
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	var (
		fromEligible, toEligible bool
		fromListed, toListed     bool
	)
	countries := domain.SupportedCountries()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := s.kyc.IsEligible(gctx, from, MinTransferKYCLevel, countries)
		fromEligible = ok
		return err
	})
	g.Go(func() error {
		ok, err := s.kyc.IsEligible(gctx, to, MinTransferKYCLevel, countries)
		toEligible = ok
		return err
	})
	g.Go(func() error {
		listed, err := s.aml.IsBlacklisted(gctx, from)
		fromListed = listed
		return err
	})
	g.Go(func() error {
		listed, err := s.aml.IsBlacklisted(gctx, to)
		toListed = listed
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "transfer screening failed")
	}

	var reasons []string
	if !fromEligible {
		reasons = append(reasons, ReasonSenderNotEligible)
	}
	if !toEligible {
		reasons = append(reasons, ReasonRecipientNotEligible)
	}
	if fromListed {
		reasons = append(reasons, ReasonSenderBlacklisted)
	}
	if toListed {
		reasons = append(reasons, ReasonRecipientBlacklisted)
	}
	if amount > MaxTransactionAmount {
		reasons = append(reasons, ReasonAmountExceedsMaximum)
	}

	decision := &TransferDecision{
		Allowed:   len(reasons) == 0,
		Reasons:   reasons,
		CheckedAt: requestcontext.Now(ctx),
	}

	s.metrics.IncrementTransferCheck(decision.Allowed)
	outcome := "denied"
	if decision.Allowed {
		outcome = "allowed"
	}
	s.emit(ctx, audit.Event{
		Event:    audit.EventTransferChecked,
		Subject:  from.String(),
		Actor:    requestcontext.Caller(ctx),
		Decision: outcome,
		Reason:   strings.Join(reasons, ","),
		Amount:   amount,
	})
	return decision, nil
}

// activeMint loads the mint record and enforces the is_active gate shared
// by every mutating operation.
func (s *Service) activeMint(ctx context.Context) (*MintInfo, error) {
	info, err := s.MintInfo(ctx)
	if err != nil {
		return nil, err
	}
	if !info.Active {
		return nil, ErrMintInactive
	}
	return info, nil
}

func validateAmount(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if amount > MaxTransactionAmount {
		return ErrAmountExceedsMaximum
	}
	return nil
}

// observe classifies a finished operation for the metrics counters.
func (s *Service) observe(op string, err error) {
	if err == nil {
		s.metrics.IncrementOperation(op, "ok")
		return
	}
	if reason, ok := denialReason(err); ok {
		s.metrics.IncrementDenial(op, reason)
		return
	}
	s.metrics.IncrementOperation(op, "error")
}

func denialReason(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrMintNotInitialized):
		return "mint_not_initialized", true
	case errors.Is(err, ErrMintInactive):
		return "mint_inactive", true
	case errors.Is(err, ErrNotIssuer):
		return "not_issuer", true
	case errors.Is(err, ErrNotFreezeAuthority):
		return "not_freeze_authority", true
	case errors.Is(err, ErrNotPermanentDelegate):
		return "not_permanent_delegate", true
	case errors.Is(err, ErrRecipientNotEligible):
		return "recipient_not_eligible", true
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount", true
	case errors.Is(err, ErrAmountExceedsMaximum):
		return "amount_exceeds_maximum", true
	case errors.Is(err, ErrInvalidWhitepaperURI):
		return "invalid_whitepaper_uri", true
	}
	return "", false
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor != nil {
		s.auditor.Emit(ctx, event)
	}
}
