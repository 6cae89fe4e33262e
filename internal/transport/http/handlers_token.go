package httptransport

import (
	"context"
	"net/http"
	"time"

	"custos/internal/token"
	"custos/pkg/domain"
	"custos/pkg/platform/httputil"
	"custos/pkg/requestcontext"
)

// TokenService defines the interface for token lifecycle operations.
type TokenService interface {
	InitializeMint(ctx context.Context, p token.InitializeMintParams) (*token.MintInfo, error)
	MintInfo(ctx context.Context) (*token.MintInfo, error)
	Mint(ctx context.Context, p token.MintParams) error
	Burn(ctx context.Context, p token.BurnParams) error
	Freeze(ctx context.Context, p token.FreezeParams) error
	Thaw(ctx context.Context, p token.FreezeParams) error
	Seize(ctx context.Context, p token.SeizeParams) error
	UpdateReserve(ctx context.Context, p token.UpdateReserveParams) (*token.MintInfo, error)
	VerifyReserveLeaf(ctx context.Context, p token.VerifyReserveLeafParams) (bool, error)
	CheckTransfer(ctx context.Context, from, to domain.UserID, amount uint64) (*token.TransferDecision, error)
}

// handleInitializeMint handles POST /token/mint-info requests.
func (h *Handler) handleInitializeMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[InitializeMintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	info, err := h.token.InitializeMint(ctx, token.InitializeMintParams{
		Mint:              req.ParsedMint(),
		Issuer:            req.ParsedIssuer(),
		FreezeAuthority:   req.ParsedFreezeAuthority(),
		PermanentDelegate: req.ParsedPermanentDelegate(),
		WhitepaperURI:     req.WhitepaperURI,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "mint initialization failed",
			"request_id", requestID,
			"mint", req.Mint,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "mint initialized",
		"request_id", requestID,
		"mint", req.Mint,
		"issuer", req.Issuer,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, FromMintInfo(info))
}

// handleMintInfo handles GET /token/mint-info requests.
func (h *Handler) handleMintInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.token.MintInfo(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromMintInfo(info))
}

// handleMint handles POST /token/mint requests. The caller is the
// authenticated principal and must be the issuer.
func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller, ok := h.callerKey(w, ctx, requestID)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[MintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	err := h.token.Mint(ctx, token.MintParams{
		Caller:           caller,
		RecipientUser:    req.ParsedRecipientUser(),
		RecipientAccount: req.ParsedRecipientAccount(),
		Amount:           req.Amount,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "mint failed",
			"request_id", requestID,
			"recipient_user", req.RecipientUser,
			"amount", req.Amount,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "tokens minted",
		"request_id", requestID,
		"recipient_user", req.RecipientUser,
		"recipient_account", req.RecipientAccount,
		"amount", req.Amount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	w.WriteHeader(http.StatusNoContent)
}

// handleBurn handles POST /token/burn requests.
func (h *Handler) handleBurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller, ok := h.callerKey(w, ctx, requestID)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[BurnRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	err := h.token.Burn(ctx, token.BurnParams{
		Caller:  caller,
		Account: req.ParsedAccount(),
		Amount:  req.Amount,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "burn failed",
			"request_id", requestID,
			"account", req.Account,
			"amount", req.Amount,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "tokens burned",
		"request_id", requestID,
		"account", req.Account,
		"amount", req.Amount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	w.WriteHeader(http.StatusNoContent)
}

// handleFreeze handles POST /token/freeze requests.
func (h *Handler) handleFreeze(w http.ResponseWriter, r *http.Request) {
	h.handleFreezeToggle(w, r, h.token.Freeze, "freeze failed", "account frozen")
}

// handleThaw handles POST /token/thaw requests.
func (h *Handler) handleThaw(w http.ResponseWriter, r *http.Request) {
	h.handleFreezeToggle(w, r, h.token.Thaw, "thaw failed", "account thawed")
}

// handleFreezeToggle carries the shared freeze/thaw flow; both endpoints
// take the same body and differ only in the service call.
func (h *Handler) handleFreezeToggle(w http.ResponseWriter, r *http.Request, op func(context.Context, token.FreezeParams) error, failMsg, okMsg string) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.callerKey(w, ctx, requestID)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[FreezeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := op(ctx, token.FreezeParams{Caller: caller, Account: req.ParsedAccount()}); err != nil {
		h.logger.ErrorContext(ctx, failMsg,
			"request_id", requestID,
			"account", req.Account,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, okMsg,
		"request_id", requestID,
		"account", req.Account,
	)

	w.WriteHeader(http.StatusNoContent)
}

// handleSeize handles POST /token/seize requests. The caller is the
// authenticated principal and must be the permanent delegate.
func (h *Handler) handleSeize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller, ok := h.callerKey(w, ctx, requestID)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[SeizeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	err := h.token.Seize(ctx, token.SeizeParams{
		Caller:          caller,
		TargetAccount:   req.ParsedTargetAccount(),
		RecoveryAccount: req.ParsedRecoveryAccount(),
		Amount:          req.Amount,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "seizure failed",
			"request_id", requestID,
			"target_account", req.TargetAccount,
			"amount", req.Amount,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "funds seized",
		"request_id", requestID,
		"target_account", req.TargetAccount,
		"recovery_account", req.RecoveryAccount,
		"amount", req.Amount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateReserve handles PUT /token/reserve requests. The caller is
// the authenticated principal and must be the issuer.
func (h *Handler) handleUpdateReserve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller, ok := h.callerKey(w, ctx, requestID)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateReserveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	info, err := h.token.UpdateReserve(ctx, token.UpdateReserveParams{
		Caller:  caller,
		Root:    req.ParsedRoot(),
		IPFSCID: req.IPFSCID,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "reserve update failed",
			"request_id", requestID,
			"ipfs_cid", req.IPFSCID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "reserve attestation updated",
		"request_id", requestID,
		"ipfs_cid", req.IPFSCID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromMintInfo(info))
}

// handleVerifyReserveLeaf handles POST /token/reserve/verify requests.
// Public: any holder can check the published attestation against their
// own deposit without credentials.
func (h *Handler) handleVerifyReserveLeaf(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyReserveLeafRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	valid, err := h.token.VerifyReserveLeaf(ctx, token.VerifyReserveLeafParams{
		DepositID: req.DepositID,
		Amount:    req.Amount,
		Timestamp: req.Timestamp,
		Proof:     req.ParsedProof(),
		Sides:     req.ParsedSides(),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &VerifyReserveLeafResponse{
		Valid:     valid,
		CheckedAt: requestcontext.Now(ctx),
	})
}

// handleCheckTransfer handles POST /token/transfer-check requests. A
// denied transfer is a 200 with the decision document, not an error; the
// caller is asking a question, not moving funds.
func (h *Handler) handleCheckTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CheckTransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	decision, err := h.token.CheckTransfer(ctx, req.ParsedFromUser(), req.ParsedToUser(), req.Amount)
	if err != nil {
		h.logger.ErrorContext(ctx, "transfer check failed",
			"request_id", requestID,
			"from_user", req.FromUser,
			"to_user", req.ToUser,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, decision)
}
