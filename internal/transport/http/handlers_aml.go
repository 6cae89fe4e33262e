package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custos/internal/aml"
	"custos/pkg/domain"
	"custos/pkg/platform/httputil"
	"custos/pkg/requestcontext"
)

// AMLService defines the interface for authority and blacklist operations.
type AMLService interface {
	RegisterAuthority(ctx context.Context, p aml.RegisterAuthorityParams) (*aml.Authority, error)
	Authority(ctx context.Context, key domain.AuthorityKey) (*aml.Authority, error)
	DeactivateAuthority(ctx context.Context, key domain.AuthorityKey) (*aml.Authority, error)
	UpdatePowers(ctx context.Context, key domain.AuthorityKey, powers aml.Power) (*aml.Authority, error)
	Blacklist(ctx context.Context, p aml.BlacklistParams) (*aml.BlacklistEntry, error)
	DeactivateEntry(ctx context.Context, p aml.BlacklistParams) (*aml.BlacklistEntry, error)
	Entry(ctx context.Context, userID domain.UserID) (*aml.BlacklistEntry, error)
}

// handleRegisterAuthority handles POST /aml/authorities requests.
func (h *Handler) handleRegisterAuthority(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[RegisterAuthorityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	authority, err := h.aml.RegisterAuthority(ctx, aml.RegisterAuthorityParams{
		Key:         req.ParsedKey(),
		AuthorityID: req.AuthorityID,
		Powers:      req.ParsedPowers(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "authority registration failed",
			"request_id", requestID,
			"authority_key", req.AuthorityKey,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "authority registered",
		"request_id", requestID,
		"authority_key", req.AuthorityKey,
		"authority_id", req.AuthorityID,
		"powers", req.Powers,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, FromAuthority(authority))
}

// handleGetAuthority handles GET /aml/authorities/{key} requests.
func (h *Handler) handleGetAuthority(w http.ResponseWriter, r *http.Request) {
	key, err := domain.ParseAuthorityKey(chi.URLParam(r, "key"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	authority, err := h.aml.Authority(r.Context(), key)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAuthority(authority))
}

// handleDeactivateAuthority handles POST /aml/authorities/{key}/deactivate
// requests.
func (h *Handler) handleDeactivateAuthority(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	key, err := domain.ParseAuthorityKey(chi.URLParam(r, "key"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	authority, err := h.aml.DeactivateAuthority(ctx, key)
	if err != nil {
		h.logger.ErrorContext(ctx, "authority deactivation failed",
			"request_id", requestID,
			"authority_key", key,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "authority deactivated",
		"request_id", requestID,
		"authority_key", key,
	)

	httputil.WriteJSON(w, http.StatusOK, FromAuthority(authority))
}

// handleUpdatePowers handles POST /aml/authorities/{key}/powers requests.
func (h *Handler) handleUpdatePowers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	key, err := domain.ParseAuthorityKey(chi.URLParam(r, "key"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdatePowersRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	authority, err := h.aml.UpdatePowers(ctx, key, req.ParsedPowers())
	if err != nil {
		h.logger.ErrorContext(ctx, "power update failed",
			"request_id", requestID,
			"authority_key", key,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "authority powers updated",
		"request_id", requestID,
		"authority_key", key,
		"powers", req.Powers,
	)

	httputil.WriteJSON(w, http.StatusOK, FromAuthority(authority))
}

// handleBlacklistUser handles POST /aml/blacklist requests. The acting
// authority is the authenticated principal.
func (h *Handler) handleBlacklistUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller, ok := h.callerKey(w, ctx, requestID)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[BlacklistUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entry, err := h.aml.Blacklist(ctx, aml.BlacklistParams{
		UserID:    req.ParsedUserID(),
		Authority: caller,
		Reason:    req.Reason,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "blacklisting failed",
			"request_id", requestID,
			"user_id", req.UserID,
			"authority_key", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "user blacklisted",
		"request_id", requestID,
		"user_id", req.UserID,
		"authority_key", caller,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, FromBlacklistEntry(entry))
}

// handleDeactivateBlacklistEntry handles
// POST /aml/blacklist/{userID}/deactivate requests. The acting authority
// is the authenticated principal; the body is optional and may carry a
// reason for the release.
func (h *Handler) handleDeactivateBlacklistEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.callerKey(w, ctx, requestID)
	if !ok {
		return
	}

	userID, err := domain.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[DeactivateBlacklistRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entry, err := h.aml.DeactivateEntry(ctx, aml.BlacklistParams{
		UserID:    userID,
		Authority: caller,
		Reason:    req.Reason,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "blacklist release failed",
			"request_id", requestID,
			"user_id", userID,
			"authority_key", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "blacklist entry deactivated",
		"request_id", requestID,
		"user_id", userID,
		"authority_key", caller,
	)

	httputil.WriteJSON(w, http.StatusOK, FromBlacklistEntry(entry))
}

// handleBlacklistEntry handles GET /aml/blacklist/{userID} requests. The
// entry is returned whether active or released; a user that was never
// listed is a 404.
func (h *Handler) handleBlacklistEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := domain.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entry, err := h.aml.Entry(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromBlacklistEntry(entry))
}
