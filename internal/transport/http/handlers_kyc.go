package httptransport

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"custos/internal/kyc"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/httputil"
	"custos/pkg/requestcontext"
)

// KYCService defines the interface for identity verification operations.
type KYCService interface {
	InitializeOracle(ctx context.Context, authority domain.AuthorityKey) (*kyc.OracleState, error)
	Oracle(ctx context.Context) (*kyc.OracleState, error)
	Register(ctx context.Context, p kyc.RegisterParams) (*kyc.User, error)
	UpdateStatus(ctx context.Context, p kyc.UpdateStatusParams) (*kyc.User, error)
	User(ctx context.Context, userID domain.UserID) (*kyc.User, error)
	IsEligible(ctx context.Context, userID domain.UserID, requiredLevel uint8, allowed []domain.CountryCode) (bool, error)
}

// defaultEligibilityLevel is applied when the eligibility query names no
// level. Level 1 is the transfer tier, the weakest gate any monetary
// operation uses.
const defaultEligibilityLevel = 1

// handleInitializeOracle handles POST /kyc/oracle requests.
func (h *Handler) handleInitializeOracle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[InitializeOracleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	state, err := h.kyc.InitializeOracle(ctx, req.ParsedAuthority())
	if err != nil {
		h.logger.ErrorContext(ctx, "oracle initialization failed",
			"request_id", requestID,
			"authority", req.AuthorityKey,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "oracle initialized",
		"request_id", requestID,
		"authority", req.AuthorityKey,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, FromOracleState(state))
}

// handleOracleState handles GET /kyc/oracle requests.
func (h *Handler) handleOracleState(w http.ResponseWriter, r *http.Request) {
	state, err := h.kyc.Oracle(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOracleState(state))
}

// handleRegisterUser handles POST /kyc/users requests.
func (h *Handler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[RegisterUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	user, err := h.kyc.Register(ctx, kyc.RegisterParams{
		UserID:    req.ParsedUserID(),
		Authority: req.ParsedAuthority(),
		Country:   req.Country,
		BLZ:       req.BLZ,
		IBANHash:  req.ParsedIBANHash(),
		Provider:  req.Provider,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "user registration failed",
			"request_id", requestID,
			"user_id", req.UserID,
			"authority", req.AuthorityKey,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "user registered",
		"request_id", requestID,
		"user_id", req.UserID,
		"authority", req.AuthorityKey,
		"country", req.Country,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, FromUser(user))
}

// handleUpdateUserStatus handles POST /kyc/users/{userID}/status requests.
func (h *Handler) handleUpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	userID, err := domain.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateUserStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	user, err := h.kyc.UpdateStatus(ctx, kyc.UpdateStatusParams{
		UserID:     userID,
		Authority:  req.ParsedAuthority(),
		Status:     req.ParsedStatus(),
		Level:      req.Level,
		ExpiryDays: req.ExpiryDays,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "status update failed",
			"request_id", requestID,
			"user_id", userID,
			"status", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "user status updated",
		"request_id", requestID,
		"user_id", userID,
		"status", req.Status,
		"level", req.Level,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromUser(user))
}

// handleGetUser handles GET /kyc/users/{userID} requests.
func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := domain.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.kyc.User(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromUser(user))
}

// handleEligibility handles GET /kyc/users/{userID}/eligibility requests.
// The query accepts level=N and countries=DE,FR; omitting countries leaves
// residency unrestricted.
func (h *Handler) handleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := domain.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	requiredLevel := uint8(defaultEligibilityLevel)
	if raw := r.URL.Query().Get("level"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "level must be an unsigned integer"))
			return
		}
		requiredLevel = uint8(parsed)
	}

	var allowed []domain.CountryCode
	if raw := r.URL.Query().Get("countries"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			code, err := domain.ParseCountryCode(strings.TrimSpace(part))
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			allowed = append(allowed, code)
		}
	}

	eligible, err := h.kyc.IsEligible(ctx, userID, requiredLevel, allowed)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &EligibilityResponse{
		UserID:        userID.String(),
		RequiredLevel: requiredLevel,
		Eligible:      eligible,
		CheckedAt:     requestcontext.Now(ctx),
	})
}
