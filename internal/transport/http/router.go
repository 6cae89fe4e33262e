// Package httptransport is the HTTP edge of custos: routing, middleware,
// request decoding, and response shaping. Handlers delegate to the domain
// services and hold no compliance logic of their own.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custos/internal/platform/metrics"
	"custos/internal/platform/middleware"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/httputil"
	adminmw "custos/pkg/platform/middleware/admin"
	authmw "custos/pkg/platform/middleware/auth"
	"custos/pkg/platform/middleware/metadata"
	"custos/pkg/platform/middleware/requesttime"
)

// Handler wires the compliance endpoints to the domain services.
type Handler struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	kyc   KYCService
	aml   AMLService
	token TokenService
	audit AuditReader

	jwtValidator   authmw.JWTValidator
	adminTokenHash string
}

// Config carries the handler dependencies. All services are required;
// Audit may be nil when no audit store is configured, which disables the
// audit query endpoint.
type Config struct {
	KYC   KYCService
	AML   AMLService
	Token TokenService
	Audit AuditReader

	JWTValidator   authmw.JWTValidator
	AdminTokenHash string

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// New constructs the transport handler.
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		metrics:        cfg.Metrics,
		kyc:            cfg.KYC,
		aml:            cfg.AML,
		token:          cfg.Token,
		audit:          cfg.Audit,
		jwtValidator:   cfg.JWTValidator,
		adminTokenHash: cfg.AdminTokenHash,
	}
}

// NewRouter mounts every endpoint behind the shared middleware stack.
//
// Three trust tiers share one router: public endpoints (health, metrics,
// reserve proof verification), bearer endpoints for authenticated
// authorities, and admin endpoints gated by the operator token.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.LatencyMiddleware(h.metrics))

	// Public: no authentication. Reserve proofs are deliberately open so
	// any holder can check the attestation covering their deposit.
	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/token/reserve/verify", h.handleVerifyReserveLeaf)

	// Admin: operator-token endpoints that create or reconfigure the
	// privileged records everything else depends on.
	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(h.adminTokenHash, h.logger))

		r.Post("/kyc/oracle", h.handleInitializeOracle)
		r.Get("/kyc/oracle", h.handleOracleState)
		r.Post("/kyc/users", h.handleRegisterUser)
		r.Post("/kyc/users/{userID}/status", h.handleUpdateUserStatus)

		r.Post("/aml/authorities", h.handleRegisterAuthority)
		r.Get("/aml/authorities/{key}", h.handleGetAuthority)
		r.Post("/aml/authorities/{key}/deactivate", h.handleDeactivateAuthority)
		r.Post("/aml/authorities/{key}/powers", h.handleUpdatePowers)

		r.Post("/token/mint-info", h.handleInitializeMint)

		r.Get("/audit/events", h.handleAuditEvents)
	})

	// Bearer: authenticated authorities. The JWT principal is the acting
	// authority key; token operations resolve their own role gates
	// (issuer, freeze authority, permanent delegate) in the service.
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(h.jwtValidator, h.logger))

		r.Get("/kyc/users/{userID}", h.handleGetUser)
		r.Get("/kyc/users/{userID}/eligibility", h.handleEligibility)

		r.Post("/aml/blacklist", h.handleBlacklistUser)
		r.Post("/aml/blacklist/{userID}/deactivate", h.handleDeactivateBlacklistEntry)
		r.Get("/aml/blacklist/{userID}", h.handleBlacklistEntry)

		r.Get("/token/mint-info", h.handleMintInfo)
		r.Post("/token/mint", h.handleMint)
		r.Post("/token/burn", h.handleBurn)
		r.Post("/token/freeze", h.handleFreeze)
		r.Post("/token/thaw", h.handleThaw)
		r.Post("/token/seize", h.handleSeize)
		r.Put("/token/reserve", h.handleUpdateReserve)
		r.Post("/token/transfer-check", h.handleCheckTransfer)
	})

	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// callerKey resolves the authenticated principal set by RequireAuth. A
// missing or malformed principal behind the auth middleware means the
// token was minted with a bad subject, so the request is rejected rather
// than passed through with a zero key.
func (h *Handler) callerKey(w http.ResponseWriter, ctx context.Context, requestID string) (domain.AuthorityKey, bool) {
	key, err := domain.ParseAuthorityKey(authmw.GetPrincipalKey(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "request principal is not a valid authority key",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return domain.AuthorityKey{}, false
	}
	return key, true
}
