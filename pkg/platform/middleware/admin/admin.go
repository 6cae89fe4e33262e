package admin

import (
	"log/slog"
	"net/http"

	"custos/pkg/platform/secrets"
	"custos/pkg/requestcontext"
)

// RequireAdminToken gates regulator endpoints behind the X-Admin-Token
// header. Only the bcrypt hash of the token is configured; the comparison
// therefore costs a bcrypt verification per request, which is acceptable
// for the low-volume administrative surface this protects.
func RequireAdminToken(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if token == "" || tokenHash == "" || secrets.Verify(token, tokenHash) != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
