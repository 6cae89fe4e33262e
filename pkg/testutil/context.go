package testutil

import (
	"context"
	"net/http"

	authmw "custos/pkg/platform/middleware/auth"
)

// WithPrincipal injects an authority principal into the request context,
// simulating what the bearer-auth middleware does after validating a token.
// Handler-level tests use it to exercise handlers without signing a JWT.
func WithPrincipal(req *http.Request, principal string) *http.Request {
	ctx := context.WithValue(req.Context(), authmw.ContextKeyPrincipal, principal)
	return req.WithContext(ctx)
}
