package httptransport

import (
	"context"
	"net/http"
	"strconv"

	"custos/internal/audit"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/httputil"
)

// AuditReader defines the interface for querying the audit trail.
type AuditReader interface {
	ListBySubject(ctx context.Context, subject string) ([]audit.Event, error)
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// AuditEventsResponse is the HTTP response for GET /audit/events.
type AuditEventsResponse struct {
	Events []audit.Event `json:"events"`
}

// handleAuditEvents handles GET /audit/events requests. With subject= the
// listing covers one subject's full history; without it the most recent
// events across all subjects, capped by limit=.
func (h *Handler) handleAuditEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.audit == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "audit trail is not configured"))
		return
	}

	query := r.URL.Query()
	if subject := query.Get("subject"); subject != "" {
		events, err := h.audit.ListBySubject(ctx, subject)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, &AuditEventsResponse{Events: events})
		return
	}

	limit := defaultAuditLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
		limit = min(parsed, maxAuditLimit)
	}

	events, err := h.audit.ListRecent(ctx, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &AuditEventsResponse{Events: events})
}
