package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"custos/internal/audit"
	txcontext "custos/pkg/platform/tx"
)

// Store persists audit events in the audit_events table. Appends join the
// surrounding database transaction when one is open, so an event written
// inside a compliance mutation commits and rolls back with it.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			event, category, timestamp, subject, actor,
			decision, reason, amount, request_id, client_ip, user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		string(event.Event),
		string(event.Category),
		event.Timestamp,
		event.Subject,
		event.Actor,
		event.Decision,
		event.Reason,
		int64(event.Amount),
		event.RequestID,
		event.ClientIP,
		event.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	query := `
		SELECT id, event, category, timestamp, subject, actor,
			   decision, reason, amount, request_id, client_ip, user_agent
		FROM audit_events
		WHERE subject = $1
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the newest limit events in append order, matching the
// in-memory store.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT id, event, category, timestamp, subject, actor,
			   decision, reason, amount, request_id, client_ip, user_agent
		FROM (
			SELECT id, event, category, timestamp, subject, actor,
				   decision, reason, amount, request_id, client_ip, user_agent
			FROM audit_events
			ORDER BY id DESC
			LIMIT $1
		) tail
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			e        audit.Event
			name     string
			category string
			amount   int64
		)
		err := rows.Scan(
			&e.ID,
			&name,
			&category,
			&e.Timestamp,
			&e.Subject,
			&e.Actor,
			&e.Decision,
			&e.Reason,
			&amount,
			&e.RequestID,
			&e.ClientIP,
			&e.UserAgent,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Event = audit.AuditEvent(name)
		e.Category = audit.EventCategory(category)
		e.Amount = uint64(amount)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
