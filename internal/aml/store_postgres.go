package aml

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists AML state in PostgreSQL.
type PostgresStore struct {
	q querier
}

// NewPostgres constructs a store over a database handle.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{q: db}
}

// NewPostgresTx constructs a store scoped to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{q: tx}
}

func (s *PostgresStore) CreateAuthority(ctx context.Context, authority *Authority) error {
	query := `
		INSERT INTO aml_authorities (key, authority_id, powers, active, registered_time, last_action_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO NOTHING
	`
	res, err := s.q.ExecContext(ctx, query,
		uuid.UUID(authority.Key),
		authority.AuthorityID,
		int16(authority.Powers),
		authority.Active,
		authority.RegisteredTime,
		authority.LastActionTime,
	)
	if err != nil {
		return fmt.Errorf("create aml authority: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create aml authority: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Authority(ctx context.Context, key domain.AuthorityKey) (*Authority, error) {
	query := `
		SELECT key, authority_id, powers, active, registered_time, last_action_time
		FROM aml_authorities
		WHERE key = $1
	`
	var (
		authority Authority
		id        uuid.UUID
		powers    int16
	)
	err := s.q.QueryRowContext(ctx, query, uuid.UUID(key)).Scan(
		&id, &authority.AuthorityID, &powers, &authority.Active,
		&authority.RegisteredTime, &authority.LastActionTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load aml authority: %w", err)
	}
	authority.Key = domain.AuthorityKey(id)
	authority.Powers = Power(powers)
	return &authority, nil
}

func (s *PostgresStore) UpdateAuthority(ctx context.Context, authority *Authority) error {
	query := `
		UPDATE aml_authorities
		SET authority_id = $2, powers = $3, active = $4, last_action_time = $5
		WHERE key = $1
	`
	res, err := s.q.ExecContext(ctx, query,
		uuid.UUID(authority.Key),
		authority.AuthorityID,
		int16(authority.Powers),
		authority.Active,
		authority.LastActionTime,
	)
	if err != nil {
		return fmt.Errorf("update aml authority: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update aml authority: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateEntry(ctx context.Context, entry *BlacklistEntry) error {
	query := `
		INSERT INTO aml_blacklist (user_id, authority, reason, active, creation_time, updated_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
	`
	res, err := s.q.ExecContext(ctx, query,
		uuid.UUID(entry.UserID),
		uuid.UUID(entry.Authority),
		entry.Reason,
		entry.Active,
		entry.CreationTime,
		entry.UpdatedTime,
	)
	if err != nil {
		return fmt.Errorf("create blacklist entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create blacklist entry: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Entry(ctx context.Context, userID domain.UserID) (*BlacklistEntry, error) {
	query := `
		SELECT user_id, authority, reason, active, creation_time, updated_time
		FROM aml_blacklist
		WHERE user_id = $1
	`
	var (
		entry        BlacklistEntry
		targetID     uuid.UUID
		authorityKey uuid.UUID
	)
	err := s.q.QueryRowContext(ctx, query, uuid.UUID(userID)).Scan(
		&targetID, &authorityKey, &entry.Reason, &entry.Active,
		&entry.CreationTime, &entry.UpdatedTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load blacklist entry: %w", err)
	}
	entry.UserID = domain.UserID(targetID)
	entry.Authority = domain.AuthorityKey(authorityKey)
	return &entry, nil
}

func (s *PostgresStore) UpdateEntry(ctx context.Context, entry *BlacklistEntry) error {
	query := `
		UPDATE aml_blacklist
		SET authority = $2, reason = $3, active = $4, creation_time = $5, updated_time = $6
		WHERE user_id = $1
	`
	res, err := s.q.ExecContext(ctx, query,
		uuid.UUID(entry.UserID),
		uuid.UUID(entry.Authority),
		entry.Reason,
		entry.Active,
		entry.CreationTime,
		entry.UpdatedTime,
	)
	if err != nil {
		return fmt.Errorf("update blacklist entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update blacklist entry: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
