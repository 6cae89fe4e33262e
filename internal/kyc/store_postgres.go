package kyc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the same store code
// serves plain reads and transactional mutations.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists KYC state in PostgreSQL.
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

func (s *PostgresStore) CreateOracle(ctx context.Context, state *OracleState) error {
	query := `
		INSERT INTO kyc_oracle (singleton, authority, user_count, verified_user_count, last_update_time)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (singleton) DO NOTHING
	`
	res, err := s.q.ExecContext(ctx, query,
		uuid.UUID(state.Authority),
		int64(state.UserCount),
		int64(state.VerifiedUserCount),
		state.LastUpdateTime,
	)
	if err != nil {
		return fmt.Errorf("create kyc oracle: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create kyc oracle: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Oracle(ctx context.Context) (*OracleState, error) {
	query := `
		SELECT authority, user_count, verified_user_count, last_update_time
		FROM kyc_oracle
		WHERE singleton = 1
	`
	var (
		state     OracleState
		authority uuid.UUID
		userCount int64
		verified  int64
	)
	err := s.q.QueryRowContext(ctx, query).Scan(&authority, &userCount, &verified, &state.LastUpdateTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load kyc oracle: %w", err)
	}
	state.Authority = domain.AuthorityKey(authority)
	state.UserCount = uint64(userCount)
	state.VerifiedUserCount = uint64(verified)
	return &state, nil
}

func (s *PostgresStore) UpdateOracle(ctx context.Context, state *OracleState) error {
	query := `
		UPDATE kyc_oracle
		SET authority = $1, user_count = $2, verified_user_count = $3, last_update_time = $4
		WHERE singleton = 1
	`
	res, err := s.q.ExecContext(ctx, query,
		uuid.UUID(state.Authority),
		int64(state.UserCount),
		int64(state.VerifiedUserCount),
		state.LastUpdateTime,
	)
	if err != nil {
		return fmt.Errorf("update kyc oracle: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update kyc oracle: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO kyc_users (
			id, registered_by, status, verification_level,
			verification_time, expiry_time, country_code, blz, iban_hash, provider
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.q.ExecContext(ctx, query,
		uuid.UUID(user.ID),
		uuid.UUID(user.RegisteredBy),
		string(user.Status),
		int16(user.VerificationLevel),
		nullTime(user.VerificationTime),
		nullTime(user.ExpiryTime),
		string(user.CountryCode),
		user.BLZ,
		user.IBANHash[:],
		user.Provider,
	)
	if err != nil {
		return fmt.Errorf("create kyc user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create kyc user: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) User(ctx context.Context, userID domain.UserID) (*User, error) {
	query := `
		SELECT id, registered_by, status, verification_level,
			   verification_time, expiry_time, country_code, blz, iban_hash, provider
		FROM kyc_users
		WHERE id = $1
	`
	var (
		user             User
		id               uuid.UUID
		registeredBy     uuid.UUID
		status           string
		level            int16
		verificationTime sql.NullTime
		expiryTime       sql.NullTime
		country          string
		ibanHash         []byte
	)
	err := s.q.QueryRowContext(ctx, query, uuid.UUID(userID)).Scan(
		&id, &registeredBy, &status, &level,
		&verificationTime, &expiryTime, &country, &user.BLZ, &ibanHash, &user.Provider,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load kyc user: %w", err)
	}
	user.ID = domain.UserID(id)
	user.RegisteredBy = domain.AuthorityKey(registeredBy)
	user.Status = Status(status)
	user.VerificationLevel = uint8(level)
	if verificationTime.Valid {
		user.VerificationTime = verificationTime.Time
	}
	if expiryTime.Valid {
		user.ExpiryTime = expiryTime.Time
	}
	user.CountryCode = domain.CountryCode(country)
	copy(user.IBANHash[:], ibanHash)
	return &user, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, user *User) error {
	query := `
		UPDATE kyc_users
		SET status = $2, verification_level = $3, verification_time = $4,
			expiry_time = $5, country_code = $6, blz = $7, iban_hash = $8, provider = $9
		WHERE id = $1
	`
	res, err := s.q.ExecContext(ctx, query,
		uuid.UUID(user.ID),
		string(user.Status),
		int16(user.VerificationLevel),
		nullTime(user.VerificationTime),
		nullTime(user.ExpiryTime),
		string(user.CountryCode),
		user.BLZ,
		user.IBANHash[:],
		user.Provider,
	)
	if err != nil {
		return fmt.Errorf("update kyc user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update kyc user: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value, Valid: true}
}
