package token

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

// PostgresStore persists the mint record in PostgreSQL.
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

func (s *PostgresStore) CreateMintInfo(ctx context.Context, info *MintInfo) error {
	query := `
		INSERT INTO mint_info (
			singleton, mint, issuer, freeze_authority, permanent_delegate,
			whitepaper_uri, active, creation_time,
			reserve_merkle_root, reserve_ipfs_cid, last_reserve_update
		)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (singleton) DO NOTHING
	`
	res, err := s.q.ExecContext(ctx, query,
		uuid.UUID(info.Mint),
		uuid.UUID(info.Issuer),
		uuid.UUID(info.FreezeAuthority),
		uuid.UUID(info.PermanentDelegate),
		info.WhitepaperURI,
		info.Active,
		info.CreationTime,
		info.ReserveMerkleRoot[:],
		info.ReserveIPFSCID,
		nullTime(info.LastReserveUpdate),
	)
	if err != nil {
		return fmt.Errorf("create mint info: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create mint info: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) MintInfo(ctx context.Context) (*MintInfo, error) {
	query := `
		SELECT mint, issuer, freeze_authority, permanent_delegate,
		       whitepaper_uri, active, creation_time,
		       reserve_merkle_root, reserve_ipfs_cid, last_reserve_update
		FROM mint_info
		WHERE singleton = 1
	`
	var (
		info              MintInfo
		mint              uuid.UUID
		issuer            uuid.UUID
		freezeAuthority   uuid.UUID
		permanentDelegate uuid.UUID
		root              []byte
		lastUpdate        sql.NullTime
	)
	err := s.q.QueryRowContext(ctx, query).Scan(
		&mint, &issuer, &freezeAuthority, &permanentDelegate,
		&info.WhitepaperURI, &info.Active, &info.CreationTime,
		&root, &info.ReserveIPFSCID, &lastUpdate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load mint info: %w", err)
	}
	info.Mint = domain.MintID(mint)
	info.Issuer = domain.AuthorityKey(issuer)
	info.FreezeAuthority = domain.AuthorityKey(freezeAuthority)
	info.PermanentDelegate = domain.AuthorityKey(permanentDelegate)
	copy(info.ReserveMerkleRoot[:], root)
	if lastUpdate.Valid {
		info.LastReserveUpdate = lastUpdate.Time
	}
	return &info, nil
}

func (s *PostgresStore) UpdateMintInfo(ctx context.Context, info *MintInfo) error {
	query := `
		UPDATE mint_info
		SET mint = $1, issuer = $2, freeze_authority = $3, permanent_delegate = $4,
		    whitepaper_uri = $5, active = $6, creation_time = $7,
		    reserve_merkle_root = $8, reserve_ipfs_cid = $9, last_reserve_update = $10
		WHERE singleton = 1
	`
	res, err := s.q.ExecContext(ctx, query,
		uuid.UUID(info.Mint),
		uuid.UUID(info.Issuer),
		uuid.UUID(info.FreezeAuthority),
		uuid.UUID(info.PermanentDelegate),
		info.WhitepaperURI,
		info.Active,
		info.CreationTime,
		info.ReserveMerkleRoot[:],
		info.ReserveIPFSCID,
		nullTime(info.LastReserveUpdate),
	)
	if err != nil {
		return fmt.Errorf("update mint info: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update mint info: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// nullTime maps the zero time to SQL NULL so "never updated" stays
// distinguishable from any real timestamp.
func nullTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value, Valid: true}
}
