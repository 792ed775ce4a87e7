// Package pgstore implements identity.Store on PostgreSQL through pgx.
//
// The revocation counter is advanced with a single
// UPDATE ... SET revocation_counter = revocation_counter + 1 ... RETURNING
// statement, so row-level locking serializes concurrent revocations.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/tokenauth/identity"
)

const uniqueViolation = "23505"

// DB is the subset of *pgxpool.Pool used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS identities (
	id                 TEXT PRIMARY KEY,
	email              TEXT NOT NULL UNIQUE,
	username           TEXT NOT NULL,
	credential_hash    TEXT NOT NULL,
	revocation_counter BIGINT NOT NULL DEFAULT 0 CHECK (revocation_counter >= 0),
	created_at         TIMESTAMPTZ NOT NULL
)`

const selectColumns = `SELECT id, email, username, credential_hash, revocation_counter, created_at FROM identities`

const (
	findByIDSQL    = selectColumns + ` WHERE id = $1`
	findByEmailSQL = selectColumns + ` WHERE email = $1`
	insertSQL      = `INSERT INTO identities (id, email, username, credential_hash, revocation_counter, created_at) VALUES ($1, $2, $3, $4, 0, $5)`
	incrementSQL   = `UPDATE identities SET revocation_counter = revocation_counter + 1 WHERE id = $1 RETURNING revocation_counter`
)

// Store persists identities in the identities table.
type Store struct {
	db  DB
	now func() time.Time
}

// New wraps db. Call Migrate once before first use on an empty database.
func New(db DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open connects a pool to dsn and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return pool, nil
}

// Migrate creates the identities table when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	return nil
}

// FindByID returns the identity with the given ID.
func (s *Store) FindByID(ctx context.Context, id string) (*identity.UserIdentity, error) {
	return s.findOne(ctx, findByIDSQL, id)
}

// FindByEmail returns the identity registered under the normalized email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*identity.UserIdentity, error) {
	return s.findOne(ctx, findByEmailSQL, identity.NormalizeEmail(email))
}

func (s *Store) findOne(ctx context.Context, query string, arg string) (*identity.UserIdentity, error) {
	var (
		u       identity.UserIdentity
		counter int64
	)
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.CredentialHash,
		&counter,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("pgstore: query identity: %w", err)
	}
	u.RevocationCounter = uint64(counter)
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// Insert adds a row; the UNIQUE constraints on id and email surface as identity.ErrDuplicate.
func (s *Store) Insert(ctx context.Context, u identity.UserIdentity) (*identity.UserIdentity, error) {
	prepared, err := identity.PrepareInsert(u, s.now())
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(ctx, insertSQL,
		prepared.ID,
		prepared.Email,
		prepared.Username,
		prepared.CredentialHash,
		prepared.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, identity.ErrDuplicate
		}
		return nil, fmt.Errorf("pgstore: insert identity: %w", err)
	}
	return &prepared, nil
}

// IncrementRevocationCounter advances the counter and returns its new value.
func (s *Store) IncrementRevocationCounter(ctx context.Context, id string) (uint64, error) {
	var counter int64
	if err := s.db.QueryRow(ctx, incrementSQL, id).Scan(&counter); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, identity.ErrNotFound
		}
		return 0, fmt.Errorf("pgstore: increment revocation counter: %w", err)
	}
	return uint64(counter), nil
}

var _ identity.Store = (*Store)(nil)
