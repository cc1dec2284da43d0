package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/brizzai/linkedin-link/internal/auth/models"
	apperrors "github.com/brizzai/linkedin-link/internal/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_data (
    user_id   TEXT        NOT NULL,
    provider  TEXT        NOT NULL,
    profile   JSONB       NOT NULL,
    email     TEXT        NOT NULL DEFAULT '',
    posts     JSONB,
    linked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, provider)
)`

// Store keeps linked accounts in the user_data table.
type Store struct {
	db *pgxpool.Pool
}

// NewDBPool creates a PostgreSQL connection pool and verifies it.
func NewDBPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// Open connects to dsn and makes sure the table exists.
func Open(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	pool, err := NewDBPool(ctx, dsn, maxConns)
	if err != nil {
		return nil, err
	}

	store := New(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// EnsureSchema creates the user_data table when it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create user_data table: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func (s *Store) Upsert(ctx context.Context, account *models.LinkedAccount) error {
	if account == nil || strings.TrimSpace(account.UserID) == "" || strings.TrimSpace(account.Provider) == "" {
		return fmt.Errorf("user id and provider are required")
	}

	var posts []byte
	if raw := models.NormalizePosts(account.Posts); raw != nil {
		posts = raw
	}

	query := `
		INSERT INTO user_data (user_id, provider, profile, email, posts, linked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			profile = EXCLUDED.profile,
			email = EXCLUDED.email,
			posts = EXCLUDED.posts,
			linked_at = EXCLUDED.linked_at`
	_, err := s.db.Exec(ctx, query,
		account.UserID, account.Provider, []byte(account.Profile), account.Email, posts, account.LinkedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert linked account: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID, provider string) (*models.LinkedAccount, error) {
	query := `
		SELECT user_id, provider, profile, email, posts, linked_at
		FROM user_data
		WHERE user_id = $1 AND provider = $2`

	var (
		account models.LinkedAccount
		profile []byte
		posts   []byte
	)
	err := s.db.QueryRow(ctx, query, userID, provider).Scan(
		&account.UserID, &account.Provider, &profile, &account.Email, &posts, &account.LinkedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get linked account: %w", err)
	}

	account.Profile = json.RawMessage(profile)
	account.Posts = models.NormalizePosts(posts)
	account.LinkedAt = account.LinkedAt.UTC()
	return &account, nil
}
