package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/brizzai/linkedin-link/internal/auth/models"
	apperrors "github.com/brizzai/linkedin-link/internal/errors"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

const upsertQuery = `
INSERT INTO linked_accounts (user_id, provider, profile, email, posts, linked_at)
VALUES (?1, ?2, ?3, ?4, ?5, ?6)
ON CONFLICT (user_id, provider) DO UPDATE SET
    profile = excluded.profile,
    email = excluded.email,
    posts = excluded.posts,
    linked_at = excluded.linked_at;
`

const getQuery = `
SELECT user_id, provider, profile, email, posts, linked_at
FROM linked_accounts
WHERE user_id = ?1 AND provider = ?2;
`

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements linked account persistence over SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store and applies the bundled schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Upsert inserts or replaces the row for the account's user and provider.
func (s *Store) Upsert(ctx context.Context, account *models.LinkedAccount) error {
	if account == nil || strings.TrimSpace(account.UserID) == "" || strings.TrimSpace(account.Provider) == "" {
		return fmt.Errorf("user id and provider are required")
	}

	var posts sql.NullString
	if raw := models.NormalizePosts(account.Posts); raw != nil {
		posts = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, upsertQuery,
		account.UserID,
		account.Provider,
		string(account.Profile),
		account.Email,
		posts,
		toMillis(account.LinkedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert linked account: %w", err)
	}
	return nil
}

// Get fetches the row for userID and provider.
func (s *Store) Get(ctx context.Context, userID, provider string) (*models.LinkedAccount, error) {
	var (
		account  models.LinkedAccount
		profile  string
		posts    sql.NullString
		linkedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, getQuery, userID, provider).Scan(
		&account.UserID,
		&account.Provider,
		&profile,
		&account.Email,
		&posts,
		&linkedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get linked account: %w", err)
	}

	account.Profile = json.RawMessage(profile)
	if posts.Valid {
		account.Posts = json.RawMessage(posts.String)
	}
	account.LinkedAt = fromMillis(linkedAt)
	return &account, nil
}
