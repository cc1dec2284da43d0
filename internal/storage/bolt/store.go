package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/brizzai/linkedin-link/internal/auth/models"
	apperrors "github.com/brizzai/linkedin-link/internal/errors"
	"go.etcd.io/bbolt"
)

const accountBucket = "linked_accounts"

// Store provides a BoltDB-backed linked account store.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(accountBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s bucket: %w", accountBucket, err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert replaces the record stored for the account's user and provider.
func (s *Store) Upsert(ctx context.Context, account *models.LinkedAccount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(account); err != nil {
		return err
	}

	payload, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("marshal linked account: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(accountBucket))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", accountBucket)
		}
		return bucket.Put(accountKey(account.UserID, account.Provider), payload)
	})
}

// Get fetches the record for userID and provider.
func (s *Store) Get(ctx context.Context, userID, provider string) (*models.LinkedAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var account models.LinkedAccount
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(accountBucket))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", accountBucket)
		}
		payload := bucket.Get(accountKey(userID, provider))
		if payload == nil {
			return apperrors.ErrNotFound
		}
		if err := json.Unmarshal(payload, &account); err != nil {
			return fmt.Errorf("unmarshal linked account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	account.Posts = models.NormalizePosts(account.Posts)
	return &account, nil
}

func validate(account *models.LinkedAccount) error {
	if account == nil {
		return fmt.Errorf("linked account is required")
	}
	if strings.TrimSpace(account.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(account.Provider) == "" {
		return fmt.Errorf("provider is required")
	}
	return nil
}

// accountKey joins with a NUL byte, which cannot appear in either part.
func accountKey(userID, provider string) []byte {
	return []byte(provider + "\x00" + userID)
}
