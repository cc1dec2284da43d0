package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/brizzai/linkedin-link/internal/auth/models"
	apperrors "github.com/brizzai/linkedin-link/internal/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_UpsertAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	account := &models.LinkedAccount{
		UserID:   "user-1",
		Provider: "linkedin",
		Profile:  json.RawMessage(`{"id":"9"}`),
		Email:    "ada@example.com",
		Posts:    json.RawMessage(`{"elements":[]}`),
		LinkedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, store.Upsert(ctx, account))

	got, err := store.Get(ctx, "user-1", "linkedin")
	require.NoError(t, err)
	if diff := cmp.Diff(account, got); diff != "" {
		t.Fatalf("stored account mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_UpsertReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := &models.LinkedAccount{UserID: "user-1", Provider: "linkedin", Profile: json.RawMessage(`{"id":"9"}`), Email: "old@example.com"}
	second := &models.LinkedAccount{UserID: "user-1", Provider: "linkedin", Profile: json.RawMessage(`{"id":"9"}`), Email: "new@example.com"}
	require.NoError(t, store.Upsert(ctx, first))
	require.NoError(t, store.Upsert(ctx, second))
	require.NoError(t, store.Upsert(ctx, second))

	got, err := store.Get(ctx, "user-1", "linkedin")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Email)
	assert.Nil(t, got.Posts)

	count := 0
	require.NoError(t, store.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(accountBucket)).ForEach(func(k, v []byte) error {
			count++
			return nil
		})
	}))
	assert.Equal(t, 1, count)
}

func TestStore_GetMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), "nobody", "linkedin")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestStore_UpsertValidation(t *testing.T) {
	store := openTestStore(t)
	assert.Error(t, store.Upsert(context.Background(), nil))
	assert.Error(t, store.Upsert(context.Background(), &models.LinkedAccount{Provider: "linkedin"}))
	assert.Error(t, store.Upsert(context.Background(), &models.LinkedAccount{UserID: "user-1"}))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(" ")
	assert.Error(t, err)
}
