package state

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/brizzai/linkedin-link/internal/auth/models"
	"github.com/brizzai/linkedin-link/internal/config"
	apperrors "github.com/brizzai/linkedin-link/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set LINKEDIN_LINK_TEST_REDIS_ADDR (e.g. localhost:6379) to run against a real server.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("LINKEDIN_LINK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LINKEDIN_LINK_TEST_REDIS_ADDR not set")
	}

	client, err := NewRedisClient(context.Background(), &config.StateConfig{RedisAddr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, "linkedin-link:test:"+t.Name()+":")
}

func TestRedisStore_ConsumeIsSingleUse(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	req, err := NewAuthorizationRequest("http://cb", []string{"openid"}, "user-1", time.Now(), time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, req))
	assert.Error(t, s.Save(ctx, req), "duplicate state must be rejected")

	got, err := s.Consume(ctx, req.State)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)

	_, err = s.Consume(ctx, req.State)
	assert.True(t, errors.Is(err, apperrors.ErrStateInvalid))
}

func TestRedisStore_RejectsUnknownAndExpired(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	_, err := s.Consume(ctx, "never-issued")
	assert.True(t, errors.Is(err, apperrors.ErrStateInvalid))

	expired := &models.AuthorizationRequest{State: "old", ExpiresAt: time.Now().Add(-time.Second)}
	assert.Error(t, s.Save(ctx, expired))
}
