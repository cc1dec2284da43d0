package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brizzai/linkedin-link/internal/auth/models"
	"github.com/brizzai/linkedin-link/internal/config"
	apperrors "github.com/brizzai/linkedin-link/internal/errors"
	"github.com/go-redis/redis/v8"
)

// RedisStore keeps states in Redis so any replica can serve the callback.
// Redis expiry enforces the TTL; ExpiresAt is checked again on consume.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisClient opens a client and pings it.
func NewRedisClient(ctx context.Context, cfg *config.StateConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(state string) string {
	return s.prefix + state
}

func (s *RedisStore) Save(ctx context.Context, req *models.AuthorizationRequest) error {
	if req == nil || req.State == "" {
		return fmt.Errorf("state value is required")
	}
	ttl := req.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("authorization request already expired")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode authorization request: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(req.State), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	if !ok {
		return fmt.Errorf("state already issued")
	}
	return nil
}

// Consume reads and deletes the key in one MULTI block so two callbacks
// racing on the same state cannot both succeed.
func (s *RedisStore) Consume(ctx context.Context, state string) (*models.AuthorizationRequest, error) {
	if state == "" {
		return nil, apperrors.ErrStateInvalid
	}

	var get *redis.StringCmd
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, s.key(state))
		del = pipe.Del(ctx, s.key(state))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to consume state: %w", err)
	}

	payload, err := get.Bytes()
	if errors.Is(err, redis.Nil) || del.Val() == 0 {
		return nil, apperrors.ErrStateInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var req models.AuthorizationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	if req.Expired(s.now()) {
		return nil, apperrors.ErrStateInvalid
	}
	return &req, nil
}
