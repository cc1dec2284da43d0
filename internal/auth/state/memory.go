package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brizzai/linkedin-link/internal/auth/models"
	apperrors "github.com/brizzai/linkedin-link/internal/errors"
)

const (
	// cleanupInterval controls how often expired entries are reaped.
	cleanupInterval = time.Minute

	// maxPending caps outstanding states so unauthenticated authorize
	// calls cannot grow the map without bound.
	maxPending = 100_000
)

// MemoryStore holds states in process memory. States do not survive a restart
// and are not shared between replicas; use RedisStore for that.
type MemoryStore struct {
	mu      sync.Mutex
	pending map[string]*models.AuthorizationRequest
	now     func() time.Time
	stopGC  chan struct{}
	once    sync.Once
}

// NewMemoryStore creates an empty store and starts a background goroutine
// that removes expired states. Call Stop to end it.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		pending: make(map[string]*models.AuthorizationRequest),
		now:     time.Now,
		stopGC:  make(chan struct{}),
	}
	go s.gcLoop()
	return s
}

// Stop terminates the background cleanup goroutine.
func (s *MemoryStore) Stop() {
	s.once.Do(func() { close(s.stopGC) })
}

func (s *MemoryStore) gcLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopGC:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, req := range s.pending {
		if req.Expired(now) {
			delete(s.pending, k)
		}
	}
}

func (s *MemoryStore) Save(_ context.Context, req *models.AuthorizationRequest) error {
	if req == nil || req.State == "" {
		return fmt.Errorf("state value is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pending[req.State]; exists {
		return fmt.Errorf("state already issued")
	}
	if len(s.pending) >= maxPending {
		return fmt.Errorf("too many pending authorization requests")
	}
	stored := *req
	s.pending[req.State] = &stored
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, state string) (*models.AuthorizationRequest, error) {
	if state == "" {
		return nil, apperrors.ErrStateInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.pending[state]
	if !ok {
		return nil, apperrors.ErrStateInvalid
	}
	delete(s.pending, state)

	if req.Expired(s.now()) {
		return nil, apperrors.ErrStateInvalid
	}
	return req, nil
}

// Len returns the number of pending states, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
