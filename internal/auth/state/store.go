// Package state keeps the CSRF state values issued by the authorize endpoint
// until the callback consumes them. Every value is single use and expires.
package state

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/brizzai/linkedin-link/internal/auth/constants"
	"github.com/brizzai/linkedin-link/internal/auth/models"
)

// Store saves authorization requests and consumes them exactly once.
type Store interface {
	// Save records a new request. The state value must not already exist.
	Save(ctx context.Context, req *models.AuthorizationRequest) error

	// Consume removes and returns the request for state. Unknown, reused and
	// expired values all fail with apperrors.ErrStateInvalid.
	Consume(ctx context.Context, state string) (*models.AuthorizationRequest, error)
}

// RandomHex generates a cryptographically random hex string of the given byte length.
func RandomHex(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewAuthorizationRequest creates a request with a fresh state value.
func NewAuthorizationRequest(redirectURI string, scopes []string, userID string, now time.Time, ttl time.Duration) (*models.AuthorizationRequest, error) {
	value, err := RandomHex(constants.StateBytes)
	if err != nil {
		return nil, err
	}
	return &models.AuthorizationRequest{
		State:       value,
		RedirectURI: redirectURI,
		Scopes:      scopes,
		UserID:      userID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}, nil
}
