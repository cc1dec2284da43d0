// Package storage is the persistence gateway for linked accounts.
package storage

import (
	"context"

	"github.com/brizzai/linkedin-link/internal/auth/models"
)

// Store keeps exactly one LinkedAccount per (UserID, Provider).
//
// Upsert replaces any previous record for the pair. Get returns
// errors.ErrNotFound when no record exists.
type Store interface {
	Upsert(ctx context.Context, account *models.LinkedAccount) error
	Get(ctx context.Context, userID, provider string) (*models.LinkedAccount, error)
	Close() error
}
