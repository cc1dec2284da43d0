package providers

import (
	"context"

	"github.com/brizzai/linkedin-link/internal/auth/models"
)

// Authorizer builds the consent screen URL for a CSRF state value
type Authorizer interface {
	GetAuthURL(state string) string
}

// TokenExchanger exchanges an authorization code for an access token
type TokenExchanger interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*models.TokenResponse, error)
}

// ProfileFetcher reads the provider resources that make up a linked account.
// Every call is authenticated with the exchanged access token.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, accessToken string) (*models.ProfileRecord, error)

	// FetchEmail returns "" when the payload carries no address
	FetchEmail(ctx context.Context, accessToken string) (string, error)

	FetchPosts(ctx context.Context, accessToken, personURN string) (*models.PostCollection, error)
}

// Provider defines the interface the linking flow needs from an OAuth provider
type Provider interface {
	Authorizer
	TokenExchanger
	ProfileFetcher
}
