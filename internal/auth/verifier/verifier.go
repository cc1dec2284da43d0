// Package verifier turns the bearer credential on inbound requests into a
// verified local user identity.
package verifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brizzai/linkedin-link/internal/auth/models"
	apperrors "github.com/brizzai/linkedin-link/internal/errors"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks a credential and returns who it belongs to. Invalid,
// expired or malformed credentials fail with apperrors.ErrAuth.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*models.UserIdentity, error)
}

// userClaims is the internal claims type used for JWT parsing.
type userClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// JWTVerifier accepts HMAC-signed session tokens, such as the access tokens
// issued by the application's own auth backend.
type JWTVerifier struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

func NewJWTVerifier(secret, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

func (v *JWTVerifier) Verify(_ context.Context, credential string) (*models.UserIdentity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, fmt.Errorf("%w: credential is empty", apperrors.ErrAuth)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims userClaims
	_, err := jwt.ParseWithClaims(credential, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrAuth, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", apperrors.ErrAuth)
	}

	return &models.UserIdentity{UserID: claims.Subject, Email: claims.Email}, nil
}

// OIDCVerifier accepts ID tokens from an OpenID Connect issuer.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer's signing keys.
func NewOIDCVerifier(ctx context.Context, issuer, audience string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: audience}),
	}, nil
}

// NewOIDCVerifierWithKeySet skips discovery and trusts keySet directly.
func NewOIDCVerifierWithKeySet(issuer, audience string, keySet oidc.KeySet, now func() time.Time) *OIDCVerifier {
	return &OIDCVerifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: audience, Now: now}),
	}
}

func (v *OIDCVerifier) Verify(ctx context.Context, credential string) (*models.UserIdentity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, fmt.Errorf("%w: credential is empty", apperrors.ErrAuth)
	}

	idToken, err := v.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to verify ID token: %w", apperrors.ErrAuth, err)
	}

	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %w", apperrors.ErrAuth, err)
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("%w: token has no subject", apperrors.ErrAuth)
	}

	return &models.UserIdentity{UserID: claims.Sub, Email: claims.Email}, nil
}
