package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/brizzai/linkedin-link/internal/auth/constants"
	"github.com/brizzai/linkedin-link/internal/auth/models"
	"github.com/brizzai/linkedin-link/internal/auth/verifier"
	apperrors "github.com/brizzai/linkedin-link/internal/errors"
	"github.com/brizzai/linkedin-link/internal/logger"
	"github.com/brizzai/linkedin-link/internal/utils"
	"go.uber.org/zap"
)

type authContextKey string

const (
	// AuthContextKey is used to store the caller identity in the request context
	AuthContextKey authContextKey = "auth"
)

// WithIdentity returns a copy of ctx carrying identity
func WithIdentity(ctx context.Context, identity *models.UserIdentity) context.Context {
	return context.WithValue(ctx, AuthContextKey, identity)
}

// IdentityFromContext returns the identity stored by Authenticate, if any
func IdentityFromContext(ctx context.Context) (*models.UserIdentity, bool) {
	identity, ok := ctx.Value(AuthContextKey).(*models.UserIdentity)
	return identity, ok && identity != nil
}

// Authenticate rejects requests without a valid bearer credential
func Authenticate(v verifier.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := Identify(r, v)
			if err != nil {
				logger.Debug("Rejected unauthenticated request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				WriteUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// OptionalAuthenticate allows both authenticated and unauthenticated access
func OptionalAuthenticate(v verifier.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := Identify(r, v)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// Identify verifies the bearer credential on r
func Identify(r *http.Request, v verifier.Verifier) (*models.UserIdentity, error) {
	token := BearerToken(r)
	if token == "" {
		return nil, apperrors.ErrAuth
	}
	return v.Verify(r.Context(), token)
}

// BearerToken extracts the Bearer token from the Authorization header
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get(constants.AuthHeaderName)
	if !strings.HasPrefix(authHeader, constants.AuthHeaderPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, constants.AuthHeaderPrefix))
}

// WriteUnauthorized writes the 401 response shared by every protected route
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="linkedin-link"`)
	utils.WriteError(w, http.StatusUnauthorized, apperrors.MsgUnauthorized)
}

// CORSWithOrigins allows the listed origins, or any origin when the list is
// empty or contains "*".
func CORSWithOrigins(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0 || slices.Contains(origins, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && slices.Contains(origins, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Expose-Headers", "WWW-Authenticate")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
