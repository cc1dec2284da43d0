package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brizzai/linkedin-link/internal/auth/models"
	"github.com/brizzai/linkedin-link/internal/auth/state"
	"github.com/brizzai/linkedin-link/internal/config"
	apperrors "github.com/brizzai/linkedin-link/internal/errors"
	"github.com/brizzai/linkedin-link/internal/linking"
)

// mockVerifier accepts a single credential
type mockVerifier struct{}

func (m *mockVerifier) Verify(ctx context.Context, credential string) (*models.UserIdentity, error) {
	if credential == "valid" {
		return &models.UserIdentity{UserID: "user-1"}, nil
	}
	return nil, apperrors.ErrAuth
}

type mockAuthorizer struct{}

func (m *mockAuthorizer) GetAuthURL(state string) string {
	return "https://www.linkedin.com/oauth/v2/authorization?state=" + state
}

type mockStore struct{}

func (m *mockStore) Upsert(ctx context.Context, account *models.LinkedAccount) error { return nil }
func (m *mockStore) Get(ctx context.Context, userID, provider string) (*models.LinkedAccount, error) {
	return nil, apperrors.ErrNotFound
}
func (m *mockStore) Close() error { return nil }

func newTestService(t *testing.T, origins []string) *Service {
	states := state.NewMemoryStore()
	t.Cleanup(states.Stop)

	return NewService(ServiceParams{
		Server:       &config.ServerConfig{AllowOrigins: origins},
		LinkedIn:     &config.LinkedInConfig{RedirectURI: "http://localhost:3000/api/linkedin/callback"},
		State:        &config.StateConfig{TTL: time.Minute},
		Verifier:     &mockVerifier{},
		Authorizer:   &mockAuthorizer{},
		States:       states,
		Orchestrator: linking.New(linking.Params{Verifier: &mockVerifier{}, States: states}),
		Accounts:     &mockStore{},
	})
}

func TestNewService(t *testing.T) {
	service := newTestService(t, nil)
	if service.handler == nil {
		t.Errorf("expected handler to be set")
	}
	if service.verifier == nil {
		t.Errorf("expected verifier to be set")
	}
}

func TestRegisterRoutes(t *testing.T) {
	service := newTestService(t, nil)
	mux := http.NewServeMux()
	service.RegisterRoutes(mux)

	routes := []string{
		"/api/linkedin/auth",
		"/api/linkedin/callback",
		"/api/linkedin-data",
	}
	for _, route := range routes {
		r, _ := http.NewRequest("GET", route, nil)
		h, pattern := mux.Handler(r)
		if pattern == "" || h == nil {
			t.Errorf("route %s not registered", route)
		}
	}
}

func TestRoutesApplyAuthentication(t *testing.T) {
	service := newTestService(t, nil)
	mux := http.NewServeMux()
	service.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/linkedin-data", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}

	req := httptest.NewRequest("GET", "/api/linkedin-data", nil)
	req.Header.Set("Authorization", "Bearer valid")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/linkedin/auth", nil))
	if rec.Code != http.StatusFound {
		t.Errorf("expected status 302, got %d", rec.Code)
	}
}

func TestWrapWithMiddleware(t *testing.T) {
	service := newTestService(t, []string{"https://app.example.com"})
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(204)
	})
	wrapped := service.WrapWithMiddleware(h)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	wrapped.ServeHTTP(rec, req)
	if rec.Code != 204 {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected allowed origin, got %q", got)
	}
}
