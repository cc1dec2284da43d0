package auth

import (
	"net/http"

	"github.com/brizzai/linkedin-link/internal/auth/constants"
	"github.com/brizzai/linkedin-link/internal/auth/handlers"
	"github.com/brizzai/linkedin-link/internal/auth/middleware"
	"github.com/brizzai/linkedin-link/internal/auth/providers"
	"github.com/brizzai/linkedin-link/internal/auth/state"
	"github.com/brizzai/linkedin-link/internal/auth/verifier"
	"github.com/brizzai/linkedin-link/internal/config"
	"github.com/brizzai/linkedin-link/internal/linking"
	"github.com/brizzai/linkedin-link/internal/storage"
	"go.uber.org/fx"
)

// ServiceParams are the dependencies of the linking HTTP surface
type ServiceParams struct {
	fx.In

	Server       *config.ServerConfig
	LinkedIn     *config.LinkedInConfig
	State        *config.StateConfig
	Verifier     verifier.Verifier
	Authorizer   providers.Authorizer
	States       state.Store
	Orchestrator *linking.Orchestrator
	Accounts     storage.Store
}

// Service represents the account linking service
type Service struct {
	allowOrigins []string
	verifier     verifier.Verifier
	handler      *handlers.Handler
}

// NewService creates a new linking service
func NewService(p ServiceParams) *Service {
	handler := handlers.NewHandler(
		p.Authorizer,
		p.States,
		p.Orchestrator,
		p.Accounts,
		p.LinkedIn.RedirectURI,
		p.LinkedIn.Scopes,
		p.State.TTL,
	)

	return &Service{
		allowOrigins: p.Server.AllowOrigins,
		verifier:     p.Verifier,
		handler:      handler,
	}
}

// RegisterRoutes registers all linking routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	// A caller who is already signed in gets the state bound to them
	mux.Handle(constants.RouteAuthorize, s.OptionalAuthenticate()(http.HandlerFunc(s.handler.HandleAuthorize)))

	// The callback checks the code before the credential, so it verifies inline
	mux.HandleFunc(constants.RouteCallback, s.handler.HandleCallback)

	mux.Handle(constants.RouteLinkedAccount, s.Authenticate()(http.HandlerFunc(s.handler.HandleLinkedAccount)))
}

// WrapWithMiddleware wraps the mux with the CORS middleware
func (s *Service) WrapWithMiddleware(handler http.Handler) http.Handler {
	return middleware.CORSWithOrigins(s.allowOrigins)(handler)
}

// Authenticate returns the authentication middleware
func (s *Service) Authenticate() func(http.Handler) http.Handler {
	return middleware.Authenticate(s.verifier)
}

// OptionalAuthenticate returns the optional authentication middleware
func (s *Service) OptionalAuthenticate() func(http.Handler) http.Handler {
	return middleware.OptionalAuthenticate(s.verifier)
}

// Module provides the linking service and everything the auth tree needs
var Module = fx.Module("auth",
	providers.Module,
	state.Module,
	verifier.Module,
	fx.Provide(NewService),
)
