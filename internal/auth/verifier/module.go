package verifier

import (
	"context"
	"fmt"

	"github.com/brizzai/linkedin-link/internal/config"
	"go.uber.org/fx"
)

// New builds the configured verifier
func New(cfg *config.AuthConfig) (Verifier, error) {
	switch cfg.Verifier {
	case config.VerifierJWT, "":
		return NewJWTVerifier(cfg.JWTSecret, cfg.Issuer, cfg.Audience), nil
	case config.VerifierOIDC:
		return NewOIDCVerifier(context.Background(), cfg.Issuer, cfg.Audience)
	default:
		return nil, fmt.Errorf("unsupported verifier: %s", cfg.Verifier)
	}
}

// Module provides the credential verifier
var Module = fx.Module("verifier",
	fx.Provide(New),
)
