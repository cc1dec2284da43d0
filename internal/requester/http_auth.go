package requester

import (
	"fmt"
	"net/http"

	"github.com/brizzai/linkedin-link/internal/auth/constants"
)

// AuthManager handles request authentication
type AuthManager interface {
	ApplyAuth(req *http.Request) error
}

// BearerAuth authenticates a request with an OAuth access token.
type BearerAuth string

// ApplyAuth sets the Authorization header
func (b BearerAuth) ApplyAuth(req *http.Request) error {
	if b == "" {
		return fmt.Errorf("bearer token is empty")
	}
	req.Header.Set(constants.AuthHeaderName, constants.AuthHeaderPrefix+string(b))
	return nil
}

// NoAuth leaves the request untouched.
type NoAuth struct{}

func (NoAuth) ApplyAuth(*http.Request) error { return nil }
