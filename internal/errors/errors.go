// Package errors holds the sentinel errors shared by the linking flow and the
// mapping from those errors to what callers are allowed to see.
package errors

import (
	"errors"
	"net/http"
)

// Caller errors. Raised before any provider call is made.
var (
	ErrValidation   = errors.New("invalid request")
	ErrAuth         = errors.New("missing or invalid user authentication")
	ErrStateInvalid = errors.New("invalid or expired state")
)

// Upstream and storage errors.
var (
	ErrExchange    = errors.New("token exchange failed")
	ErrFetch       = errors.New("provider fetch failed")
	ErrPersistence = errors.New("persistence failed")
	ErrTimeout     = errors.New("upstream call timed out")
	ErrNotFound    = errors.New("not found")
)

// Messages returned to HTTP callers. Raw upstream text never leaves the process.
const (
	MsgMissingCode    = "Missing code"
	MsgUnauthorized   = "Missing or invalid user authentication"
	MsgInvalidState   = "Invalid or expired state"
	MsgExchangeFailed = "Failed to fetch LinkedIn access token"
	MsgFetchFailed    = "Failed to fetch LinkedIn data"
	MsgPersistFailed  = "Failed to save LinkedIn data"
	MsgTimeout        = "LinkedIn did not respond in time"
	MsgNotFound       = "No LinkedIn data found"
	MsgInternal       = "Internal server error"
)

// HTTPStatus maps an error from the linking flow to a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrStateInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the sanitized message for err. Timeouts win over the
// stage kind so a slow provider reads the same regardless of the stage.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return MsgMissingCode
	case errors.Is(err, ErrAuth):
		return MsgUnauthorized
	case errors.Is(err, ErrStateInvalid):
		return MsgInvalidState
	case errors.Is(err, ErrTimeout):
		return MsgTimeout
	case errors.Is(err, ErrExchange):
		return MsgExchangeFailed
	case errors.Is(err, ErrFetch):
		return MsgFetchFailed
	case errors.Is(err, ErrPersistence):
		return MsgPersistFailed
	case errors.Is(err, ErrNotFound):
		return MsgNotFound
	default:
		return MsgInternal
	}
}
