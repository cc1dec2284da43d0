package models

import (
	"encoding/json"
	"time"
)

// UserIdentity is the verified local caller, derived from a bearer credential.
type UserIdentity struct {
	UserID string
	Email  string
}

// AuthorizationRequest is the CSRF state issued when a link flow starts.
// It is single use and expires at ExpiresAt.
type AuthorizationRequest struct {
	State       string    `json:"state"`
	RedirectURI string    `json:"redirect_uri"`
	Scopes      []string  `json:"scopes"`
	UserID      string    `json:"user_id,omitempty"` // empty when started anonymously
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the request is no longer usable at now.
func (a *AuthorizationRequest) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// TokenResponse is the result of the code exchange. It lives for one callback.
type TokenResponse struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
}

// ProfileRecord is the raw profile payload plus the id the posts lookup needs.
type ProfileRecord struct {
	Raw json.RawMessage
	ID  string
}

// Post is one entry of a post history. Text and CreatedAt are optional in the
// provider payload.
type Post struct {
	ID        string     `json:"id,omitempty"`
	Text      *string    `json:"text,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// PostCollection keeps the raw payload next to the parsed entries, in provider order.
type PostCollection struct {
	Raw     json.RawMessage
	Entries []Post
}

// LinkedAccount is the aggregate stored per (UserID, Provider).
// Posts is nil when the posts stage was skipped.
type LinkedAccount struct {
	UserID   string          `json:"user_id"`
	Provider string          `json:"provider"`
	Profile  json.RawMessage `json:"profile"`
	Email    string          `json:"email"`
	Posts    json.RawMessage `json:"posts"`
	LinkedAt time.Time       `json:"linked_at"`
}

// NormalizePosts maps an absent or JSON-null posts payload to nil, so a
// skipped posts stage reads the same after a storage round trip.
func NormalizePosts(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
