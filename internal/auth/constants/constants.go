package constants

const (
	// ProviderLinkedIn is the provider key linked accounts are stored under
	ProviderLinkedIn = "linkedin"

	// PersonURNPrefix prefixes a profile id to form the posts author URN
	PersonURNPrefix = "urn:li:person:"

	// AuthHeaderName is the name of the Authorization header
	AuthHeaderName = "Authorization"

	// AuthHeaderPrefix is the prefix for the Authorization header value
	AuthHeaderPrefix = "Bearer "

	// StateBytes is the entropy of a CSRF state value before hex encoding
	StateBytes = 32
)

// DefaultScopes are the OpenID Connect scopes LinkedIn expects for sign-in
var DefaultScopes = []string{"openid", "profile", "email"}

// Provider API paths, relative to the API base URL
const (
	ProfilePath = "/v2/me"
	EmailPath   = "/v2/emailAddress?q=members&projection=(elements*(handle~))"
	PostsPath   = "/v2/ugcPosts"
)

// Routes served by this service
const (
	RouteAuthorize     = "/api/linkedin/auth"
	RouteCallback      = "/api/linkedin/callback"
	RouteLinkedAccount = "/api/linkedin-data"
	RouteHealth        = "/healthz"
	RouteMetrics       = "/metrics"
)
