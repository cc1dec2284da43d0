package requester

import (
	"net/http"
)

// Request describes one outbound provider call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Auth    AuthManager
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}
