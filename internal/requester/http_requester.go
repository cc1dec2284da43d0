package requester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brizzai/linkedin-link/internal/config"
	apperrors "github.com/brizzai/linkedin-link/internal/errors"
	"github.com/brizzai/linkedin-link/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single call when none is configured
	DefaultTimeout = 10 * time.Second

	// maxBodyBytes caps how much of a provider response is read
	maxBodyBytes = 4 << 20
)

// HTTPRequester executes single provider calls, each under its own timeout.
type HTTPRequester struct {
	client  *http.Client
	timeout time.Duration
	headers map[string]string
}

type HTTPRequesterParams struct {
	fx.In

	Config *config.LinkedInConfig
	Client *http.Client `optional:"true"`
}

// NewHTTPRequester creates a requester from the provider configuration
func NewHTTPRequester(params HTTPRequesterParams) *HTTPRequester {
	return New(params.Client, params.Config.RequestTimeout, params.Config.Headers)
}

// New creates a requester. A nil client uses a fresh http.Client and a
// non-positive timeout falls back to DefaultTimeout.
func New(client *http.Client, timeout time.Duration, headers map[string]string) *HTTPRequester {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPRequester{
		client:  client,
		timeout: timeout,
		headers: headers,
	}
}

// Client returns the underlying HTTP client
func (r *HTTPRequester) Client() *http.Client {
	return r.client
}

// Timeout returns the per-call timeout
func (r *HTTPRequester) Timeout() time.Duration {
	return r.timeout
}

// Do performs the request. Expiry of the per-call deadline is reported as
// apperrors.ErrTimeout; non-2xx statuses are returned, not treated as errors.
func (r *HTTPRequester) Do(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	for key, value := range r.headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	auth := req.Auth
	if auth == nil {
		auth = NoAuth{}
	}
	if err := auth.ApplyAuth(httpReq); err != nil {
		return nil, fmt.Errorf("failed to apply authentication: %w", err)
	}

	logger.Debug("provider request", zap.String("method", method), zap.String("path", httpReq.URL.Path))

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, r.wrapErr(ctx, "request failed", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("Failed to close response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, r.wrapErr(ctx, "failed to read response body", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
	}, nil
}

func (r *HTTPRequester) wrapErr(ctx context.Context, msg string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", apperrors.ErrTimeout, r.timeout)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
