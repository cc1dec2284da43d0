package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brizzai/linkedin-link/internal/auth/constants"
	"github.com/brizzai/linkedin-link/internal/auth/models"
	"github.com/brizzai/linkedin-link/internal/config"
	apperrors "github.com/brizzai/linkedin-link/internal/errors"
	"github.com/brizzai/linkedin-link/internal/requester"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// gjson paths into the provider payloads
const (
	profileIDPath = "id"
	emailPath     = `elements.0.handle\~.emailAddress`
	postsPath     = "elements"
	postTextPath  = `specificContent.com\.linkedin\.ugc\.ShareContent.shareCommentary.text`
	postTimePath  = "created.time"
)

type LinkedInProvider struct {
	oauth2Config *oauth2.Config
	requester    *requester.HTTPRequester
	apiBaseURL   string
	postsCount   int
}

func NewLinkedInProvider(cfg *config.LinkedInConfig, req *requester.HTTPRequester) *LinkedInProvider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = constants.DefaultScopes
	}
	postsCount := cfg.PostsCount
	if postsCount <= 0 {
		postsCount = 10
	}

	return &LinkedInProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		requester:  req,
		apiBaseURL: strings.TrimSuffix(cfg.APIBaseURL, "/"),
		postsCount: postsCount,
	}
}

// GetAuthURL returns the consent screen URL carrying response_type=code,
// client_id, redirect_uri, scope and state.
func (p *LinkedInProvider) GetAuthURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state)
}

// RedirectURI returns the configured callback URL
func (p *LinkedInProvider) RedirectURI() string {
	return p.oauth2Config.RedirectURL
}

// Scopes returns the requested scopes
func (p *LinkedInProvider) Scopes() []string {
	return p.oauth2Config.Scopes
}

// ExchangeCode posts the code to the token endpoint with the client
// credentials in the form body. Errors never carry the upstream body.
func (p *LinkedInProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (*models.TokenResponse, error) {
	cfg := *p.oauth2Config // copy
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}

	ctx, cancel := context.WithTimeout(ctx, p.requester.Timeout())
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.requester.Client())

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrExchange, apperrors.ErrTimeout)
		}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			return nil, fmt.Errorf("%w: token endpoint returned status %d", apperrors.ErrExchange, status)
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrExchange, err)
	}

	return &models.TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.Type(),
		ExpiresIn:   expiresIn(token),
	}, nil
}

func expiresIn(token *oauth2.Token) int64 {
	if token.ExpiresIn > 0 {
		return token.ExpiresIn
	}
	switch v := token.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	if !token.Expiry.IsZero() {
		return int64(time.Until(token.Expiry).Seconds())
	}
	return 0
}

func (p *LinkedInProvider) FetchProfile(ctx context.Context, accessToken string) (*models.ProfileRecord, error) {
	body, err := p.get(ctx, accessToken, p.apiBaseURL+constants.ProfilePath, "profile")
	if err != nil {
		return nil, err
	}

	profile := &models.ProfileRecord{Raw: body}
	if id := gjson.GetBytes(body, profileIDPath); id.Type == gjson.String || id.Type == gjson.Number {
		profile.ID = id.String()
	}
	return profile, nil
}

// FetchEmail soft-fails on a missing nested address: the field is optional,
// the request itself is not.
func (p *LinkedInProvider) FetchEmail(ctx context.Context, accessToken string) (string, error) {
	body, err := p.get(ctx, accessToken, p.apiBaseURL+constants.EmailPath, "email")
	if err != nil {
		return "", err
	}

	email := gjson.GetBytes(body, emailPath)
	if email.Type != gjson.String {
		return "", nil
	}
	return email.String(), nil
}

func (p *LinkedInProvider) FetchPosts(ctx context.Context, accessToken, personURN string) (*models.PostCollection, error) {
	if personURN == "" {
		return nil, fmt.Errorf("%w: person URN is required", apperrors.ErrFetch)
	}

	body, err := p.get(ctx, accessToken, p.postsURL(personURN), "posts")
	if err != nil {
		return nil, err
	}

	return &models.PostCollection{Raw: body, Entries: parsePosts(body)}, nil
}

// postsURL keeps List(...) literal; url.Values would escape the parentheses.
func (p *LinkedInProvider) postsURL(personURN string) string {
	return fmt.Sprintf("%s%s?q=authors&sortBy=LAST_MODIFIED&count=%d&authors=List(%s)",
		p.apiBaseURL, constants.PostsPath, p.postsCount, url.QueryEscape(personURN))
}

func parsePosts(body []byte) []models.Post {
	entries := []models.Post{}
	gjson.GetBytes(body, postsPath).ForEach(func(_, element gjson.Result) bool {
		post := models.Post{ID: element.Get("id").String()}
		if text := element.Get(postTextPath); text.Exists() {
			s := text.String()
			post.Text = &s
		}
		if created := element.Get(postTimePath); created.Exists() {
			ts := time.UnixMilli(created.Int()).UTC()
			post.CreatedAt = &ts
		}
		entries = append(entries, post)
		return true
	})
	return entries
}

func (p *LinkedInProvider) get(ctx context.Context, accessToken, rawURL, resource string) ([]byte, error) {
	resp, err := p.requester.Do(ctx, &requester.Request{
		URL:  rawURL,
		Auth: requester.BearerAuth(accessToken),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s request: %w", apperrors.ErrFetch, resource, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %s request failed with status %d", apperrors.ErrFetch, resource, resp.StatusCode)
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, fmt.Errorf("%w: %s response is not valid JSON", apperrors.ErrFetch, resource)
	}
	return resp.Body, nil
}

// PersonURN derives the posts author URN from a profile, or "" when the
// profile has no usable id.
func PersonURN(profile *models.ProfileRecord) string {
	if profile == nil || profile.ID == "" {
		return ""
	}
	return constants.PersonURNPrefix + profile.ID
}
