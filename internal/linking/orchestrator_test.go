package linking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/brizzai/linkedin-link/internal/auth/models"
	"github.com/brizzai/linkedin-link/internal/auth/state"
	"github.com/brizzai/linkedin-link/internal/config"
	apperrors "github.com/brizzai/linkedin-link/internal/errors"
	"github.com/brizzai/linkedin-link/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRedirectURI = "https://app.example.com/api/linkedin/callback"
	userToken       = "credential-user-1"
	otherUserToken  = "credential-user-2"
)

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, credential string) (*models.UserIdentity, error) {
	switch credential {
	case userToken:
		return &models.UserIdentity{UserID: "user-1"}, nil
	case otherUserToken:
		return &models.UserIdentity{UserID: "user-2"}, nil
	default:
		return nil, apperrors.ErrAuth
	}
}

type fakeProvider struct {
	log *callLog

	token       *models.TokenResponse
	exchangeErr error
	profile     *models.ProfileRecord
	profileErr  error
	email       string
	emailErr    error
	posts       *models.PostCollection
	postsErr    error

	gotCode     string
	gotRedirect string
	gotURN      string
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code, redirectURI string) (*models.TokenResponse, error) {
	p.log.add("exchange")
	p.gotCode, p.gotRedirect = code, redirectURI
	return p.token, p.exchangeErr
}

func (p *fakeProvider) FetchProfile(context.Context, string) (*models.ProfileRecord, error) {
	p.log.add("profile")
	return p.profile, p.profileErr
}

func (p *fakeProvider) FetchEmail(context.Context, string) (string, error) {
	p.log.add("email")
	return p.email, p.emailErr
}

func (p *fakeProvider) FetchPosts(_ context.Context, _ string, personURN string) (*models.PostCollection, error) {
	p.log.add("posts")
	p.gotURN = personURN
	return p.posts, p.postsErr
}

type fakeStore struct {
	log      *callLog
	mu       sync.Mutex
	accounts map[string]*models.LinkedAccount
	upserts  int
	err      error
	block    bool
}

func (s *fakeStore) Upsert(ctx context.Context, account *models.LinkedAccount) error {
	s.log.add("upsert")
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	s.accounts[account.UserID+"/"+account.Provider] = account
	return nil
}

func (s *fakeStore) Get(_ context.Context, userID, provider string) (*models.LinkedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[userID+"/"+provider]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return account, nil
}

func (s *fakeStore) Close() error { return nil }

type fixture struct {
	orch     *Orchestrator
	states   *state.MemoryStore
	provider *fakeProvider
	store    *fakeStore
	log      *callLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := &callLog{}
	states := state.NewMemoryStore()
	t.Cleanup(states.Stop)

	provider := &fakeProvider{
		log:     log,
		token:   &models.TokenResponse{AccessToken: "li-access-token", TokenType: "Bearer", ExpiresIn: 5184000},
		profile: &models.ProfileRecord{Raw: json.RawMessage(`{"id":"9","localizedFirstName":"Ada"}`), ID: "9"},
		email:   "ada@example.com",
		posts:   &models.PostCollection{Raw: json.RawMessage(`{"elements":[{"id":"urn:li:ugcPost:1"}]}`)},
	}
	store := &fakeStore{log: log, accounts: map[string]*models.LinkedAccount{}}

	orch := New(Params{
		Verifier:  fakeVerifier{},
		States:    states,
		Exchanger: provider,
		Fetcher:   provider,
		Store:     store,
		Config:    &config.LinkedInConfig{RedirectURI: testRedirectURI, RequestTimeout: time.Second},
	})
	orch.now = func() time.Time { return fixedNow }

	return &fixture{orch: orch, states: states, provider: provider, store: store, log: log}
}

func (f *fixture) issueState(t *testing.T, userID string) string {
	t.Helper()
	req, err := state.NewAuthorizationRequest(testRedirectURI, []string{"openid", "profile", "email"}, userID, time.Now(), time.Minute)
	require.NoError(t, err)
	require.NoError(t, f.states.Save(context.Background(), req))
	return req.State
}

func TestRun_Success(t *testing.T) {
	f := newFixture(t)
	before := testutil.ToFloat64(metrics.CallbacksTotal.WithLabelValues(metrics.OutcomeSuccess))

	require.NoError(t, f.states.Save(context.Background(), &models.AuthorizationRequest{
		State:       "xyz",
		RedirectURI: testRedirectURI,
		UserID:      "user-1",
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(time.Minute),
	}))

	res, err := f.orch.Run(context.Background(), CallbackRequest{
		Code:       "abc123",
		State:      "xyz",
		Credential: userToken,
	})
	require.NoError(t, err)

	assert.Equal(t, []Stage{AwaitingCode, ExchangingToken, FetchingProfile, FetchingEmail, FetchingPosts, Persisting, Complete}, res.Transitions)
	assert.Equal(t, "abc123", f.provider.gotCode)
	assert.Equal(t, testRedirectURI, f.provider.gotRedirect)
	assert.Equal(t, "urn:li:person:9", f.provider.gotURN)
	assert.False(t, res.PostsSkipped)

	calls := f.log.snapshot()
	require.Len(t, calls, 5)
	assert.Equal(t, "exchange", calls[0])
	assert.ElementsMatch(t, []string{"profile", "email"}, calls[1:3])
	assert.Equal(t, []string{"posts", "upsert"}, calls[3:])

	stored, err := f.store.Get(context.Background(), "user-1", "linkedin")
	require.NoError(t, err)
	assert.Equal(t, &models.LinkedAccount{
		UserID:   "user-1",
		Provider: "linkedin",
		Profile:  json.RawMessage(`{"id":"9","localizedFirstName":"Ada"}`),
		Email:    "ada@example.com",
		Posts:    json.RawMessage(`{"elements":[{"id":"urn:li:ugcPost:1"}]}`),
		LinkedAt: fixedNow,
	}, stored)
	assert.Same(t, stored, res.Account)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CallbacksTotal.WithLabelValues(metrics.OutcomeSuccess)))
}

func TestRun_SkipsPostsWithoutProfileID(t *testing.T) {
	f := newFixture(t)
	f.provider.profile = &models.ProfileRecord{Raw: json.RawMessage(`{"localizedFirstName":"Ada"}`)}

	res, err := f.orch.Run(context.Background(), CallbackRequest{
		Code:       "abc123",
		State:      f.issueState(t, ""),
		Credential: userToken,
	})
	require.NoError(t, err)

	assert.True(t, res.PostsSkipped)
	assert.Nil(t, res.Posts)
	assert.Nil(t, res.Account.Posts)
	assert.NotContains(t, f.log.snapshot(), "posts")
	assert.Equal(t, []Stage{AwaitingCode, ExchangingToken, FetchingProfile, FetchingEmail, Persisting, Complete}, res.Transitions)
}

func TestRun_EmptyEmailIsStored(t *testing.T) {
	f := newFixture(t)
	f.provider.email = ""

	res, err := f.orch.Run(context.Background(), CallbackRequest{Code: "abc123", State: f.issueState(t, ""), Credential: userToken})
	require.NoError(t, err)
	assert.Empty(t, res.Account.Email)
	assert.Equal(t, 1, f.store.upserts)
}

func TestRun_RejectsBeforeAnyProviderCall(t *testing.T) {
	tests := []struct {
		name    string
		request func(t *testing.T, f *fixture) CallbackRequest
		wantErr error
	}{
		{
			name: "missing code",
			request: func(t *testing.T, f *fixture) CallbackRequest {
				return CallbackRequest{State: f.issueState(t, ""), Credential: userToken}
			},
			wantErr: apperrors.ErrValidation,
		},
		{
			name: "missing code wins over missing credential",
			request: func(t *testing.T, f *fixture) CallbackRequest {
				return CallbackRequest{State: "unknown"}
			},
			wantErr: apperrors.ErrValidation,
		},
		{
			name: "missing credential",
			request: func(t *testing.T, f *fixture) CallbackRequest {
				return CallbackRequest{Code: "abc123", State: f.issueState(t, "")}
			},
			wantErr: apperrors.ErrAuth,
		},
		{
			name: "invalid credential wins over unknown state",
			request: func(t *testing.T, f *fixture) CallbackRequest {
				return CallbackRequest{Code: "abc123", State: "unknown", Credential: "forged"}
			},
			wantErr: apperrors.ErrAuth,
		},
		{
			name: "missing state",
			request: func(t *testing.T, f *fixture) CallbackRequest {
				return CallbackRequest{Code: "abc123", Credential: userToken}
			},
			wantErr: apperrors.ErrStateInvalid,
		},
		{
			name: "unknown state",
			request: func(t *testing.T, f *fixture) CallbackRequest {
				return CallbackRequest{Code: "abc123", State: "deadbeef", Credential: userToken}
			},
			wantErr: apperrors.ErrStateInvalid,
		},
		{
			name: "state issued to another user",
			request: func(t *testing.T, f *fixture) CallbackRequest {
				return CallbackRequest{Code: "abc123", State: f.issueState(t, "user-1"), Credential: otherUserToken}
			},
			wantErr: apperrors.ErrStateInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			res, err := f.orch.Run(context.Background(), tt.request(t, f))

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var stageErr *StageError
			require.True(t, errors.As(err, &stageErr))
			assert.Equal(t, AwaitingCode, stageErr.Stage)
			assert.Equal(t, []Stage{AwaitingCode, Failed}, res.Transitions)
			assert.Empty(t, f.log.snapshot())
			assert.Zero(t, f.store.upserts)
		})
	}
}

func TestRun_StateIsSingleUse(t *testing.T) {
	f := newFixture(t)
	value := f.issueState(t, "user-1")

	_, err := f.orch.Run(context.Background(), CallbackRequest{Code: "abc123", State: value, Credential: userToken})
	require.NoError(t, err)

	_, err = f.orch.Run(context.Background(), CallbackRequest{Code: "abc123", State: value, Credential: userToken})
	assert.True(t, errors.Is(err, apperrors.ErrStateInvalid))
	assert.Equal(t, 1, f.store.upserts)
}

func TestRun_StageFailures(t *testing.T) {
	upstream := errors.New(`{"error":"invalid_client","secret":"s3cr3t"}`)

	tests := []struct {
		name      string
		setup     func(f *fixture)
		wantStage Stage
		wantErr   error
		wantCalls []string
	}{
		{
			name:      "exchange failure",
			setup:     func(f *fixture) { f.provider.exchangeErr = upstream },
			wantStage: ExchangingToken,
			wantErr:   apperrors.ErrExchange,
			wantCalls: []string{"exchange"},
		},
		{
			name:      "exchange without access token",
			setup:     func(f *fixture) { f.provider.token = &models.TokenResponse{} },
			wantStage: ExchangingToken,
			wantErr:   apperrors.ErrExchange,
			wantCalls: []string{"exchange"},
		},
		{
			name:      "exchange timeout",
			setup:     func(f *fixture) { f.provider.exchangeErr = errors.Join(apperrors.ErrExchange, apperrors.ErrTimeout) },
			wantStage: ExchangingToken,
			wantErr:   apperrors.ErrTimeout,
			wantCalls: []string{"exchange"},
		},
		{
			name:      "profile failure",
			setup:     func(f *fixture) { f.provider.profileErr = upstream },
			wantStage: FetchingProfile,
			wantErr:   apperrors.ErrFetch,
		},
		{
			name:      "email failure",
			setup:     func(f *fixture) { f.provider.emailErr = upstream },
			wantStage: FetchingEmail,
			wantErr:   apperrors.ErrFetch,
		},
		{
			name:      "posts failure",
			setup:     func(f *fixture) { f.provider.postsErr = upstream },
			wantStage: FetchingPosts,
			wantErr:   apperrors.ErrFetch,
		},
		{
			name:      "persistence failure",
			setup:     func(f *fixture) { f.store.err = upstream },
			wantStage: Persisting,
			wantErr:   apperrors.ErrPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)
			before := testutil.ToFloat64(metrics.CallbacksTotal.WithLabelValues(tt.wantStage.String()))

			res, err := f.orch.Run(context.Background(), CallbackRequest{
				Code:       "abc123",
				State:      f.issueState(t, ""),
				Credential: userToken,
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var stageErr *StageError
			require.True(t, errors.As(err, &stageErr))
			assert.Equal(t, tt.wantStage, stageErr.Stage)
			assert.Equal(t, Failed, res.Transitions[len(res.Transitions)-1])

			assert.Equal(t, http.StatusInternalServerError, apperrors.HTTPStatus(err))
			assert.NotContains(t, apperrors.PublicMessage(err), "s3cr3t")
			assert.Zero(t, f.store.upserts)
			if tt.wantCalls != nil {
				assert.Equal(t, tt.wantCalls, f.log.snapshot())
			}
			assert.Equal(t, before+1, testutil.ToFloat64(metrics.CallbacksTotal.WithLabelValues(tt.wantStage.String())))
		})
	}
}

func TestRun_PersistTimeout(t *testing.T) {
	f := newFixture(t)
	f.store.block = true
	f.orch.persistTimeout = 20 * time.Millisecond

	_, err := f.orch.Run(context.Background(), CallbackRequest{Code: "abc123", State: f.issueState(t, ""), Credential: userToken})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPersistence))
	assert.True(t, errors.Is(err, apperrors.ErrTimeout))
	assert.Equal(t, apperrors.MsgTimeout, apperrors.PublicMessage(err))
}

func TestRun_RelinkReplacesRecord(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Run(context.Background(), CallbackRequest{Code: "abc123", State: f.issueState(t, ""), Credential: userToken})
	require.NoError(t, err)

	f.provider.email = "ada@newmail.example.com"
	_, err = f.orch.Run(context.Background(), CallbackRequest{Code: "def456", State: f.issueState(t, ""), Credential: userToken})
	require.NoError(t, err)

	assert.Len(t, f.store.accounts, 1)
	assert.Equal(t, 2, f.store.upserts)
	assert.Equal(t, "ada@newmail.example.com", f.store.accounts["user-1/linkedin"].Email)
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "awaiting_code", AwaitingCode.String())
	assert.Equal(t, "fetching_posts", FetchingPosts.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: FetchingEmail, Err: apperrors.ErrFetch}
	assert.Equal(t, "fetching_email: provider fetch failed", err.Error())
	assert.True(t, errors.Is(err, apperrors.ErrFetch))
}
