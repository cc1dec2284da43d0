// Package linking runs the OAuth callback: it exchanges the code, reads the
// profile, email and posts, and stores them as one linked account.
package linking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brizzai/linkedin-link/internal/auth/constants"
	"github.com/brizzai/linkedin-link/internal/auth/models"
	"github.com/brizzai/linkedin-link/internal/auth/providers"
	"github.com/brizzai/linkedin-link/internal/auth/state"
	"github.com/brizzai/linkedin-link/internal/auth/verifier"
	"github.com/brizzai/linkedin-link/internal/config"
	apperrors "github.com/brizzai/linkedin-link/internal/errors"
	"github.com/brizzai/linkedin-link/internal/logger"
	"github.com/brizzai/linkedin-link/internal/metrics"
	"github.com/brizzai/linkedin-link/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CallbackRequest is what the provider redirect and the caller supply.
type CallbackRequest struct {
	Code       string
	State      string
	Credential string
}

// Result is the outcome of one callback. Transitions lists every stage
// entered, ending in Complete or Failed.
type Result struct {
	Account      *models.LinkedAccount
	Profile      *models.ProfileRecord
	Email        string
	Posts        *models.PostCollection
	PostsSkipped bool
	Transitions  []Stage
}

// Params are the collaborators of an Orchestrator.
type Params struct {
	fx.In

	Verifier  verifier.Verifier
	States    state.Store
	Exchanger providers.TokenExchanger
	Fetcher   providers.ProfileFetcher
	Store     storage.Store
	Config    *config.LinkedInConfig
	Tracer    trace.Tracer `optional:"true"`
}

// Orchestrator runs callbacks. It holds no per-callback state and is safe
// for concurrent use.
type Orchestrator struct {
	verifier       verifier.Verifier
	states         state.Store
	exchanger      providers.TokenExchanger
	fetcher        providers.ProfileFetcher
	store          storage.Store
	tracer         trace.Tracer
	redirectURI    string
	persistTimeout time.Duration
	now            func() time.Time
}

func New(p Params) *Orchestrator {
	tracer := p.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	o := &Orchestrator{
		verifier:       p.Verifier,
		states:         p.States,
		exchanger:      p.Exchanger,
		fetcher:        p.Fetcher,
		store:          p.Store,
		tracer:         tracer,
		persistTimeout: 10 * time.Second,
		now:            time.Now,
	}
	if p.Config != nil {
		o.redirectURI = p.Config.RedirectURI
		if p.Config.RequestTimeout > 0 {
			o.persistTimeout = p.Config.RequestTimeout
		}
	}
	return o
}

// callback carries stage outputs from one stage to the next.
type callback struct {
	identity    *models.UserIdentity
	redirectURI string
	token       *models.TokenResponse
}

// Run executes the pipeline. The result is returned on failure too, so the
// trail can be inspected; the error is then always a *StageError.
func (o *Orchestrator) Run(ctx context.Context, req CallbackRequest) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "linking.Callback")
	defer span.End()

	res := &Result{}
	err := o.run(ctx, req, res)
	if err != nil {
		res.Transitions = append(res.Transitions, Failed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "callback failed")

		outcome := Failed.String()
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			outcome = stageErr.Stage.String()
		}
		metrics.CallbacksTotal.WithLabelValues(outcome).Inc()
		logger.Warn("LinkedIn callback failed", zap.String("stage", outcome), zap.Error(err))
		return res, err
	}

	res.Transitions = append(res.Transitions, Complete)
	metrics.CallbacksTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	logger.Info("LinkedIn account linked",
		zap.String("user_id", res.Account.UserID),
		zap.Bool("posts_skipped", res.PostsSkipped),
	)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, req CallbackRequest, res *Result) error {
	cb := &callback{}

	if err := o.stage(ctx, res, AwaitingCode, func(ctx context.Context) error {
		return o.validate(ctx, req, cb)
	}); err != nil {
		return err
	}

	if err := o.stage(ctx, res, ExchangingToken, func(ctx context.Context) error {
		token, err := o.exchanger.ExchangeCode(ctx, req.Code, cb.redirectURI)
		if err != nil {
			return ensureKind(err, apperrors.ErrExchange)
		}
		if token == nil || token.AccessToken == "" {
			return fmt.Errorf("%w: no access token in response", apperrors.ErrExchange)
		}
		cb.token = token
		return nil
	}); err != nil {
		return err
	}

	if err := o.fetchIdentity(ctx, res, cb); err != nil {
		return err
	}

	personURN := providers.PersonURN(res.Profile)
	if personURN == "" {
		res.PostsSkipped = true
		metrics.PostsSkippedTotal.Inc()
	} else if err := o.stage(ctx, res, FetchingPosts, func(ctx context.Context) error {
		posts, err := o.fetcher.FetchPosts(ctx, cb.token.AccessToken, personURN)
		if err != nil {
			return ensureKind(err, apperrors.ErrFetch)
		}
		res.Posts = posts
		return nil
	}); err != nil {
		return err
	}

	return o.stage(ctx, res, Persisting, func(ctx context.Context) error {
		return o.persist(ctx, res, cb)
	})
}

// validate checks the code, then the caller, then the state. Nothing here
// talks to the provider.
func (o *Orchestrator) validate(ctx context.Context, req CallbackRequest, cb *callback) error {
	if strings.TrimSpace(req.Code) == "" {
		return fmt.Errorf("%w: missing code", apperrors.ErrValidation)
	}

	identity, err := o.verifier.Verify(ctx, req.Credential)
	if err != nil {
		return ensureKind(err, apperrors.ErrAuth)
	}
	if identity == nil || identity.UserID == "" {
		return fmt.Errorf("%w: credential has no user", apperrors.ErrAuth)
	}
	cb.identity = identity

	if strings.TrimSpace(req.State) == "" {
		return fmt.Errorf("%w: missing state", apperrors.ErrStateInvalid)
	}
	authReq, err := o.states.Consume(ctx, req.State)
	if err != nil {
		return err
	}
	if authReq.UserID != "" && authReq.UserID != identity.UserID {
		return fmt.Errorf("%w: state was issued to another user", apperrors.ErrStateInvalid)
	}

	cb.redirectURI = authReq.RedirectURI
	if cb.redirectURI == "" {
		cb.redirectURI = o.redirectURI
	}
	return nil
}

// fetchIdentity reads profile and email concurrently; a failure in one
// cancels the other.
func (o *Orchestrator) fetchIdentity(ctx context.Context, res *Result, cb *callback) error {
	res.Transitions = append(res.Transitions, FetchingProfile, FetchingEmail)

	var (
		profile *models.ProfileRecord
		email   string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.timed(gctx, FetchingProfile, func(ctx context.Context) error {
			p, err := o.fetcher.FetchProfile(ctx, cb.token.AccessToken)
			if err != nil {
				return ensureKind(err, apperrors.ErrFetch)
			}
			if p == nil {
				return fmt.Errorf("%w: empty profile", apperrors.ErrFetch)
			}
			profile = p
			return nil
		})
	})
	g.Go(func() error {
		return o.timed(gctx, FetchingEmail, func(ctx context.Context) error {
			e, err := o.fetcher.FetchEmail(ctx, cb.token.AccessToken)
			if err != nil {
				return ensureKind(err, apperrors.ErrFetch)
			}
			email = e
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	res.Profile = profile
	res.Email = email
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, res *Result, cb *callback) error {
	account := &models.LinkedAccount{
		UserID:   cb.identity.UserID,
		Provider: constants.ProviderLinkedIn,
		Profile:  res.Profile.Raw,
		Email:    res.Email,
		LinkedAt: o.now().UTC(),
	}
	if res.Posts != nil {
		account.Posts = res.Posts.Raw
	}

	ctx, cancel := context.WithTimeout(ctx, o.persistTimeout)
	defer cancel()

	if err := o.store.Upsert(ctx, account); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", apperrors.ErrPersistence, apperrors.ErrTimeout)
		}
		return fmt.Errorf("%w: %w", apperrors.ErrPersistence, err)
	}

	res.Account = account
	return nil
}

// stage records the transition and runs fn as a timed span.
func (o *Orchestrator) stage(ctx context.Context, res *Result, s Stage, fn func(context.Context) error) error {
	res.Transitions = append(res.Transitions, s)
	return o.timed(ctx, s, fn)
}

func (o *Orchestrator) timed(ctx context.Context, s Stage, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "linking."+s.String(), trace.WithAttributes(attribute.String("stage", s.String())))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(s.String()).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, s.String()+" failed")
		return &StageError{Stage: s, Err: err}
	}
	return nil
}

// ensureKind makes sure err matches kind, keeping the original chain.
func ensureKind(err, kind error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
