package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/brizzai/linkedin-link/internal/auth/constants"
	"github.com/brizzai/linkedin-link/internal/auth/middleware"
	"github.com/brizzai/linkedin-link/internal/auth/models"
	"github.com/brizzai/linkedin-link/internal/auth/providers"
	"github.com/brizzai/linkedin-link/internal/auth/state"
	apperrors "github.com/brizzai/linkedin-link/internal/errors"
	"github.com/brizzai/linkedin-link/internal/linking"
	"github.com/brizzai/linkedin-link/internal/logger"
	"github.com/brizzai/linkedin-link/internal/metrics"
	"github.com/brizzai/linkedin-link/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CallbackRunner runs the linking pipeline for one callback
type CallbackRunner interface {
	Run(ctx context.Context, req linking.CallbackRequest) (*linking.Result, error)
}

// AccountReader reads stored linked accounts
type AccountReader interface {
	Get(ctx context.Context, userID, provider string) (*models.LinkedAccount, error)
}

// Handler handles the account linking HTTP requests
type Handler struct {
	authorizer  providers.Authorizer
	states      state.Store
	callbacks   CallbackRunner
	accounts    AccountReader
	redirectURI string
	scopes      []string
	stateTTL    time.Duration
	now         func() time.Time
}

// NewHandler creates a new Handler instance
func NewHandler(
	authorizer providers.Authorizer,
	states state.Store,
	callbacks CallbackRunner,
	accounts AccountReader,
	redirectURI string,
	scopes []string,
	stateTTL time.Duration,
) *Handler {
	return &Handler{
		authorizer:  authorizer,
		states:      states,
		callbacks:   callbacks,
		accounts:    accounts,
		redirectURI: redirectURI,
		scopes:      scopes,
		stateTTL:    stateTTL,
		now:         time.Now,
	}
}

type callbackResponse struct {
	Success bool            `json:"success"`
	Profile json.RawMessage `json:"profile"`
	Email   string          `json:"email"`
	Posts   json.RawMessage `json:"posts"`
}

type linkedAccountResponse struct {
	LinkedIn *models.LinkedAccount `json:"linkedin"`
}

// HandleAuthorize issues a CSRF state and redirects to the consent screen
func (h *Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	log := logger.With(zap.String("request_id", uuid.NewString()))

	userID := ""
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		userID = identity.UserID
	}

	authReq, err := state.NewAuthorizationRequest(h.redirectURI, h.scopes, userID, h.now(), h.stateTTL)
	if err != nil {
		log.Error("Failed to generate state", zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, apperrors.MsgInternal)
		return
	}
	if err := h.states.Save(r.Context(), authReq); err != nil {
		log.Error("Failed to save state", zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, apperrors.MsgInternal)
		return
	}

	metrics.AuthorizeRedirectsTotal.Inc()
	log.Debug("Redirecting to LinkedIn", zap.Bool("bound_to_user", userID != ""))
	http.Redirect(w, r, h.authorizer.GetAuthURL(authReq.State), http.StatusFound)
}

// HandleCallback completes the link after the provider redirects back
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := uuid.NewString()
	query := r.URL.Query()

	res, err := h.callbacks.Run(r.Context(), linking.CallbackRequest{
		Code:       query.Get("code"),
		State:      query.Get("state"),
		Credential: middleware.BearerToken(r),
	})
	if err != nil {
		status := apperrors.HTTPStatus(err)
		logger.Info("Callback rejected",
			zap.String("request_id", requestID),
			zap.Int("status", status),
			zap.Error(err),
		)
		if status == http.StatusUnauthorized {
			middleware.WriteUnauthorized(w)
			return
		}
		utils.WriteError(w, status, apperrors.PublicMessage(err))
		return
	}

	utils.WriteJSON(w, http.StatusOK, callbackResponse{
		Success: true,
		Profile: res.Account.Profile,
		Email:   res.Account.Email,
		Posts:   res.Account.Posts,
	})
}

// HandleLinkedAccount returns the caller's stored LinkedIn data. It expects
// to run behind middleware.Authenticate.
func (h *Handler) HandleLinkedAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteUnauthorized(w)
		return
	}

	account, err := h.accounts.Get(r.Context(), identity.UserID, constants.ProviderLinkedIn)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			utils.WriteError(w, http.StatusNotFound, apperrors.MsgNotFound)
			return
		}
		logger.Error("Failed to read linked account", zap.String("user_id", identity.UserID), zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, apperrors.MsgInternal)
		return
	}

	utils.WriteJSON(w, http.StatusOK, linkedAccountResponse{LinkedIn: account})
}
