// Package handler assembles the HTTP routing tree for the service.
package handler

import (
	"net/http"

	"github.com/brizzai/linkedin-link/internal/auth"
	"github.com/brizzai/linkedin-link/internal/auth/constants"
	"github.com/brizzai/linkedin-link/internal/logger"
	"github.com/brizzai/linkedin-link/internal/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler manages HTTP request handling and middleware configuration.
type Handler struct {
	auth *auth.Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(auth *auth.Service) *Handler {
	return &Handler{
		auth: auth,
	}
}

// CreateHTTPHandler creates an HTTP handler with the linking routes, the
// operational endpoints and the CORS middleware.
func (h *Handler) CreateHTTPHandler() http.Handler {
	mux := http.NewServeMux()

	h.auth.RegisterRoutes(mux)
	logger.Info("Registered linking routes")

	mux.HandleFunc(constants.RouteHealth, func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle(constants.RouteMetrics, promhttp.Handler())

	return h.auth.WrapWithMiddleware(mux)
}
