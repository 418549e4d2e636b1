package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"academic-service/internal/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service      *Service
	logger       *slog.Logger
	validator    *validator.Validate
	secureCookie bool
}

func NewHandler(service *Service, logger *slog.Logger, secureCookie bool) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		validator:    validator.New(),
		secureCookie: secureCookie,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/auth/login", h.Login)
}

// Login authenticates an application user
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode request", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.WarnContext(r.Context(), "validation failed", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrUserDisabled) {
			h.logger.InfoContext(r.Context(), "login rejected", "username", req.Username, "reason", err)
			httputil.RespondWithError(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "login failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "user logged in", "username", req.Username)

	SetAuthCookie(w, resp.AccessToken, int(resp.ExpiresIn), h.secureCookie)
	httputil.RespondWithJSON(w, http.StatusOK, resp)
}
