package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sofrago/admin-gateway/internal/browserctx"
	"github.com/sofrago/admin-gateway/internal/config"
	"github.com/sofrago/admin-gateway/internal/httpx"
	"github.com/sofrago/admin-gateway/internal/upstream"
	"go.uber.org/zap"
)

type AuthenticationHandler interface {
	Login(w http.ResponseWriter, r *http.Request)
	LoginState(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Routes() chi.Router
}

type authenticationHandler struct {
	logger      *zap.Logger
	authService AuthService
	routes      *config.RoutesConfig
	validator   *validator.Validate
}

func NewAuthenticationHandler(authService AuthService, routes *config.RoutesConfig, l *zap.Logger) AuthenticationHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	return &authenticationHandler{
		logger:      l,
		authService: authService,
		routes:      routes,
		validator:   v,
	}
}

func (a *authenticationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", a.Login)
	r.Get("/login/state", a.LoginState)
	r.Post("/logout", a.Logout)
	return r
}

type loginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,min=1,max=128"`
}

type loginResponse struct {
	SubjectID string `json:"subject_id"`
	Username  string `json:"username,omitempty"`
	Role      string `json:"role"`
	Redirect  string `json:"redirect"`
}

func (a *authenticationHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	var req loginRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	if err := a.validator.Struct(req); err != nil {
		a.logger.Warn("login validation failed", zap.Error(err))
		httpx.WriteError(w, http.StatusUnprocessableEntity, httpx.ErrorResponse[[]httpx.FieldError]{
			Code:    httpx.ErrValidationFailed,
			Message: "validation failed",
			Details: httpx.ValidationDetails(err),
		})
		return
	}

	contextID := browserctx.FromContext(r.Context())
	claims, err := a.authService.Attempt(ctx, contextID, upstream.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		a.writeLoginError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		SubjectID: claims.SubjectID,
		Username:  claims.Username,
		Role:      string(claims.Role),
		Redirect:  a.routes.DashboardPath,
	})
}

// writeLoginError maps login failures onto inline form messages. These
// never reach the transient logout-reason channel: that channel is for
// guard-origin redirects only.
func (a *authenticationHandler) writeLoginError(w http.ResponseWriter, err error) {
	var statusErr *upstream.StatusError
	switch {
	case errors.Is(err, ErrMissingToken):
		httpx.WriteError(w, http.StatusBadGateway, httpx.ErrorResponse[any]{
			Code:    httpx.ErrMissingToken,
			Message: "authentication service did not return a token",
		})
	case errors.Is(err, ErrInvalidOrExpired):
		httpx.WriteError(w, http.StatusBadGateway, httpx.ErrorResponse[any]{
			Code:    httpx.ErrInvalidOrExpired,
			Message: "authentication service returned an unusable token",
		})
	case errors.Is(err, ErrForbiddenRole):
		httpx.WriteError(w, http.StatusForbidden, httpx.ErrorResponse[any]{
			Code:    httpx.ErrForbiddenRole,
			Message: "this account is not permitted to use the admin console",
		})
	case errors.As(err, &statusErr):
		msg := statusErr.Message
		if msg == "" {
			msg = "login failed"
		}
		httpx.WriteError(w, http.StatusUnauthorized, httpx.ErrorResponse[any]{
			Code:    httpx.ErrUnauthorized,
			Message: msg,
		})
	default:
		a.logger.Error("login attempt failed", zap.Error(err))
		httpx.WriteError(w, http.StatusServiceUnavailable, httpx.ErrorResponse[any]{
			Code:    httpx.ErrUpstreamUnavailable,
			Message: "login failed, please try again",
		})
	}
}

type loginStateResponse struct {
	Authenticated bool   `json:"authenticated"`
	Redirect      string `json:"redirect,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// LoginState serves the console's first render of the login view: the
// one-shot consume of any pending logout reason, and the pre-check that
// skips the form when a valid session already exists. The reason is
// read before the pre-check so a banner is never lost to an early
// redirect.
func (a *authenticationHandler) LoginState(w http.ResponseWriter, r *http.Request) {
	contextID := browserctx.FromContext(r.Context())

	resp := loginStateResponse{}
	if reason, ok := a.authService.ConsumeLogoutReason(r.Context(), contextID); ok {
		resp.Reason = string(reason)
	}
	if _, ok := a.authService.Probe(r.Context(), contextID); ok {
		resp.Authenticated = true
		resp.Redirect = a.routes.DashboardPath
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (a *authenticationHandler) Logout(w http.ResponseWriter, r *http.Request) {
	contextID := browserctx.FromContext(r.Context())
	if err := a.authService.Logout(r.Context(), contextID); err != nil {
		// The redirect still happens; a stale slot will be caught by
		// the next guard evaluation.
		a.logger.Error("logout failed to clear token slot",
			zap.String("context_id", contextID), zap.Error(err))
	}
	http.Redirect(w, r, a.routes.LoginPath, http.StatusSeeOther)
}
