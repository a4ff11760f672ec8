package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/relayworks/server/internal/api/problem"
	"github.com/relayworks/server/internal/auth"
	"github.com/relayworks/server/internal/domain/users"
	"github.com/relayworks/server/internal/metrics"
	"github.com/relayworks/server/internal/tenant"
)

const refreshCookieName = "relayworks_refresh"

type AuthHandler struct {
	Users     *users.Service
	Authority *auth.Authority
	Env       string
	// Secure controls the cookie flag; off only for local development.
	Secure     bool
	RefreshTTL time.Duration
}

func NewAuthHandler(usersService *users.Service, authority *auth.Authority, env string, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		Users:      usersService,
		Authority:  authority,
		Env:        env,
		Secure:     env != "development" && env != "test",
		RefreshTTL: refreshTTL,
	}
}

type signupRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Name       string `json:"name" validate:"required,max=200"`
	Password   string `json:"password" validate:"required,min=8"`
	TenantName string `json:"tenant_name,omitempty" validate:"max=200"`
}

type userResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"email_verified"`
}

type tenantResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "invalid request", err, h.Env)
		return
	}

	user, workspace, err := h.Users.Signup(r.Context(), users.SignupParams{
		Email:      req.Email,
		Name:       req.Name,
		Password:   req.Password,
		TenantName: req.TenantName,
	})
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			problem.Write(w, r, http.StatusConflict, problem.CodeEmailTaken, "email already registered", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "signup failed", err, h.Env)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user": userResponse{
			ID:            user.ID,
			Email:         user.Email,
			Name:          user.Name,
			EmailVerified: user.EmailVerified,
		},
		"tenant": tenantResponse{ID: workspace.ID, Name: workspace.Name},
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "invalid request", err, h.Env)
		return
	}

	pair, err := h.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			problem.Write(w, r, http.StatusUnauthorized, problem.CodeInvalidCredentials, "invalid credentials", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "login failed", err, h.Env)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates the refresh token. Browser clients carry it in an
// httpOnly cookie; other clients send it in the body.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		token = cookie.Value
	}
	if token == "" {
		var req refreshRequest
		if err := decodeJSON(r, &req); err == nil {
			token = req.RefreshToken
		}
	}
	if token == "" {
		problem.Write(w, r, http.StatusUnauthorized, problem.CodeInvalidRefreshToken, "missing refresh token", auth.ErrInvalidRefreshToken, h.Env)
		return
	}

	pair, err := h.Authority.Rotate(r.Context(), token)
	if err != nil {
		metrics.AuthTokenRotations.WithLabelValues("rejected").Inc()
		h.clearRefreshCookie(w)
		problem.Write(w, r, http.StatusUnauthorized, problem.CodeInvalidRefreshToken, "invalid refresh token", err, h.Env)
		return
	}
	metrics.AuthTokenRotations.WithLabelValues("rotated").Inc()

	h.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	})
}

// Logout revokes every refresh token for the authenticated user. Runs
// behind RequireAuth.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	scope := tenant.MustFromContext(r.Context())

	if err := h.Authority.RevokeAll(r.Context(), scope.UserID); err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "logout failed", err, h.Env)
		return
	}

	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	user, err := h.Users.VerifyEmail(r.Context(), token)
	if err != nil {
		if errors.Is(err, users.ErrInvalidVerifyToken) {
			problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "invalid verification token", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "verification failed", err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		EmailVerified: user.EmailVerified,
	})
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api/v1/auth",
		MaxAge:   int(h.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
