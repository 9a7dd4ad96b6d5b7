package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/devpulse/internal/auth"
	"github.com/sakif/devpulse/internal/model"
	"github.com/sakif/devpulse/internal/service"
)

// Authenticator is the password side of service.AuthService.
type Authenticator interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error)
}

// AuthHandler serves registration, login, logout and the current-user view.
//
//   - HandleRegister → POST /auth/register
//   - HandleLogin    → POST /auth/login
//   - HandleLogout   → POST /auth/logout (session + CSRF)
//   - HandleMe       → GET  /auth/me     (session)
type AuthHandler struct {
	accounts Authenticator
	sessions *auth.SessionIssuer
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(accounts Authenticator, sessions *auth.SessionIssuer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		sessions: sessions,
		logger:   logger,
	}
}

// AccountResponse is the public view of an account. It never carries the
// password hash or the GitHub access token.
type AccountResponse struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	FullName        string  `json:"fullName"`
	GitHubConnected bool    `json:"githubConnected"`
	GitHubUsername  *string `json:"githubUsername"`
	AvatarURL       *string `json:"avatarUrl"`
}

// NewAccountResponse builds the public view of an account.
func NewAccountResponse(a *model.Account) AccountResponse {
	resp := AccountResponse{
		ID:              a.ID,
		Email:           a.Email,
		FullName:        a.FullName,
		GitHubConnected: a.GitHubConnected(),
	}
	if a.GitHub != nil {
		username := a.GitHub.Username
		resp.GitHubUsername = &username
		if a.GitHub.AvatarURL != "" {
			avatar := a.GitHub.AvatarURL
			resp.AvatarURL = &avatar
		}
	}
	return resp
}

type registerResponse struct {
	Success bool            `json:"success"`
	User    AccountResponse `json:"user"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// HandleRegister creates a password account and signs it in.
//
// HTTP: POST /auth/register {"email", "password", "fullName"} → 201
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, h.logger, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	h.sessions.SetCookies(w, res.Session)
	writeJSON(w, http.StatusCreated, registerResponse{
		Success: true,
		User:    NewAccountResponse(res.Account),
	})
}

// HandleLogin signs in with email and password.
//
// HTTP: POST /auth/login {"email", "password"} → 200 {"success": true}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, h.logger, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), in)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	h.sessions.SetCookies(w, res.Session)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// HandleLogout clears both session cookies.
//
// Sessions are stateless JWTs, so the token itself stays valid until it
// expires; without the cookie the browser can no longer send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if account, ok := auth.AccountFromContext(r.Context()); ok {
		h.logger.Info("account signed out", slog.String("accountID", account.ID))
	}
	h.sessions.ClearCookies(w)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// HandleMe returns the signed-in account. RequireAccount has already
// resolved it.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		WriteError(w, h.logger, errNoAccount)
		return
	}
	writeJSON(w, http.StatusOK, NewAccountResponse(account))
}
