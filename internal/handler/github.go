package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sakif/devpulse/internal/auth"
	"github.com/sakif/devpulse/internal/service"
)

// GitHubFlow is the OAuth handshake of service.GitHubLinker.
type GitHubFlow interface {
	BeginLogin(ctx context.Context, accountID string) (string, error)
	CompleteLogin(ctx context.Context, code, state string) (*service.AuthResult, error)
	AbandonLogin(ctx context.Context, state string) error
}

// GitHubHandler serves the two legs of the GitHub OAuth flow.
type GitHubHandler struct {
	flow        GitHubFlow
	sessions    *auth.SessionIssuer
	frontendURL string
	logger      *slog.Logger
}

// NewGitHubHandler creates a GitHubHandler. After a successful callback the
// browser is sent to frontendURL + "/dashboard".
func NewGitHubHandler(flow GitHubFlow, sessions *auth.SessionIssuer, frontendURL string, logger *slog.Logger) *GitHubHandler {
	return &GitHubHandler{
		flow:        flow,
		sessions:    sessions,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

// HandleLogin redirects to GitHub's authorization page.
//
// HTTP: GET /github/login → 307
//
// The route runs behind auth.OptionalAccount. When a session is present the
// issued state is bound to that account and the callback links GitHub onto
// it; otherwise the callback signs in (or signs up) by GitHub identity.
func (h *GitHubHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var accountID string
	if account, ok := auth.AccountFromContext(r.Context()); ok {
		accountID = account.ID
	}

	authURL, err := h.flow.BeginLogin(r.Context(), accountID)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// HandleCallback completes the flow GitHub redirected back to.
//
// HTTP: GET /github/callback?code=…&state=… → 303 to the dashboard
//
// Every callback consumes its state. If the user denied access on GitHub,
// the browser goes back to the frontend login page with the reason. Every
// other failure is a JSON error.
func (h *GitHubHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if denied := q.Get("error"); denied != "" {
		h.logger.Info("github authorization denied", slog.String("reason", denied))
		if err := h.flow.AbandonLogin(r.Context(), q.Get("state")); err != nil {
			h.logger.Warn("discarding oauth state failed", slog.String("error", err.Error()))
		}
		target := h.frontendURL + "/login?error=" + url.QueryEscape(denied)
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	res, err := h.flow.CompleteLogin(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("github sign-in completed", slog.String("accountID", res.Account.ID))

	h.sessions.SetCookies(w, res.Session)
	http.Redirect(w, r, h.frontendURL+"/dashboard", http.StatusSeeOther)
}

// HandleUnconfigured answers the /github routes when no OAuth client is
// configured.
func HandleUnconfigured(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
		Error:   "github_unavailable",
		Message: "GitHub sign-in is not configured on this server",
	})
}
