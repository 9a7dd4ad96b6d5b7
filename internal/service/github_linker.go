package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/devpulse/internal/apperror"
	"github.com/sakif/devpulse/internal/auth"
	"github.com/sakif/devpulse/internal/github"
	"github.com/sakif/devpulse/internal/model"
	"github.com/sakif/devpulse/internal/repository"
)

// OAuthProvider is the authorization-code side of GitHub.
// *auth.GitHubProvider satisfies it.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}

// ProfileFetcher reads the signed-in GitHub user. *github.Client satisfies it.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, token string) (*github.Profile, error)
}

// GitHubLinker runs the GitHub sign-in / connect flow.
type GitHubLinker struct {
	states   *StateManager
	provider OAuthProvider
	profiles ProfileFetcher
	accounts repository.AccountRepository
	sessions *auth.SessionIssuer
	now      func() time.Time
	logger   *slog.Logger
}

// NewGitHubLinker creates a GitHubLinker.
func NewGitHubLinker(
	states *StateManager,
	provider OAuthProvider,
	profiles ProfileFetcher,
	accounts repository.AccountRepository,
	sessions *auth.SessionIssuer,
	logger *slog.Logger,
) *GitHubLinker {
	return &GitHubLinker{
		states:   states,
		provider: provider,
		profiles: profiles,
		accounts: accounts,
		sessions: sessions,
		now:      time.Now,
		logger:   logger,
	}
}

// BeginLogin issues a state and returns the GitHub authorization URL.
// accountID is the signed-in account connecting GitHub, or "" for sign-in.
func (l *GitHubLinker) BeginLogin(ctx context.Context, accountID string) (string, error) {
	state, err := l.states.Issue(ctx, accountID)
	if err != nil {
		return "", err
	}
	return l.provider.AuthURL(state), nil
}

// CompleteLogin finishes the handshake started by BeginLogin.
//
// The state is consumed first, even when the code turns out to be missing,
// then the code is exchanged and the profile read. Nothing is written to the
// store until all three have succeeded.
func (l *GitHubLinker) CompleteLogin(ctx context.Context, code, state string) (*AuthResult, error) {
	st, err := l.states.Consume(ctx, state)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, apperror.ValidationFailed("code", "code is required")
	}

	token, err := l.provider.Exchange(ctx, code)
	if err != nil {
		l.logger.Warn("github code exchange failed", slog.String("error", err.Error()))
		return nil, apperror.OAuthExchange(err)
	}

	profile, err := l.profiles.FetchProfile(ctx, token)
	if err != nil {
		l.logger.Warn("github profile fetch failed", slog.String("error", err.Error()))
		return nil, apperror.OAuthExchange(err)
	}

	identity := model.GitHubIdentity{
		ID:          profile.ID,
		Username:    profile.Login,
		AvatarURL:   profile.AvatarURL,
		AccessToken: token,
		LinkedAt:    l.now().UTC(),
	}

	account, err := l.reconcile(ctx, st.AccountID, profile, identity)
	if err != nil {
		return nil, err
	}

	session, err := l.sessions.Issue(account)
	if err != nil {
		return nil, fmt.Errorf("service/github: issuing session for %s: %w", account.ID, err)
	}
	return &AuthResult{Account: account, Session: session}, nil
}

// AbandonLogin burns the state of a handshake the user declined on GitHub.
// An unknown or expired state is not an error here.
func (l *GitHubLinker) AbandonLogin(ctx context.Context, state string) error {
	if _, err := l.states.Consume(ctx, state); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil
		}
		return err
	}
	return nil
}

// reconcile resolves the GitHub identity to an account. The lookups run in a
// fixed order and the first match wins:
//
//  1. an account already linked to this GitHub id
//  2. the signed-in account that started the flow
//  3. an account whose email equals the verified GitHub email
//  4. a new account
func (l *GitHubLinker) reconcile(
	ctx context.Context,
	boundAccountID string,
	profile *github.Profile,
	identity model.GitHubIdentity,
) (*model.Account, error) {
	// 1. Already linked.
	linked, err := l.accounts.FindAccountByGitHubID(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("service/github: finding account by github id: %w", err)
	}
	if linked.IsPresent() {
		account := linked.MustGet()
		if boundAccountID != "" && boundAccountID != account.ID {
			return nil, apperror.GitHubAlreadyLinked("this GitHub account is already linked to another account")
		}
		if account.GitHub != nil && !account.GitHub.LinkedAt.IsZero() {
			identity.LinkedAt = account.GitHub.LinkedAt
		}
		return l.link(ctx, account, identity, "refreshed")
	}

	// 2. Connect flow started by a signed-in account.
	if boundAccountID != "" {
		account, err := l.accounts.GetAccountByID(ctx, boundAccountID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return nil, apperror.AccountNotFound()
			}
			return nil, fmt.Errorf("service/github: loading bound account: %w", err)
		}
		if err := checkNotLinkedElsewhere(account, profile.ID); err != nil {
			return nil, err
		}
		return l.link(ctx, account, identity, "connected")
	}

	// 3. Same verified email.
	if profile.VerifiedEmail != "" {
		byEmail, err := l.accounts.FindAccountByEmail(ctx, NormalizeEmail(profile.VerifiedEmail))
		if err != nil {
			return nil, fmt.Errorf("service/github: finding account by email: %w", err)
		}
		if byEmail.IsPresent() {
			account := byEmail.MustGet()
			if err := checkNotLinkedElsewhere(account, profile.ID); err != nil {
				return nil, err
			}
			return l.link(ctx, account, identity, "linked by email")
		}
	}

	// 4. New account.
	email := NormalizeEmail(profile.VerifiedEmail)
	if email == "" {
		email = PlaceholderEmail(profile.ID)
	}
	account := &model.Account{
		Email:      email,
		FullName:   profile.Login,
		GitHub:     &identity,
		IsActive:   true,
		IsVerified: true,
	}
	if err := l.accounts.CreateAccount(ctx, account); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("service/github: creating account: %w", err)
	}

	l.logger.Info("account created from github",
		slog.String("accountID", account.ID),
		slog.Int64("githubID", profile.ID),
	)
	return account, nil
}

func (l *GitHubLinker) link(ctx context.Context, account *model.Account, identity model.GitHubIdentity, how string) (*model.Account, error) {
	if err := l.accounts.LinkGitHub(ctx, account.ID, identity); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("service/github: linking account %s: %w", account.ID, err)
	}
	account.GitHub = &identity

	l.logger.Info("github identity "+how,
		slog.String("accountID", account.ID),
		slog.Int64("githubID", identity.ID),
	)
	return account, nil
}

// checkNotLinkedElsewhere rejects linking onto an account that already holds
// a different GitHub identity.
func checkNotLinkedElsewhere(account *model.Account, githubID int64) error {
	if account.GitHub != nil && account.GitHub.ID != githubID {
		return apperror.GitHubAlreadyLinked("this account is already linked to a different GitHub account")
	}
	return nil
}

// PlaceholderEmail is the address given to a GitHub-created account whose
// GitHub profile has no verified email.
func PlaceholderEmail(githubID int64) string {
	return fmt.Sprintf("%d@users.noreply.github.com", githubID)
}
