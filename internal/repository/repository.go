// Package repository declares the storage interfaces of the credential store.
//
// Two implementations exist: repository/mongodb (the default document store)
// and repository/sqlite (embedded, used for local development and tests).
// Services only ever see these interfaces.
//
// "MAYBE" LOOKUPS:
// Finders that may legitimately match nothing return mo.Option instead of an
// error, so callers can walk an ordered lookup chain without inspecting error
// types. Lookups that must succeed (GetAccountByID) return apperror.NotFound.
package repository

import (
	"context"
	"time"

	"github.com/samber/mo"

	"github.com/sakif/devpulse/internal/model"
)

// AccountRepository stores user accounts.
//
// Emails are passed in already normalized (trimmed, lower-case); the store
// still enforces uniqueness with an index and reports a collision as
// apperror.DuplicateEmail. GitHub provider ids are unique as well.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	FindAccountByEmail(ctx context.Context, email string) (mo.Option[*model.Account], error)
	FindAccountByGitHubID(ctx context.Context, githubID int64) (mo.Option[*model.Account], error)
	// LinkGitHub sets (or refreshes) the GitHub identity of an account.
	LinkGitHub(ctx context.Context, accountID string, identity model.GitHubIdentity) error
}

// OAuthStateRepository stores pending OAuth handshakes.
type OAuthStateRepository interface {
	CreateState(ctx context.Context, state *model.OAuthState) error
	// TakeState atomically finds and deletes a state. A second call for the
	// same value always returns mo.None.
	TakeState(ctx context.Context, state string) (mo.Option[*model.OAuthState], error)
	DeleteExpiredStates(ctx context.Context, now time.Time) (int64, error)
}

// Store bundles both repositories behind one closable handle.
type Store interface {
	AccountRepository
	OAuthStateRepository
	Close() error
}
