package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/samber/mo"

	"github.com/sakif/devpulse/internal/apperror"
	"github.com/sakif/devpulse/internal/auth"
	"github.com/sakif/devpulse/internal/github"
	"github.com/sakif/devpulse/internal/model"
	"github.com/sakif/devpulse/internal/validate"
)

// =========================================================================
// IN-MEMORY STORE
// =========================================================================
//
// memStore implements repository.AccountRepository and
// repository.OAuthStateRepository with maps. It enforces the same unique
// constraints as the real stores so conflict paths can be tested without a
// database.

type memStore struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
	states   map[string]*model.OAuthState
	nextID   int

	// failFind makes every Find* call fail, to simulate a broken store.
	failFind error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]*model.Account),
		states:   make(map[string]*model.OAuthState),
	}
}

func (m *memStore) CreateAccount(_ context.Context, account *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.accounts {
		if a.Email == account.Email {
			return apperror.DuplicateEmail(account.Email)
		}
		if account.GitHub != nil && a.GitHub != nil && a.GitHub.ID == account.GitHub.ID {
			return apperror.GitHubAlreadyLinked("github id taken")
		}
	}

	m.nextID++
	account.ID = fmt.Sprintf("acc-%d", m.nextID)
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	stored := *account
	m.accounts[account.ID] = &stored
	return nil
}

func (m *memStore) GetAccountByID(_ context.Context, id string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, apperror.NotFound("account", id)
	}
	return copyAccount(a), nil
}

func (m *memStore) FindAccountByEmail(_ context.Context, email string) (mo.Option[*model.Account], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failFind != nil {
		return mo.None[*model.Account](), m.failFind
	}
	for _, a := range m.accounts {
		if a.Email == email {
			return mo.Some(copyAccount(a)), nil
		}
	}
	return mo.None[*model.Account](), nil
}

func (m *memStore) FindAccountByGitHubID(_ context.Context, githubID int64) (mo.Option[*model.Account], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failFind != nil {
		return mo.None[*model.Account](), m.failFind
	}
	for _, a := range m.accounts {
		if a.GitHub != nil && a.GitHub.ID == githubID {
			return mo.Some(copyAccount(a)), nil
		}
	}
	return mo.None[*model.Account](), nil
}

func (m *memStore) LinkGitHub(_ context.Context, accountID string, identity model.GitHubIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[accountID]
	if !ok {
		return apperror.NotFound("account", accountID)
	}
	for id, other := range m.accounts {
		if id != accountID && other.GitHub != nil && other.GitHub.ID == identity.ID {
			return apperror.GitHubAlreadyLinked("github id taken")
		}
	}
	a.GitHub = &identity
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memStore) CreateState(_ context.Context, state *model.OAuthState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *state
	m.states[state.State] = &stored
	return nil
}

func (m *memStore) TakeState(_ context.Context, value string) (mo.Option[*model.OAuthState], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.states[value]
	if !ok {
		return mo.None[*model.OAuthState](), nil
	}
	delete(m.states, value)
	return mo.Some(s), nil
}

func (m *memStore) DeleteExpiredStates(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for k, s := range m.states {
		if s.Expired(now) {
			delete(m.states, k)
			n++
		}
	}
	return n, nil
}

func (m *memStore) accountCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

func copyAccount(a *model.Account) *model.Account {
	c := *a
	if a.GitHub != nil {
		gh := *a.GitHub
		c.GitHub = &gh
	}
	return &c
}

// =========================================================================
// GITHUB FAKES
// =========================================================================

type fakeProvider struct {
	token       string
	exchangeErr error
	codes       []string
}

func (p *fakeProvider) AuthURL(state string) string {
	return "https://github.example/authorize?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (string, error) {
	p.codes = append(p.codes, code)
	if p.exchangeErr != nil {
		return "", p.exchangeErr
	}
	return p.token, nil
}

type fakeProfiles struct {
	profile *github.Profile
	err     error
}

func (f *fakeProfiles) FetchProfile(_ context.Context, _ string) (*github.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := *f.profile
	return &p, nil
}

type fakeCommitSource struct {
	repos    []github.Repo
	commits  []model.Commit
	reposErr error
	fetchErr error

	gotRepos []github.Repo
	gotSince time.Time
	gotToken string
}

func (f *fakeCommitSource) ListRepos(_ context.Context, token string) ([]github.Repo, error) {
	f.gotToken = token
	if f.reposErr != nil {
		return nil, f.reposErr
	}
	return f.repos, nil
}

func (f *fakeCommitSource) RecentCommits(_ context.Context, _ string, repos []github.Repo, since time.Time) ([]model.Commit, error) {
	f.gotRepos = repos
	f.gotSince = since
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.commits, nil
}

// =========================================================================
// WIRING HELPERS
// =========================================================================

const testSecret = "service-test-secret-at-least-32-bytes!"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSessions(t *testing.T) *auth.SessionIssuer {
	t.Helper()
	tokens, err := auth.NewTokenService(testSecret, "devpulse-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() error: %v", err)
	}
	return auth.NewSessionIssuer(tokens, false)
}

func newTestAuthService(t *testing.T, store *memStore) *AuthService {
	t.Helper()
	v, err := validate.New()
	if err != nil {
		t.Fatalf("validate.New() error: %v", err)
	}
	return NewAuthService(store, newTestSessions(t), auth.NewPasswordServiceForTest(), v, discardLogger())
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error = %v (%T), want *apperror.AppError with code %q", err, err, code)
	}
	if appErr.Code != code {
		t.Errorf("code = %q, want %q", appErr.Code, code)
	}
}
