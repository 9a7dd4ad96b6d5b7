package auth

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/sakif/devpulse/internal/apperror"
	"github.com/sakif/devpulse/internal/model"
)

// contextKey is unexported so no other package can read or shadow the
// account stored in a request context.
type contextKey string

const accountKey contextKey = "account"

// AccountLoader resolves a session token to its account.
// service.AuthService.CurrentAccount satisfies it.
type AccountLoader interface {
	CurrentAccount(ctx context.Context, token string) (*model.Account, error)
}

// ErrorWriter renders an error response. The handler package supplies it so
// this package stays free of response formatting.
type ErrorWriter func(w http.ResponseWriter, err error)

// RequireAccount rejects the request unless the session cookie resolves to a
// live account, which is then stored in the request context.
//
// A missing cookie is passed to the loader as an empty token, so every
// failure (unauthenticated, invalid_token, account_not_found) is classified
// in one place.
func RequireAccount(loader AccountLoader, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, err := loader.CurrentAccount(r.Context(), SessionToken(r))
			if err != nil {
				writeErr(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
		})
	}
}

// OptionalAccount attaches the account when a valid session is present and
// otherwise lets the request through anonymously. GET /github/login uses it
// to tell "sign in with GitHub" from "connect GitHub to my account".
func OptionalAccount(loader AccountLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := SessionToken(r); token != "" {
				if account, err := loader.CurrentAccount(r.Context(), token); err == nil {
					r = r.WithContext(WithAccount(r.Context(), account))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCSRF rejects requests whose X-CSRF-Token header does not equal the
// csrf_token cookie. Both must be present and non-empty.
func RequireCSRF(writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !csrfMatches(r) {
				writeErr(w, apperror.CSRFMismatch())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithAccount returns a copy of ctx carrying the account.
func WithAccount(ctx context.Context, account *model.Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

// AccountFromContext returns the account stored by RequireAccount or
// OptionalAccount, or (nil, false) for an anonymous request.
func AccountFromContext(ctx context.Context) (*model.Account, bool) {
	account, ok := ctx.Value(accountKey).(*model.Account)
	return account, ok && account != nil
}

// SessionToken returns the session cookie value, or "" when absent.
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func csrfMatches(r *http.Request) bool {
	header := r.Header.Get(CSRFHeader)
	cookie, err := r.Cookie(CSRFCookie)
	if err != nil || header == "" || cookie.Value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) == 1
}
