package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/sakif/devpulse/internal/model"
)

// Cookie and header names shared with the frontend.
const (
	SessionCookie = "session"
	CSRFCookie    = "csrf_token"
	CSRFHeader    = "X-CSRF-Token"
)

// Session is what a successful login, registration or OAuth callback yields.
// Token and CSRFToken are always issued together.
type Session struct {
	Token     string
	CSRFToken string
	ExpiresAt time.Time
}

// SessionIssuer mints sessions and writes them as cookies.
type SessionIssuer struct {
	tokens       *TokenService
	cookieSecure bool
}

// NewSessionIssuer creates a SessionIssuer. cookieSecure sets the Secure
// attribute; it must be true whenever the site is served over HTTPS.
func NewSessionIssuer(tokens *TokenService, cookieSecure bool) *SessionIssuer {
	return &SessionIssuer{tokens: tokens, cookieSecure: cookieSecure}
}

// Issue signs a session JWT for the account and pairs it with a fresh
// anti-forgery token.
func (i *SessionIssuer) Issue(account *model.Account) (*Session, error) {
	token, expiresAt, err := i.tokens.Generate(account.ID, account.Email)
	if err != nil {
		return nil, err
	}

	csrf, err := RandomToken(32)
	if err != nil {
		return nil, fmt.Errorf("auth: generating csrf token: %w", err)
	}

	return &Session{Token: token, CSRFToken: csrf, ExpiresAt: expiresAt}, nil
}

// Verify checks a session token and returns its claims.
func (i *SessionIssuer) Verify(token string) (*Claims, error) {
	return i.tokens.Validate(token)
}

// SetCookies writes both session cookies. They expire with the JWT.
func (i *SessionIssuer) SetCookies(w http.ResponseWriter, s *Session) {
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   i.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookie,
		Value:    s.CSRFToken,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   maxAge,
		HttpOnly: false, // the frontend reads it and echoes it in CSRFHeader
		Secure:   i.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookies expires both session cookies.
func (i *SessionIssuer) ClearCookies(w http.ResponseWriter) {
	for _, name := range []string{SessionCookie, CSRFCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: name == SessionCookie,
			Secure:   i.cookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// RandomToken returns n random bytes, hex encoded.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
