package model

import "time"

// OAuthState is a single-use anti-CSRF token for the GitHub handshake.
//
// AccountID is set when a signed-in user starts the flow to connect GitHub to
// their existing account; it is empty for a plain "sign in with GitHub".
type OAuthState struct {
	State     string    `bson:"_id"`
	AccountID string    `bson:"account_id,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// Expired reports whether the state is past its expiry at the given instant.
func (s *OAuthState) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
