// Package model defines the data structures used throughout the application.
package model

import "time"

// Account represents a registered user account.
//
// An account is created either by email/password registration or by a first
// GitHub login. The two paths converge: a password account can later link a
// GitHub identity, and a GitHub-created account simply has no PasswordHash.
//
// WHY PasswordHash string (not *string)?
// An empty string already means "no password set" and bcrypt never produces
// an empty hash. The json:"-" tag keeps it out of every API response.
type Account struct {
	ID           string          `json:"id"              bson:"_id"`
	Email        string          `json:"email"           bson:"email"` // always lower-case
	FullName     string          `json:"fullName"        bson:"full_name"`
	PasswordHash string          `json:"-"               bson:"password_hash,omitempty"`
	GitHub       *GitHubIdentity `json:"github,omitempty" bson:"github,omitempty"`
	IsActive     bool            `json:"isActive"        bson:"is_active"`
	IsVerified   bool            `json:"isVerified"      bson:"is_verified"`
	CreatedAt    time.Time       `json:"createdAt"       bson:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt"       bson:"updated_at"`
}

// HasPassword reports whether the account can sign in with a password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// GitHubConnected reports whether a usable GitHub identity is linked.
func (a *Account) GitHubConnected() bool {
	return a.GitHub != nil && a.GitHub.AccessToken != ""
}

// GitHubIdentity is the GitHub account linked to an Account.
//
// ID is GitHub's numeric user ID: stable across username changes, and unique
// across all accounts in the store.
type GitHubIdentity struct {
	ID          int64     `json:"id"        bson:"id"`
	Username    string    `json:"username"  bson:"username"`
	AvatarURL   string    `json:"avatarUrl" bson:"avatar_url"`
	AccessToken string    `json:"-"         bson:"access_token"`
	LinkedAt    time.Time `json:"linkedAt"  bson:"linked_at"`
}
