package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Profile is the identity the linker needs from GitHub.
type Profile struct {
	ID        int64
	Login     string
	AvatarURL string
	// VerifiedEmail is empty when the user has no verified address.
	VerifiedEmail string
}

type userResponse struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// EmailEntry is one element of the /user/emails payload.
//
// GitHub documents an array of objects, but some tokens and proxies answer
// with bare strings. A bare string is kept (Bare = true) but never counts as
// verified.
type EmailEntry struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
	Bare     bool   `json:"-"`
}

// UnmarshalJSON accepts either an email object or a bare string.
func (e *EmailEntry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*e = EmailEntry{Email: s, Bare: true}
		return nil
	}

	type plain EmailEntry
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*e = EmailEntry(p)
	return nil
}

// SelectVerifiedEmail picks the primary verified object entry, else the
// first verified object entry, else "".
func SelectVerifiedEmail(entries []EmailEntry) string {
	first := ""
	for _, e := range entries {
		if e.Bare || !e.Verified || e.Email == "" {
			continue
		}
		if e.Primary {
			return e.Email
		}
		if first == "" {
			first = e.Email
		}
	}
	return first
}

// FetchProfile reads /user and /user/emails. Both must succeed.
func (c *Client) FetchProfile(ctx context.Context, token string) (*Profile, error) {
	var user userResponse
	if err := c.get(ctx, token, "/user", nil, &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("github: /user returned no id")
	}

	var emails []EmailEntry
	if err := c.get(ctx, token, "/user/emails", nil, &emails); err != nil {
		return nil, err
	}

	return &Profile{
		ID:            user.ID,
		Login:         user.Login,
		AvatarURL:     user.AvatarURL,
		VerifiedEmail: SelectVerifiedEmail(emails),
	}, nil
}
