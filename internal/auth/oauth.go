package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubScopes are requested on every authorization:
//
//	read:user   profile (id, login, avatar)
//	user:email  the /user/emails listing, including private addresses
//	repo        commit history of private repositories for the dashboard
var GitHubScopes = []string{"read:user", "user:email", "repo"}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub authorization
// code flow. It only deals with the token endpoint; profile and commit reads
// live in the github package.
type GitHubProvider struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// ProviderOption customizes a GitHubProvider.
type ProviderOption func(*GitHubProvider)

// WithEndpoint overrides GitHub's authorize and token URLs. Tests point it
// at an httptest server.
func WithEndpoint(endpoint oauth2.Endpoint) ProviderOption {
	return func(p *GitHubProvider) {
		p.config.Endpoint = endpoint
	}
}

// WithHTTPClient sets the client used for the token exchange, typically to
// apply the outbound request timeout.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *GitHubProvider) {
		p.httpClient = c
	}
}

// NewGitHubProvider creates a GitHubProvider. redirectURL must match the
// "Authorization callback URL" registered for the OAuth App exactly.
func NewGitHubProvider(clientID, clientSecret, redirectURL string, opts ...ProviderOption) *GitHubProvider {
	p := &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       GitHubScopes,
			Endpoint:     github.Endpoint,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuthURL returns the GitHub authorization URL carrying the given state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for an access token. GitHub answers
// a bad code with HTTP 200 and an "error" field; x/oauth2 surfaces that as
// an error, and an empty token is treated the same way.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", errors.New("auth: missing authorization code")
	}
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	if token.AccessToken == "" {
		return "", errors.New("auth: token endpoint returned no access token")
	}

	return token.AccessToken, nil
}
