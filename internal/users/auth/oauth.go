// Copyright (c) 2026 Identra. All rights reserved.

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/identra/identra/internal/platform/apperr"
)

// # OAuth Providers

// Provider names accepted by the OAuth flows.
const (
	ProviderGoogle = "google"
	ProviderGithub = "github"
)

// ProviderIdentity is the normalized profile returned by an OAuth provider
// after a successful code exchange.
type ProviderIdentity struct {
	Provider    string
	ProviderID  string
	Email       string
	DisplayName string
	AvatarURL   string
}

// ProviderClient drives the authorization-code flow against a single
// OAuth provider.
type ProviderClient interface {
	// Name returns the provider identifier ("google", "github").
	Name() string

	// AuthURL builds the provider's authorization redirect URL for
	// the given anti-CSRF state value.
	AuthURL(state string) string

	// Exchange trades the callback code for the provider's normalized
	// identity profile.
	Exchange(ctx context.Context, code string) (*ProviderIdentity, error)
}

// # Google

type googleUserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleClient implements [ProviderClient] for Google Sign-In using the
// OpenID Connect userinfo endpoint.
type GoogleClient struct {
	config *oauth2.Config
}

// NewGoogleClient configures the Google authorization-code flow.
func NewGoogleClient(clientID, clientSecret, redirectURL string) *GoogleClient {
	return &GoogleClient{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

func (client *GoogleClient) Name() string { return ProviderGoogle }

func (client *GoogleClient) AuthURL(state string) string {
	return client.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (client *GoogleClient) Exchange(ctx context.Context, code string) (*ProviderIdentity, error) {
	token, err := client.config.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Unauthorized("OAuth code exchange failed").WithCause(err)
	}

	var info googleUserInfo
	if err := fetchJSON(ctx, client.config.Client(ctx, token), "https://openidconnect.googleapis.com/v1/userinfo", &info); err != nil {
		return nil, err
	}
	if info.Sub == "" {
		return nil, apperr.Unauthorized("OAuth provider returned no identity")
	}

	return &ProviderIdentity{
		Provider:    ProviderGoogle,
		ProviderID:  info.Sub,
		Email:       info.Email,
		DisplayName: info.Name,
		AvatarURL:   info.Picture,
	}, nil
}

// # GitHub

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GithubClient implements [ProviderClient] for GitHub OAuth apps.
type GithubClient struct {
	config *oauth2.Config
}

// NewGithubClient configures the GitHub authorization-code flow.
func NewGithubClient(clientID, clientSecret, redirectURL string) *GithubClient {
	return &GithubClient{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

func (client *GithubClient) Name() string { return ProviderGithub }

func (client *GithubClient) AuthURL(state string) string {
	return client.config.AuthCodeURL(state)
}

func (client *GithubClient) Exchange(ctx context.Context, code string) (*ProviderIdentity, error) {
	token, err := client.config.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Unauthorized("OAuth code exchange failed").WithCause(err)
	}

	httpClient := client.config.Client(ctx, token)

	var profile githubUser
	if err := fetchJSON(ctx, httpClient, "https://api.github.com/user", &profile); err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, apperr.Unauthorized("OAuth provider returned no identity")
	}

	// GitHub hides the email on the profile when the user marks it private;
	// the dedicated emails endpoint still lists it for the user:email scope.
	email := profile.Email
	if email == "" {
		email, err = client.primaryEmail(ctx, httpClient)
		if err != nil {
			return nil, err
		}
	}

	displayName := profile.Name
	if displayName == "" {
		displayName = profile.Login
	}

	return &ProviderIdentity{
		Provider:    ProviderGithub,
		ProviderID:  strconv.FormatInt(profile.ID, 10),
		Email:       email,
		DisplayName: displayName,
		AvatarURL:   profile.AvatarURL,
	}, nil
}

// primaryEmail returns the user's primary verified email address.
func (client *GithubClient) primaryEmail(ctx context.Context, httpClient *http.Client) (string, error) {
	var emails []githubEmail
	if err := fetchJSON(ctx, httpClient, "https://api.github.com/user/emails", &emails); err != nil {
		return "", err
	}
	for _, candidate := range emails {
		if candidate.Primary && candidate.Verified {
			return candidate.Email, nil
		}
	}
	return "", apperr.Unauthorized("OAuth provider returned no verified email")
}

// # Shared HTTP Plumbing

// fetchJSON performs an authenticated GET against a provider API and decodes
// the JSON body into target.
func fetchJSON(ctx context.Context, httpClient *http.Client, url string, target any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("oauth_request_build_failed: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := httpClient.Do(request)
	if err != nil {
		return apperr.ServiceUnavailable("OAuth provider is unreachable").WithCause(err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return apperr.Unauthorized(fmt.Sprintf("OAuth provider rejected the request (%d)", response.StatusCode))
	}

	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return fmt.Errorf("oauth_response_decode_failed: %w", err)
	}
	return nil
}
