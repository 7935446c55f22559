// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package gh provides a rate-limit aware client for the GitHub REST API,
// including the token oracle that mints App installation tokens.
package gh

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v63/github"
	"golang.org/x/oauth2"

	"github.com/mindersec/ghmirror/internal/config"
)

// ClientFactory mints GitHub API clients. Installation clients carry an
// App installation token (refreshed and cached by the ghinstallation
// transport); token clients carry a user OAuth token and are used for
// mutations attributed to that user.
type ClientFactory struct {
	cfg config.GitHubConfig
}

// NewClientFactory creates a ClientFactory from the GitHub section of the
// service configuration.
func NewClientFactory(cfg config.GitHubConfig) *ClientFactory {
	return &ClientFactory{cfg: cfg}
}

// ForInstallation returns a client authenticated as the given App
// installation. The underlying transport caches the installation token
// and refreshes it before expiry.
func (f *ClientFactory) ForInstallation(installationID int64) (*Client, error) {
	if !f.cfg.HasAppCredentials() {
		return nil, fmt.Errorf("no App credentials configured: %w", ErrNotAuthenticated)
	}

	key, err := f.cfg.GetPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("reading App private key: %w", err)
	}

	itr, err := ghinstallation.New(http.DefaultTransport, f.cfg.AppID, installationID, key)
	if err != nil {
		return nil, fmt.Errorf("creating installation transport: %w", err)
	}

	return f.wrap(&http.Client{Transport: itr})
}

// ForToken returns a client authenticated with the given OAuth or
// personal access token.
func (f *ClientFactory) ForToken(ctx context.Context, token string) (*Client, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	tc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	return f.wrap(tc)
}

// Default returns a client using the statically configured token. It is
// the fallback for bootstrap and reconciliation when no installation is
// recorded for a repository.
func (f *ClientFactory) Default(ctx context.Context) (*Client, error) {
	return f.ForToken(ctx, f.cfg.Token)
}

func (f *ClientFactory) wrap(hc *http.Client) (*Client, error) {
	ghClient := gogithub.NewClient(hc)

	if f.cfg.Endpoint != "" {
		parsedURL, err := url.Parse(f.cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("error parsing endpoint URL: %w", err)
		}
		ghClient.BaseURL = parsedURL
	}

	return &Client{client: ghClient}, nil
}

// Client is a thin wrapper over the go-github client that translates
// GitHub API failures into the package's error taxonomy.
type Client struct {
	client *gogithub.Client
}

// NewClientFromGitHub wraps an already-constructed go-github client.
// Tests use this with an httptest server-backed client.
func NewClientFromGitHub(ghClient *gogithub.Client) *Client {
	return &Client{client: ghClient}
}

// GetBaseURL returns the base URL for the REST API.
func (c *Client) GetBaseURL() string {
	return c.client.BaseURL.String()
}
