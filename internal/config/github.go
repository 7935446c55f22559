// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GitHubConfig is the configuration for the GitHub App that backs the mirror.
type GitHubConfig struct {
	// AppName is the name of the GitHub App
	AppName string `mapstructure:"app_name" default:""`
	// AppID is the ID of the GitHub App
	AppID int64 `mapstructure:"app_id" default:"0"`
	// PrivateKey is the App's private key in PEM format
	PrivateKey string `mapstructure:"private_key" default:""`
	// PrivateKeyFile is the location of the file containing the App's private key
	PrivateKeyFile string `mapstructure:"private_key_file" default:""`
	// WebhookSecret is the secret used to verify webhook signatures
	WebhookSecret string `mapstructure:"webhook_secret" default:""`
	// WebhookSecretFile is the location of the file containing the webhook secret
	WebhookSecretFile string `mapstructure:"webhook_secret_file" default:""`
	// Token is a personal access token used instead of App credentials,
	// mostly for local development
	Token string `mapstructure:"token" default:""`
	// Endpoint is the base URL of the GitHub API, for GitHub Enterprise Server
	Endpoint string `mapstructure:"endpoint" default:""`
}

// GetPrivateKey returns the App's private key in PEM format.
func (c *GitHubConfig) GetPrivateKey() ([]byte, error) {
	if c.PrivateKeyFile != "" {
		data, err := os.ReadFile(filepath.Clean(c.PrivateKeyFile))
		if err != nil {
			return nil, fmt.Errorf("failed to read private key from file: %w", err)
		}
		return data, nil
	}
	if c.PrivateKey == "" {
		return nil, fmt.Errorf("no GitHub App private key configured")
	}
	return []byte(c.PrivateKey), nil
}

// GetWebhookSecret returns the GitHub App's webhook secret.
func (c *GitHubConfig) GetWebhookSecret() (string, error) {
	return fileOrArg(c.WebhookSecretFile, c.WebhookSecret, "webhook secret")
}

// HasAppCredentials reports whether App authentication is configured.
func (c *GitHubConfig) HasAppCredentials() bool {
	return c.AppID != 0 && (c.PrivateKey != "" || c.PrivateKeyFile != "")
}

// fileOrArg returns the contents of the file at path when set, otherwise the
// literal argument.
func fileOrArg(path, arg, desc string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return "", fmt.Errorf("failed to read %s from file: %w", desc, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return arg, nil
}
