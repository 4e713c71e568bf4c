// Package config loads the token service configuration. Values come from
// Vault first, then environment variables, then defaults.
package config

import (
	"fmt"
	"strconv"

	"github-oauth/internal/secret"
)

const (
	defaultPort       = "8080"
	defaultAPIBaseURL = "https://api.github.com"
	defaultRateLimit  = 10
	defaultVaultPath  = "github-oauth/app"
)

// Config holds everything the token service needs to run.
type Config struct {
	// ApplicationID is the GitHub App ID. Secret, never logged.
	ApplicationID secret.Text
	// PrivateKey is the App's PEM-encoded RSA private key. Secret, never logged.
	PrivateKey secret.Text
	// APIBaseURL is the GitHub API endpoint, overridable for GHES.
	APIBaseURL string
	// ServerPort is the HTTP listen port.
	ServerPort string
	// RateLimit caps token requests per second.
	RateLimit int
	// VaultPath is the KV v2 path holding application_id and private_key.
	VaultPath string
}

// Validate checks that the loaded configuration can serve token requests.
func (c *Config) Validate() error {
	if c.ApplicationID.IsZero() {
		return fmt.Errorf("github app id is not configured")
	}
	if c.PrivateKey.IsZero() {
		return fmt.Errorf("github app private key is not configured")
	}
	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		return fmt.Errorf("invalid port %q: %w", c.ServerPort, err)
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("rate limit must be at least 1, got %d", c.RateLimit)
	}
	return nil
}
