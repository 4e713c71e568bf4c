// Package vault reads GitHub App credentials from a HashiCorp Vault KV v2
// mount using AppRole authentication.
package vault

import (
	"fmt"
	"os"

	vault "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var logger zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger = log.With().Str("component", "vault").Logger()
}

// Client wraps an authenticated Vault API client.
type Client struct {
	client *vault.Client
}

// NewClient builds a Vault client and logs in with the AppRole credentials
// from VAULT_ROLE_ID and VAULT_SECRET_ID. VAULT_ADDR selects the server.
func NewClient() (*Client, error) {
	vaultAddr := os.Getenv("VAULT_ADDR")
	if vaultAddr == "" {
		vaultAddr = "http://127.0.0.1:8200"
		logger.Debug().Str("vault_addr", vaultAddr).Msg("Using default Vault address")
	}

	config := vault.DefaultConfig()
	config.Address = vaultAddr

	client, err := vault.NewClient(config)
	if err != nil {
		logger.Error().Err(err).Str("vault_addr", vaultAddr).Msg("Failed to create Vault client")
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	roleID := os.Getenv("VAULT_ROLE_ID")
	secretID := os.Getenv("VAULT_SECRET_ID")
	if roleID == "" || secretID == "" {
		logger.Error().
			Bool("role_id_set", roleID != "").
			Bool("secret_id_set", secretID != "").
			Msg("Required Vault credentials not set")
		return nil, fmt.Errorf("VAULT_ROLE_ID and VAULT_SECRET_ID must be set")
	}

	loginSecret, err := client.Logical().Write("auth/approle/login", map[string]interface{}{
		"role_id":   roleID,
		"secret_id": secretID,
	})
	if err != nil {
		logger.Error().
			Err(err).
			Str("role_id", maskString(roleID)).
			Str("vault_addr", vaultAddr).
			Msg("Failed to authenticate with Vault")
		return nil, fmt.Errorf("failed to login to vault: %w", err)
	}

	client.SetToken(loginSecret.Auth.ClientToken)
	logger.Info().Str("vault_addr", vaultAddr).Msg("Vault client initialized")
	return &Client{client: client}, nil
}

// GetSecret reads the KV v2 secret at kv/data/<path> and returns its data map.
func (c *Client) GetSecret(path string) (map[string]interface{}, error) {
	fullPath := fmt.Sprintf("kv/data/%s", path)

	secret, err := c.client.Logical().Read(fullPath)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to read secret from Vault")
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	if secret == nil || secret.Data == nil {
		logger.Warn().Str("path", path).Msg("Secret not found in Vault")
		return nil, fmt.Errorf("secret not found: %s", path)
	}

	// KV v2 nests the payload under "data".
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		logger.Error().Str("path", path).Msg("Invalid secret data format")
		return nil, fmt.Errorf("invalid secret data format")
	}

	logger.Debug().Str("path", path).Int("data_keys", len(data)).Msg("Secret retrieved")
	return data, nil
}

// maskString returns a masked version of a string for logging.
func maskString(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
