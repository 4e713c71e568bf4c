package config

import (
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github-oauth/internal/secret"
)

// SecretSource is the part of the Vault client the loader depends on.
type SecretSource interface {
	GetSecret(path string) (map[string]interface{}, error)
}

// Loader assembles a Config from its sources.
type Loader struct {
	logger zerolog.Logger
}

// NewLoader creates a configuration loader.
func NewLoader() *Loader {
	return &Loader{
		logger: log.With().Str("component", "config").Logger(),
	}
}

// Load builds the service configuration: Vault first when available, then
// environment variables for anything unset, then defaults. A missing or
// unreachable Vault is not fatal; missing credentials are caught by Validate.
func (l *Loader) Load(source SecretSource) (*Config, error) {
	cfg := &Config{
		VaultPath: envOr("GITHUB_VAULT_PATH", defaultVaultPath),
	}

	if source != nil {
		l.loadFromVault(source, cfg)
	}
	l.loadFromEnv(cfg)
	l.setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) loadFromVault(source SecretSource, cfg *Config) {
	data, err := source.GetSecret(cfg.VaultPath)
	if err != nil {
		l.logger.Info().Err(err).Msg("GitHub App credentials not found in Vault, will use environment variables")
		return
	}

	if v, ok := data["application_id"].(string); ok && v != "" {
		cfg.ApplicationID = secret.New(v)
	}
	if v, ok := data["private_key"].(string); ok && v != "" {
		cfg.PrivateKey = secret.New(v)
	}
	if v, ok := data["api_base_url"].(string); ok && v != "" {
		cfg.APIBaseURL = v
	}
}

func (l *Loader) loadFromEnv(cfg *Config) {
	if cfg.ApplicationID.IsZero() {
		cfg.ApplicationID = secret.New(os.Getenv("GITHUB_APP_ID"))
	}
	if cfg.PrivateKey.IsZero() {
		cfg.PrivateKey = secret.New(os.Getenv("GITHUB_PRIVATE_KEY"))
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = os.Getenv("GITHUB_API_BASE_URL")
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = os.Getenv("PORT")
	}
	if cfg.RateLimit == 0 {
		if v, err := strconv.Atoi(os.Getenv("RATE_LIMIT_REQUESTS_PER_SECOND")); err == nil {
			cfg.RateLimit = v
		}
	}
}

func (l *Loader) setDefaults(cfg *Config) {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = defaultPort
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
