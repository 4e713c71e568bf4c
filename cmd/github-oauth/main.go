// Command github-oauth mints a GitHub App installation access token for a
// repository or an organization and prints the result as one JSON object on
// stdout, ready for consumption by the next pipeline step.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github-oauth/internal/githubapp"
	"github-oauth/internal/secret"
)

var (
	owner          string
	repositoryName string
	scope          string
	apiBaseURL     string
	appID          string
	privateKeyFile string
	verify         bool
)

func init() {
	flag.StringVar(&owner, "owner", "", "repository owner or organization name")
	flag.StringVar(&repositoryName, "repository", "", "repository name, required when scope is 'repository'")
	flag.StringVar(&scope, "scope", "", "installation scope: 'repository' (default) or 'organization'")
	flag.StringVar(&apiBaseURL, "api-base-url", "", "GitHub API base URL, for GitHub Enterprise Server")
	flag.StringVar(&appID, "app-id", "", "GitHub App ID (prefer the GITHUB_APP_ID environment variable)")
	flag.StringVar(&privateKeyFile, "private-key-file", "", "path to the App's PEM private key (or set GITHUB_PRIVATE_KEY)")
	flag.BoolVar(&verify, "verify", false, "after minting, verify the token by listing the repository's remote refs")
}

// result is the invocation output contract. The token is revealed here and
// nowhere else.
type result struct {
	Changed   bool      `json:"changed"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func main() {
	flag.Parse()

	// stdout carries the result JSON only; diagnostics go to stderr.
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := run(context.Background()); err != nil {
		log.Error().Err(err).Msg("Token exchange failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	params, err := buildParams()
	if err != nil {
		return err
	}
	if verify && params.Scope != githubapp.ScopeRepository {
		return fmt.Errorf("-verify requires repository scope")
	}

	var opts []githubapp.Option
	baseURL := fallback(apiBaseURL, "GITHUB_API_BASE_URL")
	if baseURL != "" {
		opts = append(opts, githubapp.WithBaseURL(baseURL))
	}
	opts = append(opts, githubapp.WithLogger(log.With().Str("component", "githubapp").Logger()))

	res, err := githubapp.New(opts...).Mint(ctx, params)
	if err != nil {
		return err
	}

	if verify {
		remoteURL := githubapp.CloneURL(gitHost(baseURL), params.Owner, params.RepositoryName)
		if err := githubapp.VerifyRepositoryAccess(remoteURL, res.Token); err != nil {
			return err
		}
		log.Info().Str("remote", remoteURL).Msg("Token verified against repository")
	}

	return json.NewEncoder(os.Stdout).Encode(result{
		Changed:   res.Changed,
		Token:     res.Token.Reveal(),
		ExpiresAt: res.ExpiresAt,
	})
}

func buildParams() (githubapp.Params, error) {
	// An explicit -private-key-file beats the environment, like every
	// other parameter.
	var keyPEM string
	if privateKeyFile != "" {
		raw, err := os.ReadFile(privateKeyFile)
		if err != nil {
			return githubapp.Params{}, fmt.Errorf("read private key file: %w", err)
		}
		keyPEM = string(raw)
	} else {
		keyPEM = os.Getenv("GITHUB_PRIVATE_KEY")
	}

	scopeValue := githubapp.Scope(fallback(scope, "GITHUB_SCOPE"))
	if scopeValue == "" {
		scopeValue = githubapp.ScopeRepository
	}

	return githubapp.Params{
		Owner:          fallback(owner, "GITHUB_OWNER"),
		RepositoryName: fallback(repositoryName, "GITHUB_REPOSITORY_NAME"),
		Scope:          scopeValue,
		Credentials: githubapp.Credentials{
			ApplicationID: secret.New(fallback(appID, "GITHUB_APP_ID")),
			PrivateKey:    secret.New(keyPEM),
		},
	}, nil
}

// fallback returns the flag value, or the environment variable when the
// flag was left empty.
func fallback(flagValue, envKey string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(envKey)
}

// gitHost derives the git remote host from the API base URL. The public
// API lives on api.github.com while repositories live on github.com; a
// GitHub Enterprise Server serves both from one host.
func gitHost(baseURL string) string {
	if baseURL == "" {
		return "github.com"
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || u.Host == "api.github.com" {
		return "github.com"
	}
	return u.Host
}
