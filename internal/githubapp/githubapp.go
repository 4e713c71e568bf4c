// Package githubapp exchanges GitHub App credentials for a short-lived
// installation access token. One call, one or two requests against the
// GitHub API, no state kept between invocations.
package githubapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v55/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github-oauth/internal/secret"
)

const (
	// DefaultAPIBaseURL is the public GitHub API endpoint.
	DefaultAPIBaseURL = "https://api.github.com"

	// App JWTs are capped at 10 minutes by GitHub; stay under the cap and
	// backdate iat to absorb clock skew.
	jwtLifetime  = 9 * time.Minute
	jwtClockSkew = time.Minute
)

// Scope selects whether the installation is resolved against a repository
// or an entire organization.
type Scope string

const (
	ScopeRepository   Scope = "repository"
	ScopeOrganization Scope = "organization"
)

// Credentials identifies the GitHub App. Both fields are secrets and stay
// redacted in logs and serialized output.
type Credentials struct {
	ApplicationID secret.Text `validate:"required"`
	PrivateKey    secret.Text `validate:"required"`
}

// Params is the full invocation contract for one token exchange.
type Params struct {
	Owner          string `validate:"required"`
	RepositoryName string `validate:"required_if=Scope repository"`
	Scope          Scope  `validate:"required,oneof=repository organization"`
	Credentials    Credentials
}

// Result is the outcome of a successful exchange. Changed is always false:
// minting a token mutates no managed resource.
type Result struct {
	Changed   bool
	Token     secret.Text
	ExpiresAt time.Time
}

// Client performs the exchange. The zero value is not usable; construct
// with New.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	validate   *validator.Validate
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a GitHub Enterprise Server or a test
// endpoint instead of api.github.com.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient replaces the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger attaches a logger. Only non-secret request metadata is logged.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates an exchange client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultAPIBaseURL,
		httpClient: http.DefaultClient,
		logger:     zerolog.Nop(),
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mint resolves the installation for the requested scope and exchanges it
// for an installation access token. Validation and key parsing happen
// before any network call; every failure aborts the invocation.
func (c *Client) Mint(ctx context.Context, params Params) (Result, error) {
	if params.Scope == "" {
		params.Scope = ScopeRepository
	}

	if err := c.validate.Struct(params); err != nil {
		return Result{}, opError("validate parameters", ErrValidation, err)
	}

	appJWT, err := signAppJWT(params.Credentials)
	if err != nil {
		return Result{}, err
	}

	gh, err := c.apiClient(ctx, appJWT)
	if err != nil {
		return Result{}, err
	}

	installation, err := c.findInstallation(ctx, gh, params)
	if err != nil {
		return Result{}, err
	}

	token, _, err := gh.Apps.CreateInstallationToken(ctx, installation.GetID(), nil)
	if err != nil {
		return Result{}, classify("create installation token", err)
	}

	c.logger.Debug().
		Int64("installation_id", installation.GetID()).
		Time("expires_at", token.GetExpiresAt().Time).
		Msg("Installation token issued")

	return Result{
		Changed:   false,
		Token:     secret.New(token.GetToken()),
		ExpiresAt: token.GetExpiresAt().Time,
	}, nil
}

// signAppJWT builds the RS256 application assertion GitHub expects:
// iss is the App ID, iat is backdated, exp stays under the 10-minute cap.
func signAppJWT(creds Credentials) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(creds.PrivateKey.Reveal()))
	if err != nil {
		return "", opError("parse private key", ErrValidation, err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Add(-jwtClockSkew).Unix(),
		"exp": now.Add(jwtLifetime).Unix(),
		"iss": creds.ApplicationID.Reveal(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", opError("sign app jwt", ErrAuthentication, err)
	}
	return signed, nil
}

// apiClient wires the app JWT into a go-github client via an oauth2 static
// token source, so both API calls carry the bearer assertion.
func (c *Client) apiClient(ctx context.Context, appJWT string) (*github.Client, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: appJWT, TokenType: "Bearer"})
	gh := github.NewClient(oauth2.NewClient(ctx, src))

	if c.baseURL != DefaultAPIBaseURL {
		base, err := url.Parse(strings.TrimSuffix(c.baseURL, "/") + "/")
		if err != nil {
			return nil, opError("parse api base url", ErrValidation, err)
		}
		gh.BaseURL = base
	}
	return gh, nil
}

func (c *Client) findInstallation(ctx context.Context, gh *github.Client, params Params) (*github.Installation, error) {
	if params.Scope == ScopeOrganization {
		installation, _, err := gh.Apps.FindOrganizationInstallation(ctx, params.Owner)
		if err != nil {
			return nil, classify(fmt.Sprintf("find installation for organization %s", params.Owner), err)
		}
		return installation, nil
	}

	installation, _, err := gh.Apps.FindRepositoryInstallation(ctx, params.Owner, params.RepositoryName)
	if err != nil {
		return nil, classify(fmt.Sprintf("find installation for repository %s/%s", params.Owner, params.RepositoryName), err)
	}
	return installation, nil
}

// classify maps a go-github error onto the failure taxonomy. 404 means the
// App is not installed on the target; 401 means the assertion was rejected.
func classify(op string, err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound:
			return opError(op, ErrInstallationNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return opError(op, ErrAuthentication, err)
		}
		return opError(op, ErrTransport, err)
	}
	return opError(op, ErrTransport, err)
}
