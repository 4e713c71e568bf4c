package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-oauth/internal/githubapp"
)

func testKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

// setInvocation resets flag globals and invocation env vars for one test.
func setInvocation(t *testing.T, flagOwner, flagRepository, flagScope string, flagVerify bool) {
	t.Helper()
	t.Cleanup(func() {
		owner, repositoryName, scope, apiBaseURL, appID, privateKeyFile = "", "", "", "", "", ""
		verify = false
	})
	for _, key := range []string{
		"GITHUB_OWNER", "GITHUB_REPOSITORY_NAME", "GITHUB_SCOPE",
		"GITHUB_API_BASE_URL", "GITHUB_APP_ID", "GITHUB_PRIVATE_KEY",
	} {
		t.Setenv(key, "")
	}
	owner = flagOwner
	repositoryName = flagRepository
	scope = flagScope
	verify = flagVerify
}

type apiStub struct {
	server       *httptest.Server
	repoLookups  atomic.Int64
	tokenCreates atomic.Int64
}

func newAPIStub(t *testing.T) *apiStub {
	t.Helper()
	s := &apiStub{}
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/installation", func(w http.ResponseWriter, r *http.Request) {
		s.repoLookups.Add(1)
		fmt.Fprint(w, `{"id": 42}`)
	})
	mux.HandleFunc("/app/installations/", func(w http.ResponseWriter, r *http.Request) {
		s.tokenCreates.Add(1)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"token": "ghs_abc123", "expires_at": "2026-08-30T12:00:00Z"}`)
	})
	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func TestBuildParamsDefaultsScope(t *testing.T) {
	setInvocation(t, "acme", "widgets", "", false)
	t.Setenv("GITHUB_APP_ID", "1")
	t.Setenv("GITHUB_PRIVATE_KEY", testKeyPEM(t))

	params, err := buildParams()
	require.NoError(t, err)
	assert.Equal(t, githubapp.ScopeRepository, params.Scope)
}

func TestRunDefaultScope(t *testing.T) {
	stub := newAPIStub(t)
	setInvocation(t, "acme", "widgets", "", false)
	t.Setenv("GITHUB_APP_ID", "1")
	t.Setenv("GITHUB_PRIVATE_KEY", testKeyPEM(t))
	apiBaseURL = stub.server.URL

	require.NoError(t, run(context.Background()))
	assert.EqualValues(t, 1, stub.repoLookups.Load())
	assert.EqualValues(t, 1, stub.tokenCreates.Load())
}

func TestRunVerifyWithDefaultScope(t *testing.T) {
	stub := newAPIStub(t)
	setInvocation(t, "acme", "widgets", "", true)
	t.Setenv("GITHUB_APP_ID", "1")
	t.Setenv("GITHUB_PRIVATE_KEY", testKeyPEM(t))
	apiBaseURL = stub.server.URL

	// The unset scope defaults to repository, so verification must run:
	// the token is minted and the failure, if any, comes from the ref
	// listing itself, never from scope rejection.
	err := run(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "requires repository scope")
	require.ErrorIs(t, err, githubapp.ErrVerificationFailed)
	assert.EqualValues(t, 1, stub.tokenCreates.Load(), "token must be minted before verification")
}

func TestRunVerifyRejectsOrganizationScopeBeforeMinting(t *testing.T) {
	stub := newAPIStub(t)
	setInvocation(t, "acme", "", "organization", true)
	t.Setenv("GITHUB_APP_ID", "1")
	t.Setenv("GITHUB_PRIVATE_KEY", testKeyPEM(t))
	apiBaseURL = stub.server.URL

	err := run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires repository scope")
	assert.EqualValues(t, 0, stub.tokenCreates.Load(), "scope rejection must precede the exchange")
}

func TestBuildParamsPrivateKeyFileBeatsEnv(t *testing.T) {
	setInvocation(t, "acme", "widgets", "", false)
	t.Setenv("GITHUB_APP_ID", "1")
	t.Setenv("GITHUB_PRIVATE_KEY", "pem-from-env")

	keyPath := filepath.Join(t.TempDir(), "app.pem")
	require.NoError(t, os.WriteFile(keyPath, []byte("pem-from-file"), 0o600))
	privateKeyFile = keyPath

	params, err := buildParams()
	require.NoError(t, err)
	assert.Equal(t, "pem-from-file", params.Credentials.PrivateKey.Reveal())
}

func TestBuildParamsPrivateKeyEnvFallback(t *testing.T) {
	setInvocation(t, "acme", "widgets", "", false)
	t.Setenv("GITHUB_APP_ID", "1")
	t.Setenv("GITHUB_PRIVATE_KEY", "pem-from-env")

	params, err := buildParams()
	require.NoError(t, err)
	assert.Equal(t, "pem-from-env", params.Credentials.PrivateKey.Reveal())
}
