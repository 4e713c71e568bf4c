package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github-oauth/internal/config"
	"github-oauth/internal/githubapp"
)

// TokenExchanger is the credential exchange the server fronts.
type TokenExchanger interface {
	Mint(ctx context.Context, params githubapp.Params) (githubapp.Result, error)
}

// Server represents the token API server and its dependencies.
type Server struct {
	Router      *gin.Engine
	Logger      zerolog.Logger
	RateLimiter *rate.Limiter
	Config      *config.Config
	Exchanger   TokenExchanger

	httpServer *http.Server
}

// TokenRequest is the POST /api/token body. App credentials are server-side
// configuration and never part of the request.
type TokenRequest struct {
	Owner          string `json:"owner" binding:"required"`
	RepositoryName string `json:"repository_name"`
	Scope          string `json:"scope" binding:"omitempty,oneof=repository organization"`
}

// TokenResponse mirrors the invocation result contract: changed is always
// false, the token is the sole artifact.
type TokenResponse struct {
	Changed   bool      `json:"changed"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse carries a failure message without secret material.
type ErrorResponse struct {
	Error string `json:"error"`
}
