package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github-oauth/internal/githubapp"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// handleToken performs one credential exchange per request. The request
// names the scope target; the App identity comes from server configuration.
func (s *Server) handleToken(c *gin.Context) {
	if !s.RateLimiter.Allow() {
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})
		return
	}

	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	params := githubapp.Params{
		Owner:          req.Owner,
		RepositoryName: req.RepositoryName,
		Scope:          githubapp.Scope(req.Scope),
		Credentials: githubapp.Credentials{
			ApplicationID: s.Config.ApplicationID,
			PrivateKey:    s.Config.PrivateKey,
		},
	}

	result, err := s.Exchanger.Mint(c.Request.Context(), params)
	if err != nil {
		status := statusFor(err)
		s.Logger.Error().
			Str("request_id", c.GetString("request_id")).
			Str("owner", req.Owner).
			Str("scope", req.Scope).
			Int("status", status).
			Err(err).
			Msg("Token exchange failed")
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		Changed:   result.Changed,
		Token:     result.Token.Reveal(),
		ExpiresAt: result.ExpiresAt,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, githubapp.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, githubapp.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, githubapp.ErrInstallationNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}
