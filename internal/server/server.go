package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github-oauth/internal/config"
	"github-oauth/internal/githubapp"
	"github-oauth/internal/vault"
)

const shutdownTimeout = 10 * time.Second

// New assembles the token service: Vault-backed configuration, the exchange
// client, and the HTTP surface.
func New() (*Server, error) {
	vaultClient, err := vault.NewClient()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Vault client, falling back to environment variables")
	}

	var source config.SecretSource
	if vaultClient != nil {
		source = vaultClient
	}
	cfg, err := config.NewLoader().Load(source)
	if err != nil {
		return nil, err
	}

	exchanger := githubapp.New(
		githubapp.WithBaseURL(cfg.APIBaseURL),
		githubapp.WithLogger(log.With().Str("component", "githubapp").Logger()),
	)

	return NewWith(cfg, exchanger), nil
}

// NewWith wires a server around an existing configuration and exchanger.
func NewWith(cfg *config.Config, exchanger TokenExchanger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		Router:      gin.New(),
		Logger:      log.With().Str("component", "server").Logger(),
		RateLimiter: rate.NewLimiter(rate.Every(time.Second), cfg.RateLimit),
		Config:      cfg,
		Exchanger:   exchanger,
	}

	s.Router.Use(gin.Recovery(), s.requestID(), s.requestLog())
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: s.Router,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.Router.GET("/api/health", s.handleHealth)
	s.Router.POST("/api/token", s.handleToken)
}

// Start blocks serving requests until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.Logger.Info().Str("addr", s.httpServer.Addr).Msg("Token service listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// requestID tags every request so log lines correlate without echoing any
// request content.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Info().
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}
