// Package api hosts the HTTP surface: the messaging webhook and the
// admin dashboard API.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/leadline/internal/api/auth"
	"github.com/leadline/internal/store"
)

// LeadReader is the read-only lead lookup the admin API needs beyond
// the lifecycle service.
type LeadReader interface {
	FindByID(ctx context.Context, id int64) (*store.Lead, error)
}

// ConversationReader looks up conversations for the admin API.
type ConversationReader interface {
	FindByID(ctx context.Context, id int64) (*store.Conversation, error)
}

// Server represents the API server
type Server struct {
	echo *echo.Echo
	port int

	webhook   *WebhookHandler
	sessions  SessionResolver
	messages  MessageStore
	leads     LeadService
	leadStore LeadReader
	convStore ConversationReader
	scheduler Scheduler

	authHandlers *auth.Handlers
	tokens       *auth.TokenService
}

// ServerConfig carries the dependencies for NewServer.
type ServerConfig struct {
	Port         int
	Webhook      *WebhookHandler
	Sessions     SessionResolver
	Messages     MessageStore
	Leads        LeadService
	LeadStore    LeadReader
	ConvStore    ConversationReader
	Scheduler    Scheduler
	AuthHandlers *auth.Handlers
	Tokens       *auth.TokenService

	// Webhook deliveries per second per remote IP.
	WebhookRateLimit float64
}

// NewServer creates a new API server
func NewServer(cfg ServerConfig) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:         e,
		port:         cfg.Port,
		webhook:      cfg.Webhook,
		sessions:     cfg.Sessions,
		messages:     cfg.Messages,
		leads:        cfg.Leads,
		leadStore:    cfg.LeadStore,
		convStore:    cfg.ConvStore,
		scheduler:    cfg.Scheduler,
		authHandlers: cfg.AuthHandlers,
		tokens:       cfg.Tokens,
	}

	server.setupRoutes(cfg.WebhookRateLimit)

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes(webhookRateLimit float64) {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	// Webhook endpoints
	if webhookRateLimit <= 0 {
		webhookRateLimit = 20
	}
	limiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(webhookRateLimit)),
	})
	s.echo.GET("/webhook", s.webhook.Verify)
	s.echo.POST("/webhook", s.webhook.Receive, limiter)

	// API v1 group
	v1 := s.echo.Group("/api/v1")
	v1.POST("/auth/login", s.authHandlers.Login)

	protected := v1.Group("", auth.RequireAuth(s.tokens))
	protected.GET("/leads", s.getLeads)
	protected.PATCH("/leads/:id/status", s.updateLeadStatus)
	protected.POST("/leads/:id/notes", s.addLeadNote)
	protected.POST("/leads/:id/followup", s.scheduleLeadFollowUp)
	protected.GET("/conversations/:id/messages", s.getConversationMessages)
	protected.POST("/conversations/:id/close", s.closeConversation)
}

// Start begins the API server and blocks until an interrupt, then shuts
// down gracefully.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}
