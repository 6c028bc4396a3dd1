// Package api exposes the relay's administrative surface over HTTP:
// connected clients, ban management, kick, broadcast and redirect.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/peerwire/peerwire/pkg/server"
)

// Config holds API server configuration.
type Config struct {
	Port       int
	EnableCORS bool

	// APIKeys guards every endpoint when non-empty; requests must
	// present a key in the X-API-Key header.
	APIKeys map[string]bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default API server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP admin API in front of one relay.
type Server struct {
	relay      *server.Server
	router     *gin.Engine
	config     *Config
	httpServer *http.Server
}

// NewServer creates the admin API for the given relay.
func NewServer(relay *server.Server, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{
		relay:  relay,
		router: router,
		config: config,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	if s.config.EnableCORS {
		s.router.Use(CORSMiddleware())
	}
	if len(s.config.APIKeys) > 0 {
		s.router.Use(AuthMiddleware(s.config.APIKeys))
	}
	s.router.Use(LoggingMiddleware())
	s.router.Use(gin.Recovery())
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		clients := v1.Group("/clients")
		{
			clients.GET("", s.handleClients)
			clients.POST("/kick", s.handleKick)
		}

		bans := v1.Group("/bans")
		{
			bans.GET("", s.handleBans)
			bans.POST("", s.handleBan)
			bans.DELETE("", s.handleUnban)
		}

		messages := v1.Group("/messages")
		{
			messages.POST("/broadcast", s.handleBroadcast)
			messages.POST("/redirect", s.handleRedirect)
		}

		v1.GET("/status", s.handleStatus)
	}

	s.router.GET("/health", s.handleHealth)
}

// Router returns the underlying handler, used by tests.
func (s *Server) Router() http.Handler { return s.router }

// Start serves the API until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Admin API listening on port %d", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Admin API error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Stop shuts the API down without waiting for a context.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
