package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collabchat/internal/config"
	"collabchat/internal/handler"
	"collabchat/internal/middleware"
	"collabchat/internal/redis"
	"collabchat/internal/services"
	"collabchat/internal/transport/httpdto"
	"collabchat/internal/websocket"
	"collabchat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

// Handlers groups everything SetupRoutes mounts.
type Handlers struct {
	Conversations *handler.ConversationHandler
	Messages      *handler.MessageHandler
	Gateway       *websocket.Handler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.Server.Environment == "test" {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, auth *services.AuthService, limiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	// The gateway authenticates via token query param on upgrade, so it
	// sits outside the bearer-token middleware chain.
	s.engine.GET("/ws", handlers.Gateway.Connect)

	v1 := s.engine.Group("/api/v1", middleware.AuthMiddleware(auth))
	{
		conversations := v1.Group("/conversations")
		conversations.POST("", handlers.Conversations.Start)
		conversations.GET("", handlers.Conversations.List)
		conversations.GET("/:conversationId", handlers.Conversations.GetByID)
		conversations.POST("/:conversationId/read", handlers.Conversations.MarkRead)
		conversations.GET("/:conversationId/messages", handlers.Messages.List)
		conversations.POST("/:conversationId/messages", middleware.RateLimitMiddleware(limiter), handlers.Messages.Send)
	}
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully with a 5 second drain.
func (s *Server) Start() error {
	go func() {
		s.logger.Infof("starting server on port %s", s.config.Server.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("server error: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	s.logger.Infof("shutdown signal received, draining")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Errorf("graceful shutdown failed: %s", err)
		return err
	}

	s.logger.Infof("server stopped")
	return nil
}
