package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"benome-realtime/config"
	"benome-realtime/internal/handler"
	"benome-realtime/internal/middleware"
	"benome-realtime/internal/redis"
	"benome-realtime/internal/transport/httpdto"
	"benome-realtime/internal/websocket"
	"benome-realtime/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	Notification *handler.NotificationHandler
	Presence     *handler.PresenceHandler
	Attachment   *handler.AttachmentHandler
	WebSocket    *websocket.Handler
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker func(ctx context.Context) error

func New(cfg *config.Config, l *logger.Logger) *Server {
	switch cfg.App.Mode {
	case ReleaseMode:
		gin.SetMode(gin.ReleaseMode)
	case TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.App.Port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// SetupRoutes registers middleware and every route. limiter may be nil when
// Redis is disabled; rate limiting is then skipped.
func (s *Server) SetupRoutes(handlers *Handlers, auth middleware.Authenticator, limiter *redis.RateLimiter, checks map[string]HealthChecker) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.App.CORSOrigins))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "healthy"}
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(name+": "+err.Error(), "UNHEALTHY"))
				return
			}
			status[name] = "ok"
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(status))
	})

	ws := []gin.HandlerFunc{}
	if limiter != nil {
		ws = append(ws, middleware.WebSocketRateLimitMiddleware(limiter))
	}
	s.engine.GET("/ws", append(ws, handlers.WebSocket.Connect)...)

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(auth))
	{
		conversations := v1.Group("/conversations")
		conversations.GET("", handlers.Conversation.List)
		conversations.POST("", handlers.Conversation.Start)
		conversations.GET("/:id/messages", handlers.Message.History)
		if limiter != nil {
			conversations.POST("/:id/messages", middleware.MessageRateLimitMiddleware(limiter), handlers.Message.Send)
		} else {
			conversations.POST("/:id/messages", handlers.Message.Send)
		}

		notifications := v1.Group("/notifications")
		notifications.GET("", handlers.Notification.List)
		notifications.GET("/unread-count", handlers.Notification.UnreadCount)
		notifications.PUT("/read-all", handlers.Notification.MarkAllRead)
		notifications.PUT("/:id/read", handlers.Notification.MarkRead)

		v1.GET("/presence", handlers.Presence.Get)
		v1.POST("/attachments/presign", handlers.Attachment.Presign)
	}
}

// Start serves until ctx is cancelled, then shuts down within five seconds.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.App.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Errorf("Error in starting the server: %s", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
