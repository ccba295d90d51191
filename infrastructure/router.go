package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vitovidale/editia-orchestrator/logging"
)

// Pinger is satisfied by the SQL store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusReporter is satisfied by the event publishers.
type StatusReporter interface {
	Status() string
}

// HealthHandler reports database and broker connectivity.
type HealthHandler struct {
	DB     Pinger
	Events StatusReporter
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "connected"
	if err := h.DB.Ping(ctx); err != nil {
		dbStatus = fmt.Sprintf("error: %v", err)
	}
	rabbitMQStatus := "disabled"
	if h.Events != nil {
		rabbitMQStatus = h.Events.Status()
	}

	if dbStatus != "connected" || rabbitMQStatus == "disconnected" {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":   "DOWN",
			"database": dbStatus,
			"rabbitmq": rabbitMQStatus,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "UP",
		"database": dbStatus,
		"rabbitmq": rabbitMQStatus,
	})
}

// RouterDeps groups what NewRouter wires together.
type RouterDeps struct {
	Handlers *VideoHandlers
	Verifier *JWTVerifier
	Health   *HealthHandler
	Metrics  *Metrics
	Logger   *slog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Logger))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.GET("/health", deps.Health.Check)
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Editia orchestrator is running!"})
	})
	router.POST("/webhooks/render", deps.Handlers.RenderWebhookHandler)

	api := router.Group("/api")
	api.Use(AuthMiddleware(deps.Verifier))
	{
		api.GET("/prompts", deps.Handlers.ListPromptsHandler)
		api.POST("/videos/generate", deps.Handlers.GenerateVideoHandler)
		api.GET("/videos/requests", deps.Handlers.ListRequestsHandler)
		api.GET("/videos/requests/:id", deps.Handlers.RequestStatusHandler)
		api.GET("/scripts/:id", deps.Handlers.GetScriptHandler)
	}
	return router
}

// requestLogger writes one structured line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if uid := c.GetString(ContextUserIDKey); uid != "" {
			attrs = append(attrs, slog.String(logging.FieldUserID, uid))
		}
		logger.LogAttrs(c.Request.Context(), level, "http request", attrs...)
	}
}
