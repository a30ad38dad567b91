package httpserver

import (
	"context"
	"fmt"
	"time"

	"projectcompanion/config"
	"projectcompanion/internal/handler"
	"projectcompanion/pkg/metrics"
	"projectcompanion/pkg/mq"
	"projectcompanion/pkg/trace"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handlers bundles the route handlers the router mounts.
type Handlers struct {
	Project   *handler.ProjectHandler
	Milestone *handler.MilestoneHandler
	Task      *handler.TaskHandler
	Chat      *handler.ChatHandler
}

// NewRouter wires middleware, health endpoints and the API surface. db and
// publisher may be nil (file persistence, events disabled); readiness then
// skips those checks.
func NewRouter(h Handlers, cfg config.ServerConfig, logger *zap.Logger, db *pgxpool.Pool, publisher *mq.Publisher) *gin.Engine {
	r := gin.Default()

	r.Use(traceMiddleware())
	r.Use(corsMiddleware(cfg.CORSOrigins))

	// Request log middleware.
	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		metrics.RecordHTTPRequestDuration(c.Request.Method, c.FullPath(), fmt.Sprintf("%d", status), latency)
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("trace_id", trace.FromContext(c.Request.Context())),
		)
	})

	// Health endpoints.
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
				return
			}
		}
		if publisher != nil && !publisher.IsConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/projects", h.Project.ListProjects)
		api.POST("/projects", h.Project.CreateProject)
		api.GET("/projects/:id", h.Project.GetProject)
		api.PATCH("/projects/:id", h.Project.UpdateProject)
		api.DELETE("/projects/:id", h.Project.DeleteProject)
		api.GET("/projects/:id/progress", h.Project.GetProjectProgress)

		api.GET("/milestones", h.Milestone.ListMilestones)
		api.POST("/milestones", h.Milestone.CreateMilestone)
		api.GET("/milestones/:id", h.Milestone.GetMilestone)
		api.PATCH("/milestones/:id", h.Milestone.UpdateMilestone)
		api.DELETE("/milestones/:id", h.Milestone.DeleteMilestone)
		api.POST("/milestones/:id/toggle", h.Milestone.ToggleMilestoneComplete)

		api.GET("/tasks", h.Task.ListTasks)
		api.GET("/tasks/today", h.Task.ListTodayTasks)
		api.POST("/tasks", h.Task.CreateTask)
		api.GET("/tasks/:id", h.Task.GetTask)
		api.PATCH("/tasks/:id", h.Task.UpdateTask)
		api.DELETE("/tasks/:id", h.Task.DeleteTask)
		api.POST("/tasks/:id/complete", h.Task.CompleteTask)
		api.POST("/tasks/:id/uncomplete", h.Task.UncompleteTask)
		api.POST("/tasks/:id/toggle", h.Task.ToggleTaskComplete)

		api.POST("/chat", h.Chat.SendMessage)
		api.GET("/chat/history", h.Chat.GetHistory)
		api.DELETE("/chat/history", h.Chat.ClearHistory)
	}

	return r
}

// traceMiddleware takes the inbound trace id or generates one, and echoes it
// on the response.
func traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(trace.HeaderName())
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName(), traceID)
		c.Next()
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+trace.HeaderName())
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
