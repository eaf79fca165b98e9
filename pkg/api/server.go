// Package api exposes the HTTP surface: task intake, step approval,
// clarifications, and read endpoints over plans, steps and messages.
package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with all routes registered. Every
// endpoint except health requires an authenticated user principal.
func NewRouter(h *Handler, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.GET("/api/health", h.handleHealth)

	authed := router.Group("/", requireUserPrincipal())
	{
		authed.POST("/input_task", h.handleInputTask)
		authed.POST("/human_feedback", h.handleHumanFeedback)
		authed.POST("/human_clarification_on_plan", h.handlePlanClarification)
		authed.POST("/approve_step_or_steps", h.handleApproveSteps)
		authed.GET("/plans", h.handleListPlans)
		authed.GET("/steps/:plan_id", h.handleListSteps)
		authed.GET("/agent_messages/:session_id", h.handleListAgentMessages)
		authed.GET("/messages", h.handleListMessages)
		authed.DELETE("/messages", h.handleDeleteMessages)
		authed.GET("/api/agent-tools", h.handleAgentTools)
	}
	return router
}

// requestLogger emits one structured line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
