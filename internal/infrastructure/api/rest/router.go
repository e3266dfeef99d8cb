// Package rest exposes the trigger-layer HTTP surface: manual triggers,
// resume/cancel/status, human approvals, webhooks, the live event stream,
// and Prometheus metrics.
package rest

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxionhq/fluxion/internal/application/trigger"
	"github.com/fluxionhq/fluxion/pkg/events"
	"github.com/fluxionhq/fluxion/pkg/models"
)

// EngineAPI is the slice of the engine the HTTP surface drives.
type EngineAPI interface {
	StartWorkflow(ctx context.Context, workflowID string, triggerData map[string]interface{}) (string, error)
	ResumeWorkflow(ctx context.Context, executionID string, resumeData map[string]interface{}) error
	CancelExecution(ctx context.Context, executionID string) error
	GetExecutionStatus(ctx context.Context, executionID string) (*models.ExecutionContext, error)
}

// Router bundles the HTTP dependencies.
type Router struct {
	engine   EngineAPI
	webhooks *trigger.WebhookRegistry
	bus      *events.Bus
	registry *prometheus.Registry
	logger   *slog.Logger
}

// NewRouter creates the router.
func NewRouter(engine EngineAPI, webhooks *trigger.WebhookRegistry, bus *events.Bus, registry *prometheus.Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		engine:   engine,
		webhooks: webhooks,
		bus:      bus,
		registry: registry,
		logger:   logger,
	}
}

// Handler builds the gin engine with all routes installed.
func (r *Router) Handler() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if r.registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	{
		api.POST("/workflows/:id/trigger", r.triggerWorkflow)
		api.GET("/executions/:id", r.executionStatus)
		api.POST("/executions/:id/resume", r.resumeExecution)
		api.POST("/executions/:id/cancel", r.cancelExecution)
		api.POST("/approvals/:id/approve", r.approve)
		api.POST("/approvals/:id/reject", r.reject)
	}

	router.POST("/hooks/:token", r.webhook)
	router.GET("/ws/events", r.eventStream)

	return router
}
