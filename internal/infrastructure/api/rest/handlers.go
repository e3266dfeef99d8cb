package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fluxionhq/fluxion/pkg/models"
)

type triggerRequest struct {
	TriggerData map[string]interface{} `json:"triggerData"`
}

type resumeRequest struct {
	ResumeData map[string]interface{} `json:"resumeData"`
}

type approvalRequest struct {
	ApprovalData map[string]interface{} `json:"approvalData"`
	Reason       string                 `json:"reason"`
}

func (r *Router) triggerWorkflow(c *gin.Context) {
	var req triggerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	executionID, err := r.engine.StartWorkflow(c.Request.Context(), c.Param("id"), req.TriggerData)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"executionId": executionID})
}

func (r *Router) executionStatus(c *gin.Context) {
	exec, err := r.engine.GetExecutionStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, exec)
}

func (r *Router) resumeExecution(c *gin.Context) {
	var req resumeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := r.engine.ResumeWorkflow(c.Request.Context(), c.Param("id"), req.ResumeData); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resumed"})
}

func (r *Router) cancelExecution(c *gin.Context) {
	if err := r.engine.CancelExecution(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (r *Router) approve(c *gin.Context) {
	var req approvalRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	r.bus.Publish(models.EventHumanApproved, map[string]interface{}{
		"executionId":  c.Param("id"),
		"approvalData": req.ApprovalData,
	})
	c.JSON(http.StatusAccepted, gin.H{"status": "approved"})
}

func (r *Router) reject(c *gin.Context) {
	var req approvalRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	r.bus.Publish(models.EventHumanRejected, map[string]interface{}{
		"executionId": c.Param("id"),
		"reason":      req.Reason,
	})
	c.JSON(http.StatusAccepted, gin.H{"status": "rejected"})
}

func (r *Router) webhook(c *gin.Context) {
	var payload map[string]interface{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	executionID, err := r.webhooks.Trigger(c.Request.Context(), c.Param("token"), payload)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"executionId": executionID})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrWorkflowNotFound),
		errors.Is(err, models.ErrExecutionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrWorkflowNotActive),
		errors.Is(err, models.ErrNoTriggerNode),
		errors.Is(err, models.ErrExecutionNotPaused):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
