package builtin

import (
	"context"
	"time"

	"github.com/fluxionhq/fluxion/pkg/events"
	"github.com/fluxionhq/fluxion/pkg/handler"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

// PauseReasonHumanApproval is the pause reason recorded for human tasks.
const PauseReasonHumanApproval = "Waiting for human approval"

// DefaultApprovalTimeout applies when the node does not set one.
const DefaultApprovalTimeout = time.Hour

// HumanTaskHandler suspends the execution until a human approves or rejects
// it. Resume is driven externally through human:approved / human:rejected.
type HumanTaskHandler struct {
	bus *events.Bus
}

// NewHumanTaskHandler creates a human task handler.
func NewHumanTaskHandler(bus *events.Bus) *HumanTaskHandler {
	return &HumanTaskHandler{bus: bus}
}

// Execute publishes an approval request and pauses.
func (h *HumanTaskHandler) Execute(_ context.Context, node *models.Node, exec *models.ExecutionContext) (*handler.Result, error) {
	assignee, err := handler.ConfigString(node.Config, "assignee")
	if err != nil {
		return handler.Errorf("human task requires an assignee: %v", err), nil
	}

	timeoutSec := handler.ConfigIntDefault(node.Config, "timeout", int(DefaultApprovalTimeout.Seconds()))

	approval := map[string]interface{}{
		"executionId":  exec.ExecutionID,
		"nodeId":       node.ID,
		"title":        template.Substitute(handler.ConfigStringDefault(node.Config, "title", "Approval required"), exec.Variables),
		"description":  template.Substitute(handler.ConfigStringDefault(node.Config, "description", ""), exec.Variables),
		"assignee":     template.Substitute(assignee, exec.Variables),
		"approvalType": handler.ConfigStringDefault(node.Config, "approvalType", "approve_reject"),
		"timeout":      timeoutSec,
		"link":         handler.ConfigStringDefault(node.Config, "link", ""),
		"variables":    exec.SnapshotVariables(),
		"requestedAt":  time.Now().Format(time.RFC3339),
	}

	h.bus.Publish(models.EventHumanApprovalRequested, approval)

	return handler.Pause(PauseReasonHumanApproval, approval), nil
}
