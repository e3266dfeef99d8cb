package builtin

import (
	"context"
	"time"

	"github.com/fluxionhq/fluxion/pkg/handler"
	"github.com/fluxionhq/fluxion/pkg/models"
)

// TriggerHandler starts an execution. It records the trigger source and a
// timestamp; it never fails.
type TriggerHandler struct{}

// NewTriggerHandler creates a trigger handler.
func NewTriggerHandler() *TriggerHandler {
	return &TriggerHandler{}
}

// Execute returns the trigger output.
func (h *TriggerHandler) Execute(_ context.Context, node *models.Node, _ *models.ExecutionContext) (*handler.Result, error) {
	triggerType := handler.ConfigStringDefault(node.Config, "type", "manual")

	return handler.Success(map[string]interface{}{
		"trigger":   triggerType,
		"timestamp": time.Now().Format(time.RFC3339),
	}), nil
}
