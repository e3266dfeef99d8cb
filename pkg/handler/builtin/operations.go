package builtin

import (
	"context"

	"github.com/fluxionhq/fluxion/pkg/events"
	"github.com/fluxionhq/fluxion/pkg/handler"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

// OperationHandler is the shared implementation behind the adapter-backed
// node kinds: file_operations, form_builder, push_notification, and
// email_automation. It substitutes variables recursively through the node
// config, calls the adapter, and wraps the outcome. An optional event family
// gets a completion event on the bus (e.g. "form:completed").
type OperationHandler struct {
	kind        string
	adapter     OperationAdapter
	bus         *events.Bus
	eventFamily string
}

// NewFileOperationsHandler creates the file operations handler.
func NewFileOperationsHandler(adapter OperationAdapter) *OperationHandler {
	return &OperationHandler{kind: "file_operations", adapter: adapter}
}

// NewFormBuilderHandler creates the form builder handler.
func NewFormBuilderHandler(adapter OperationAdapter, bus *events.Bus) *OperationHandler {
	return &OperationHandler{kind: "form_builder", adapter: adapter, bus: bus, eventFamily: models.EventFamilyForm}
}

// NewPushNotificationHandler creates the push notification handler.
func NewPushNotificationHandler(adapter OperationAdapter, bus *events.Bus) *OperationHandler {
	return &OperationHandler{kind: "push_notification", adapter: adapter, bus: bus, eventFamily: models.EventFamilyNotification}
}

// NewEmailAutomationHandler creates the email automation handler.
func NewEmailAutomationHandler(adapter OperationAdapter, bus *events.Bus) *OperationHandler {
	return &OperationHandler{kind: "email_automation", adapter: adapter, bus: bus, eventFamily: models.EventFamilyEmail}
}

// Execute substitutes variables, runs the adapter, and wraps its outcome.
func (h *OperationHandler) Execute(ctx context.Context, node *models.Node, exec *models.ExecutionContext) (*handler.Result, error) {
	if h.adapter == nil {
		return handler.Errorf("%s: no adapter configured", h.kind), nil
	}

	operation := handler.ConfigStringDefault(node.Config, "operation", "")
	config := template.SubstituteMap(handler.ConfigMap(node.Config, "config"), exec.Variables)
	if config == nil {
		// Some nodes put the operation parameters directly in the config.
		config = template.SubstituteMap(node.Config, exec.Variables)
	}

	output, err := h.adapter.Execute(ctx, operation, config)
	if err != nil {
		if h.bus != nil && h.eventFamily != "" {
			h.bus.Publish(h.eventFamily+":failed", map[string]interface{}{
				"executionId": exec.ExecutionID,
				"nodeId":      node.ID,
				"operation":   operation,
				"error":       err.Error(),
			})
		}
		return handler.Errorf("%s %q failed: %v", h.kind, operation, err), nil
	}

	if h.bus != nil && h.eventFamily != "" {
		h.bus.Publish(h.eventFamily+":completed", map[string]interface{}{
			"executionId": exec.ExecutionID,
			"nodeId":      node.ID,
			"operation":   operation,
		})
	}

	if output == nil {
		output = map[string]interface{}{}
	}
	return handler.Success(output), nil
}
