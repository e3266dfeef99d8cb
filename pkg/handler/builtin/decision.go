package builtin

import (
	"context"

	"github.com/fluxionhq/fluxion/pkg/handler"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

// DecisionHandler evaluates the node's named conditions against the current
// variables. The engine uses the resulting decisionPath and conditionResults
// for edge routing.
type DecisionHandler struct{}

// NewDecisionHandler creates a decision handler.
func NewDecisionHandler() *DecisionHandler {
	return &DecisionHandler{}
}

// Execute evaluates each condition in declaration order. decisionPath is the
// name of the first condition evaluating to true, or "default".
func (h *DecisionHandler) Execute(_ context.Context, node *models.Node, exec *models.ExecutionContext) (*handler.Result, error) {
	conditions := handler.ConfigSlice(node.Config, "conditions")

	results := make(map[string]interface{}, len(conditions))
	decisionPath := "default"
	decided := false

	for _, raw := range conditions {
		cond, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name := handler.ConfigStringDefault(cond, "name", "")
		expression := handler.ConfigStringDefault(cond, "expression", "")
		if name == "" {
			continue
		}

		passed := template.EvaluateCondition(expression, exec.Variables)
		results[name] = passed
		if passed && !decided {
			decisionPath = name
			decided = true
		}
	}

	return handler.Success(map[string]interface{}{
		"conditionResults": results,
		"decisionPath":     decisionPath,
	}), nil
}
