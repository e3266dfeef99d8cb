package builtin

import (
	"context"

	"github.com/itchyny/gojq"

	"github.com/fluxionhq/fluxion/pkg/handler"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

// TransformHandler reshapes execution variables. Supported operations:
//
//	pick     keep only the listed keys
//	rename   rename keys via a from→to mapping
//	merge    merge a static object into the variables
//	template render a template string against the variables
//	jq       run a jq filter over the variables (pure data query, no I/O)
type TransformHandler struct{}

// NewTransformHandler creates a data transform handler.
func NewTransformHandler() *TransformHandler {
	return &TransformHandler{}
}

// Execute applies the configured transform to the current variables.
func (h *TransformHandler) Execute(ctx context.Context, node *models.Node, exec *models.ExecutionContext) (*handler.Result, error) {
	operation := handler.ConfigStringDefault(node.Config, "operation", "")

	switch operation {
	case "pick":
		return h.pick(node, exec)
	case "rename":
		return h.rename(node, exec)
	case "merge":
		return h.merge(node, exec)
	case "template":
		return h.template(node, exec)
	case "jq":
		return h.jq(ctx, node, exec)
	default:
		return handler.Errorf("data_transform: unknown operation %q", operation), nil
	}
}

func (h *TransformHandler) pick(node *models.Node, exec *models.ExecutionContext) (*handler.Result, error) {
	keys := handler.ConfigSlice(node.Config, "keys")
	out := make(map[string]interface{}, len(keys))
	for _, raw := range keys {
		key, ok := raw.(string)
		if !ok {
			continue
		}
		if val, exists := exec.Variables[key]; exists {
			out[key] = val
		}
	}
	return handler.Success(out), nil
}

func (h *TransformHandler) rename(node *models.Node, exec *models.ExecutionContext) (*handler.Result, error) {
	mapping := handler.ConfigMap(node.Config, "mapping")
	out := make(map[string]interface{}, len(mapping))
	for from, rawTo := range mapping {
		to, ok := rawTo.(string)
		if !ok {
			continue
		}
		if val, exists := exec.Variables[from]; exists {
			out[to] = val
		}
	}
	return handler.Success(out), nil
}

func (h *TransformHandler) merge(node *models.Node, exec *models.ExecutionContext) (*handler.Result, error) {
	data := template.SubstituteMap(handler.ConfigMap(node.Config, "data"), exec.Variables)
	return handler.Success(data), nil
}

func (h *TransformHandler) template(node *models.Node, exec *models.ExecutionContext) (*handler.Result, error) {
	tmpl, err := handler.ConfigString(node.Config, "template")
	if err != nil {
		return handler.Errorf("data_transform template: %v", err), nil
	}
	target := handler.ConfigStringDefault(node.Config, "target", "rendered")
	return handler.Success(map[string]interface{}{
		target: template.Substitute(tmpl, exec.Variables),
	}), nil
}

func (h *TransformHandler) jq(ctx context.Context, node *models.Node, exec *models.ExecutionContext) (*handler.Result, error) {
	filter, err := handler.ConfigString(node.Config, "filter")
	if err != nil {
		return handler.Errorf("data_transform jq: %v", err), nil
	}

	query, err := gojq.Parse(filter)
	if err != nil {
		return handler.Errorf("data_transform jq: invalid filter: %v", err), nil
	}

	// jq operates on a generic document; hand it the variables snapshot.
	input := map[string]interface{}(exec.SnapshotVariables())

	target := handler.ConfigStringDefault(node.Config, "target", "result")
	var results []interface{}
	iter := query.RunWithContext(ctx, interface{}(input))
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if jqErr, isErr := v.(error); isErr {
			return handler.Errorf("data_transform jq: %v", jqErr), nil
		}
		results = append(results, v)
	}

	var out interface{}
	switch len(results) {
	case 0:
		out = nil
	case 1:
		out = results[0]
	default:
		out = results
	}

	return handler.Success(map[string]interface{}{target: out}), nil
}
