package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fluxionhq/fluxion/pkg/handler"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

// DefaultHTTPTimeout applies to http_request actions without an explicit
// timeout in the node config.
const DefaultHTTPTimeout = 15 * time.Second

// ActionHandler dispatches side-effectful actions: HTTP requests, emails,
// database writes, and log lines.
type ActionHandler struct {
	client *http.Client
	email  EmailSender
	db     DatabaseWriter
	logger *slog.Logger
}

// NewActionHandler creates an action handler. A nil client gets the default
// timeout; nil adapters turn the matching action types into errors.
func NewActionHandler(client *http.Client, email EmailSender, db DatabaseWriter, logger *slog.Logger) *ActionHandler {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ActionHandler{client: client, email: email, db: db, logger: logger}
}

// Execute dispatches on actionType.
func (h *ActionHandler) Execute(ctx context.Context, node *models.Node, exec *models.ExecutionContext) (*handler.Result, error) {
	actionType := handler.ConfigStringDefault(node.Config, "actionType", "")

	switch actionType {
	case "http_request":
		return h.httpRequest(ctx, node, exec)
	case "email":
		return h.sendEmail(ctx, node, exec)
	case "database":
		return h.database(ctx, node, exec)
	case "log":
		return h.log(node, exec)
	default:
		return handler.Errorf("unknown action type: %q", actionType), nil
	}
}

func (h *ActionHandler) httpRequest(ctx context.Context, node *models.Node, exec *models.ExecutionContext) (*handler.Result, error) {
	rawURL, err := handler.ConfigString(node.Config, "url")
	if err != nil {
		return handler.Errorf("http_request: %v", err), nil
	}
	url := template.Substitute(rawURL, exec.Variables)
	method := handler.ConfigStringDefault(node.Config, "method", http.MethodGet)

	var body io.Reader
	if raw, ok := node.Config["body"]; ok && raw != nil {
		substituted := template.SubstituteAny(raw, exec.Variables)
		var data []byte
		switch v := substituted.(type) {
		case string:
			data = []byte(v)
		default:
			data, err = json.Marshal(v)
			if err != nil {
				return handler.Errorf("http_request: failed to marshal body: %v", err), nil
			}
		}
		body = bytes.NewReader(data)
	}

	timeout := DefaultHTTPTimeout
	if sec := handler.ConfigIntDefault(node.Config, "timeout", 0); sec > 0 {
		timeout = time.Duration(sec) * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, body)
	if err != nil {
		return handler.Errorf("http_request: failed to create request: %v", err), nil
	}
	for key, value := range handler.ConfigMap(node.Config, "headers") {
		if str, ok := value.(string); ok {
			req.Header.Set(key, template.Substitute(str, exec.Variables))
		}
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return handler.Errorf("http_request failed: %v", err), nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return handler.Errorf("http_request: failed to read response: %v", err), nil
	}
	if resp.StatusCode >= 400 {
		return handler.Errorf("http_request: HTTP %d: %s", resp.StatusCode, respBody), nil
	}

	var parsed interface{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			parsed = string(respBody)
		}
	}

	headers := make(map[string]interface{}, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	return handler.Success(map[string]interface{}{
		"response": parsed,
		"status":   resp.StatusCode,
		"headers":  headers,
	}), nil
}

func (h *ActionHandler) sendEmail(ctx context.Context, node *models.Node, exec *models.ExecutionContext) (*handler.Result, error) {
	if h.email == nil {
		return handler.Errorf("email action: no email adapter configured"), nil
	}

	to := template.Substitute(handler.ConfigStringDefault(node.Config, "to", ""), exec.Variables)
	subject := template.Substitute(handler.ConfigStringDefault(node.Config, "subject", ""), exec.Variables)
	body := template.Substitute(handler.ConfigStringDefault(node.Config, "body", ""), exec.Variables)
	if to == "" {
		return handler.Errorf("email action requires a recipient"), nil
	}

	sent, err := h.email.Send(ctx, to, subject, body)
	if err != nil {
		return handler.Errorf("email send failed: %v", err), nil
	}

	return handler.Success(map[string]interface{}{
		"sent": sent,
		"to":   to,
	}), nil
}

func (h *ActionHandler) database(ctx context.Context, node *models.Node, exec *models.ExecutionContext) (*handler.Result, error) {
	operation := handler.ConfigStringDefault(node.Config, "operation", "")
	collection := handler.ConfigStringDefault(node.Config, "collection", "")
	document := template.SubstituteMap(handler.ConfigMap(node.Config, "document"), exec.Variables)

	switch operation {
	case "insert":
		if h.db == nil {
			return handler.Errorf("database action: no database adapter configured"), nil
		}
		if err := h.db.Insert(ctx, collection, document); err != nil {
			return handler.Errorf("database insert failed: %v", err), nil
		}
	case "update":
		if h.db == nil {
			return handler.Errorf("database action: no database adapter configured"), nil
		}
		filter := template.SubstituteMap(handler.ConfigMap(node.Config, "filter"), exec.Variables)
		if err := h.db.Update(ctx, collection, filter, document); err != nil {
			return handler.Errorf("database update failed: %v", err), nil
		}
	default:
		// Other operations are logged and treated as no-ops.
		h.logger.Info("database action skipped", "operation", operation, "collection", collection)
	}

	return handler.Success(map[string]interface{}{
		"operation":  operation,
		"collection": collection,
		"success":    true,
	}), nil
}

func (h *ActionHandler) log(node *models.Node, exec *models.ExecutionContext) (*handler.Result, error) {
	message := template.Substitute(handler.ConfigStringDefault(node.Config, "message", ""), exec.Variables)
	level := handler.ConfigStringDefault(node.Config, "level", "info")

	switch level {
	case "debug":
		h.logger.Debug(message)
	case "warn":
		h.logger.Warn(message)
	case "error":
		h.logger.Error(message)
	default:
		level = "info"
		h.logger.Info(message)
	}

	return handler.Success(map[string]interface{}{
		"logged":  true,
		"message": message,
		"level":   level,
	}), nil
}
