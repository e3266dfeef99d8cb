package trigger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// WebhookRegistry maps inbound webhook tokens to workflows.
type WebhookRegistry struct {
	starter Starter

	mu    sync.RWMutex
	hooks map[string]string // token -> workflow ID
}

// NewWebhookRegistry creates an empty registry.
func NewWebhookRegistry(starter Starter) *WebhookRegistry {
	return &WebhookRegistry{
		starter: starter,
		hooks:   make(map[string]string),
	}
}

// Register creates a webhook for a workflow and returns its token.
func (r *WebhookRegistry) Register(workflowID string) string {
	token := uuid.New().String()
	r.RegisterToken(token, workflowID)
	return token
}

// RegisterToken binds an explicit token to a workflow. Trigger nodes that
// declare their own token use this so webhook URLs stay stable across
// restarts.
func (r *WebhookRegistry) RegisterToken(token, workflowID string) {
	r.mu.Lock()
	r.hooks[token] = workflowID
	r.mu.Unlock()
}

// Unregister removes a webhook token.
func (r *WebhookRegistry) Unregister(token string) {
	r.mu.Lock()
	delete(r.hooks, token)
	r.mu.Unlock()
}

// Trigger starts the workflow registered under token with the webhook
// payload as trigger data.
func (r *WebhookRegistry) Trigger(ctx context.Context, token string, payload map[string]interface{}) (string, error) {
	r.mu.RLock()
	workflowID, ok := r.hooks[token]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown webhook token")
	}

	data := map[string]interface{}{"trigger": "webhook"}
	for k, v := range payload {
		data[k] = v
	}
	return r.starter.StartWorkflow(ctx, workflowID, data)
}
