// Package trigger hosts the inbound trigger layer: cron schedules and
// webhook registrations that start workflow executions.
package trigger

import "context"

// Starter is the slice of the engine the trigger layer invokes.
type Starter interface {
	StartWorkflow(ctx context.Context, workflowID string, triggerData map[string]interface{}) (string, error)
}
