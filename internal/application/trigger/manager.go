package trigger

import (
	"log/slog"

	"github.com/fluxionhq/fluxion/pkg/models"
)

// Manager wires workflow trigger nodes into live cron schedules and webhook
// registrations. It is invoked at boot, after the workflow import, and may
// be re-invoked whenever definitions change. Schedule IDs are derived from
// workflow and node IDs and declared webhook tokens are reused, so those
// registrations repeat idempotently; a webhook node without a token gets a
// newly generated token on every Sync, and earlier tokens stay registered.
type Manager struct {
	scheduler *CronScheduler
	webhooks  *WebhookRegistry
	logger    *slog.Logger
}

// NewManager creates a trigger manager.
func NewManager(scheduler *CronScheduler, webhooks *WebhookRegistry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{scheduler: scheduler, webhooks: webhooks, logger: logger}
}

// Sync registers the trigger nodes of every active workflow. Trigger node
// config:
//
//	type: schedule   cron: "*/5 * * * *"   payload: {..}   → cron schedule
//	type: webhook    token: my-hook                        → webhook token
//
// Any other trigger type (manual, email poll, ...) is driven externally
// through the REST surface and needs no registration. Returns the number
// of schedules and webhooks registered.
func (m *Manager) Sync(workflows []*models.Workflow) (schedules, hooks int) {
	for _, workflow := range workflows {
		if workflow.Status != models.WorkflowStatusActive {
			continue
		}

		for _, node := range workflow.Nodes {
			if node.Kind != models.NodeKindTrigger {
				continue
			}

			switch configString(node.Config, "type") {
			case "schedule":
				spec := configString(node.Config, "cron")
				if spec == "" {
					m.logger.Warn("schedule trigger without cron spec",
						"workflow_id", workflow.ID, "node_id", node.ID)
					continue
				}
				scheduleID := workflow.ID + "/" + node.ID
				payload, _ := node.Config["payload"].(map[string]interface{})
				if err := m.scheduler.AddSchedule(scheduleID, workflow.ID, spec, payload); err != nil {
					m.logger.Warn("failed to register schedule",
						"workflow_id", workflow.ID, "node_id", node.ID, "error", err)
					continue
				}
				m.logger.Info("registered schedule trigger",
					"workflow_id", workflow.ID, "node_id", node.ID, "cron", spec)
				schedules++

			case "webhook":
				token := configString(node.Config, "token")
				if token == "" {
					token = m.webhooks.Register(workflow.ID)
				} else {
					m.webhooks.RegisterToken(token, workflow.ID)
				}
				m.logger.Info("registered webhook trigger",
					"workflow_id", workflow.ID, "node_id", node.ID, "path", "/hooks/"+token)
				hooks++
			}
		}
	}
	return schedules, hooks
}

func configString(config map[string]interface{}, key string) string {
	if s, ok := config[key].(string); ok {
		return s
	}
	return ""
}
