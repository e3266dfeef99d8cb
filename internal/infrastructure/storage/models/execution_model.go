package models

import (
	"time"

	"github.com/uptrace/bun"

	domain "github.com/fluxionhq/fluxion/pkg/models"
)

// ExecutionModel is the executions table row: one upserted document per
// execution ID.
type ExecutionModel struct {
	bun.BaseModel `bun:"table:executions,alias:ex"`

	ID             string            `bun:"id,pk"`
	WorkflowID     string            `bun:"workflow_id,notnull"`
	Status         string            `bun:"status,notnull"`
	StartedAt      time.Time         `bun:"started_at,notnull"`
	CompletedAt    *time.Time        `bun:"completed_at"`
	NodeExecutions NodeExecutionList `bun:"node_executions,type:jsonb"`
	Inputs         JSONBMap          `bun:"inputs,type:jsonb"`
	Outputs        JSONBMap          `bun:"outputs,type:jsonb"`
	Metrics        MetricsJSON       `bun:"metrics,type:jsonb"`
	WakeAt         *time.Time        `bun:"wake_at"`
	UpdatedAt      time.Time         `bun:"updated_at,notnull,default:current_timestamp"`
}

// ToDomain converts the row to the persisted execution record.
func (m *ExecutionModel) ToDomain() *domain.ExecutionRecord {
	return &domain.ExecutionRecord{
		ExecutionID:    m.ID,
		WorkflowID:     m.WorkflowID,
		Status:         domain.ExecutionStatus(m.Status),
		StartTime:      m.StartedAt,
		EndTime:        m.CompletedAt,
		NodeExecutions: m.NodeExecutions,
		Inputs:         m.Inputs,
		Outputs:        m.Outputs,
		Metrics:        domain.ExecutionMetrics(m.Metrics),
		WakeAt:         m.WakeAt,
	}
}

// ExecutionToModel converts a persisted record to its row.
func ExecutionToModel(r *domain.ExecutionRecord) *ExecutionModel {
	return &ExecutionModel{
		ID:             r.ExecutionID,
		WorkflowID:     r.WorkflowID,
		Status:         string(r.Status),
		StartedAt:      r.StartTime,
		CompletedAt:    r.EndTime,
		NodeExecutions: NodeExecutionList(r.NodeExecutions),
		Inputs:         JSONBMap(r.Inputs),
		Outputs:        JSONBMap(r.Outputs),
		Metrics:        MetricsJSON(r.Metrics),
		WakeAt:         r.WakeAt,
		UpdatedAt:      time.Now(),
	}
}
