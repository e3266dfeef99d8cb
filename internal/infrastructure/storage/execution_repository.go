package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/fluxionhq/fluxion/internal/infrastructure/storage/models"
	domain "github.com/fluxionhq/fluxion/pkg/models"
)

// ExecutionRepository persists execution records: one upserted row per
// execution ID. It satisfies the engine's ExecutionStore.
type ExecutionRepository struct {
	db *bun.DB
}

// NewExecutionRepository creates an ExecutionRepository.
func NewExecutionRepository(db *bun.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Upsert inserts or replaces the execution document.
func (r *ExecutionRepository) Upsert(ctx context.Context, record *domain.ExecutionRecord) error {
	model := models.ExecutionToModel(record)

	_, err := r.db.NewInsert().
		Model(model).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("completed_at = EXCLUDED.completed_at").
		Set("node_executions = EXCLUDED.node_executions").
		Set("inputs = EXCLUDED.inputs").
		Set("outputs = EXCLUDED.outputs").
		Set("metrics = EXCLUDED.metrics").
		Set("wake_at = EXCLUDED.wake_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert execution: %w", err)
	}
	return nil
}

// FindByID retrieves one execution record.
func (r *ExecutionRepository) FindByID(ctx context.Context, executionID string) (*domain.ExecutionRecord, error) {
	model := &models.ExecutionModel{}
	err := r.db.NewSelect().
		Model(model).
		Where("id = ?", executionID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to find execution: %w", err)
	}
	return model.ToDomain(), nil
}

// FindByStatus retrieves all executions in a status. Boot-time recovery
// uses this to reload paused executions.
func (r *ExecutionRepository) FindByStatus(ctx context.Context, status domain.ExecutionStatus) ([]*domain.ExecutionRecord, error) {
	var rows []*models.ExecutionModel
	err := r.db.NewSelect().
		Model(&rows).
		Where("status = ?", string(status)).
		Order("started_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find executions by status: %w", err)
	}

	records := make([]*domain.ExecutionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.ToDomain())
	}
	return records, nil
}

// FindByWorkflowID lists executions of a workflow, newest first.
func (r *ExecutionRepository) FindByWorkflowID(ctx context.Context, workflowID string, limit, offset int) ([]*domain.ExecutionRecord, error) {
	var rows []*models.ExecutionModel
	err := r.db.NewSelect().
		Model(&rows).
		Where("workflow_id = ?", workflowID).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find executions by workflow: %w", err)
	}

	records := make([]*domain.ExecutionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.ToDomain())
	}
	return records, nil
}

// CountByStatus returns how many executions are in a status.
func (r *ExecutionRepository) CountByStatus(ctx context.Context, status domain.ExecutionStatus) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.ExecutionModel)(nil)).
		Where("status = ?", string(status)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}
	return count, nil
}
