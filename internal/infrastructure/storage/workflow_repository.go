package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/fluxionhq/fluxion/internal/infrastructure/storage/models"
	domain "github.com/fluxionhq/fluxion/pkg/models"
)

// WorkflowRepository stores workflow definitions. It satisfies the engine's
// read-only WorkflowStore; writes are only reachable from the management
// surface and the boot-time importer.
type WorkflowRepository struct {
	db *bun.DB
}

// NewWorkflowRepository creates a WorkflowRepository.
func NewWorkflowRepository(db *bun.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// FindByID retrieves a workflow by ID.
func (r *WorkflowRepository) FindByID(ctx context.Context, id string) (*domain.Workflow, error) {
	model := &models.WorkflowModel{}
	err := r.db.NewSelect().
		Model(model).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to find workflow: %w", err)
	}
	return model.ToDomain(), nil
}

// Create inserts a new workflow. A missing ID or version gets defaults.
func (r *WorkflowRepository) Create(ctx context.Context, workflow *domain.Workflow) error {
	if err := workflow.Validate(); err != nil {
		return err
	}
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}
	if workflow.Version == 0 {
		workflow.Version = 1
	}
	now := time.Now()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(models.WorkflowToModel(workflow)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

// Upsert inserts or replaces a workflow definition by ID. The boot-time
// importer uses this so repeated imports stay idempotent.
func (r *WorkflowRepository) Upsert(ctx context.Context, workflow *domain.Workflow) error {
	if err := workflow.Validate(); err != nil {
		return err
	}
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}
	if workflow.Version == 0 {
		workflow.Version = 1
	}
	workflow.UpdatedAt = time.Now()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = workflow.UpdatedAt
	}

	_, err := r.db.NewInsert().
		Model(models.WorkflowToModel(workflow)).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("description = EXCLUDED.description").
		Set("status = EXCLUDED.status").
		Set("version = EXCLUDED.version").
		Set("nodes = EXCLUDED.nodes").
		Set("edges = EXCLUDED.edges").
		Set("metadata = EXCLUDED.metadata").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert workflow: %w", err)
	}
	return nil
}

// List returns workflows ordered by update time.
func (r *WorkflowRepository) List(ctx context.Context, limit, offset int) ([]*domain.Workflow, error) {
	var rows []*models.WorkflowModel
	err := r.db.NewSelect().
		Model(&rows).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]*domain.Workflow, 0, len(rows))
	for _, row := range rows {
		workflows = append(workflows, row.ToDomain())
	}
	return workflows, nil
}
