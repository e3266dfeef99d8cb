package storage

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/fluxionhq/fluxion/internal/infrastructure/storage/models"
)

// Migrate creates the schema when it does not exist yet.
func Migrate(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.WorkflowModel)(nil),
		(*models.ExecutionModel)(nil),
		(*ActionDocumentModel)(nil),
	}

	for _, model := range tables {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	if _, err := db.NewCreateIndex().
		Model((*models.ExecutionModel)(nil)).
		Index("idx_executions_workflow_id").
		Column("workflow_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create execution workflow index: %w", err)
	}

	if _, err := db.NewCreateIndex().
		Model((*models.ExecutionModel)(nil)).
		Index("idx_executions_status").
		Column("status").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create execution status index: %w", err)
	}

	return nil
}
