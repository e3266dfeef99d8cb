package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/fluxionhq/fluxion/internal/infrastructure/storage/models"
)

// ActionWriter backs the database action of action nodes: documents land in
// a generic collection table keyed by the node's collection name.
type ActionWriter struct {
	db *bun.DB
}

// NewActionWriter creates an ActionWriter.
func NewActionWriter(db *bun.DB) *ActionWriter {
	return &ActionWriter{db: db}
}

// ActionDocumentModel is the action_documents table row.
type ActionDocumentModel struct {
	bun.BaseModel `bun:"table:action_documents,alias:ad"`

	ID         string          `bun:"id,pk"`
	Collection string          `bun:"collection,notnull"`
	Document   models.JSONBMap `bun:"document,type:jsonb"`
	CreatedAt  time.Time       `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time       `bun:"updated_at,notnull,default:current_timestamp"`
}

// Insert stores a document under a collection.
func (w *ActionWriter) Insert(ctx context.Context, collection string, document map[string]interface{}) error {
	row := &ActionDocumentModel{
		ID:         uuid.New().String(),
		Collection: collection,
		Document:   models.JSONBMap(document),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if _, err := w.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert action document: %w", err)
	}
	return nil
}

// Update overwrites documents in a collection whose JSONB fields match the
// filter values.
func (w *ActionWriter) Update(ctx context.Context, collection string, filter, document map[string]interface{}) error {
	query := w.db.NewUpdate().
		Model((*ActionDocumentModel)(nil)).
		Set("document = ?", models.JSONBMap(document)).
		Set("updated_at = ?", time.Now()).
		Where("collection = ?", collection)

	for key, value := range filter {
		query = query.Where("document->>? = ?", key, fmt.Sprintf("%v", value))
	}

	if _, err := query.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update action documents: %w", err)
	}
	return nil
}
