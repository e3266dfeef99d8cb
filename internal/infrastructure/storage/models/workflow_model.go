// Package models defines the Bun storage models for Fluxion.
package models

import (
	"time"

	"github.com/uptrace/bun"

	domain "github.com/fluxionhq/fluxion/pkg/models"
)

// WorkflowModel is the workflows table row. Nodes and edges are embedded as
// JSONB since the engine always reads the whole graph at once.
type WorkflowModel struct {
	bun.BaseModel `bun:"table:workflows,alias:w"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name,notnull"`
	Description string    `bun:"description"`
	Status      string    `bun:"status,notnull,default:'draft'"`
	Version     int       `bun:"version,notnull,default:1"`
	Nodes       NodeList  `bun:"nodes,type:jsonb"`
	Edges       EdgeList  `bun:"edges,type:jsonb"`
	Metadata    JSONBMap  `bun:"metadata,type:jsonb"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// ToDomain converts the row to the domain workflow.
func (m *WorkflowModel) ToDomain() *domain.Workflow {
	return &domain.Workflow{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Version:     m.Version,
		Status:      domain.WorkflowStatus(m.Status),
		Nodes:       m.Nodes,
		Edges:       m.Edges,
		Metadata:    m.Metadata,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// WorkflowToModel converts a domain workflow to its row.
func WorkflowToModel(w *domain.Workflow) *WorkflowModel {
	return &WorkflowModel{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Version:     w.Version,
		Status:      string(w.Status),
		Nodes:       NodeList(w.Nodes),
		Edges:       EdgeList(w.Edges),
		Metadata:    JSONBMap(w.Metadata),
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}
