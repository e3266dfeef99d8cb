// Package importer loads workflow definitions from YAML files at boot.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fluxionhq/fluxion/pkg/models"
)

// WorkflowWriter stores imported workflow definitions.
type WorkflowWriter interface {
	Upsert(ctx context.Context, workflow *models.Workflow) error
}

// Importer reads workflow YAML files from a directory.
type Importer struct {
	writer WorkflowWriter
	logger *slog.Logger
}

// New creates an importer.
func New(writer WorkflowWriter, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{writer: writer, logger: logger}
}

// workflowFile is the YAML schema of a workflow definition.
type workflowFile struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
	Version     int    `yaml:"version"`
	Nodes       []struct {
		ID     string                 `yaml:"id"`
		Name   string                 `yaml:"name"`
		Kind   string                 `yaml:"kind"`
		Config map[string]interface{} `yaml:"config"`
	} `yaml:"nodes"`
	Edges []struct {
		From      string `yaml:"from"`
		To        string `yaml:"to"`
		Condition string `yaml:"condition"`
	} `yaml:"edges"`
}

// ImportDir imports every .yaml/.yml file in dir. A missing directory is
// not an error; a file that fails to parse or validate is skipped with a
// warning so one bad definition does not block the others.
func (i *Importer) ImportDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read workflow directory: %w", err)
	}

	imported := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		workflow, err := i.loadFile(path)
		if err != nil {
			i.logger.Warn("skipping workflow file", "path", path, "error", err)
			continue
		}

		if err := i.writer.Upsert(ctx, workflow); err != nil {
			i.logger.Warn("failed to store workflow", "path", path, "error", err)
			continue
		}

		i.logger.Info("imported workflow", "id", workflow.ID, "name", workflow.Name)
		imported++
	}
	return imported, nil
}

func (i *Importer) loadFile(path string) (*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file workflowFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	workflow := &models.Workflow{
		ID:          file.ID,
		Name:        file.Name,
		Description: file.Description,
		Version:     file.Version,
		Status:      models.WorkflowStatus(file.Status),
	}
	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusActive
	}
	if workflow.Name == "" {
		workflow.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	for _, n := range file.Nodes {
		workflow.Nodes = append(workflow.Nodes, &models.Node{
			ID:     n.ID,
			Name:   n.Name,
			Kind:   models.NodeKind(n.Kind),
			Config: n.Config,
		})
	}
	for _, e := range file.Edges {
		workflow.Edges = append(workflow.Edges, &models.Edge{
			From:      e.From,
			To:        e.To,
			Condition: e.Condition,
		})
	}

	if err := workflow.Validate(); err != nil {
		return nil, err
	}
	return workflow, nil
}
