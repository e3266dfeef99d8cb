// Package models defines the public domain models for Fluxion.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Workflow represents a complete workflow definition with its graph structure.
type Workflow struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Version     int                    `json:"version"`
	Status      WorkflowStatus         `json:"status"`
	Nodes       []*Node                `json:"nodes"`
	Edges       []*Edge                `json:"edges"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// WorkflowStatus represents the status of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusArchived WorkflowStatus = "archived"
)

// NodeKind identifies the behavior of a node. The set is closed: the engine
// only dispatches to handlers registered for one of these kinds.
type NodeKind string

const (
	NodeKindTrigger          NodeKind = "trigger"
	NodeKindAIProcessor      NodeKind = "ai_processor"
	NodeKindDecision         NodeKind = "decision"
	NodeKindHumanTask        NodeKind = "human_task"
	NodeKindAction           NodeKind = "action"
	NodeKindTimer            NodeKind = "timer"
	NodeKindFileOperations   NodeKind = "file_operations"
	NodeKindFormBuilder      NodeKind = "form_builder"
	NodeKindDataTransform    NodeKind = "data_transform"
	NodeKindPushNotification NodeKind = "push_notification"
	NodeKindEmailAutomation  NodeKind = "email_automation"
)

// KnownNodeKinds lists every node kind the engine may encounter.
var KnownNodeKinds = []NodeKind{
	NodeKindTrigger,
	NodeKindAIProcessor,
	NodeKindDecision,
	NodeKindHumanTask,
	NodeKindAction,
	NodeKindTimer,
	NodeKindFileOperations,
	NodeKindFormBuilder,
	NodeKindDataTransform,
	NodeKindPushNotification,
	NodeKindEmailAutomation,
}

// IsKnown reports whether the kind is part of the closed set.
func (k NodeKind) IsKnown() bool {
	for _, known := range KnownNodeKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Node represents a single node in the workflow graph.
type Node struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name,omitempty"`
	Kind   NodeKind               `json:"kind"`
	Config map[string]interface{} `json:"config,omitempty"`
}

// Edge represents a directed edge between two nodes. Condition is only
// consulted when the source node is a decision node.
type Edge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition,omitempty"`
}

// Validate validates the workflow structure.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}

	if len(w.Nodes) == 0 {
		return &ValidationError{Field: "nodes", Message: "at least one node is required"}
	}

	nodeIDs := make(map[string]bool)
	hasTrigger := false
	for _, node := range w.Nodes {
		if err := node.Validate(); err != nil {
			return err
		}
		if nodeIDs[node.ID] {
			return &ValidationError{Field: "nodes", Message: fmt.Sprintf("duplicate node ID: %s", node.ID)}
		}
		nodeIDs[node.ID] = true
		if node.Kind == NodeKindTrigger {
			hasTrigger = true
		}
	}

	if !hasTrigger {
		return &ValidationError{Field: "nodes", Message: "workflow requires at least one trigger node"}
	}

	for _, edge := range w.Edges {
		if err := edge.Validate(); err != nil {
			return err
		}
		if !nodeIDs[edge.From] {
			return &ValidationError{Field: "edges", Message: fmt.Sprintf("edge references non-existent source node: %s", edge.From)}
		}
		if !nodeIDs[edge.To] {
			return &ValidationError{Field: "edges", Message: fmt.Sprintf("edge references non-existent target node: %s", edge.To)}
		}
	}

	return nil
}

// Validate validates the node structure.
func (n *Node) Validate() error {
	if n.ID == "" {
		return &ValidationError{Field: "id", Message: "node ID is required"}
	}
	if n.Kind == "" {
		return &ValidationError{Field: "kind", Message: "node kind is required"}
	}
	return nil
}

// Validate validates the edge structure.
func (e *Edge) Validate() error {
	if e.From == "" {
		return &ValidationError{Field: "from", Message: "edge source is required"}
	}
	if e.To == "" {
		return &ValidationError{Field: "to", Message: "edge target is required"}
	}
	return nil
}

// GetNode returns a node by ID.
func (w *Workflow) GetNode(nodeID string) (*Node, bool) {
	for _, node := range w.Nodes {
		if node.ID == nodeID {
			return node, true
		}
	}
	return nil, false
}

// StartNode returns the first trigger node in declaration order.
func (w *Workflow) StartNode() (*Node, bool) {
	for _, node := range w.Nodes {
		if node.Kind == NodeKindTrigger {
			return node, true
		}
	}
	return nil, false
}

// OutgoingEdges returns the edges leaving nodeID in declaration order.
func (w *Workflow) OutgoingEdges(nodeID string) []*Edge {
	var out []*Edge
	for _, edge := range w.Edges {
		if edge.From == nodeID {
			out = append(out, edge)
		}
	}
	return out
}

// Clone creates a deep copy of the workflow. The engine snapshots the
// definition at execution start so in-flight executions are not affected by
// later updates.
func (w *Workflow) Clone() (*Workflow, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}

	var clone Workflow
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}

	return &clone, nil
}
