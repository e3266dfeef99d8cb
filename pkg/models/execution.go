package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// ExecutionStatus represents the status of an execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal returns true if the execution status is terminal.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted ||
		s == ExecutionStatusFailed ||
		s == ExecutionStatusCancelled
}

// StepOutcome classifies the result of one handler invocation.
type StepOutcome string

const (
	StepOutcomeSuccess StepOutcome = "success"
	StepOutcomePause   StepOutcome = "pause"
	StepOutcomeError   StepOutcome = "error"
)

// StepRecord is one entry of an execution's history. History is append-only;
// the order of records equals the order of handler invocations.
type StepRecord struct {
	NodeID    string                 `json:"node_id"`
	StartedAt time.Time              `json:"started_at"`
	Duration  time.Duration          `json:"duration"`
	Outcome   StepOutcome            `json:"outcome"`
	Input     map[string]interface{} `json:"input,omitempty"`
	Output    map[string]interface{} `json:"output,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// ExecutionContext is the in-flight state of one workflow run.
//
// The engine mutates the context only inside the execution's lock-guarded
// critical section, persists it at every transition, and removes it from the
// in-memory map once the status is terminal.
type ExecutionContext struct {
	ExecutionID   string                 `json:"execution_id"`
	WorkflowID    string                 `json:"workflow_id"`
	CurrentNodeID string                 `json:"current_node_id"`
	Variables     map[string]interface{} `json:"variables"`
	History       []StepRecord           `json:"history"`
	Status        ExecutionStatus        `json:"status"`
	StartTime     time.Time              `json:"start_time"`
	EndTime       *time.Time             `json:"end_time,omitempty"`

	// WakeAt is set when the execution paused on a long timer. Recovery uses
	// it to re-arm the deferred wake-up after a process restart.
	WakeAt *time.Time `json:"wake_at,omitempty"`
}

// NewExecutionID generates a process-unique execution identifier of the
// form exec_<unix-ms>_<random>.
func NewExecutionID() string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails if the OS entropy source is broken; fall
		// back to the timestamp alone rather than panic.
		return fmt.Sprintf("exec_%d_%010d", time.Now().UnixMilli(), time.Now().UnixNano()%10000000000)
	}
	return fmt.Sprintf("exec_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

// NewExecutionContext builds a fresh running context for a workflow.
func NewExecutionContext(workflowID string, triggerData map[string]interface{}) *ExecutionContext {
	vars := make(map[string]interface{}, len(triggerData))
	for k, v := range triggerData {
		vars[k] = v
	}
	return &ExecutionContext{
		ExecutionID: NewExecutionID(),
		WorkflowID:  workflowID,
		Variables:   vars,
		History:     []StepRecord{},
		Status:      ExecutionStatusRunning,
		StartTime:   time.Now(),
	}
}

// AppendStep appends a history record. History is never rewritten.
func (ec *ExecutionContext) AppendStep(rec StepRecord) {
	ec.History = append(ec.History, rec)
}

// MergeVariables shallow-merges output into the context variables, later
// keys overwriting earlier ones.
func (ec *ExecutionContext) MergeVariables(output map[string]interface{}) {
	if ec.Variables == nil {
		ec.Variables = make(map[string]interface{}, len(output))
	}
	for k, v := range output {
		ec.Variables[k] = v
	}
}

// LastStep returns the most recent history record.
func (ec *ExecutionContext) LastStep() (*StepRecord, bool) {
	if len(ec.History) == 0 {
		return nil, false
	}
	return &ec.History[len(ec.History)-1], true
}

// MarkTerminal transitions the context into a terminal status and stamps the
// end time. EndTime is set if and only if the status is terminal.
func (ec *ExecutionContext) MarkTerminal(status ExecutionStatus) {
	ec.Status = status
	now := time.Now()
	ec.EndTime = &now
}

// SnapshotVariables returns a shallow copy of the variables map.
func (ec *ExecutionContext) SnapshotVariables() map[string]interface{} {
	snap := make(map[string]interface{}, len(ec.Variables))
	for k, v := range ec.Variables {
		snap[k] = v
	}
	return snap
}
