package models

import "time"

// ExecutionRecord is the durable, per-execution document persisted by the
// execution store. One record exists per execution ID and is upserted at
// every state transition.
type ExecutionRecord struct {
	ExecutionID    string                 `json:"_id"`
	WorkflowID     string                 `json:"workflow_id"`
	Status         ExecutionStatus        `json:"status"`
	StartTime      time.Time              `json:"start_time"`
	EndTime        *time.Time             `json:"end_time,omitempty"`
	NodeExecutions []NodeExecution        `json:"node_executions"`
	Inputs         map[string]interface{} `json:"inputs,omitempty"`
	Outputs        map[string]interface{} `json:"outputs,omitempty"`
	Metrics        ExecutionMetrics       `json:"metrics"`
	WakeAt         *time.Time             `json:"wake_at,omitempty"`
}

// NodeExecution is one persisted step of an execution.
type NodeExecution struct {
	NodeID    string                 `json:"node_id"`
	StartTime time.Time              `json:"start_time"`
	EndTime   time.Time              `json:"end_time"`
	Status    string                 `json:"status"` // success | failed
	Error     string                 `json:"error,omitempty"`
	Output    map[string]interface{} `json:"output,omitempty"`
	Metrics   NodeMetrics            `json:"metrics"`
}

// NodeMetrics carries per-step measurements.
type NodeMetrics struct {
	Duration    int64 `json:"duration"` // milliseconds
	MemoryUsage int64 `json:"memory_usage"`
}

// ExecutionMetrics carries aggregate measurements for an execution.
type ExecutionMetrics struct {
	TotalDuration   int64   `json:"total_duration"` // milliseconds
	TotalCost       float64 `json:"total_cost"`
	AITokensUsed    int64   `json:"ai_tokens_used"`
	PeakMemoryUsage int64   `json:"peak_memory_usage"`
	NodeCount       int     `json:"node_count"`
	SuccessfulNodes int     `json:"successful_nodes"`
	FailedNodes     int     `json:"failed_nodes"`
}

// NodeExecutionStatus values for persisted steps.
const (
	NodeExecutionSuccess = "success"
	NodeExecutionFailed  = "failed"
)
