package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fluxionhq/fluxion/pkg/models"
)

// persist writes the execution to the durable store and, best effort, to
// the cache. A store failure is an error; a cache failure is only logged.
func (e *Engine) persist(ctx context.Context, exec *models.ExecutionContext) error {
	record := buildRecord(exec)
	if err := e.executions.Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to persist execution %s: %w", exec.ExecutionID, err)
	}

	if data, err := json.Marshal(record); err == nil {
		if err := e.cache.Set(ctx, cacheKey(exec.ExecutionID), string(data), e.cacheTTL); err != nil {
			e.logger.Debug("cache write failed", "execution_id", exec.ExecutionID, "error", err)
		}
	}
	return nil
}

// loadContext reads an execution from the cache, falling through to the
// store, and reconstructs the in-memory context from the persisted record.
func (e *Engine) loadContext(ctx context.Context, executionID string) (*models.ExecutionContext, error) {
	if cached, ok, err := e.cache.Get(ctx, cacheKey(executionID)); err == nil && ok {
		var record models.ExecutionRecord
		if err := json.Unmarshal([]byte(cached), &record); err == nil {
			return reconstruct(&record), nil
		}
	}

	record, err := e.executions.FindByID(ctx, executionID)
	if err != nil || record == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrExecutionNotFound, executionID)
	}
	return reconstruct(record), nil
}

// buildRecord projects the context onto the persisted document shape.
func buildRecord(exec *models.ExecutionContext) *models.ExecutionRecord {
	memory := stepMemoryUsage()

	record := &models.ExecutionRecord{
		ExecutionID:    exec.ExecutionID,
		WorkflowID:     exec.WorkflowID,
		Status:         exec.Status,
		StartTime:      exec.StartTime,
		EndTime:        exec.EndTime,
		Inputs:         firstStepInput(exec),
		Outputs:        exec.SnapshotVariables(),
		WakeAt:         exec.WakeAt,
		NodeExecutions: make([]models.NodeExecution, 0, len(exec.History)),
	}

	var totalDuration, tokens int64
	var cost float64
	var peak int64
	successful, failed := 0, 0

	for _, step := range exec.History {
		status := models.NodeExecutionSuccess
		if step.Outcome == models.StepOutcomeError {
			status = models.NodeExecutionFailed
			failed++
		} else {
			successful++
		}

		durationMs := step.Duration.Milliseconds()
		totalDuration += durationMs
		if memory > peak {
			peak = memory
		}
		tokens += outputInt(step.Output, "tokensUsed")
		cost += outputFloat(step.Output, "cost")

		record.NodeExecutions = append(record.NodeExecutions, models.NodeExecution{
			NodeID:    step.NodeID,
			StartTime: step.StartedAt,
			EndTime:   step.StartedAt.Add(step.Duration),
			Status:    status,
			Error:     step.Error,
			Output:    step.Output,
			Metrics: models.NodeMetrics{
				Duration:    durationMs,
				MemoryUsage: memory,
			},
		})
	}

	record.Metrics = models.ExecutionMetrics{
		TotalDuration:   totalDuration,
		TotalCost:       cost,
		AITokensUsed:    tokens,
		PeakMemoryUsage: peak,
		NodeCount:       len(exec.History),
		SuccessfulNodes: successful,
		FailedNodes:     failed,
	}
	return record
}

// reconstruct rebuilds an execution context from its persisted record.
// The cursor is the last step's node; variables come from the persisted
// outputs; per-step inputs are recreated best effort from the persisted
// inputs snapshot.
func reconstruct(record *models.ExecutionRecord) *models.ExecutionContext {
	exec := &models.ExecutionContext{
		ExecutionID: record.ExecutionID,
		WorkflowID:  record.WorkflowID,
		Status:      record.Status,
		StartTime:   record.StartTime,
		EndTime:     record.EndTime,
		Variables:   record.Outputs,
		WakeAt:      record.WakeAt,
		History:     make([]models.StepRecord, 0, len(record.NodeExecutions)),
	}
	if exec.Variables == nil {
		exec.Variables = make(map[string]interface{})
	}

	for i, ne := range record.NodeExecutions {
		outcome := models.StepOutcomeSuccess
		if ne.Status == models.NodeExecutionFailed {
			outcome = models.StepOutcomeError
		}
		// The paused step is the last one of a paused execution.
		if record.Status == models.ExecutionStatusPaused && i == len(record.NodeExecutions)-1 {
			outcome = models.StepOutcomePause
		}

		exec.History = append(exec.History, models.StepRecord{
			NodeID:    ne.NodeID,
			StartedAt: ne.StartTime,
			Duration:  ne.EndTime.Sub(ne.StartTime),
			Outcome:   outcome,
			Input:     record.Inputs,
			Output:    ne.Output,
			Error:     ne.Error,
		})
		exec.CurrentNodeID = ne.NodeID
	}

	return exec
}

// firstStepInput returns the trigger-time variables snapshot.
func firstStepInput(exec *models.ExecutionContext) map[string]interface{} {
	if len(exec.History) > 0 && exec.History[0].Input != nil {
		return exec.History[0].Input
	}
	return exec.SnapshotVariables()
}

func outputInt(output map[string]interface{}, key string) int64 {
	switch v := output[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func outputFloat(output map[string]interface{}, key string) float64 {
	switch v := output[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func cacheKey(executionID string) string {
	return "execution:" + executionID
}
