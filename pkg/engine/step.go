package engine

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxionhq/fluxion/pkg/handler"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

// stepOutcome is what one locked step reports back to the traversal loop.
type stepOutcome struct {
	nextNodes []string // successors to visit, in edge-declaration order
	stop      bool     // pause, failure, completion, or cancellation
}

// scheduleSteps launches the traversal goroutine for an execution. When
// resuming, the cursor node already ran (it paused), so traversal continues
// with its successors instead of re-executing it.
func (e *Engine) scheduleSteps(executionID string, resuming bool) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runSteps(context.Background(), executionID, resuming)
	}()
}

// runSteps drives an execution to its next stable state. Fan-out is
// serialised depth-first: each branch runs to completion before the next
// sibling, and sibling order follows edge declaration order.
func (e *Engine) runSteps(ctx context.Context, executionID string, resuming bool) {
	var pending []string

	if resuming {
		outcome, err := e.lockedAdvance(ctx, executionID)
		if err != nil {
			e.logger.Error("resume advance failed", "execution_id", executionID, "error", err)
			return
		}
		if outcome.stop {
			return
		}
		pending = outcome.nextNodes
		if len(pending) == 0 {
			return
		}
		if !e.setCursor(ctx, executionID, pending[0]) {
			return
		}
		pending = pending[1:]
	}

	for {
		outcome, err := e.lockedStep(ctx, executionID)
		if err != nil {
			e.logger.Error("step failed", "execution_id", executionID, "error", err)
			return
		}
		if outcome.stop {
			return
		}

		// Prepend successors so each branch completes before its sibling.
		pending = append(append([]string{}, outcome.nextNodes...), pending...)

		if len(pending) == 0 {
			e.complete(ctx, executionID)
			return
		}

		next := pending[0]
		pending = pending[1:]
		if !e.setCursor(ctx, executionID, next) {
			return
		}
	}
}

// lockedStep executes the node under the execution's cursor inside the
// execution lock.
func (e *Engine) lockedStep(ctx context.Context, executionID string) (stepOutcome, error) {
	var outcome stepOutcome
	err := e.locker.WithLock(ctx, lockKey(executionID), func() error {
		var innerErr error
		outcome, innerErr = e.executeStep(ctx, executionID)
		return innerErr
	})
	return outcome, err
}

// lockedAdvance computes the successors of the cursor node without
// executing it (used when resuming past a paused node).
func (e *Engine) lockedAdvance(ctx context.Context, executionID string) (stepOutcome, error) {
	var outcome stepOutcome
	err := e.locker.WithLock(ctx, lockKey(executionID), func() error {
		live, err := e.loadLive(ctx, executionID)
		if err != nil {
			return err
		}
		if live.ctx.Status != models.ExecutionStatusRunning {
			outcome.stop = true
			return nil
		}

		node, ok := live.workflow.GetNode(live.ctx.CurrentNodeID)
		if !ok {
			e.completeLocked(live)
			outcome.stop = true
			return nil
		}

		var output map[string]interface{}
		if rec, has := live.ctx.LastStep(); has {
			output = rec.Output
		}
		outcome.nextNodes = e.nextNodes(live.workflow, node, output)
		if len(outcome.nextNodes) == 0 {
			e.completeLocked(live)
			outcome.stop = true
		}
		return nil
	})
	return outcome, err
}

// setCursor moves the execution cursor and persists, under the lock.
func (e *Engine) setCursor(ctx context.Context, executionID, nodeID string) bool {
	ok := true
	err := e.locker.WithLock(ctx, lockKey(executionID), func() error {
		live, err := e.loadLive(ctx, executionID)
		if err != nil {
			return err
		}
		if live.ctx.Status != models.ExecutionStatusRunning {
			ok = false
			return nil
		}
		live.ctx.CurrentNodeID = nodeID
		return e.persist(ctx, live.ctx)
	})
	if err != nil {
		e.logger.Error("cursor update failed", "execution_id", executionID, "error", err)
		return false
	}
	return ok
}

// executeStep runs exactly one node. The caller holds the execution lock.
func (e *Engine) executeStep(ctx context.Context, executionID string) (stepOutcome, error) {
	live, err := e.loadLive(ctx, executionID)
	if err != nil {
		return stepOutcome{stop: true}, err
	}
	exec := live.ctx

	// A cancel may have landed between steps.
	if exec.Status != models.ExecutionStatusRunning {
		return stepOutcome{stop: true}, nil
	}

	node, ok := live.workflow.GetNode(exec.CurrentNodeID)
	if !ok {
		e.completeLocked(live)
		return stepOutcome{stop: true}, nil
	}

	stepCtx, span := e.tracer.Start(ctx, "engine.step", trace.WithAttributes(
		attribute.String("execution.id", executionID),
		attribute.String("node.id", node.ID),
		attribute.String("node.kind", string(node.Kind)),
	))
	defer span.End()

	e.bus.Publish(models.EventNodeStart, map[string]interface{}{
		"executionId": executionID,
		"nodeId":      node.ID,
		"kind":        string(node.Kind),
	})

	started := time.Now()
	inputSnapshot := exec.SnapshotVariables()

	result := e.invokeHandler(stepCtx, node, exec)
	duration := time.Since(started)

	record := models.StepRecord{
		NodeID:    node.ID,
		StartedAt: started,
		Duration:  duration,
		Input:     inputSnapshot,
	}

	var outcome stepOutcome
	switch result.Kind {
	case handler.ResultSuccess:
		record.Outcome = models.StepOutcomeSuccess
		record.Output = result.Output
		exec.AppendStep(record)
		exec.MergeVariables(result.Output)

		outcome.nextNodes = e.nextNodes(live.workflow, node, result.Output)
		if err := e.persist(ctx, exec); err != nil {
			e.failLocked(live, "persistence failed: "+err.Error())
			outcome = stepOutcome{stop: true}
		}

	case handler.ResultPause:
		record.Outcome = models.StepOutcomePause
		record.Output = pauseData(result)
		exec.AppendStep(record)
		exec.Status = models.ExecutionStatusPaused

		if wakeAt, ok := pauseWakeAt(result); ok {
			exec.WakeAt = &wakeAt
			e.armTimer(executionID, wakeAt)
		}

		if err := e.persist(ctx, exec); err != nil {
			e.logger.Error("failed to persist paused execution", "execution_id", executionID, "error", err)
		}
		e.bus.Publish(models.EventExecutionPaused, map[string]interface{}{
			"executionId": executionID,
			"workflowId":  exec.WorkflowID,
			"nodeId":      node.ID,
			"reason":      result.PauseReason,
		})
		outcome = stepOutcome{stop: true}

	default: // handler.ResultError
		record.Outcome = models.StepOutcomeError
		record.Error = result.Message
		exec.AppendStep(record)
		e.failLocked(live, result.Message)
		outcome = stepOutcome{stop: true}
	}

	e.bus.Publish(models.EventNodeComplete, map[string]interface{}{
		"executionId": executionID,
		"nodeId":      node.ID,
		"outcome":     string(record.Outcome),
		"durationMs":  duration.Milliseconds(),
	})

	return outcome, nil
}

// invokeHandler dispatches to the registered handler, normalising panics,
// Go errors, and nil results into Error results.
func (e *Engine) invokeHandler(ctx context.Context, node *models.Node, exec *models.ExecutionContext) (result *handler.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("handler panicked", "node_id", node.ID, "panic", r)
			result = handler.Errorf("handler for %s panicked: %v", node.Kind, r)
		}
	}()

	h, err := e.registry.Get(node.Kind)
	if err != nil {
		return handler.Errorf("%v", err)
	}

	res, err := h.Execute(ctx, node, exec)
	if err != nil {
		return handler.Errorf("%v", err)
	}
	if res == nil {
		return handler.Errorf("handler for %s returned no result", node.Kind)
	}
	return res
}

// nextNodes computes the successors of a node per the routing rules: for
// decision nodes, unconditional edges always pass and conditional edges
// pass when the named condition evaluated true (or the condition expression
// evaluates true against the step output); for every other kind all
// outgoing edges pass. Order preserves edge declaration order.
func (e *Engine) nextNodes(workflow *models.Workflow, node *models.Node, output map[string]interface{}) []string {
	edges := workflow.OutgoingEdges(node.ID)
	if len(edges) == 0 {
		return nil
	}

	if node.Kind != models.NodeKindDecision {
		targets := make([]string, 0, len(edges))
		for _, edge := range edges {
			targets = append(targets, edge.To)
		}
		return targets
	}

	var targets []string
	for _, edge := range edges {
		if edge.Condition == "" {
			targets = append(targets, edge.To)
			continue
		}
		if decisionEdgePasses(edge.Condition, output) {
			targets = append(targets, edge.To)
		}
	}
	return targets
}

// decisionEdgePasses matches an edge condition against a decision output.
// The condition is either the name of one of the node's conditions (matched
// against conditionResults / decisionPath) or a comparison expression
// evaluated against the step output.
func decisionEdgePasses(condition string, output map[string]interface{}) bool {
	if output != nil {
		if results, ok := output["conditionResults"].(map[string]interface{}); ok {
			if passed, exists := results[condition]; exists {
				b, _ := passed.(bool)
				return b
			}
		}
		if path, ok := output["decisionPath"].(string); ok && path == condition {
			return true
		}
	}
	return template.EvaluateCondition(condition, output)
}

// complete transitions the execution to completed under the lock.
func (e *Engine) complete(ctx context.Context, executionID string) {
	err := e.locker.WithLock(ctx, lockKey(executionID), func() error {
		live, err := e.loadLive(ctx, executionID)
		if err != nil {
			return err
		}
		if live.ctx.Status != models.ExecutionStatusRunning {
			return nil
		}
		e.completeLocked(live)
		return nil
	})
	if err != nil {
		e.logger.Error("completion failed", "execution_id", executionID, "error", err)
	}
}

// completeLocked finalises a completed execution. Caller holds the lock.
func (e *Engine) completeLocked(live *liveExecution) {
	exec := live.ctx
	exec.MarkTerminal(models.ExecutionStatusCompleted)
	if err := e.persist(context.Background(), exec); err != nil {
		e.logger.Error("failed to persist completed execution", "execution_id", exec.ExecutionID, "error", err)
	}

	payload := map[string]interface{}{
		"executionId": exec.ExecutionID,
		"workflowId":  exec.WorkflowID,
		"outputs":     exec.SnapshotVariables(),
	}
	e.bus.Publish(models.EventExecutionComplete, payload)
	e.bus.Publish(models.EventWorkflowCompleted, payload)
	e.forget(exec.ExecutionID)
}

// failLocked finalises a failed execution. Caller holds the lock.
func (e *Engine) failLocked(live *liveExecution, reason string) {
	exec := live.ctx
	exec.MarkTerminal(models.ExecutionStatusFailed)
	if err := e.persist(context.Background(), exec); err != nil {
		e.logger.Error("failed to persist failed execution", "execution_id", exec.ExecutionID, "error", err)
	}

	payload := map[string]interface{}{
		"executionId": exec.ExecutionID,
		"workflowId":  exec.WorkflowID,
		"error":       reason,
	}
	e.bus.Publish(models.EventExecutionFailed, payload)
	e.bus.Publish(models.EventWorkflowFailed, payload)
	e.forget(exec.ExecutionID)
}

// pauseData normalises the pause payload for the history record.
func pauseData(result *handler.Result) map[string]interface{} {
	out := map[string]interface{}{"reason": result.PauseReason}
	if data, ok := result.PauseData.(map[string]interface{}); ok {
		for k, v := range data {
			out[k] = v
		}
	}
	return out
}

// pauseWakeAt extracts a durable wake-up time from a pause result.
func pauseWakeAt(result *handler.Result) (time.Time, bool) {
	data, ok := result.PauseData.(map[string]interface{})
	if !ok {
		return time.Time{}, false
	}
	raw, ok := data["wake_at"].(string)
	if !ok {
		return time.Time{}, false
	}
	wakeAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return wakeAt, true
}

// stepMemoryUsage samples the heap in use after a step.
func stepMemoryUsage() int64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return int64(stats.HeapAlloc)
}
