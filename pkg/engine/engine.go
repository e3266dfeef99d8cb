// Package engine implements the workflow execution engine.
//
// The engine drives a stored workflow graph to completion for each
// execution: it traverses nodes from the trigger, dispatches to registered
// handlers, merges outputs into the execution variables, persists every
// transition, emits lifecycle events, and serialises all steps of one
// execution under its named lock. Pauses (human tasks, long timers) survive
// process restarts through the execution store.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/fluxionhq/fluxion/pkg/events"
	"github.com/fluxionhq/fluxion/pkg/handler"
	"github.com/fluxionhq/fluxion/pkg/models"
)

// WorkflowStore is the read-only workflow lookup the engine consumes.
type WorkflowStore interface {
	FindByID(ctx context.Context, id string) (*models.Workflow, error)
}

// ExecutionStore durably persists one document per execution.
type ExecutionStore interface {
	Upsert(ctx context.Context, record *models.ExecutionRecord) error
	FindByID(ctx context.Context, executionID string) (*models.ExecutionRecord, error)
	FindByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.ExecutionRecord, error)
}

// Cache is the best-effort hot-path store for execution contexts. A miss or
// a failed write always falls through to the ExecutionStore.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Locker provides the named critical sections serialising execution steps.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}

// Engine orchestrates workflow executions.
type Engine struct {
	workflows  WorkflowStore
	executions ExecutionStore
	cache      Cache
	locker     Locker
	bus        *events.Bus
	registry   *handler.Registry
	logger     *slog.Logger
	tracer     trace.Tracer
	cacheTTL   time.Duration

	mu      sync.RWMutex
	running map[string]*liveExecution
	timers  map[string]*time.Timer

	wg sync.WaitGroup
}

// liveExecution is an in-memory execution with its workflow snapshot. The
// definition is snapshotted at start so updates to the stored workflow do
// not affect in-flight executions.
type liveExecution struct {
	ctx      *models.ExecutionContext
	workflow *models.Workflow
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer enables step spans on the given tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithCacheTTL overrides the execution context cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.cacheTTL = ttl }
}

// New creates an engine and installs its event subscriptions.
func New(
	workflows WorkflowStore,
	executions ExecutionStore,
	cache Cache,
	locker Locker,
	bus *events.Bus,
	registry *handler.Registry,
	opts ...Option,
) *Engine {
	e := &Engine{
		workflows:  workflows,
		executions: executions,
		cache:      cache,
		locker:     locker,
		bus:        bus,
		registry:   registry,
		logger:     slog.Default(),
		tracer:     noop.NewTracerProvider().Tracer("fluxion/engine"),
		cacheTTL:   5 * time.Minute,
		running:    make(map[string]*liveExecution),
		timers:     make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.subscribe()
	return e
}

// subscribe installs the engine's reactions to external lifecycle events.
func (e *Engine) subscribe() {
	e.bus.Subscribe(models.EventHumanApproved, func(_ string, payload map[string]interface{}) {
		executionID, _ := payload["executionId"].(string)
		if executionID == "" {
			return
		}
		approvalData, _ := payload["approvalData"].(map[string]interface{})
		go func() {
			if err := e.ResumeWorkflow(context.Background(), executionID, approvalData); err != nil {
				e.logger.Warn("resume after approval failed", "execution_id", executionID, "error", err)
			}
		}()
	})

	e.bus.Subscribe(models.EventHumanRejected, func(_ string, payload map[string]interface{}) {
		executionID, _ := payload["executionId"].(string)
		if executionID == "" {
			return
		}
		go func() {
			if err := e.failExecution(context.Background(), executionID, "Human approval rejected"); err != nil {
				e.logger.Warn("rejection handling failed", "execution_id", executionID, "error", err)
			}
		}()
	})

	e.bus.Subscribe(models.EventTimerExpired, func(_ string, payload map[string]interface{}) {
		executionID, _ := payload["executionId"].(string)
		if executionID == "" {
			return
		}
		go func() {
			if err := e.ResumeWorkflow(context.Background(), executionID, nil); err != nil {
				e.logger.Warn("resume after timer failed", "execution_id", executionID, "error", err)
			}
		}()
	})
}

// StartWorkflow validates the workflow, creates a fresh execution context,
// persists it, and schedules traversal. It returns the new execution ID.
func (e *Engine) StartWorkflow(ctx context.Context, workflowID string, triggerData map[string]interface{}) (string, error) {
	workflow, err := e.workflows.FindByID(ctx, workflowID)
	if err != nil {
		return "", fmt.Errorf("%w: %s", models.ErrWorkflowNotFound, workflowID)
	}
	if workflow.Status != models.WorkflowStatusActive {
		return "", fmt.Errorf("%w: %s", models.ErrWorkflowNotActive, workflowID)
	}

	startNode, ok := workflow.StartNode()
	if !ok {
		return "", fmt.Errorf("%w: %s", models.ErrNoTriggerNode, workflowID)
	}

	snapshot, err := workflow.Clone()
	if err != nil {
		return "", fmt.Errorf("failed to snapshot workflow: %w", err)
	}

	exec := models.NewExecutionContext(workflowID, triggerData)
	exec.CurrentNodeID = startNode.ID

	if err := e.persist(ctx, exec); err != nil {
		return "", err
	}

	e.mu.Lock()
	e.running[exec.ExecutionID] = &liveExecution{ctx: exec, workflow: snapshot}
	e.mu.Unlock()

	e.scheduleSteps(exec.ExecutionID, false)
	return exec.ExecutionID, nil
}

// ResumeWorkflow resumes a paused execution, optionally merging resumeData
// into its variables before continuing past the paused node.
func (e *Engine) ResumeWorkflow(ctx context.Context, executionID string, resumeData map[string]interface{}) error {
	var resumeErr error
	err := e.locker.WithLock(ctx, lockKey(executionID), func() error {
		live, err := e.loadLive(ctx, executionID)
		if err != nil {
			return err
		}
		if live.ctx.Status != models.ExecutionStatusPaused {
			resumeErr = fmt.Errorf("%w: %s is %s", models.ErrExecutionNotPaused, executionID, live.ctx.Status)
			return nil
		}

		live.ctx.MergeVariables(resumeData)
		live.ctx.Status = models.ExecutionStatusRunning
		live.ctx.WakeAt = nil
		e.stopTimer(executionID)

		return e.persist(ctx, live.ctx)
	})
	if err != nil {
		return err
	}
	if resumeErr != nil {
		return resumeErr
	}

	e.scheduleSteps(executionID, true)
	return nil
}

// CancelExecution cooperatively cancels an execution. A step already in
// flight finishes, but no successor is scheduled.
func (e *Engine) CancelExecution(ctx context.Context, executionID string) error {
	return e.locker.WithLock(ctx, lockKey(executionID), func() error {
		live, err := e.loadLive(ctx, executionID)
		if err != nil {
			return err
		}
		if live.ctx.Status.IsTerminal() {
			return nil
		}

		live.ctx.MarkTerminal(models.ExecutionStatusCancelled)
		e.stopTimer(executionID)
		if err := e.persist(ctx, live.ctx); err != nil {
			return err
		}
		e.forget(executionID)
		return nil
	})
}

// GetExecutionStatus returns a snapshot of the execution context from
// memory, cache, or the durable store. The snapshot is taken under the
// execution lock so it never observes a half-applied step.
func (e *Engine) GetExecutionStatus(ctx context.Context, executionID string) (*models.ExecutionContext, error) {
	var snapshot *models.ExecutionContext
	err := e.locker.WithLock(ctx, lockKey(executionID), func() error {
		e.mu.RLock()
		live, ok := e.running[executionID]
		e.mu.RUnlock()
		if ok {
			copied, err := copyContext(live.ctx)
			if err != nil {
				return err
			}
			snapshot = copied
			return nil
		}

		exec, err := e.loadContext(ctx, executionID)
		if err != nil {
			return err
		}
		snapshot = exec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// copyContext deep-copies an execution context through JSON.
func copyContext(exec *models.ExecutionContext) (*models.ExecutionContext, error) {
	data, err := json.Marshal(exec)
	if err != nil {
		return nil, err
	}
	var copied models.ExecutionContext
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, err
	}
	return &copied, nil
}

// Shutdown waits for scheduled steps to finish and stops armed timers.
func (e *Engine) Shutdown() {
	e.wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	for id, timer := range e.timers {
		timer.Stop()
		delete(e.timers, id)
	}
}

// failExecution terminates a running or paused execution as failed.
func (e *Engine) failExecution(ctx context.Context, executionID, reason string) error {
	return e.locker.WithLock(ctx, lockKey(executionID), func() error {
		live, err := e.loadLive(ctx, executionID)
		if err != nil {
			return err
		}
		if live.ctx.Status.IsTerminal() {
			return nil
		}

		live.ctx.MarkTerminal(models.ExecutionStatusFailed)
		if rec, ok := live.ctx.LastStep(); ok && rec.Error == "" && rec.Outcome == models.StepOutcomePause {
			live.ctx.History[len(live.ctx.History)-1].Error = reason
		}
		e.stopTimer(executionID)
		if err := e.persist(ctx, live.ctx); err != nil {
			return err
		}

		e.bus.Publish(models.EventExecutionFailed, map[string]interface{}{
			"executionId": executionID,
			"workflowId":  live.ctx.WorkflowID,
			"error":       reason,
		})
		e.forget(executionID)
		return nil
	})
}

// loadLive returns the in-memory execution, or rebuilds one from the cache
// or store together with a fresh workflow snapshot.
func (e *Engine) loadLive(ctx context.Context, executionID string) (*liveExecution, error) {
	e.mu.RLock()
	live, ok := e.running[executionID]
	e.mu.RUnlock()
	if ok {
		return live, nil
	}

	exec, err := e.loadContext(ctx, executionID)
	if err != nil {
		return nil, err
	}

	workflow, err := e.workflows.FindByID(ctx, exec.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrWorkflowNotFound, exec.WorkflowID)
	}
	snapshot, err := workflow.Clone()
	if err != nil {
		return nil, err
	}

	live = &liveExecution{ctx: exec, workflow: snapshot}
	if !exec.Status.IsTerminal() {
		e.mu.Lock()
		e.running[executionID] = live
		e.mu.Unlock()
	}
	return live, nil
}

// forget drops a terminal execution from the in-memory map.
func (e *Engine) forget(executionID string) {
	e.mu.Lock()
	delete(e.running, executionID)
	e.mu.Unlock()
}

// stopTimer disarms a pending wake-up timer, if any.
func (e *Engine) stopTimer(executionID string) {
	e.mu.Lock()
	if timer, ok := e.timers[executionID]; ok {
		timer.Stop()
		delete(e.timers, executionID)
	}
	e.mu.Unlock()
}

// armTimer schedules a deferred timer:expired event at wakeAt.
func (e *Engine) armTimer(executionID string, wakeAt time.Time) {
	delay := time.Until(wakeAt)
	if delay < 0 {
		delay = 0
	}

	e.mu.Lock()
	if old, ok := e.timers[executionID]; ok {
		old.Stop()
	}
	e.timers[executionID] = time.AfterFunc(delay, func() {
		e.mu.Lock()
		delete(e.timers, executionID)
		e.mu.Unlock()

		e.bus.Publish(models.EventTimerExpired, map[string]interface{}{
			"executionId": executionID,
		})
	})
	e.mu.Unlock()
}

func lockKey(executionID string) string {
	return "execution:" + executionID
}
