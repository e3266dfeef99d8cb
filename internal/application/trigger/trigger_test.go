package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxionhq/fluxion/pkg/models"
)

type fakeStarter struct {
	mu    sync.Mutex
	calls []startCall
	err   error
}

type startCall struct {
	workflowID string
	data       map[string]interface{}
}

func (f *fakeStarter) StartWorkflow(_ context.Context, workflowID string, data map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, startCall{workflowID: workflowID, data: data})
	return "exec_1_test", nil
}

func (f *fakeStarter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestCronSchedulerFires(t *testing.T) {
	starter := &fakeStarter{}
	s := NewCronScheduler(starter, nil)
	require.NoError(t, s.AddSchedule("sched-1", "wf-1", "@every 100ms", map[string]interface{}{"source": "cron"}))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return starter.count() >= 1 }, 3*time.Second, 20*time.Millisecond)

	starter.mu.Lock()
	call := starter.calls[0]
	starter.mu.Unlock()
	assert.Equal(t, "wf-1", call.workflowID)
	assert.Equal(t, "schedule", call.data["trigger"])
	assert.Equal(t, "cron", call.data["source"])
}

func TestCronSchedulerRejectsBadSpec(t *testing.T) {
	s := NewCronScheduler(&fakeStarter{}, nil)
	assert.Error(t, s.AddSchedule("sched-1", "wf-1", "not a cron spec", nil))
	assert.Equal(t, 0, s.Count())
}

func TestCronSchedulerRemove(t *testing.T) {
	s := NewCronScheduler(&fakeStarter{}, nil)
	require.NoError(t, s.AddSchedule("sched-1", "wf-1", "@every 1h", nil))
	assert.Equal(t, 1, s.Count())

	s.RemoveSchedule("sched-1")
	assert.Equal(t, 0, s.Count())

	// Removing twice is harmless.
	s.RemoveSchedule("sched-1")
}

func TestManagerSyncRegistersTriggerNodes(t *testing.T) {
	starter := &fakeStarter{}
	scheduler := NewCronScheduler(starter, nil)
	webhooks := NewWebhookRegistry(starter)
	m := NewManager(scheduler, webhooks, nil)

	workflows := []*models.Workflow{
		{
			ID:     "wf-cron",
			Name:   "cron",
			Status: models.WorkflowStatusActive,
			Nodes: []*models.Node{
				{ID: "start", Kind: models.NodeKindTrigger, Config: map[string]interface{}{
					"type": "schedule",
					"cron": "@every 1h",
					"payload": map[string]interface{}{
						"source": "nightly",
					},
				}},
			},
		},
		{
			ID:     "wf-hook",
			Name:   "hook",
			Status: models.WorkflowStatusActive,
			Nodes: []*models.Node{
				{ID: "start", Kind: models.NodeKindTrigger, Config: map[string]interface{}{
					"type":  "webhook",
					"token": "stable-token",
				}},
			},
		},
		{
			ID:     "wf-manual",
			Name:   "manual",
			Status: models.WorkflowStatusActive,
			Nodes: []*models.Node{
				{ID: "start", Kind: models.NodeKindTrigger},
			},
		},
		{
			ID:     "wf-draft",
			Name:   "draft",
			Status: models.WorkflowStatusDraft,
			Nodes: []*models.Node{
				{ID: "start", Kind: models.NodeKindTrigger, Config: map[string]interface{}{
					"type": "schedule",
					"cron": "@every 1h",
				}},
			},
		},
	}

	schedules, hooks := m.Sync(workflows)
	assert.Equal(t, 1, schedules)
	assert.Equal(t, 1, hooks)
	assert.Equal(t, 1, scheduler.Count())

	// The declared token routes to its workflow.
	id, err := webhooks.Trigger(context.Background(), "stable-token", nil)
	require.NoError(t, err)
	assert.Equal(t, "exec_1_test", id)
	assert.Equal(t, "wf-hook", starter.calls[0].workflowID)

	// Re-syncing is idempotent: same schedule ID replaces, token rebinds.
	schedules, hooks = m.Sync(workflows)
	assert.Equal(t, 1, schedules)
	assert.Equal(t, 1, hooks)
	assert.Equal(t, 1, scheduler.Count())
}

func TestManagerSyncSkipsInvalidScheduleSpecs(t *testing.T) {
	starter := &fakeStarter{}
	scheduler := NewCronScheduler(starter, nil)
	m := NewManager(scheduler, NewWebhookRegistry(starter), nil)

	workflows := []*models.Workflow{
		{
			ID:     "wf-bad",
			Name:   "bad",
			Status: models.WorkflowStatusActive,
			Nodes: []*models.Node{
				{ID: "a", Kind: models.NodeKindTrigger, Config: map[string]interface{}{
					"type": "schedule",
					"cron": "not a spec",
				}},
				{ID: "b", Kind: models.NodeKindTrigger, Config: map[string]interface{}{
					"type": "schedule",
				}},
			},
		},
	}

	schedules, hooks := m.Sync(workflows)
	assert.Zero(t, schedules)
	assert.Zero(t, hooks)
	assert.Zero(t, scheduler.Count())
}

func TestWebhookRegistry(t *testing.T) {
	starter := &fakeStarter{}
	r := NewWebhookRegistry(starter)

	token := r.Register("wf-7")
	require.NotEmpty(t, token)

	id, err := r.Trigger(context.Background(), token, map[string]interface{}{"order": "o-1"})
	require.NoError(t, err)
	assert.Equal(t, "exec_1_test", id)

	starter.mu.Lock()
	call := starter.calls[0]
	starter.mu.Unlock()
	assert.Equal(t, "wf-7", call.workflowID)
	assert.Equal(t, "webhook", call.data["trigger"])
	assert.Equal(t, "o-1", call.data["order"])

	r.Unregister(token)
	_, err = r.Trigger(context.Background(), token, nil)
	assert.Error(t, err)
}
