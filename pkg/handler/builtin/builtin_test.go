package builtin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxionhq/fluxion/pkg/events"
	"github.com/fluxionhq/fluxion/pkg/handler"
	"github.com/fluxionhq/fluxion/pkg/models"
)

func newExec(vars map[string]interface{}) *models.ExecutionContext {
	exec := models.NewExecutionContext("wf-1", vars)
	return exec
}

func TestTriggerHandler(t *testing.T) {
	h := NewTriggerHandler()

	res, err := h.Execute(context.Background(), &models.Node{ID: "t", Kind: models.NodeKindTrigger}, newExec(nil))
	require.NoError(t, err)
	require.Equal(t, handler.ResultSuccess, res.Kind)
	assert.Equal(t, "manual", res.Output["trigger"])
	assert.NotEmpty(t, res.Output["timestamp"])
}

func TestDecisionHandlerFirstTrueWins(t *testing.T) {
	h := NewDecisionHandler()
	node := &models.Node{
		ID:   "d",
		Kind: models.NodeKindDecision,
		Config: map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"name": "low", "expression": "{{score}} < 3"},
				map[string]interface{}{"name": "high", "expression": "{{score}} > 7"},
				map[string]interface{}{"name": "also_high", "expression": "{{score}} > 5"},
			},
		},
	}

	res, err := h.Execute(context.Background(), node, newExec(map[string]interface{}{"score": float64(9)}))
	require.NoError(t, err)
	require.Equal(t, handler.ResultSuccess, res.Kind)
	assert.Equal(t, "high", res.Output["decisionPath"])

	results := res.Output["conditionResults"].(map[string]interface{})
	assert.Equal(t, false, results["low"])
	assert.Equal(t, true, results["high"])
	assert.Equal(t, true, results["also_high"])
}

func TestDecisionHandlerAllFalseSelectsDefault(t *testing.T) {
	h := NewDecisionHandler()
	node := &models.Node{
		ID:   "d",
		Kind: models.NodeKindDecision,
		Config: map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"name": "hi", "expression": "{{score}} > 7"},
			},
		},
	}

	res, err := h.Execute(context.Background(), node, newExec(map[string]interface{}{"score": float64(3)}))
	require.NoError(t, err)
	assert.Equal(t, "default", res.Output["decisionPath"])
}

func TestTimerHandlerShortDelayInline(t *testing.T) {
	h := NewTimerHandler()
	node := &models.Node{
		ID:   "timer",
		Kind: models.NodeKindTimer,
		Config: map[string]interface{}{
			"delay": float64(20),
			"unit":  "milliseconds",
		},
	}

	start := time.Now()
	res, err := h.Execute(context.Background(), node, newExec(nil))
	require.NoError(t, err)
	require.Equal(t, handler.ResultSuccess, res.Kind)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, false, res.Output["deferred"])
}

func TestTimerHandlerLongDelayPauses(t *testing.T) {
	h := NewTimerHandler()
	node := &models.Node{
		ID:   "timer",
		Kind: models.NodeKindTimer,
		Config: map[string]interface{}{
			"delay": float64(120),
			"unit":  "seconds",
		},
	}

	res, err := h.Execute(context.Background(), node, newExec(nil))
	require.NoError(t, err)
	require.Equal(t, handler.ResultPause, res.Kind)
	assert.Equal(t, PauseReasonTimer, res.PauseReason)

	data := res.PauseData.(map[string]interface{})
	assert.NotEmpty(t, data["wake_at"])
	assert.Equal(t, int64(120000), data["delay_ms"])
}

func TestTimerHandlerExactBoundaryPauses(t *testing.T) {
	h := NewTimerHandler()
	// Exactly 60 000 ms takes the pause path, not the inline sleep.
	node := &models.Node{
		ID:   "timer",
		Kind: models.NodeKindTimer,
		Config: map[string]interface{}{
			"delay": float64(60000),
			"unit":  "milliseconds",
		},
	}

	res, err := h.Execute(context.Background(), node, newExec(nil))
	require.NoError(t, err)
	assert.Equal(t, handler.ResultPause, res.Kind)
}

func TestTimerHandlerRejectsNonPositiveDelay(t *testing.T) {
	h := NewTimerHandler()
	for _, delay := range []float64{0, -5} {
		node := &models.Node{
			ID:     "timer",
			Kind:   models.NodeKindTimer,
			Config: map[string]interface{}{"delay": delay, "unit": "seconds"},
		}
		res, err := h.Execute(context.Background(), node, newExec(nil))
		require.NoError(t, err)
		assert.Equal(t, handler.ResultError, res.Kind)
	}
}

func TestTimerHandlerRejectsUnknownUnit(t *testing.T) {
	h := NewTimerHandler()
	node := &models.Node{
		ID:     "timer",
		Kind:   models.NodeKindTimer,
		Config: map[string]interface{}{"delay": float64(1), "unit": "fortnights"},
	}
	res, err := h.Execute(context.Background(), node, newExec(nil))
	require.NoError(t, err)
	assert.Equal(t, handler.ResultError, res.Kind)
}

func TestHumanTaskHandlerPausesAndPublishes(t *testing.T) {
	bus := events.NewBus(nil)
	var published map[string]interface{}
	bus.Subscribe(models.EventHumanApprovalRequested, func(_ string, payload map[string]interface{}) {
		published = payload
	})

	h := NewHumanTaskHandler(bus)
	node := &models.Node{
		ID:   "approve",
		Kind: models.NodeKindHumanTask,
		Config: map[string]interface{}{
			"assignee": "a@b",
			"title":    "Review order {{order_id}}",
		},
	}
	exec := newExec(map[string]interface{}{"order_id": "o-42"})

	res, err := h.Execute(context.Background(), node, exec)
	require.NoError(t, err)
	require.Equal(t, handler.ResultPause, res.Kind)
	assert.Equal(t, PauseReasonHumanApproval, res.PauseReason)

	require.NotNil(t, published)
	assert.Equal(t, exec.ExecutionID, published["executionId"])
	assert.Equal(t, "a@b", published["assignee"])
	assert.Equal(t, "Review order o-42", published["title"])
}

func TestHumanTaskHandlerRequiresAssignee(t *testing.T) {
	h := NewHumanTaskHandler(events.NewBus(nil))
	node := &models.Node{ID: "approve", Kind: models.NodeKindHumanTask, Config: map[string]interface{}{}}

	res, err := h.Execute(context.Background(), node, newExec(nil))
	require.NoError(t, err)
	assert.Equal(t, handler.ResultError, res.Kind)
}

func TestActionHandlerLog(t *testing.T) {
	h := NewActionHandler(nil, nil, nil, nil)
	node := &models.Node{
		ID:   "log",
		Kind: models.NodeKindAction,
		Config: map[string]interface{}{
			"actionType": "log",
			"message":    "hi {{name}}",
		},
	}

	res, err := h.Execute(context.Background(), node, newExec(map[string]interface{}{"name": "world"}))
	require.NoError(t, err)
	require.Equal(t, handler.ResultSuccess, res.Kind)
	assert.Equal(t, true, res.Output["logged"])
	assert.Equal(t, "hi world", res.Output["message"])
	assert.Equal(t, "info", res.Output["level"])
}

func TestActionHandlerHTTPRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/o-42", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	h := NewActionHandler(srv.Client(), nil, nil, nil)
	node := &models.Node{
		ID:   "call",
		Kind: models.NodeKindAction,
		Config: map[string]interface{}{
			"actionType": "http_request",
			"url":        srv.URL + "/orders/{{order_id}}",
		},
	}

	res, err := h.Execute(context.Background(), node, newExec(map[string]interface{}{"order_id": "o-42"}))
	require.NoError(t, err)
	require.Equal(t, handler.ResultSuccess, res.Kind)
	assert.Equal(t, http.StatusOK, res.Output["status"])
	assert.Equal(t, map[string]interface{}{"ok": true}, res.Output["response"])
}

func TestActionHandlerHTTPServerErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "kaboom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := NewActionHandler(srv.Client(), nil, nil, nil)
	node := &models.Node{
		ID:   "call",
		Kind: models.NodeKindAction,
		Config: map[string]interface{}{
			"actionType": "http_request",
			"url":        srv.URL,
		},
	}

	res, err := h.Execute(context.Background(), node, newExec(nil))
	require.NoError(t, err)
	assert.Equal(t, handler.ResultError, res.Kind)
	assert.Contains(t, res.Message, "HTTP 500")
}

type fakeEmail struct {
	sent bool
	err  error
	to   string
}

func (f *fakeEmail) Send(_ context.Context, to, _, _ string) (bool, error) {
	f.to = to
	return f.sent, f.err
}

func TestActionHandlerEmail(t *testing.T) {
	email := &fakeEmail{sent: true}
	h := NewActionHandler(nil, email, nil, nil)
	node := &models.Node{
		ID:   "mail",
		Kind: models.NodeKindAction,
		Config: map[string]interface{}{
			"actionType": "email",
			"to":         "{{customer}}",
			"subject":    "hello",
			"body":       "hi",
		},
	}

	res, err := h.Execute(context.Background(), node, newExec(map[string]interface{}{"customer": "c@d"}))
	require.NoError(t, err)
	require.Equal(t, handler.ResultSuccess, res.Kind)
	assert.Equal(t, true, res.Output["sent"])
	assert.Equal(t, "c@d", email.to)
}

func TestActionHandlerEmailFailure(t *testing.T) {
	h := NewActionHandler(nil, &fakeEmail{err: errors.New("smtp down")}, nil, nil)
	node := &models.Node{
		ID:   "mail",
		Kind: models.NodeKindAction,
		Config: map[string]interface{}{
			"actionType": "email",
			"to":         "c@d",
		},
	}

	res, err := h.Execute(context.Background(), node, newExec(nil))
	require.NoError(t, err)
	assert.Equal(t, handler.ResultError, res.Kind)
}

func TestActionHandlerUnknownType(t *testing.T) {
	h := NewActionHandler(nil, nil, nil, nil)
	node := &models.Node{
		ID:     "x",
		Kind:   models.NodeKindAction,
		Config: map[string]interface{}{"actionType": "teleport"},
	}

	res, err := h.Execute(context.Background(), node, newExec(nil))
	require.NoError(t, err)
	assert.Equal(t, handler.ResultError, res.Kind)
}

func TestTransformHandlerPick(t *testing.T) {
	h := NewTransformHandler()
	node := &models.Node{
		ID:   "t",
		Kind: models.NodeKindDataTransform,
		Config: map[string]interface{}{
			"operation": "pick",
			"keys":      []interface{}{"a", "missing"},
		},
	}

	res, err := h.Execute(context.Background(), node, newExec(map[string]interface{}{"a": float64(1), "b": float64(2)}))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, res.Output)
}

func TestTransformHandlerJQ(t *testing.T) {
	h := NewTransformHandler()
	node := &models.Node{
		ID:   "t",
		Kind: models.NodeKindDataTransform,
		Config: map[string]interface{}{
			"operation": "jq",
			"filter":    ".items | length",
		},
	}

	exec := newExec(map[string]interface{}{
		"items": []interface{}{"a", "b", "c"},
	})

	res, err := h.Execute(context.Background(), node, exec)
	require.NoError(t, err)
	require.Equal(t, handler.ResultSuccess, res.Kind)
	assert.Equal(t, 3, res.Output["result"])
}

func TestTransformHandlerJQInvalidFilter(t *testing.T) {
	h := NewTransformHandler()
	node := &models.Node{
		ID:   "t",
		Kind: models.NodeKindDataTransform,
		Config: map[string]interface{}{
			"operation": "jq",
			"filter":    ".items | ](",
		},
	}

	res, err := h.Execute(context.Background(), node, newExec(nil))
	require.NoError(t, err)
	assert.Equal(t, handler.ResultError, res.Kind)
}

func TestOperationHandlerSubstitutesAndWraps(t *testing.T) {
	var gotOp string
	var gotConfig map[string]interface{}
	adapter := OperationFunc(func(_ context.Context, op string, cfg map[string]interface{}) (map[string]interface{}, error) {
		gotOp = op
		gotConfig = cfg
		return map[string]interface{}{"stored": true}, nil
	})

	bus := events.NewBus(nil)
	var mu sync.Mutex
	var eventNames []string
	bus.Subscribe("form:*", func(_ string, payload map[string]interface{}) {
		mu.Lock()
		eventNames = append(eventNames, payload["operation"].(string))
		mu.Unlock()
	})

	h := NewFormBuilderHandler(adapter, bus)
	node := &models.Node{
		ID:   "f",
		Kind: models.NodeKindFormBuilder,
		Config: map[string]interface{}{
			"operation": "create_form",
			"config": map[string]interface{}{
				"title": "Feedback from {{user}}",
			},
		},
	}

	res, err := h.Execute(context.Background(), node, newExec(map[string]interface{}{"user": "alice"}))
	require.NoError(t, err)
	require.Equal(t, handler.ResultSuccess, res.Kind)
	assert.Equal(t, "create_form", gotOp)
	assert.Equal(t, "Feedback from alice", gotConfig["title"])
	assert.Equal(t, true, res.Output["stored"])
	assert.Equal(t, []string{"create_form"}, eventNames)
}

func TestOperationHandlerAdapterFailure(t *testing.T) {
	adapter := OperationFunc(func(context.Context, string, map[string]interface{}) (map[string]interface{}, error) {
		return nil, errors.New("disk full")
	})

	h := NewFileOperationsHandler(adapter)
	node := &models.Node{
		ID:     "f",
		Kind:   models.NodeKindFileOperations,
		Config: map[string]interface{}{"operation": "write"},
	}

	res, err := h.Execute(context.Background(), node, newExec(nil))
	require.NoError(t, err)
	assert.Equal(t, handler.ResultError, res.Kind)
	assert.Contains(t, res.Message, "disk full")
}

func TestRegisterBuiltinsCoversAllKinds(t *testing.T) {
	registry := handler.NewRegistry()
	deps := Dependencies{
		Bus:          events.NewBus(nil),
		ProviderPool: NewProviderPool(memoryQuota()),
	}
	require.NoError(t, RegisterBuiltins(registry, deps))

	for _, kind := range models.KnownNodeKinds {
		assert.True(t, registry.Has(kind), string(kind))
	}
}
