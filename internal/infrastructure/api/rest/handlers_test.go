package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxionhq/fluxion/internal/application/trigger"
	"github.com/fluxionhq/fluxion/pkg/events"
	"github.com/fluxionhq/fluxion/pkg/models"
)

type fakeEngine struct {
	startErr   error
	resumeErr  error
	lastData   map[string]interface{}
	lastCancel string
}

func (f *fakeEngine) StartWorkflow(_ context.Context, workflowID string, data map[string]interface{}) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.lastData = data
	return "exec_1_abc", nil
}

func (f *fakeEngine) ResumeWorkflow(_ context.Context, _ string, data map[string]interface{}) error {
	f.lastData = data
	return f.resumeErr
}

func (f *fakeEngine) CancelExecution(_ context.Context, executionID string) error {
	f.lastCancel = executionID
	return nil
}

func (f *fakeEngine) GetExecutionStatus(_ context.Context, executionID string) (*models.ExecutionContext, error) {
	if executionID == "missing" {
		return nil, models.ErrExecutionNotFound
	}
	return &models.ExecutionContext{
		ExecutionID: executionID,
		WorkflowID:  "wf-1",
		Status:      models.ExecutionStatusRunning,
	}, nil
}

func newTestServer(t *testing.T, eng *fakeEngine) (*httptest.Server, *events.Bus) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := events.NewBus(nil)
	router := NewRouter(eng, trigger.NewWebhookRegistry(eng), bus, nil, nil)
	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)
	return srv, bus
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func TestTriggerWorkflowEndpoint(t *testing.T) {
	eng := &fakeEngine{}
	srv, _ := newTestServer(t, eng)

	resp := postJSON(t, srv.URL+"/api/v1/workflows/wf-1/trigger", map[string]interface{}{
		"triggerData": map[string]interface{}{"name": "world"},
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "exec_1_abc", body["executionId"])
	assert.Equal(t, "world", eng.lastData["name"])
}

func TestTriggerWorkflowNotFound(t *testing.T) {
	eng := &fakeEngine{startErr: models.ErrWorkflowNotFound}
	srv, _ := newTestServer(t, eng)

	resp := postJSON(t, srv.URL+"/api/v1/workflows/nope/trigger", map[string]interface{}{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExecutionStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{})

	resp, err := http.Get(srv.URL + "/api/v1/executions/exec_1_abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/executions/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResumeNotPausedConflict(t *testing.T) {
	eng := &fakeEngine{resumeErr: models.ErrExecutionNotPaused}
	srv, _ := newTestServer(t, eng)

	resp := postJSON(t, srv.URL+"/api/v1/executions/exec_1_abc/resume", map[string]interface{}{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestApprovalEndpointsPublish(t *testing.T) {
	srv, bus := newTestServer(t, &fakeEngine{})

	var approved, rejected map[string]interface{}
	bus.Subscribe(models.EventHumanApproved, func(_ string, payload map[string]interface{}) { approved = payload })
	bus.Subscribe(models.EventHumanRejected, func(_ string, payload map[string]interface{}) { rejected = payload })

	resp := postJSON(t, srv.URL+"/api/v1/approvals/exec_9/approve", map[string]interface{}{
		"approvalData": map[string]interface{}{"decision": "yes"},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotNil(t, approved)
	assert.Equal(t, "exec_9", approved["executionId"])

	resp = postJSON(t, srv.URL+"/api/v1/approvals/exec_9/reject", map[string]interface{}{"reason": "nope"})
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotNil(t, rejected)
	assert.Equal(t, "nope", rejected["reason"])
}

func TestWebhookEndpoint(t *testing.T) {
	eng := &fakeEngine{}
	gin.SetMode(gin.TestMode)
	bus := events.NewBus(nil)
	webhooks := trigger.NewWebhookRegistry(eng)
	token := webhooks.Register("wf-1")

	srv := httptest.NewServer(NewRouter(eng, webhooks, bus, nil, nil).Handler())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/hooks/"+token, map[string]interface{}{"order": "o-1"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "o-1", eng.lastData["order"])

	resp = postJSON(t, srv.URL+"/hooks/unknown-token", map[string]interface{}{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{})
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
