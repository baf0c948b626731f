package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/workflow-engine/internal/repository"
	"github.com/loomworks/workflow-engine/internal/services"
	"github.com/loomworks/workflow-engine/pkg/models"
)

type apiFixture struct {
	e     *echo.Echo
	store repository.WorkflowStore
	srv   *httptest.Server
}

func newAPIFixture(t *testing.T, store repository.WorkflowStore) *apiFixture {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"ok": true}`))
	})
	mux.HandleFunc("/fail", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracker := services.NewExecutionTracker(store)
	allow := services.NewAllowList([]string{"127.0.0.1"}, 1, 65535)
	invoker := services.NewHTTPStepInvoker(tracker, allow, time.Second, logger)
	executor := services.NewWorkflowExecutor(tracker, invoker, logger)

	e := echo.New()
	NewServer(store, executor, tracker).RegisterRoutes(e)

	return &apiFixture{e: e, store: store, srv: srv}
}

func (f *apiFixture) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) createWorkflow(t *testing.T, req CreateWorkflowRequest) string {
	t.Helper()
	rec := f.request(t, http.MethodPost, "/workflows", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp CreateWorkflowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.WorkflowID
}

func TestCreateWorkflowEndpoint(t *testing.T) {
	f := newAPIFixture(t, repository.NewMemoryWorkflowStore())

	t.Run("valid definition", func(t *testing.T) {
		rec := f.request(t, http.MethodPost, "/workflows", CreateWorkflowRequest{
			Name: "report",
			Steps: []models.Step{
				{StepID: "collect", ServiceURL: f.srv.URL + "/ok"},
				{StepID: "send", ServiceURL: f.srv.URL + "/ok", DependsOn: []string{"collect"}},
			},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp CreateWorkflowResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.WorkflowID)
		assert.Equal(t, "report", resp.Name)
		assert.Equal(t, 2, resp.Steps)
		assert.True(t, resp.Created)

		// defaults applied on ingestion
		wf, err := f.store.GetWorkflow(context.Background(), resp.WorkflowID)
		require.NoError(t, err)
		assert.True(t, wf.Enabled)
		assert.Equal(t, models.DefaultRetryCount, wf.Steps[0].RetryCount)
		assert.Equal(t, "POST", wf.Steps[0].Method)
	})

	t.Run("unknown dependency rejected", func(t *testing.T) {
		rec := f.request(t, http.MethodPost, "/workflows", CreateWorkflowRequest{
			Name: "broken",
			Steps: []models.Step{
				{StepID: "a", ServiceURL: f.srv.URL + "/ok", DependsOn: []string{"ghost"}},
			},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/workflows", strings.NewReader("{nope"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		f.e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListWorkflowsEndpoint(t *testing.T) {
	f := newAPIFixture(t, repository.NewMemoryWorkflowStore())

	enabled := true
	disabled := false
	f.createWorkflow(t, CreateWorkflowRequest{
		Name:    "active",
		Steps:   []models.Step{{StepID: "s", ServiceURL: f.srv.URL + "/ok"}},
		Enabled: &enabled,
	})
	f.createWorkflow(t, CreateWorkflowRequest{
		Name:    "paused",
		Steps:   []models.Step{{StepID: "s", ServiceURL: f.srv.URL + "/ok"}},
		Enabled: &disabled,
	})

	var listing struct {
		Workflows []WorkflowSummary `json:"workflows"`
	}

	rec := f.request(t, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Len(t, listing.Workflows, 2)

	rec = f.request(t, http.MethodGet, "/workflows?enabled=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Workflows, 1)
	assert.Equal(t, "active", listing.Workflows[0].Name)

	rec = f.request(t, http.MethodGet, "/workflows?enabled=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetWorkflowEndpoint(t *testing.T) {
	f := newAPIFixture(t, repository.NewMemoryWorkflowStore())

	id := f.createWorkflow(t, CreateWorkflowRequest{
		Name:  "lookup",
		Steps: []models.Step{{StepID: "s", ServiceURL: f.srv.URL + "/ok"}},
	})

	rec := f.request(t, http.MethodGet, "/workflows/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var wf models.Workflow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wf))
	assert.Equal(t, "lookup", wf.Name)

	rec = f.request(t, http.MethodGet, "/workflows/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecuteWorkflowEndpoint(t *testing.T) {
	f := newAPIFixture(t, repository.NewMemoryWorkflowStore())

	t.Run("missing workflow", func(t *testing.T) {
		rec := f.request(t, http.MethodPost,
			fmt.Sprintf("/workflows/%s/execute", uuid.New().String()), ExecuteRequest{})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("disabled workflow", func(t *testing.T) {
		disabled := false
		id := f.createWorkflow(t, CreateWorkflowRequest{
			Name:    "off",
			Steps:   []models.Step{{StepID: "s", ServiceURL: f.srv.URL + "/ok"}},
			Enabled: &disabled,
		})
		rec := f.request(t, http.MethodPost, "/workflows/"+id+"/execute", ExecuteRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("successful run", func(t *testing.T) {
		id := f.createWorkflow(t, CreateWorkflowRequest{
			Name: "run",
			Steps: []models.Step{
				{StepID: "collect", ServiceURL: f.srv.URL + "/ok"},
				{StepID: "send", ServiceURL: f.srv.URL + "/ok", DependsOn: []string{"collect"}},
			},
		})

		rec := f.request(t, http.MethodPost, "/workflows/"+id+"/execute",
			ExecuteRequest{Trigger: "manual"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ExecuteResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, id, resp.WorkflowID)
		assert.Equal(t, models.StatusRunning, resp.Status)

		statusPath := fmt.Sprintf("/workflows/%s/executions/%s", id, resp.ExecutionID)
		require.Eventually(t, func() bool {
			rec := f.request(t, http.MethodGet, statusPath, nil)
			if rec.Code != http.StatusOK {
				return false
			}
			var status ExecutionStatus
			if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
				return false
			}
			return status.Status == models.StatusCompleted
		}, 5*time.Second, 10*time.Millisecond)

		rec = f.request(t, http.MethodGet, statusPath, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var status ExecutionStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "2/2", status.Progress)
		assert.Equal(t, 2, status.StepsCompleted)
		require.Len(t, status.Steps, 2)
		assert.Equal(t, "collect", status.Steps[0].StepID)
		for _, s := range status.Steps {
			assert.Equal(t, models.StatusCompleted, s.Status)
			assert.NotNil(t, s.Duration)
		}
		require.NotNil(t, status.CompletedAt)

		// terminal state does not change on repeated queries
		again := f.request(t, http.MethodGet, statusPath, nil)
		assert.JSONEq(t, rec.Body.String(), again.Body.String())
	})

	t.Run("failed run keeps partial results", func(t *testing.T) {
		id := f.createWorkflow(t, CreateWorkflowRequest{
			Name: "failing",
			Steps: []models.Step{
				{StepID: "good", ServiceURL: f.srv.URL + "/ok", RetryCount: 1},
				{StepID: "bad", ServiceURL: f.srv.URL + "/fail", RetryCount: 1},
				{StepID: "never", ServiceURL: f.srv.URL + "/ok", RetryCount: 1},
			},
		})

		rec := f.request(t, http.MethodPost, "/workflows/"+id+"/execute", ExecuteRequest{})
		require.Equal(t, http.StatusOK, rec.Code)
		var resp ExecuteResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		statusPath := fmt.Sprintf("/workflows/%s/executions/%s", id, resp.ExecutionID)
		var status ExecutionStatus
		require.Eventually(t, func() bool {
			rec := f.request(t, http.MethodGet, statusPath, nil)
			if rec.Code != http.StatusOK {
				return false
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
				return false
			}
			return status.Status == models.StatusFailed
		}, 5*time.Second, 10*time.Millisecond)

		assert.Equal(t, 1, status.StepsCompleted)
		require.NotNil(t, status.Error)
		assert.Equal(t, "Step bad failed", *status.Error)
		require.Len(t, status.Steps, 2, "aborted step has no result")
	})
}

func TestListExecutionsEndpoint(t *testing.T) {
	f := newAPIFixture(t, repository.NewMemoryWorkflowStore())

	id := f.createWorkflow(t, CreateWorkflowRequest{
		Name:  "history",
		Steps: []models.Step{{StepID: "s", ServiceURL: f.srv.URL + "/ok"}},
	})

	rec := f.request(t, http.MethodPost, "/workflows/"+id+"/execute", ExecuteRequest{})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		rec := f.request(t, http.MethodGet, "/workflows/"+id+"/executions", nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var listing struct {
			Executions []models.Execution `json:"executions"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
			return false
		}
		return len(listing.Executions) == 1 &&
			listing.Executions[0].Status == models.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	rec = f.request(t, http.MethodGet,
		fmt.Sprintf("/workflows/%s/executions", uuid.New().String()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetExecutionNotFound(t *testing.T) {
	f := newAPIFixture(t, repository.NewMemoryWorkflowStore())

	id := f.createWorkflow(t, CreateWorkflowRequest{
		Name:  "lonely",
		Steps: []models.Step{{StepID: "s", ServiceURL: f.srv.URL + "/ok"}},
	})

	rec := f.request(t, http.MethodGet,
		fmt.Sprintf("/workflows/%s/executions/%s", id, uuid.New().String()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type failingPingStore struct {
	*repository.MemoryWorkflowStore
}

func (s *failingPingStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		f := newAPIFixture(t, repository.NewMemoryWorkflowStore())
		rec := f.request(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"healthy","database":"connected"}`, rec.Body.String())
	})

	t.Run("storage down", func(t *testing.T) {
		f := newAPIFixture(t, &failingPingStore{repository.NewMemoryWorkflowStore()})
		rec := f.request(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"unhealthy","database":"disconnected"}`, rec.Body.String())
	})
}
