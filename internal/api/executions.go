package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/loomworks/workflow-engine/internal/repository"
	"github.com/loomworks/workflow-engine/pkg/models"
)

// ExecuteRequest is the body of POST /workflows/:id/execute.
type ExecuteRequest struct {
	Trigger string `json:"trigger"`
}

// ExecuteResponse is returned by POST /workflows/:id/execute.
type ExecuteResponse struct {
	ExecutionID string                 `json:"execution_id"`
	WorkflowID  string                 `json:"workflow_id"`
	Status      models.ExecutionStatus `json:"status"`
}

// StepStatus is one step entry of the execution status response.
type StepStatus struct {
	StepID   string                 `json:"step_id"`
	Status   models.ExecutionStatus `json:"status"`
	Result   json.RawMessage        `json:"result,omitempty"`
	Error    *string                `json:"error,omitempty"`
	Duration *float64               `json:"duration"` // seconds, nil while running
}

// ExecutionStatus is the full status of one execution.
type ExecutionStatus struct {
	ExecutionID    string                 `json:"execution_id"`
	WorkflowID     string                 `json:"workflow_id"`
	Trigger        string                 `json:"trigger"`
	Status         models.ExecutionStatus `json:"status"`
	CurrentStep    *string                `json:"current_step"`
	Progress       string                 `json:"progress"`
	StepsCompleted int                    `json:"steps_completed"`
	TotalSteps     int                    `json:"total_steps"`
	Error          *string                `json:"error"`
	StartedAt      time.Time              `json:"started_at"`
	CompletedAt    *time.Time             `json:"completed_at"`
	Steps          []StepStatus           `json:"steps"`
}

// ExecuteWorkflow starts a new execution of a workflow
// (POST /workflows/:id/execute)
func (s *Server) ExecuteWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.Trigger == "" {
		req.Trigger = "manual"
	}

	wf, err := s.store.GetWorkflow(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Workflow not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !wf.Enabled {
		return echo.NewHTTPError(http.StatusBadRequest, "Workflow disabled")
	}

	ex, err := s.executor.Start(ctx, wf, req.Trigger)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to start execution: "+err.Error())
	}

	return c.JSON(http.StatusOK, ExecuteResponse{
		ExecutionID: ex.ID,
		WorkflowID:  wf.ID,
		Status:      ex.Status,
	})
}

// GetExecution returns the status of one execution with its ordered step
// results
// (GET /workflows/:id/executions/:executionId)
func (s *Server) GetExecution(c echo.Context) error {
	ctx := c.Request().Context()

	ex, results, err := s.tracker.Status(ctx, c.Param("id"), c.Param("executionId"))
	if errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Execution not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	steps := make([]StepStatus, 0, len(results))
	for _, r := range results {
		steps = append(steps, StepStatus{
			StepID:   r.StepID,
			Status:   r.Status,
			Result:   json.RawMessage(r.Result),
			Error:    r.Error,
			Duration: r.Duration(),
		})
	}

	return c.JSON(http.StatusOK, ExecutionStatus{
		ExecutionID:    ex.ID,
		WorkflowID:     ex.WorkflowID,
		Trigger:        ex.Trigger,
		Status:         ex.Status,
		CurrentStep:    ex.CurrentStep,
		Progress:       fmt.Sprintf("%d/%d", ex.StepsCompleted, ex.TotalSteps),
		StepsCompleted: ex.StepsCompleted,
		TotalSteps:     ex.TotalSteps,
		Error:          ex.Error,
		StartedAt:      ex.StartedAt,
		CompletedAt:    ex.CompletedAt,
		Steps:          steps,
	})
}

// ListExecutions lists the executions of a workflow, newest first
// (GET /workflows/:id/executions)
func (s *Server) ListExecutions(c echo.Context) error {
	ctx := c.Request().Context()

	workflowID := c.Param("id")
	if _, err := s.store.GetWorkflow(ctx, workflowID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Workflow not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	executions, err := s.tracker.ListExecutions(ctx, workflowID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{"executions": executions})
}
