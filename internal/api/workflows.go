package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/loomworks/workflow-engine/internal/repository"
	"github.com/loomworks/workflow-engine/pkg/models"
)

// CreateWorkflowRequest is the body of POST /workflows.
type CreateWorkflowRequest struct {
	Name        string        `json:"name"`
	Description *string       `json:"description"`
	Steps       []models.Step `json:"steps"`
	Schedule    *string       `json:"schedule"`
	Enabled     *bool         `json:"enabled"`
}

// CreateWorkflowResponse is returned by POST /workflows.
type CreateWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
	Name       string `json:"name"`
	Steps      int    `json:"steps"`
	Created    bool   `json:"created"`
}

// WorkflowSummary is one entry of the workflow listing.
type WorkflowSummary struct {
	WorkflowID  string    `json:"workflow_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Schedule    *string   `json:"schedule"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateWorkflow creates a new workflow definition
// (POST /workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	wf := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Steps:       req.Steps,
		Schedule:    req.Schedule,
		Enabled:     true,
	}
	if req.Enabled != nil {
		wf.Enabled = *req.Enabled
	}
	wf.ApplyDefaults()

	if err := wf.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := s.store.CreateWorkflow(ctx, wf); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save workflow: "+err.Error())
	}

	return c.JSON(http.StatusOK, CreateWorkflowResponse{
		WorkflowID: wf.ID,
		Name:       wf.Name,
		Steps:      len(wf.Steps),
		Created:    true,
	})
}

// GetWorkflow returns one workflow definition
// (GET /workflows/:id)
func (s *Server) GetWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	wf, err := s.store.GetWorkflow(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Workflow not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, wf)
}

// ListWorkflows returns all workflow definitions, optionally filtered by
// the enabled flag
// (GET /workflows?enabled=<bool>)
func (s *Server) ListWorkflows(c echo.Context) error {
	ctx := c.Request().Context()

	var enabled *bool
	if v := c.QueryParam("enabled"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid enabled filter: "+v)
		}
		enabled = &b
	}

	workflows, err := s.store.ListWorkflows(ctx, enabled)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	summaries := make([]WorkflowSummary, 0, len(workflows))
	for _, wf := range workflows {
		summaries = append(summaries, WorkflowSummary{
			WorkflowID:  wf.ID,
			Name:        wf.Name,
			Description: wf.Description,
			Schedule:    wf.Schedule,
			Enabled:     wf.Enabled,
			CreatedAt:   wf.CreatedAt,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{"workflows": summaries})
}
