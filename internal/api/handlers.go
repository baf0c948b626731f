// Package api contains the HTTP handlers for the workflow engine
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/loomworks/workflow-engine/internal/repository"
	"github.com/loomworks/workflow-engine/internal/services"
)

// Server holds the dependencies for the API server.
type Server struct {
	store    repository.WorkflowStore
	executor *services.WorkflowExecutor
	tracker  *services.ExecutionTracker
}

// NewServer creates a new Server.
func NewServer(store repository.WorkflowStore, executor *services.WorkflowExecutor, tracker *services.ExecutionTracker) *Server {
	return &Server{
		store:    store,
		executor: executor,
		tracker:  tracker,
	}
}

// RegisterRoutes mounts all API endpoints on the echo instance.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.POST("/workflows", s.CreateWorkflow)
	e.GET("/workflows", s.ListWorkflows)
	e.GET("/workflows/:id", s.GetWorkflow)
	e.POST("/workflows/:id/execute", s.ExecuteWorkflow)
	e.GET("/workflows/:id/executions", s.ListExecutions)
	e.GET("/workflows/:id/executions/:executionId", s.GetExecution)
	e.GET("/health", s.Health)
	e.GET("/openapi.yaml", s.OpenAPISpec)
	e.GET("/docs", s.Docs)
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health reports the liveness of the storage connection
// (GET /health)
func (s *Server) Health(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:   "unhealthy",
			Database: "disconnected",
		})
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Database: "connected",
	})
}
