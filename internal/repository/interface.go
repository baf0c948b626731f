package repository

import (
	"context"
	"errors"

	"github.com/loomworks/workflow-engine/pkg/models"
)

// ErrNotFound is returned when a workflow or execution does not exist.
var ErrNotFound = errors.New("not found")

// WorkflowStore is an interface for persisting workflow definitions,
// executions, and step results.
type WorkflowStore interface {
	// CreateWorkflow persists a new workflow definition.
	CreateWorkflow(ctx context.Context, wf *models.Workflow) error
	// GetWorkflow retrieves a workflow definition by its ID.
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	// ListWorkflows lists workflow definitions, optionally filtered by the
	// enabled flag.
	ListWorkflows(ctx context.Context, enabled *bool) ([]*models.Workflow, error)

	// CreateExecution persists a new execution in the running state.
	CreateExecution(ctx context.Context, ex *models.Execution) error
	// GetExecution retrieves one execution belonging to a workflow.
	GetExecution(ctx context.Context, workflowID, executionID string) (*models.Execution, error)
	// ListExecutions lists the executions of a workflow, newest first.
	ListExecutions(ctx context.Context, workflowID string) ([]*models.Execution, error)
	// SetCurrentStep records the step an execution is currently on.
	SetCurrentStep(ctx context.Context, executionID, stepID string) error
	// AdvanceProgress increments an execution's completed-step counter.
	AdvanceProgress(ctx context.Context, executionID string) error
	// FinishExecution moves an execution to a terminal state. It is a no-op
	// for executions already in a terminal state.
	FinishExecution(ctx context.Context, executionID string, status models.ExecutionStatus, errMsg *string) error

	// CreateStepResult records the start of a step attempt series.
	CreateStepResult(ctx context.Context, r *models.StepResult) error
	// CompleteStepResult records the terminal outcome of a step.
	CompleteStepResult(ctx context.Context, executionID, stepID string, status models.ExecutionStatus, result []byte, errMsg *string) error
	// ListStepResults lists the step results of an execution in start order.
	ListStepResults(ctx context.Context, executionID string) ([]*models.StepResult, error)

	// Ping verifies the storage connection is alive.
	Ping(ctx context.Context) error
}
