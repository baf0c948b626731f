package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/loomworks/workflow-engine/internal/repository"
	"github.com/loomworks/workflow-engine/pkg/models"
)

// ExecutionTracker records execution and step state transitions and answers
// progress queries. All persistence flows through it so no step outcome is
// ever hidden from the store.
type ExecutionTracker struct {
	store repository.WorkflowStore
}

// NewExecutionTracker creates a new ExecutionTracker.
func NewExecutionTracker(store repository.WorkflowStore) *ExecutionTracker {
	return &ExecutionTracker{store: store}
}

// Begin creates a new execution in the running state.
func (t *ExecutionTracker) Begin(ctx context.Context, workflowID, trigger string, totalSteps int) (*models.Execution, error) {
	ex := &models.Execution{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Trigger:    trigger,
		Status:     models.StatusRunning,
		TotalSteps: totalSteps,
	}
	if err := t.store.CreateExecution(ctx, ex); err != nil {
		return nil, err
	}
	return ex, nil
}

// SetCurrentStep records the step the execution is currently on.
func (t *ExecutionTracker) SetCurrentStep(ctx context.Context, executionID, stepID string) error {
	return t.store.SetCurrentStep(ctx, executionID, stepID)
}

// RecordStepStart creates a running step result for the given step.
func (t *ExecutionTracker) RecordStepStart(ctx context.Context, executionID, stepID string) error {
	return t.store.CreateStepResult(ctx, &models.StepResult{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		StepID:      stepID,
		Status:      models.StatusRunning,
	})
}

// RecordStepOutcome marks a step completed with its response payload, or
// failed with its error message.
func (t *ExecutionTracker) RecordStepOutcome(ctx context.Context, executionID, stepID string, success bool, payload []byte, errMsg string) error {
	if success {
		return t.store.CompleteStepResult(ctx, executionID, stepID, models.StatusCompleted, payload, nil)
	}
	return t.store.CompleteStepResult(ctx, executionID, stepID, models.StatusFailed, nil, &errMsg)
}

// AdvanceProgress increments the execution's completed-step counter. It is
// called only after a successful step and never decrements.
func (t *ExecutionTracker) AdvanceProgress(ctx context.Context, executionID string) error {
	return t.store.AdvanceProgress(ctx, executionID)
}

// Finish moves the execution to a terminal state. An execution transitions
// to a terminal state at most once; later calls are no-ops.
func (t *ExecutionTracker) Finish(ctx context.Context, executionID string, status models.ExecutionStatus, errMsg string) error {
	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}
	return t.store.FinishExecution(ctx, executionID, status, msg)
}

// Status returns one execution with its step results in start order.
func (t *ExecutionTracker) Status(ctx context.Context, workflowID, executionID string) (*models.Execution, []*models.StepResult, error) {
	ex, err := t.store.GetExecution(ctx, workflowID, executionID)
	if err != nil {
		return nil, nil, err
	}
	results, err := t.store.ListStepResults(ctx, executionID)
	if err != nil {
		return nil, nil, err
	}
	return ex, results, nil
}

// ListExecutions lists the executions of a workflow, newest first.
func (t *ExecutionTracker) ListExecutions(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	return t.store.ListExecutions(ctx, workflowID)
}
