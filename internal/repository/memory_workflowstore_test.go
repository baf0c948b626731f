package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/workflow-engine/pkg/models"
)

func TestMemoryStoreTerminalStateIsFinal(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	ex := &models.Execution{
		ID:         uuid.New().String(),
		WorkflowID: uuid.New().String(),
		Trigger:    "manual",
		Status:     models.StatusRunning,
		TotalSteps: 1,
	}
	require.NoError(t, store.CreateExecution(ctx, ex))

	errMsg := "Step a failed"
	require.NoError(t, store.FinishExecution(ctx, ex.ID, models.StatusFailed, &errMsg))

	// a second terminal transition must not overwrite the first
	require.NoError(t, store.FinishExecution(ctx, ex.ID, models.StatusCompleted, nil))

	got, err := store.GetExecution(ctx, ex.WorkflowID, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, errMsg, *got.Error)
	assert.NotNil(t, got.CompletedAt)
}

func TestMemoryStoreStepResultCompletesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	executionID := uuid.New().String()
	r := &models.StepResult{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		StepID:      "a",
		Status:      models.StatusRunning,
	}
	require.NoError(t, store.CreateStepResult(ctx, r))

	require.NoError(t, store.CompleteStepResult(ctx, executionID, "a",
		models.StatusCompleted, []byte(`{"ok":true}`), nil))

	errMsg := "boom"
	require.NoError(t, store.CompleteStepResult(ctx, executionID, "a",
		models.StatusFailed, nil, &errMsg))

	results, err := store.ListStepResults(ctx, executionID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusCompleted, results[0].Status)
	assert.JSONEq(t, `{"ok":true}`, string(results[0].Result))
	assert.Nil(t, results[0].Error)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	wf := &models.Workflow{
		ID:      uuid.New().String(),
		Name:    "original",
		Enabled: true,
		Steps:   []models.Step{{StepID: "a", ServiceURL: "http://svc:8080/run"}},
	}
	require.NoError(t, store.CreateWorkflow(ctx, wf))

	got, err := store.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := store.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Name)
}
