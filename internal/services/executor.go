package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loomworks/workflow-engine/pkg/models"
)

// WorkflowExecutor orchestrates workflow executions. Steps run strictly
// sequentially in their declared order; the first failure aborts the run.
type WorkflowExecutor struct {
	tracker *ExecutionTracker
	invoker StepInvoker
	logger  *slog.Logger
}

// NewWorkflowExecutor creates a new WorkflowExecutor.
func NewWorkflowExecutor(tracker *ExecutionTracker, invoker StepInvoker, logger *slog.Logger) *WorkflowExecutor {
	return &WorkflowExecutor{
		tracker: tracker,
		invoker: invoker,
		logger:  logger,
	}
}

// Start creates the execution record and runs the workflow in its own
// goroutine. The run outlives the caller's request context.
func (e *WorkflowExecutor) Start(ctx context.Context, wf *models.Workflow, trigger string) (*models.Execution, error) {
	ex, err := e.tracker.Begin(ctx, wf.ID, trigger, len(wf.Steps))
	if err != nil {
		return nil, err
	}
	go e.run(context.WithoutCancel(ctx), wf, ex)
	return ex, nil
}

// Run executes the workflow synchronously. Exposed for callers that want to
// wait for the outcome; Start is the usual entry point.
func (e *WorkflowExecutor) Run(ctx context.Context, wf *models.Workflow, trigger string) (*models.Execution, error) {
	ex, err := e.tracker.Begin(ctx, wf.ID, trigger, len(wf.Steps))
	if err != nil {
		return nil, err
	}
	e.run(ctx, wf, ex)
	return ex, nil
}

func (e *WorkflowExecutor) run(ctx context.Context, wf *models.Workflow, ex *models.Execution) {
	log := e.logger.With("workflow", wf.ID, "execution", ex.ID)
	log.Info("execution started", "steps", len(wf.Steps), "trigger", ex.Trigger)

	results := make(map[string]bool, len(wf.Steps))

	for _, step := range wf.Steps {
		if dep, unmet := UnmetDependency(step, results); unmet {
			log.Warn("dependency unmet, aborting", "step", step.StepID, "dependency", dep)
			e.finish(ctx, log, ex.ID, models.StatusFailed, fmt.Sprintf("Dependency %s failed", dep))
			return
		}

		if err := e.tracker.SetCurrentStep(ctx, ex.ID, step.StepID); err != nil {
			e.storageFailure(ctx, log, ex.ID, err)
			return
		}

		success, err := e.invoker.Invoke(ctx, ex.ID, step)
		if err != nil {
			e.storageFailure(ctx, log, ex.ID, err)
			return
		}
		results[step.StepID] = success

		if !success {
			log.Warn("step failed, aborting", "step", step.StepID)
			e.finish(ctx, log, ex.ID, models.StatusFailed, fmt.Sprintf("Step %s failed", step.StepID))
			return
		}

		if err := e.tracker.AdvanceProgress(ctx, ex.ID); err != nil {
			e.storageFailure(ctx, log, ex.ID, err)
			return
		}
		log.Debug("step completed", "step", step.StepID)
	}

	e.finish(ctx, log, ex.ID, models.StatusCompleted, "")
	log.Info("execution completed")
}

func (e *WorkflowExecutor) finish(ctx context.Context, log *slog.Logger, executionID string, status models.ExecutionStatus, errMsg string) {
	if err := e.tracker.Finish(ctx, executionID, status, errMsg); err != nil {
		log.Error("failed to record terminal state", "status", status, "error", err)
	}
}

func (e *WorkflowExecutor) storageFailure(ctx context.Context, log *slog.Logger, executionID string, err error) {
	log.Error("storage failure during execution", "error", err)
	e.finish(ctx, log, executionID, models.StatusFailed, fmt.Sprintf("storage failure: %v", err))
}
