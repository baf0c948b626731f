// Package services implements the workflow execution engine: step
// invocation, dependency resolution, progress tracking, and orchestration.
package services

import (
	"context"

	"github.com/loomworks/workflow-engine/pkg/models"
)

// StepInvoker executes one workflow step against its remote collaborator,
// recording the outcome as a step result. It returns whether the step
// succeeded; the error is non-nil only when the storage layer fails.
type StepInvoker interface {
	Invoke(ctx context.Context, executionID string, step models.Step) (bool, error)
}
