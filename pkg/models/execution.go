package models

import (
	"time"
)

// ExecutionStatus represents the lifecycle state of an execution or a step
// result.
type ExecutionStatus string

const (
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

// Execution represents one run of a workflow definition. It is created in
// the running state and transitions to a terminal state at most once.
type Execution struct {
	ID             string          `json:"id" db:"id"`
	WorkflowID     string          `json:"workflow_id" db:"workflow_id"`
	Trigger        string          `json:"trigger" db:"trigger"`
	Status         ExecutionStatus `json:"status" db:"status"`
	CurrentStep    *string         `json:"current_step,omitempty" db:"current_step"`
	StepsCompleted int             `json:"steps_completed" db:"steps_completed"`
	TotalSteps     int             `json:"total_steps" db:"total_steps"`
	Error          *string         `json:"error,omitempty" db:"error"`
	StartedAt      time.Time       `json:"started_at" db:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// StepResult records the outcome of one step within one execution. The
// result payload is the raw response body captured from the collaborator on
// success.
type StepResult struct {
	ID          string          `json:"id" db:"id"`
	ExecutionID string          `json:"execution_id" db:"execution_id"`
	StepID      string          `json:"step_id" db:"step_id"`
	Status      ExecutionStatus `json:"status" db:"status"`
	Result      []byte          `json:"result,omitempty" db:"result"` // JSONB
	Error       *string         `json:"error,omitempty" db:"error"`
	StartedAt   time.Time       `json:"started_at" db:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// Duration returns the wall-clock seconds the step took, or nil while it is
// still running.
func (r *StepResult) Duration() *float64 {
	if r.CompletedAt == nil {
		return nil
	}
	d := r.CompletedAt.Sub(r.StartedAt).Seconds()
	return &d
}
