package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loomworks/workflow-engine/pkg/models"
)

// PostgresWorkflowStore is a PostgreSQL implementation of the WorkflowStore
// interface.
type PostgresWorkflowStore struct {
	db *pgxpool.Pool
}

// NewPostgresWorkflowStore creates a new PostgresWorkflowStore.
func NewPostgresWorkflowStore(db *pgxpool.Pool) *PostgresWorkflowStore {
	return &PostgresWorkflowStore{db: db}
}

// Migrate creates the schema if it does not exist yet.
func (s *PostgresWorkflowStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id UUID PRIMARY KEY,
			name VARCHAR(200) NOT NULL,
			description TEXT,
			steps JSONB NOT NULL,
			schedule VARCHAR(100),
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS workflow_executions (
			id UUID PRIMARY KEY,
			workflow_id UUID NOT NULL REFERENCES workflows(id),
			trigger VARCHAR(50) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'running',
			current_step VARCHAR(100),
			steps_completed INTEGER NOT NULL DEFAULT 0,
			total_steps INTEGER NOT NULL,
			error TEXT,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS workflow_step_results (
			id UUID PRIMARY KEY,
			execution_id UUID NOT NULL REFERENCES workflow_executions(id),
			step_id VARCHAR(100) NOT NULL,
			status VARCHAR(20) NOT NULL,
			result JSONB,
			error TEXT,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// CreateWorkflow persists a new workflow definition.
func (s *PostgresWorkflowStore) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	steps, err := json.Marshal(wf.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO workflows (id, name, description, steps, schedule, enabled)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		wf.ID, wf.Name, wf.Description, steps, wf.Schedule, wf.Enabled,
	).Scan(&wf.CreatedAt, &wf.UpdatedAt)
}

// GetWorkflow retrieves a workflow definition by its ID.
func (s *PostgresWorkflowStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	var (
		wf    models.Workflow
		steps []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, name, description, steps, schedule, enabled, created_at, updated_at
		 FROM workflows WHERE id = $1`, id,
	).Scan(&wf.ID, &wf.Name, &wf.Description, &steps, &wf.Schedule, &wf.Enabled, &wf.CreatedAt, &wf.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(steps, &wf.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps: %w", err)
	}
	return &wf, nil
}

// ListWorkflows lists workflow definitions, optionally filtered by the
// enabled flag, newest first.
func (s *PostgresWorkflowStore) ListWorkflows(ctx context.Context, enabled *bool) ([]*models.Workflow, error) {
	query := `SELECT id, name, description, steps, schedule, enabled, created_at, updated_at
		FROM workflows`
	args := []any{}
	if enabled != nil {
		query += ` WHERE enabled = $1`
		args = append(args, *enabled)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		var (
			wf    models.Workflow
			steps []byte
		)
		if err := rows.Scan(&wf.ID, &wf.Name, &wf.Description, &steps, &wf.Schedule, &wf.Enabled, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(steps, &wf.Steps); err != nil {
			return nil, fmt.Errorf("failed to decode steps: %w", err)
		}
		workflows = append(workflows, &wf)
	}
	return workflows, rows.Err()
}

// CreateExecution persists a new execution in the running state.
func (s *PostgresWorkflowStore) CreateExecution(ctx context.Context, ex *models.Execution) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO workflow_executions (id, workflow_id, trigger, status, total_steps)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING started_at`,
		ex.ID, ex.WorkflowID, ex.Trigger, ex.Status, ex.TotalSteps,
	).Scan(&ex.StartedAt)
}

// GetExecution retrieves one execution belonging to a workflow.
func (s *PostgresWorkflowStore) GetExecution(ctx context.Context, workflowID, executionID string) (*models.Execution, error) {
	var ex models.Execution
	err := s.db.QueryRow(ctx,
		`SELECT id, workflow_id, trigger, status, current_step, steps_completed,
			total_steps, error, started_at, completed_at
		 FROM workflow_executions WHERE id = $1 AND workflow_id = $2`,
		executionID, workflowID,
	).Scan(&ex.ID, &ex.WorkflowID, &ex.Trigger, &ex.Status, &ex.CurrentStep,
		&ex.StepsCompleted, &ex.TotalSteps, &ex.Error, &ex.StartedAt, &ex.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

// ListExecutions lists the executions of a workflow, newest first.
func (s *PostgresWorkflowStore) ListExecutions(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, workflow_id, trigger, status, current_step, steps_completed,
			total_steps, error, started_at, completed_at
		 FROM workflow_executions WHERE workflow_id = $1
		 ORDER BY started_at DESC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []*models.Execution
	for rows.Next() {
		var ex models.Execution
		if err := rows.Scan(&ex.ID, &ex.WorkflowID, &ex.Trigger, &ex.Status, &ex.CurrentStep,
			&ex.StepsCompleted, &ex.TotalSteps, &ex.Error, &ex.StartedAt, &ex.CompletedAt); err != nil {
			return nil, err
		}
		executions = append(executions, &ex)
	}
	return executions, rows.Err()
}

// SetCurrentStep records the step an execution is currently on.
func (s *PostgresWorkflowStore) SetCurrentStep(ctx context.Context, executionID, stepID string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE workflow_executions SET current_step = $2 WHERE id = $1`,
		executionID, stepID)
	return err
}

// AdvanceProgress increments an execution's completed-step counter.
func (s *PostgresWorkflowStore) AdvanceProgress(ctx context.Context, executionID string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE workflow_executions
		 SET steps_completed = steps_completed + 1 WHERE id = $1`,
		executionID)
	return err
}

// FinishExecution moves an execution to a terminal state. The conditional
// update guarantees a terminal execution is never mutated again.
func (s *PostgresWorkflowStore) FinishExecution(ctx context.Context, executionID string, status models.ExecutionStatus, errMsg *string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE workflow_executions
		 SET status = $2, error = $3, completed_at = NOW()
		 WHERE id = $1 AND status = 'running'`,
		executionID, status, errMsg)
	return err
}

// CreateStepResult records the start of a step attempt series.
func (s *PostgresWorkflowStore) CreateStepResult(ctx context.Context, r *models.StepResult) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO workflow_step_results (id, execution_id, step_id, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING started_at`,
		r.ID, r.ExecutionID, r.StepID, r.Status,
	).Scan(&r.StartedAt)
}

// CompleteStepResult records the terminal outcome of a step.
func (s *PostgresWorkflowStore) CompleteStepResult(ctx context.Context, executionID, stepID string, status models.ExecutionStatus, result []byte, errMsg *string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE workflow_step_results
		 SET status = $3, result = $4, error = $5, completed_at = NOW()
		 WHERE execution_id = $1 AND step_id = $2 AND completed_at IS NULL`,
		executionID, stepID, status, result, errMsg)
	return err
}

// ListStepResults lists the step results of an execution in start order.
func (s *PostgresWorkflowStore) ListStepResults(ctx context.Context, executionID string) ([]*models.StepResult, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, execution_id, step_id, status, result, error, started_at, completed_at
		 FROM workflow_step_results WHERE execution_id = $1
		 ORDER BY started_at`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*models.StepResult
	for rows.Next() {
		var r models.StepResult
		if err := rows.Scan(&r.ID, &r.ExecutionID, &r.StepID, &r.Status, &r.Result,
			&r.Error, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, err
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// Ping verifies the storage connection is alive.
func (s *PostgresWorkflowStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
