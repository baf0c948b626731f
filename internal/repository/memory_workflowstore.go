package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/loomworks/workflow-engine/pkg/models"
)

// MemoryWorkflowStore is an in-memory implementation of the WorkflowStore
// interface, used in tests and for local development without Postgres.
type MemoryWorkflowStore struct {
	mu          sync.RWMutex
	workflows   map[string]*models.Workflow
	executions  map[string]*models.Execution
	stepResults map[string][]*models.StepResult // keyed by execution id, start order
}

// NewMemoryWorkflowStore creates a new MemoryWorkflowStore.
func NewMemoryWorkflowStore() *MemoryWorkflowStore {
	return &MemoryWorkflowStore{
		workflows:   make(map[string]*models.Workflow),
		executions:  make(map[string]*models.Execution),
		stepResults: make(map[string][]*models.StepResult),
	}
}

// CreateWorkflow persists a new workflow definition.
func (s *MemoryWorkflowStore) CreateWorkflow(_ context.Context, wf *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	wf.CreatedAt = now
	wf.UpdatedAt = now
	cp := *wf
	s.workflows[wf.ID] = &cp
	return nil
}

// GetWorkflow retrieves a workflow definition by its ID.
func (s *MemoryWorkflowStore) GetWorkflow(_ context.Context, id string) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *wf
	return &cp, nil
}

// ListWorkflows lists workflow definitions, optionally filtered by the
// enabled flag, newest first.
func (s *MemoryWorkflowStore) ListWorkflows(_ context.Context, enabled *bool) ([]*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var workflows []*models.Workflow
	for _, wf := range s.workflows {
		if enabled != nil && wf.Enabled != *enabled {
			continue
		}
		cp := *wf
		workflows = append(workflows, &cp)
	}
	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})
	return workflows, nil
}

// CreateExecution persists a new execution in the running state.
func (s *MemoryWorkflowStore) CreateExecution(_ context.Context, ex *models.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex.StartedAt = time.Now()
	cp := *ex
	s.executions[ex.ID] = &cp
	return nil
}

// GetExecution retrieves one execution belonging to a workflow.
func (s *MemoryWorkflowStore) GetExecution(_ context.Context, workflowID, executionID string) (*models.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ex, ok := s.executions[executionID]
	if !ok || ex.WorkflowID != workflowID {
		return nil, ErrNotFound
	}
	cp := *ex
	return &cp, nil
}

// ListExecutions lists the executions of a workflow, newest first.
func (s *MemoryWorkflowStore) ListExecutions(_ context.Context, workflowID string) ([]*models.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var executions []*models.Execution
	for _, ex := range s.executions {
		if ex.WorkflowID != workflowID {
			continue
		}
		cp := *ex
		executions = append(executions, &cp)
	}
	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})
	return executions, nil
}

// SetCurrentStep records the step an execution is currently on.
func (s *MemoryWorkflowStore) SetCurrentStep(_ context.Context, executionID, stepID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ex, ok := s.executions[executionID]; ok {
		ex.CurrentStep = &stepID
	}
	return nil
}

// AdvanceProgress increments an execution's completed-step counter.
func (s *MemoryWorkflowStore) AdvanceProgress(_ context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ex, ok := s.executions[executionID]; ok {
		ex.StepsCompleted++
	}
	return nil
}

// FinishExecution moves an execution to a terminal state. Executions
// already terminal are left untouched.
func (s *MemoryWorkflowStore) FinishExecution(_ context.Context, executionID string, status models.ExecutionStatus, errMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.executions[executionID]
	if !ok || ex.Status != models.StatusRunning {
		return nil
	}
	now := time.Now()
	ex.Status = status
	ex.Error = errMsg
	ex.CompletedAt = &now
	return nil
}

// CreateStepResult records the start of a step attempt series.
func (s *MemoryWorkflowStore) CreateStepResult(_ context.Context, r *models.StepResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.StartedAt = time.Now()
	cp := *r
	s.stepResults[r.ExecutionID] = append(s.stepResults[r.ExecutionID], &cp)
	return nil
}

// CompleteStepResult records the terminal outcome of a step.
func (s *MemoryWorkflowStore) CompleteStepResult(_ context.Context, executionID, stepID string, status models.ExecutionStatus, result []byte, errMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.stepResults[executionID] {
		if r.StepID != stepID || r.CompletedAt != nil {
			continue
		}
		now := time.Now()
		r.Status = status
		r.Result = result
		r.Error = errMsg
		r.CompletedAt = &now
		return nil
	}
	return nil
}

// ListStepResults lists the step results of an execution in start order.
func (s *MemoryWorkflowStore) ListStepResults(_ context.Context, executionID string) ([]*models.StepResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]*models.StepResult, 0, len(s.stepResults[executionID]))
	for _, r := range s.stepResults[executionID] {
		cp := *r
		results = append(results, &cp)
	}
	return results, nil
}

// Ping verifies the storage connection is alive.
func (s *MemoryWorkflowStore) Ping(_ context.Context) error {
	return nil
}
