// Package models defines the domain models for the workflow engine
package models

import (
	"fmt"
	"time"
)

// Defaults applied to step definitions when the caller omits them.
const (
	DefaultRetryCount     = 3
	DefaultTimeoutSeconds = 30
)

// Step represents a single step in a workflow definition. Each step is one
// HTTP call against a remote collaborator.
type Step struct {
	StepID     string         `json:"step_id" db:"step_id"`
	ServiceURL string         `json:"service_url" db:"service_url"`
	Method     string         `json:"method" db:"method"`
	Payload    map[string]any `json:"payload,omitempty" db:"payload"`
	RetryCount int            `json:"retry_count" db:"retry_count"`
	Timeout    int            `json:"timeout" db:"timeout"` // seconds, per attempt
	DependsOn  []string       `json:"depends_on,omitempty" db:"depends_on"`
}

// Workflow represents a named, ordered set of steps with optional
// inter-step dependencies.
type Workflow struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	Steps       []Step    `json:"steps" db:"steps"`
	Schedule    *string   `json:"schedule,omitempty" db:"schedule"` // opaque cron expression
	Enabled     bool      `json:"enabled" db:"enabled"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ApplyDefaults fills in zero-valued step fields with their defaults.
func (w *Workflow) ApplyDefaults() {
	for i := range w.Steps {
		s := &w.Steps[i]
		if s.Method == "" {
			s.Method = "POST"
		}
		if s.RetryCount <= 0 {
			s.RetryCount = DefaultRetryCount
		}
		if s.Timeout <= 0 {
			s.Timeout = DefaultTimeoutSeconds
		}
	}
}

// Validate checks the structural invariants of a workflow definition: a
// non-empty name, at least one step, unique step ids, and depends_on
// references that name other steps in the same definition.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("workflow name is required")
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow must have at least one step")
	}

	ids := make(map[string]bool, len(w.Steps))
	for _, s := range w.Steps {
		if s.StepID == "" {
			return fmt.Errorf("step_id is required")
		}
		if ids[s.StepID] {
			return fmt.Errorf("duplicate step_id %q", s.StepID)
		}
		ids[s.StepID] = true
		if s.ServiceURL == "" {
			return fmt.Errorf("step %q: service_url is required", s.StepID)
		}
	}

	for _, s := range w.Steps {
		for _, dep := range s.DependsOn {
			if dep == s.StepID {
				return fmt.Errorf("step %q depends on itself", s.StepID)
			}
			if !ids[dep] {
				return fmt.Errorf("step %q depends on unknown step %q", s.StepID, dep)
			}
		}
	}

	return nil
}
