package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowValidate(t *testing.T) {
	valid := func() *Workflow {
		return &Workflow{
			Name: "etl",
			Steps: []Step{
				{StepID: "extract", ServiceURL: "http://data-aggregator:8000/run"},
				{StepID: "load", ServiceURL: "http://cache-service:8000/load", DependsOn: []string{"extract"}},
			},
		}
	}

	t.Run("valid definition", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing name", func(t *testing.T) {
		wf := valid()
		wf.Name = ""
		assert.ErrorContains(t, wf.Validate(), "name is required")
	})

	t.Run("no steps", func(t *testing.T) {
		wf := valid()
		wf.Steps = nil
		assert.ErrorContains(t, wf.Validate(), "at least one step")
	})

	t.Run("duplicate step id", func(t *testing.T) {
		wf := valid()
		wf.Steps[1].StepID = "extract"
		assert.ErrorContains(t, wf.Validate(), "duplicate step_id")
	})

	t.Run("missing service url", func(t *testing.T) {
		wf := valid()
		wf.Steps[0].ServiceURL = ""
		assert.ErrorContains(t, wf.Validate(), "service_url is required")
	})

	t.Run("self dependency", func(t *testing.T) {
		wf := valid()
		wf.Steps[0].DependsOn = []string{"extract"}
		assert.ErrorContains(t, wf.Validate(), "depends on itself")
	})

	t.Run("unknown dependency", func(t *testing.T) {
		wf := valid()
		wf.Steps[1].DependsOn = []string{"transform"}
		assert.ErrorContains(t, wf.Validate(), "unknown step")
	})

	t.Run("forward dependency allowed", func(t *testing.T) {
		// the definition may reference a later step; the executor treats it
		// as never satisfied at run time
		wf := valid()
		wf.Steps[0].DependsOn = []string{"load"}
		assert.NoError(t, wf.Validate())
	})
}

func TestWorkflowApplyDefaults(t *testing.T) {
	wf := &Workflow{
		Name: "defaults",
		Steps: []Step{
			{StepID: "a", ServiceURL: "http://notification-service:8000/send"},
			{StepID: "b", ServiceURL: "http://notification-service:8000/send", Method: "GET", RetryCount: 1, Timeout: 5},
		},
	}
	wf.ApplyDefaults()

	assert.Equal(t, "POST", wf.Steps[0].Method)
	assert.Equal(t, DefaultRetryCount, wf.Steps[0].RetryCount)
	assert.Equal(t, DefaultTimeoutSeconds, wf.Steps[0].Timeout)

	assert.Equal(t, "GET", wf.Steps[1].Method)
	assert.Equal(t, 1, wf.Steps[1].RetryCount)
	assert.Equal(t, 5, wf.Steps[1].Timeout)
}

func TestStepResultDuration(t *testing.T) {
	started := time.Now()
	r := &StepResult{StartedAt: started}
	assert.Nil(t, r.Duration())

	completed := started.Add(1500 * time.Millisecond)
	r.CompletedAt = &completed
	d := r.Duration()
	require.NotNil(t, d)
	assert.InDelta(t, 1.5, *d, 0.001)
}
