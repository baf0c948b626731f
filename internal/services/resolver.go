package services

import (
	"github.com/loomworks/workflow-engine/pkg/models"
)

// UnmetDependency returns the first of the step's dependencies that has not
// succeeded so far, in declaration order. A dependency counts as unmet when
// it failed or was never attempted, including ids that name no step at all.
func UnmetDependency(step models.Step, results map[string]bool) (string, bool) {
	for _, dep := range step.DependsOn {
		if !results[dep] {
			return dep, true
		}
	}
	return "", false
}

// CanRun reports whether every dependency of the step has succeeded. Steps
// without dependencies can always run.
func CanRun(step models.Step, results map[string]bool) bool {
	_, unmet := UnmetDependency(step, results)
	return !unmet
}
