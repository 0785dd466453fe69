package dag

import (
	"time"

	"github.com/kbukum/etlflow/resilience"
)

// Pipeline is a YAML graph definition.
type Pipeline struct {
	// Name identifies the pipeline and names the built graph.
	Name string `yaml:"name"`
	// Description is free text shown by tooling.
	Description string `yaml:"description,omitempty"`
	// Includes lists pipelines whose tasks are merged into this one.
	Includes []string `yaml:"includes,omitempty"`
	// Defaults apply to tasks that leave retry or timeout unset.
	Defaults TaskDefaults `yaml:"defaults,omitempty"`
	// Tasks defines the pipeline's tasks.
	Tasks []TaskDef `yaml:"tasks"`
}

// TaskDefaults holds pipeline-wide task settings.
type TaskDefaults struct {
	Retry   *resilience.Policy `yaml:"retry,omitempty"`
	Timeout time.Duration      `yaml:"timeout,omitempty"`
}

// TaskDef defines a task within a pipeline.
type TaskDef struct {
	// ID is the task ID. Defaults to Component.
	ID string `yaml:"id,omitempty"`
	// Component is the registry key of the task's run function.
	Component string `yaml:"component"`
	// DependsOn lists task IDs this task depends on.
	DependsOn []string `yaml:"depends_on,omitempty"`
	// Retry overrides the pipeline default retry policy.
	Retry *resilience.Policy `yaml:"retry,omitempty"`
	// Timeout overrides the pipeline default attempt timeout.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// TaskID returns the effective task ID.
func (d TaskDef) TaskID() string {
	if d.ID != "" {
		return d.ID
	}
	return d.Component
}
