// File: internal/taskset/taskset.go

// Package taskset loads batch task configurations, validates them eagerly and
// resolves the dependency order tasks execute in.
package taskset

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Fallbacks when neither the task nor the global settings specify a value.
const (
	defaultMaxSteps  = 15
	defaultOutputDir = "./attack_results"
)

// ValidationError reports a structurally invalid batch document. It is raised
// during load, before any task executes.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task configuration: %s: %s", e.Field, e.Reason)
}

// CycleError reports a circular Requires chain involving the named task.
type CycleError struct {
	TaskID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected involving task %q", e.TaskID)
}

// MissingRefError reports a Requires edge pointing at an undeclared task id.
type MissingRefError struct {
	TaskID     string
	MissingDep string
}

func (e *MissingRefError) Error() string {
	return fmt.Sprintf("task %q depends on non-existent task %q", e.TaskID, e.MissingDep)
}

// Set wraps a validated TaskSet with lookup and settings-resolution helpers.
type Set struct {
	spec  schemas.TaskSet
	byID  map[string]*schemas.Task
	order []string
}

// Load reads and parses a batch configuration file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task configuration: %w", err)
	}
	return Parse(data)
}

// Parse decodes a batch configuration document and validates it eagerly,
// including dependency resolution, so every structural problem surfaces
// before the first task runs.
func Parse(data []byte) (*Set, error) {
	var spec schemas.TaskSet
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing task configuration: %w", err)
	}

	if err := validate(&spec); err != nil {
		return nil, err
	}

	s := &Set{
		spec: spec,
		byID: make(map[string]*schemas.Task, len(spec.Tasks)),
	}
	for i := range spec.Tasks {
		s.byID[spec.Tasks[i].ID] = &spec.Tasks[i]
	}

	order, err := s.resolveOrder()
	if err != nil {
		return nil, err
	}
	s.order = order
	return s, nil
}

func validate(spec *schemas.TaskSet) error {
	if spec.Target.Host == "" {
		return &ValidationError{Field: "target.host", Reason: "required"}
	}
	if len(spec.Tasks) == 0 {
		return &ValidationError{Field: "tasks", Reason: "must be a non-empty list"}
	}

	seen := make(map[string]bool, len(spec.Tasks))
	for i, task := range spec.Tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		switch {
		case task.ID == "":
			return &ValidationError{Field: field + ".id", Reason: "required"}
		case task.Name == "":
			return &ValidationError{Field: field + ".name", Reason: "required"}
		case task.Goal == "":
			return &ValidationError{Field: field + ".goal", Reason: "required"}
		case seen[task.ID]:
			return &ValidationError{Field: field + ".id", Reason: fmt.Sprintf("duplicate id %q", task.ID)}
		}
		seen[task.ID] = true
	}
	return nil
}

// dfs coloring for dependency resolution.
type visitColor int

const (
	colorUnvisited visitColor = iota
	colorInProgress
	colorDone
)

// resolveOrder computes a topological order over the Requires edges with a
// three-color depth-first traversal. Dependencies are appended before their
// dependents; ties follow declaration order, so the output is deterministic
// for identical input.
func (s *Set) resolveOrder() ([]string, error) {
	colors := make(map[string]visitColor, len(s.spec.Tasks))
	order := make([]string, 0, len(s.spec.Tasks))

	var visit func(id string) error
	visit = func(id string) error {
		switch colors[id] {
		case colorDone:
			return nil
		case colorInProgress:
			return &CycleError{TaskID: id}
		}
		colors[id] = colorInProgress

		for _, dep := range s.byID[id].Requires {
			if _, ok := s.byID[dep]; !ok {
				return &MissingRefError{TaskID: id, MissingDep: dep}
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		colors[id] = colorDone
		order = append(order, id)
		return nil
	}

	for _, task := range s.spec.Tasks {
		if err := visit(task.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Order returns task ids in resolved execution order.
func (s *Set) Order() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Task returns the task with the given id, or nil.
func (s *Set) Task(id string) *schemas.Task {
	return s.byID[id]
}

// Tasks returns the declared task list in document order.
func (s *Set) Tasks() []schemas.Task {
	return s.spec.Tasks
}

// Target returns the batch-level target.
func (s *Set) Target() schemas.Target {
	return s.spec.Target
}

// OutputDir returns the configured results directory, defaulting to
// ./attack_results.
func (s *Set) OutputDir() string {
	if s.spec.GlobalSettings.OutputDir != "" {
		return s.spec.GlobalSettings.OutputDir
	}
	return defaultOutputDir
}

// EffectiveMaxSteps resolves the step budget for a task: task override, then
// global setting, then the hardcoded default.
func (s *Set) EffectiveMaxSteps(id string) int {
	if task := s.byID[id]; task != nil && task.MaxSteps != nil {
		return *task.MaxSteps
	}
	if s.spec.GlobalSettings.MaxSteps != nil {
		return *s.spec.GlobalSettings.MaxSteps
	}
	return defaultMaxSteps
}

// EffectiveUseSummarizer resolves the summarizer toggle the same way;
// the default is on.
func (s *Set) EffectiveUseSummarizer(id string) bool {
	if task := s.byID[id]; task != nil && task.UseSummarizer != nil {
		return *task.UseSummarizer
	}
	if s.spec.GlobalSettings.UseSummarizer != nil {
		return *s.spec.GlobalSettings.UseSummarizer
	}
	return true
}

// EffectiveTarget shallow-merges a task-level target over the batch target,
// task fields winning.
func (s *Set) EffectiveTarget(id string) schemas.Target {
	target := s.spec.Target
	task := s.byID[id]
	if task == nil || task.Target == nil {
		return target
	}

	o := task.Target
	if o.Host != "" {
		target.Host = o.Host
	}
	if o.Port != 0 {
		target.Port = o.Port
	}
	if o.Username != "" {
		target.Username = o.Username
	}
	if o.Password != "" {
		target.Password = o.Password
	}
	if o.KeyPath != "" {
		target.KeyPath = o.KeyPath
	}
	return target
}
