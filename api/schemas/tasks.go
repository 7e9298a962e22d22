package schemas

import "time"

// -- Batch Configuration Schemas --

// Target identifies the remote system a run executes against. Task-level
// targets are shallow-merged over the batch-level target, task fields winning.
type Target struct {
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	KeyPath  string `json:"key_path,omitempty"`
}

// GlobalSettings carries batch-wide defaults that individual tasks may
// override.
type GlobalSettings struct {
	MaxSteps      *int   `json:"max_steps,omitempty"`
	UseSummarizer *bool  `json:"use_summarizer,omitempty"`
	OutputDir     string `json:"output_dir,omitempty"`
}

// Task is one goal plus metadata within a batch configuration. Tasks are
// immutable after the TaskSet is loaded; Requires edges must reference ids
// declared in the same TaskSet.
type Task struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Goal          string   `json:"goal"`
	Category      string   `json:"category,omitempty"`
	Requires      []string `json:"requires,omitempty"`
	MaxSteps      *int     `json:"max_steps,omitempty"`
	UseSummarizer *bool    `json:"use_summarizer,omitempty"`
	Target        *Target  `json:"target,omitempty"`
}

// TaskSet is the parsed batch configuration document: one target, optional
// global settings, and a non-empty ordered task list. Parsed once, validated
// eagerly, read-only thereafter.
type TaskSet struct {
	Target         Target         `json:"target"`
	GlobalSettings GlobalSettings `json:"global_settings"`
	Tasks          []Task         `json:"tasks"`
}

// -- Result Schemas --

// StepEntry is the serialized form of one executed step, preserved in run
// reports in execution order.
type StepEntry struct {
	Plan      string    `json:"plan"`
	Command   string    `json:"command"`
	Output    string    `json:"output"`
	Timestamp time.Time `json:"timestamp"`
}

// RunReport is the JSON-serializable outcome of a single run. Duration is in
// seconds, matching the batch result encoding.
type RunReport struct {
	RunID         string      `json:"run_id"`
	Goal          string      `json:"goal"`
	GoalReached   bool        `json:"goal_reached"`
	StepsExecuted int         `json:"steps_executed"`
	Findings      []Finding   `json:"findings"`
	Summary       string      `json:"summary,omitempty"`
	History       []StepEntry `json:"history"`
	Error         string      `json:"error,omitempty"`
	Cancelled     bool        `json:"cancelled,omitempty"`
	Duration      float64     `json:"duration_seconds"`
}

// TaskReport extends RunReport with the task metadata batch mode needs for
// aggregation.
type TaskReport struct {
	RunReport
	TaskID   string `json:"task_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	MaxSteps int    `json:"max_steps"`
}

// CategorySummary rolls up per-category batch statistics.
type CategorySummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Findings  int `json:"findings"`
}

// BatchSummary aggregates the outcome of a whole batch run.
type BatchSummary struct {
	TotalTasks     int                        `json:"total_tasks"`
	CompletedTasks int                        `json:"completed_tasks"`
	CompletionRate float64                    `json:"completion_rate"`
	TotalFindings  int                        `json:"total_findings"`
	Categories     map[string]CategorySummary `json:"categories"`
}

// BatchResult is the full batch output written to the results directory.
type BatchResult struct {
	Tasks     map[string]*TaskReport `json:"tasks"`
	Summary   BatchSummary           `json:"summary"`
	StartTime time.Time              `json:"start_time"`
	EndTime   time.Time              `json:"end_time"`
	Duration  float64                `json:"duration_seconds"`
	Error     string                 `json:"error,omitempty"`
}
