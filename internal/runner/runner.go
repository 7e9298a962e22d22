// File: internal/runner/runner.go

// Package runner drives the orchestration engine once per goal (ad hoc mode)
// or once per task in dependency order (batch mode), and writes the resulting
// reports to the results directory.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/agents"
	"github.com/xkilldash9x/lancet-cli/internal/config"
	"github.com/xkilldash9x/lancet-cli/internal/taskset"
	"github.com/xkilldash9x/lancet-cli/internal/workflow"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ExtractMode selects the findings-extraction strategy for a run.
type ExtractMode string

const (
	// ExtractLLM asks the oracle for a full vulnerability report.
	ExtractLLM ExtractMode = "llm"
	// ExtractScan pattern-scans recorded output for open services.
	ExtractScan ExtractMode = "scan"
)

// ReportPersister is the optional database sink for task reports.
type ReportPersister interface {
	PersistReport(ctx context.Context, report *schemas.TaskReport) error
}

// runEngine is the slice of the workflow engine the runner drives.
type runEngine interface {
	Run(ctx context.Context, goal string) *schemas.RunReport
}

// engineFactory builds an engine bound to one target and one set of run
// options. Swappable in tests.
type engineFactory func(target schemas.Target, opts workflow.Options, strategy workflow.ExtractStrategy) runEngine

// Runner coordinates runs and owns report persistence to disk and,
// optionally, the database.
type Runner struct {
	cfg    *config.Config
	logger *zap.Logger

	planner     *agents.Planner
	interpreter *agents.Interpreter
	summarizer  *agents.Summarizer
	extractor   *agents.Extractor

	newEngine engineFactory
	persister ReportPersister
}

// New builds a runner over the shared LLM client. persister may be nil, in
// which case reports are only written to disk.
func New(cfg *config.Config, llm schemas.LLMClient, persister ReportPersister, logger *zap.Logger) *Runner {
	preamble := cfg.Attack.FramingPreamble
	r := &Runner{
		cfg:         cfg,
		logger:      logger.Named("runner"),
		planner:     agents.NewPlanner(llm, preamble, logger),
		interpreter: agents.NewInterpreter(llm, preamble, logger),
		summarizer:  agents.NewSummarizer(llm, preamble, logger),
		extractor:   agents.NewExtractor(llm, preamble, logger),
		persister:   persister,
	}
	r.newEngine = r.buildEngine
	return r
}

func (r *Runner) buildEngine(target schemas.Target, opts workflow.Options, strategy workflow.ExtractStrategy) runEngine {
	sshCfg := r.cfg.SSH
	if target.Host != "" {
		sshCfg.Host = target.Host
	}
	if target.Port != 0 {
		sshCfg.Port = target.Port
	}
	if target.Username != "" {
		sshCfg.Username = target.Username
	}
	if target.Password != "" {
		sshCfg.Password = target.Password
	}
	if target.KeyPath != "" {
		sshCfg.KeyPath = target.KeyPath
	}

	channel := workflow.SSHChannelFactory(sshCfg, r.logger)
	return workflow.NewEngine(r.planner, r.interpreter, r.summarizer, channel, strategy, opts, r.logger)
}

func (r *Runner) strategy(mode ExtractMode) workflow.ExtractStrategy {
	if mode == ExtractScan {
		return workflow.ServiceScanStrategy{}
	}
	return &workflow.LLMExtractStrategy{Extractor: r.extractor}
}

func (r *Runner) defaultOptions() workflow.Options {
	return workflow.Options{
		MaxSteps:          r.cfg.Attack.MaxSteps,
		UseSummarizer:     r.cfg.Attack.UseSummarizer,
		CondenseThreshold: r.cfg.Attack.CondenseThreshold,
		MaxContextLength:  r.cfg.Attack.MaxContextLength,
		CommandTimeout:    r.cfg.SSH.CommandTimeout,
	}
}

// RunGoal executes a single ad hoc goal against the configured target and
// writes its report to the output directory.
func (r *Runner) RunGoal(ctx context.Context, goal string, mode ExtractMode) (*schemas.RunReport, error) {
	opts := r.defaultOptions()
	eng := r.newEngine(schemas.Target{}, opts, r.strategy(mode))

	report := eng.Run(ctx, goal)

	path := filepath.Join(r.cfg.Attack.OutputDir, fmt.Sprintf("attack_result_%s.json", timestamp()))
	if err := r.writeJSON(path, report); err != nil {
		return report, err
	}

	r.persist(ctx, &schemas.TaskReport{
		RunReport: *report,
		TaskID:    "adhoc",
		Name:      goal,
		MaxSteps:  opts.MaxSteps,
	})
	return report, nil
}

// RunBatch executes every task of the set in resolved dependency order,
// saving intermediate results after each task so a crashed batch still leaves
// its completed work on disk. outputDir overrides the set's configured
// results directory when non-empty.
func (r *Runner) RunBatch(ctx context.Context, set *taskset.Set, outputDir string) (*schemas.BatchResult, error) {
	started := time.Now()
	result := &schemas.BatchResult{
		Tasks:     make(map[string]*schemas.TaskReport),
		StartTime: started,
	}

	if outputDir == "" {
		outputDir = set.OutputDir()
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(outputDir, fmt.Sprintf("attack_results_%s.json", timestamp()))

	order := set.Order()
	r.logger.Info("Starting batch run",
		zap.Int("tasks", len(order)),
		zap.Strings("order", order))

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			result.Error = err.Error()
			break
		}

		taskReport := r.runTask(ctx, set, id)
		result.Tasks[id] = taskReport
		r.persist(ctx, taskReport)

		if err := r.writeJSON(path, result); err != nil {
			r.logger.Warn("Saving intermediate results", zap.Error(err))
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(started).Seconds()
	result.Summary = summarize(result.Tasks)

	if err := r.writeJSON(path, result); err != nil {
		return result, err
	}
	r.logger.Info("Batch run finished",
		zap.Int("completed", result.Summary.CompletedTasks),
		zap.Int("total", result.Summary.TotalTasks),
		zap.String("results", path))
	return result, nil
}

func (r *Runner) runTask(ctx context.Context, set *taskset.Set, id string) *schemas.TaskReport {
	task := set.Task(id)
	opts := r.defaultOptions()
	opts.MaxSteps = set.EffectiveMaxSteps(id)
	opts.UseSummarizer = set.EffectiveUseSummarizer(id)

	r.logger.Info("Executing task",
		zap.String("task_id", id),
		zap.String("name", task.Name),
		zap.String("goal", task.Goal))

	eng := r.newEngine(set.EffectiveTarget(id), opts, r.strategy(ExtractLLM))
	report := eng.Run(ctx, task.Goal)

	return &schemas.TaskReport{
		RunReport: *report,
		TaskID:    id,
		Name:      task.Name,
		Category:  category(task),
		MaxSteps:  opts.MaxSteps,
	}
}

func (r *Runner) persist(ctx context.Context, report *schemas.TaskReport) {
	if r.persister == nil {
		return
	}
	if err := r.persister.PersistReport(ctx, report); err != nil {
		r.logger.Warn("Persisting report to database",
			zap.String("run_id", report.RunID),
			zap.Error(err))
	}
}

func (r *Runner) writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}

// summarize aggregates per-task outcomes into the batch summary. Completion
// rate is a percentage; tasks without a category are bucketed as
// "uncategorized".
func summarize(tasks map[string]*schemas.TaskReport) schemas.BatchSummary {
	summary := schemas.BatchSummary{
		TotalTasks: len(tasks),
		Categories: make(map[string]schemas.CategorySummary),
	}

	for _, report := range tasks {
		cat := summary.Categories[report.Category]
		cat.Total++
		if report.GoalReached {
			cat.Completed++
			summary.CompletedTasks++
		}
		cat.Findings += len(report.Findings)
		summary.TotalFindings += len(report.Findings)
		summary.Categories[report.Category] = cat
	}

	if summary.TotalTasks > 0 {
		summary.CompletionRate = float64(summary.CompletedTasks) / float64(summary.TotalTasks) * 100
	}
	return summary
}

func category(task *schemas.Task) string {
	if task.Category == "" {
		return "uncategorized"
	}
	return task.Category
}

func timestamp() string {
	return time.Now().Format("20060102-150405")
}
