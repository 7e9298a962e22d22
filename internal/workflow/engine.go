// File: internal/workflow/engine.go
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/agents"
	"github.com/xkilldash9x/lancet-cli/internal/sshclient"
	"github.com/xkilldash9x/lancet-cli/internal/transcript"
)

// PlanSource produces the next attack plan from the rendered transcript.
type PlanSource interface {
	Invoke(ctx context.Context, transcript, goal string) (*agents.Plan, error)
}

// CommandTranslator turns one plan step into an executable command.
type CommandTranslator interface {
	Invoke(ctx context.Context, transcript, step string) (string, error)
}

// Condenser summarizes a transcript that has outgrown the condense trigger.
type Condenser interface {
	Invoke(ctx context.Context, transcript string) (string, error)
}

// Options bounds a single run. Zero values are not usable; callers build
// Options from the resolved configuration.
type Options struct {
	MaxSteps          int
	UseSummarizer     bool
	CondenseThreshold int
	MaxContextLength  int
	CommandTimeout    time.Duration
}

// Engine drives one run through the orchestration loop. It is single-use per
// Run call but safe to reuse sequentially; all per-run state lives in
// RunState.
type Engine struct {
	planner     PlanSource
	interpreter CommandTranslator
	condenser   Condenser
	channel     ChannelFactory
	extract     ExtractStrategy
	opts        Options
	logger      *zap.Logger
}

func NewEngine(
	planner PlanSource,
	interpreter CommandTranslator,
	condenser Condenser,
	channel ChannelFactory,
	extract ExtractStrategy,
	opts Options,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		planner:     planner,
		interpreter: interpreter,
		condenser:   condenser,
		channel:     channel,
		extract:     extract,
		opts:        opts,
		logger:      logger.Named("workflow"),
	}
}

// Run advances the state machine from Initialize to Done and returns the
// terminal report. Cancellation is checked before every transition; a
// cancelled run still returns the transcript accumulated so far.
func (e *Engine) Run(ctx context.Context, goal string) *schemas.RunReport {
	started := time.Now()
	runID := uuid.NewString()
	logger := e.logger.With(zap.String("run_id", runID), zap.String("goal", goal))
	logger.Info("Starting run")

	rs := newRunState(goal, e.opts.MaxContextLength)
	state := StateInitialize
	cancelled := false

	for state != StateDone {
		if err := ctx.Err(); err != nil {
			rs.LastError = err
			cancelled = true
			break
		}
		var next State
		next, rs = e.transition(ctx, state, rs)
		logger.Debug("Transition", zap.Stringer("from", state), zap.Stringer("to", next))
		state = next
	}

	report := &schemas.RunReport{
		RunID:         runID,
		Goal:          goal,
		GoalReached:   rs.GoalReached,
		StepsExecuted: rs.StepCount,
		Findings:      rs.Findings,
		Summary:       rs.Summary,
		History:       rs.Log.History(),
		Cancelled:     cancelled,
		Duration:      time.Since(started).Seconds(),
	}
	if rs.LastError != nil {
		report.Error = rs.LastError.Error()
	}

	logger.Info("Run finished",
		zap.Bool("goal_reached", report.GoalReached),
		zap.Int("steps", report.StepsExecuted),
		zap.Int("findings", len(report.Findings)),
		zap.Bool("cancelled", cancelled))
	return report
}

// transition is the single place run control flow lives: it applies the
// stage named by state to rs and names the successor stage.
func (e *Engine) transition(ctx context.Context, state State, rs RunState) (State, RunState) {
	switch state {
	case StateInitialize:
		return e.stepInitialize(ctx, rs)
	case StatePlan:
		return e.stepPlan(ctx, rs)
	case StateInterpret:
		return e.stepInterpret(ctx, rs)
	case StateExecute:
		return e.stepExecute(ctx, rs)
	case StateRecord:
		return e.stepRecord(rs)
	case StateCondense:
		return e.stepCondense(ctx, rs)
	case StateSelectNext:
		return e.stepSelectNext(rs)
	case StateExtract:
		return e.stepExtract(ctx, rs)
	default:
		return StateDone, rs
	}
}

// stepInitialize verifies the remote channel is reachable with a probe
// connection. Failure is terminal; nothing has been recorded yet so there is
// nothing to extract.
func (e *Engine) stepInitialize(ctx context.Context, rs RunState) (State, RunState) {
	ch := e.channel()
	if err := ch.Connect(ctx); err != nil {
		rs.LastError = err
		return StateDone, rs
	}
	if err := ch.Close(); err != nil {
		e.logger.Warn("Closing probe connection", zap.Error(err))
	}
	return StatePlan, rs
}

// stepPlan asks the oracle for the next plan. An oracle transport failure is
// absorbed the same way a malformed response is: with the deterministic
// fallback plan, keeping the loop alive.
func (e *Engine) stepPlan(ctx context.Context, rs RunState) (State, RunState) {
	plan, err := e.planner.Invoke(ctx, e.renderContext(rs), rs.Goal)
	if err != nil {
		e.logger.Warn("Planner unavailable, using fallback plan", zap.Error(err))
		plan = agents.FallbackPlan()
	}

	rs.Plan = plan
	rs.CurrentStep = ""
	if len(plan.Steps) > 0 {
		rs.CurrentStep = plan.Steps[0]
	}
	rs.GoalReached = plan.GoalReached
	rs.Log.SetPlanSteps(plan.Steps)
	return StateInterpret, rs
}

// stepInterpret translates the current plan step into a command. An empty
// step means the plan is exhausted or empty; that records an error step and
// re-plans through the normal cycle, so the step budget still bounds a
// planner that keeps producing empty plans.
func (e *Engine) stepInterpret(ctx context.Context, rs RunState) (State, RunState) {
	if rs.CurrentStep == "" {
		if rs.GoalReached {
			return StateExtract, rs
		}
		e.logger.Debug("No step to interpret")
		rs.Command = ""
		rs.Output = "Error: no steps in the current plan"
		return StateRecord, rs
	}

	command, err := e.interpreter.Invoke(ctx, e.renderContext(rs), rs.CurrentStep)
	if err != nil {
		e.logger.Warn("Command translation failed", zap.Error(err))
		rs.Command = ""
		rs.Output = "Error: command translation failed: " + err.Error()
		return StateRecord, rs
	}

	rs.Command = command
	return StateExecute, rs
}

// stepExecute runs the command over a freshly opened channel. This is the
// only stage with a remote side effect. Channel faults are captured into the
// state so the branch decision can terminate the run; the step is still
// recorded.
func (e *Engine) stepExecute(ctx context.Context, rs RunState) (State, RunState) {
	ch := e.channel()
	if err := ch.Connect(ctx); err != nil {
		rs.LastError = err
		rs.Output = "Error: " + err.Error()
		return StateRecord, rs
	}
	defer func() {
		if err := ch.Close(); err != nil {
			e.logger.Warn("Closing command channel", zap.Error(err))
		}
	}()

	output, err := ch.Execute(ctx, rs.Command, e.opts.CommandTimeout)
	if err != nil {
		rs.LastError = err
		rs.Output = "Error: " + err.Error()
		return StateRecord, rs
	}

	rs.Output = output
	return StateRecord, rs
}

// stepRecord appends the completed step to the transcript.
func (e *Engine) stepRecord(rs RunState) (State, RunState) {
	rs.Log.Append(newStepRecord(rs))
	rs.StepCount++
	return StateCondense, rs
}

// stepCondense summarizes the transcript when it exceeds the trigger, then
// makes the branch decision: finish on goal reached, exhausted step budget or
// a fatal channel error, otherwise continue.
func (e *Engine) stepCondense(ctx context.Context, rs RunState) (State, RunState) {
	if e.opts.UseSummarizer && len(rs.Log.RenderFull()) >= e.opts.CondenseThreshold {
		summary, err := e.condenser.Invoke(ctx, rs.Log.RenderFull())
		if err != nil {
			e.logger.Warn("Condensation failed, keeping full transcript", zap.Error(err))
		} else {
			rs.Log.SetSummary(summary)
		}
	}

	switch {
	case rs.GoalReached:
		return StateExtract, rs
	case rs.StepCount >= e.opts.MaxSteps:
		e.logger.Info("Step budget exhausted", zap.Int("steps", rs.StepCount))
		return StateExtract, rs
	case isChannelFault(rs.LastError):
		e.logger.Warn("Fatal channel error, finishing run", zap.Error(rs.LastError))
		return StateExtract, rs
	default:
		return StateSelectNext, rs
	}
}

// stepSelectNext shifts to the next step of the current plan, or clears the
// step so the next cycle re-plans from scratch.
func (e *Engine) stepSelectNext(rs RunState) (State, RunState) {
	if rs.Plan == nil || len(rs.Plan.Steps) <= 1 {
		rs.CurrentStep = ""
		return StatePlan, rs
	}

	remaining := rs.Plan.Steps[1:]
	rs.Plan = &agents.Plan{
		Steps:            remaining,
		GoalVerification: rs.Plan.GoalVerification,
		GoalReached:      rs.Plan.GoalReached,
	}
	rs.CurrentStep = remaining[0]
	rs.Log.SetPlanSteps(remaining)
	return StateInterpret, rs
}

// stepExtract runs the configured extraction strategy over the final
// transcript. Extraction failure degrades to an empty findings list; the
// transcript itself is always preserved in the report.
func (e *Engine) stepExtract(ctx context.Context, rs RunState) (State, RunState) {
	findings, summary, err := e.extract.Extract(ctx, rs.Log)
	if err != nil {
		e.logger.Warn("Findings extraction failed", zap.Error(err))
		if rs.LastError == nil {
			rs.LastError = err
		}
		return StateDone, rs
	}
	rs.Findings = findings
	rs.Summary = summary
	return StateDone, rs
}

// renderContext picks the condensed view once a summary exists, otherwise the
// full (possibly truncated) rendering.
func (e *Engine) renderContext(rs RunState) string {
	if rs.Log.HasSummary() {
		return rs.Log.RenderCondensed()
	}
	return rs.Log.RenderFull()
}

func newStepRecord(rs RunState) transcript.StepRecord {
	return transcript.StepRecord{
		PlanText:  rs.CurrentStep,
		Command:   rs.Command,
		Output:    rs.Output,
		Timestamp: time.Now(),
	}
}

// isChannelFault reports whether err is a remote channel failure, the one
// error class that ends a run early.
func isChannelFault(err error) bool {
	var cerr *sshclient.ChannelError
	return errors.As(err, &cerr)
}
