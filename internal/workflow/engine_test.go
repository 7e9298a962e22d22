// File: internal/workflow/engine_test.go
package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/agents"
	"github.com/xkilldash9x/lancet-cli/internal/sshclient"
	"github.com/xkilldash9x/lancet-cli/internal/transcript"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubPlanner struct {
	plans    []*agents.Plan
	contexts []string
	calls    int
	err      error
}

func (s *stubPlanner) Invoke(_ context.Context, transcript, _ string) (*agents.Plan, error) {
	s.contexts = append(s.contexts, transcript)
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls
	if idx >= len(s.plans) {
		idx = len(s.plans) - 1
	}
	s.calls++
	return s.plans[idx], nil
}

type stubTranslator struct {
	command string
	steps   []string
	err     error
}

func (s *stubTranslator) Invoke(_ context.Context, _, step string) (string, error) {
	s.steps = append(s.steps, step)
	if s.err != nil {
		return "", s.err
	}
	return s.command, nil
}

type stubCondenser struct {
	summary string
	calls   int
}

func (s *stubCondenser) Invoke(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.summary, nil
}

type stubChannel struct {
	connectErr error
	executeErr error
	output     string
	connects   int
	executes   int
	closes     int
	commands   []string
}

func (s *stubChannel) Connect(context.Context) error {
	s.connects++
	return s.connectErr
}

func (s *stubChannel) Execute(_ context.Context, command string, _ time.Duration) (string, error) {
	s.executes++
	s.commands = append(s.commands, command)
	if s.executeErr != nil {
		return "", s.executeErr
	}
	return s.output, nil
}

func (s *stubChannel) Close() error {
	s.closes++
	return nil
}

type noopExtract struct{}

func (noopExtract) Extract(context.Context, *transcript.Log) ([]schemas.Finding, string, error) {
	return nil, "", nil
}

func defaultOptions() Options {
	return Options{
		MaxSteps:          10,
		UseSummarizer:     false,
		CondenseThreshold: 8000,
		MaxContextLength:  16000,
		CommandTimeout:    time.Second,
	}
}

func newTestEngine(t *testing.T, planner PlanSource, translator CommandTranslator, condenser Condenser, ch *stubChannel, extract ExtractStrategy, opts Options) *Engine {
	t.Helper()
	factory := func() CommandChannel { return ch }
	return NewEngine(planner, translator, condenser, factory, extract, opts, zaptest.NewLogger(t))
}

func plan(goalReached bool, steps ...string) *agents.Plan {
	return &agents.Plan{Steps: steps, GoalVerification: "check", GoalReached: goalReached}
}

func TestRunTerminatesAtStepBudget(t *testing.T) {
	opts := defaultOptions()
	opts.MaxSteps = 3

	planner := &stubPlanner{plans: []*agents.Plan{plan(false, "probe the system")}}
	translator := &stubTranslator{command: "uname -a"}
	ch := &stubChannel{output: "Linux target 5.15"}
	eng := newTestEngine(t, planner, translator, &stubCondenser{}, ch, noopExtract{}, opts)

	report := eng.Run(context.Background(), "escalate privileges")

	assert.Equal(t, 3, report.StepsExecuted)
	assert.False(t, report.GoalReached)
	assert.Empty(t, report.Error)
	assert.False(t, report.Cancelled)
	assert.Len(t, report.History, 3)
}

func TestRunStopsWhenGoalReached(t *testing.T) {
	planner := &stubPlanner{plans: []*agents.Plan{plan(true, "verify access")}}
	translator := &stubTranslator{command: "id"}
	ch := &stubChannel{output: "uid=0(root)"}
	eng := newTestEngine(t, planner, translator, &stubCondenser{}, ch, noopExtract{}, defaultOptions())

	report := eng.Run(context.Background(), "get root")

	assert.True(t, report.GoalReached)
	assert.Equal(t, 1, report.StepsExecuted)
	require.Len(t, report.History, 1)
	assert.Equal(t, "id", report.History[0].Command)
}

func TestRunPortScanScenario(t *testing.T) {
	opts := defaultOptions()
	opts.MaxSteps = 1

	planner := &stubPlanner{plans: []*agents.Plan{plan(false, "run a port scan")}}
	translator := &stubTranslator{command: "nmap -sV target"}
	ch := &stubChannel{output: "22/tcp open ssh OpenSSH 8.9\n80/tcp open http Apache"}
	eng := newTestEngine(t, planner, translator, &stubCondenser{}, ch, ServiceScanStrategy{}, opts)

	report := eng.Run(context.Background(), "find open ports")

	require.Len(t, report.Findings, 2)
	assert.Equal(t, schemas.FindingService, report.Findings[1].Kind)
	assert.Equal(t, "80/tcp", report.Findings[1].Port)
	assert.Equal(t, "open http Apache", report.Findings[1].ServiceInfo)
	assert.Equal(t, []string{"nmap -sV target"}, ch.commands)
}

func TestRunInitializeFailureIsTerminal(t *testing.T) {
	planner := &stubPlanner{plans: []*agents.Plan{plan(false, "never runs")}}
	ch := &stubChannel{connectErr: &sshclient.ChannelError{Op: "connect", Err: errors.New("refused")}}
	eng := newTestEngine(t, planner, &stubTranslator{}, &stubCondenser{}, ch, noopExtract{}, defaultOptions())

	report := eng.Run(context.Background(), "goal")

	assert.Zero(t, report.StepsExecuted)
	assert.Empty(t, report.History)
	assert.Contains(t, report.Error, "refused")
	assert.Zero(t, planner.calls)
}

func TestRunChannelFaultDuringExecuteEndsRun(t *testing.T) {
	planner := &stubPlanner{plans: []*agents.Plan{plan(false, "step one", "step two")}}
	translator := &stubTranslator{command: "cat /etc/shadow"}
	ch := &stubChannel{executeErr: &sshclient.ChannelError{Op: "execute", Err: errors.New("connection lost")}}
	eng := newTestEngine(t, planner, translator, &stubCondenser{}, ch, noopExtract{}, defaultOptions())

	report := eng.Run(context.Background(), "goal")

	// The faulted step is still recorded, then the run finishes.
	assert.Equal(t, 1, report.StepsExecuted)
	require.Len(t, report.History, 1)
	assert.Contains(t, report.History[0].Output, "Error:")
	assert.Contains(t, report.Error, "connection lost")
	assert.False(t, report.GoalReached)
}

func TestRunConsumesMultiStepPlanWithoutReplanning(t *testing.T) {
	opts := defaultOptions()
	opts.MaxSteps = 3

	planner := &stubPlanner{plans: []*agents.Plan{plan(false, "first", "second", "third")}}
	translator := &stubTranslator{command: "true"}
	ch := &stubChannel{output: "ok"}
	eng := newTestEngine(t, planner, translator, &stubCondenser{}, ch, noopExtract{}, opts)

	report := eng.Run(context.Background(), "goal")

	assert.Equal(t, 3, report.StepsExecuted)
	assert.Equal(t, 1, planner.calls)
	assert.Equal(t, []string{"first", "second", "third"}, translator.steps)
	assert.Equal(t, []string{"first", "second", "third"}, []string{
		report.History[0].Plan, report.History[1].Plan, report.History[2].Plan,
	})
}

func TestRunReplansAfterPlanExhausted(t *testing.T) {
	opts := defaultOptions()
	opts.MaxSteps = 2

	planner := &stubPlanner{plans: []*agents.Plan{
		plan(false, "only step"),
		plan(false, "follow up"),
	}}
	translator := &stubTranslator{command: "true"}
	ch := &stubChannel{output: "ok"}
	eng := newTestEngine(t, planner, translator, &stubCondenser{}, ch, noopExtract{}, opts)

	report := eng.Run(context.Background(), "goal")

	assert.Equal(t, 2, report.StepsExecuted)
	assert.Equal(t, 2, planner.calls)
	assert.Equal(t, []string{"only step", "follow up"}, translator.steps)
}

func TestRunEmptyPlansBoundedByStepBudget(t *testing.T) {
	opts := defaultOptions()
	opts.MaxSteps = 2

	planner := &stubPlanner{plans: []*agents.Plan{plan(false)}}
	translator := &stubTranslator{command: "true"}
	ch := &stubChannel{output: "ok"}
	eng := newTestEngine(t, planner, translator, &stubCondenser{}, ch, noopExtract{}, opts)

	report := eng.Run(context.Background(), "goal")

	// Each empty plan burns one recorded step, so the budget still bounds a
	// planner that never produces steps.
	assert.False(t, report.Cancelled)
	assert.Equal(t, 2, report.StepsExecuted)
	assert.Equal(t, 2, planner.calls)
	assert.Empty(t, translator.steps)
	assert.Zero(t, ch.executes)
	require.Len(t, report.History, 2)
	assert.Equal(t, "Error: no steps in the current plan", report.History[0].Output)
}

func TestRunPlannerTransportFailureUsesFallback(t *testing.T) {
	opts := defaultOptions()
	opts.MaxSteps = 1

	planner := &stubPlanner{err: errors.New("oracle timeout")}
	translator := &stubTranslator{command: "ls"}
	ch := &stubChannel{output: "ok"}
	eng := newTestEngine(t, planner, translator, &stubCondenser{}, ch, noopExtract{}, opts)

	report := eng.Run(context.Background(), "goal")

	assert.Equal(t, 1, report.StepsExecuted)
	require.Len(t, translator.steps, 1)
	assert.Equal(t, agents.FallbackPlan().Steps[0], translator.steps[0])
	assert.Empty(t, report.Error)
}

func TestRunCondensesLongTranscript(t *testing.T) {
	opts := defaultOptions()
	opts.MaxSteps = 2
	opts.UseSummarizer = true
	opts.CondenseThreshold = 10

	planner := &stubPlanner{plans: []*agents.Plan{plan(false, "step")}}
	translator := &stubTranslator{command: "true"}
	condenser := &stubCondenser{summary: "condensed history"}
	ch := &stubChannel{output: "ok"}
	eng := newTestEngine(t, planner, translator, condenser, ch, noopExtract{}, opts)

	eng.Run(context.Background(), "goal")

	assert.Equal(t, 2, condenser.calls)
	// The second planning call sees the condensed view, not the raw steps.
	require.Len(t, planner.contexts, 2)
	assert.Contains(t, planner.contexts[1], "ATTACK HISTORY SUMMARY:\ncondensed history")
	assert.NotContains(t, planner.contexts[1], "--- Step 1 ---")
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	planner := &stubPlanner{plans: []*agents.Plan{plan(false, "step")}}
	eng := newTestEngine(t, planner, &stubTranslator{}, &stubCondenser{}, &stubChannel{}, noopExtract{}, defaultOptions())

	report := eng.Run(ctx, "goal")

	assert.True(t, report.Cancelled)
	assert.Contains(t, report.Error, "context canceled")
	assert.Zero(t, report.StepsExecuted)
}

func TestRunChannelScopedPerUse(t *testing.T) {
	opts := defaultOptions()
	opts.MaxSteps = 2

	planner := &stubPlanner{plans: []*agents.Plan{plan(false, "a", "b")}}
	translator := &stubTranslator{command: "true"}
	ch := &stubChannel{output: "ok"}
	eng := newTestEngine(t, planner, translator, &stubCondenser{}, ch, noopExtract{}, opts)

	eng.Run(context.Background(), "goal")

	// One probe connection plus one per executed command, each closed.
	assert.Equal(t, 3, ch.connects)
	assert.Equal(t, 2, ch.executes)
	assert.Equal(t, 3, ch.closes)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "initialize", StateInitialize.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "unknown", State(99).String())
}
