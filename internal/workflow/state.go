// File: internal/workflow/state.go
package workflow

import (
	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/agents"
	"github.com/xkilldash9x/lancet-cli/internal/transcript"
)

// State identifies a stage of the orchestration loop. The engine advances a
// run through these stages with an explicit transition function; there is no
// hidden graph machinery behind them.
type State int

const (
	StateInitialize State = iota
	StatePlan
	StateInterpret
	StateExecute
	StateRecord
	StateCondense
	StateSelectNext
	StateExtract
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInitialize:
		return "initialize"
	case StatePlan:
		return "plan"
	case StateInterpret:
		return "interpret"
	case StateExecute:
		return "execute"
	case StateRecord:
		return "record"
	case StateCondense:
		return "condense"
	case StateSelectNext:
		return "select_next"
	case StateExtract:
		return "extract"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// RunState is everything a run carries between transitions. Every field any
// stage reads or writes is declared here; stages hold no memory of their own.
type RunState struct {
	Goal string
	Log  *transcript.Log

	Plan        *agents.Plan
	CurrentStep string
	Command     string
	Output      string

	StepCount   int
	GoalReached bool
	LastError   error

	Findings []schemas.Finding
	Summary  string
}

func newRunState(goal string, maxContextLength int) RunState {
	return RunState{
		Goal: goal,
		Log:  transcript.NewLog(goal, maxContextLength),
	}
}
