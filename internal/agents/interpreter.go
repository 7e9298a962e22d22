// File: internal/agents/interpreter.go
package agents

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/llmutil"
)

// blockedCommandOutput replaces any command that matches the denylist.
// Executing it is harmless and its echo in the transcript tells the planner
// the step was refused.
const blockedCommandOutput = "echo 'Command blocked for safety reasons'"

// deniedSubstrings are never allowed to reach the target shell, whatever the
// surrounding command looks like. Substring matching is deliberate: wrappers
// like `sh -c "rm -rf /"` must be caught too.
var deniedSubstrings = []string{
	"rm -rf /",
	"rm -rf /*",
	"> /dev/sda",
	"mkfs",
	"dd if=/dev/zero",
}

// Interpreter translates a single plan step into an executable shell command.
type Interpreter struct {
	llm      schemas.LLMClient
	logger   *zap.Logger
	preamble string
}

func NewInterpreter(llm schemas.LLMClient, preamble string, logger *zap.Logger) *Interpreter {
	return &Interpreter{
		llm:      llm,
		logger:   logger.Named("interpreter"),
		preamble: preamble,
	}
}

// Invoke converts the plan step into one shell command. The raw model output
// is normalized first and then screened against the denylist; a blocked
// command is substituted, never dropped, so every step still executes
// something.
func (i *Interpreter) Invoke(ctx context.Context, transcript, step string) (string, error) {
	req := schemas.GenerationRequest{
		UserPrompt: buildInterpreterPrompt(i.preamble, step, transcript),
		Tier:       schemas.TierFast,
	}

	response, err := i.llm.Generate(ctx, req)
	if err != nil {
		return "", err
	}

	command := Sanitize(llmutil.CleanCommandOutput(response))
	i.logger.Debug("Interpreted plan step",
		zap.String("step", step),
		zap.String("command", command))
	return command, nil
}

// Sanitize screens a normalized command against the denylist and substitutes
// a safe echo when any denied substring appears.
func Sanitize(command string) string {
	for _, denied := range deniedSubstrings {
		if strings.Contains(command, denied) {
			return blockedCommandOutput
		}
	}
	return command
}
