// File: internal/agents/planner.go
package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/llmutil"
)

// Plan is the planner's structured output for one orchestration step.
type Plan struct {
	Steps            []string `json:"steps"`
	GoalVerification string   `json:"goal_verification"`
	GoalReached      bool     `json:"goal_reached"`
}

// planPayload mirrors Plan with pointer fields so that missing keys can be
// distinguished from zero values during validation.
type planPayload struct {
	Steps            *[]string `json:"steps"`
	GoalVerification *string   `json:"goal_verification"`
	GoalReached      *bool     `json:"goal_reached"`
}

// FallbackPlan is returned whenever the planner's response cannot be parsed
// or fails validation. It keeps the loop alive with a safe reconnaissance
// step rather than aborting the run on a malformed response.
func FallbackPlan() *Plan {
	return &Plan{
		Steps:            []string{"Gather more information about the system with basic commands"},
		GoalVerification: "Check if we have enough information to proceed",
		GoalReached:      false,
	}
}

// Planner produces attack plans from the current transcript and goal.
type Planner struct {
	llm      schemas.LLMClient
	logger   *zap.Logger
	preamble string
}

func NewPlanner(llm schemas.LLMClient, preamble string, logger *zap.Logger) *Planner {
	return &Planner{
		llm:      llm,
		logger:   logger.Named("planner"),
		preamble: preamble,
	}
}

// Invoke asks the powerful model for the next plan. Transport failures are
// returned to the caller; malformed or schema-violating responses are
// absorbed and replaced with FallbackPlan.
func (p *Planner) Invoke(ctx context.Context, transcript, goal string) (*Plan, error) {
	req := schemas.GenerationRequest{
		UserPrompt: buildPlannerPrompt(p.preamble, goal, transcript),
		Tier:       schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			ForceJSONFormat: true,
		},
	}

	response, err := p.llm.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	plan, err := parsePlan(response)
	if err != nil {
		p.logger.Warn("Falling back to default plan", zap.Error(&ParseError{Agent: "planner", Err: err}))
		return FallbackPlan(), nil
	}
	return plan, nil
}

func parsePlan(response string) (*Plan, error) {
	payload, err := llmutil.ExtractJSON[planPayload](response)
	if err != nil {
		return nil, err
	}
	if err := validatePlan(payload); err != nil {
		return nil, err
	}
	return &Plan{
		Steps:            *payload.Steps,
		GoalVerification: *payload.GoalVerification,
		GoalReached:      *payload.GoalReached,
	}, nil
}

func validatePlan(p *planPayload) error {
	switch {
	case p.Steps == nil:
		return &ParseError{Agent: "planner", Err: errMissingField("steps")}
	case p.GoalVerification == nil:
		return &ParseError{Agent: "planner", Err: errMissingField("goal_verification")}
	case p.GoalReached == nil:
		return &ParseError{Agent: "planner", Err: errMissingField("goal_reached")}
	}
	return nil
}

type errMissingField string

func (e errMissingField) Error() string { return "missing required field " + string(e) }
