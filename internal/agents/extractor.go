// File: internal/agents/extractor.go
package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/llmutil"
)

// fallbackReportSummary is used when the extractor response cannot be parsed.
const fallbackReportSummary = "Unable to extract vulnerabilities from the provided context."

// Report is the extractor's assessment of a finished run.
type Report struct {
	Findings []schemas.Finding
	Summary  string
}

type vulnerabilityPayload struct {
	Type        *string `json:"type"`
	Description *string `json:"description"`
	Evidence    *string `json:"evidence"`
	Severity    *string `json:"severity"`
	Remediation *string `json:"remediation"`
}

type reportPayload struct {
	Vulnerabilities *[]vulnerabilityPayload `json:"vulnerabilities"`
	Summary         *string                 `json:"summary"`
}

// Extractor reviews the full transcript after a run and extracts confirmed
// vulnerabilities with remediation advice.
type Extractor struct {
	llm      schemas.LLMClient
	logger   *zap.Logger
	preamble string
}

func NewExtractor(llm schemas.LLMClient, preamble string, logger *zap.Logger) *Extractor {
	return &Extractor{
		llm:      llm,
		logger:   logger.Named("extractor"),
		preamble: preamble,
	}
}

// Invoke asks the powerful model for a vulnerability report. Transport
// failures are returned; malformed responses yield an empty report with an
// explanatory summary so the run still produces a result.
func (e *Extractor) Invoke(ctx context.Context, transcript string) (*Report, error) {
	req := schemas.GenerationRequest{
		UserPrompt: buildExtractorPrompt(e.preamble, transcript),
		Tier:       schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			ForceJSONFormat: true,
		},
	}

	response, err := e.llm.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	report, err := parseReport(response)
	if err != nil {
		e.logger.Warn("Falling back to empty report", zap.Error(&ParseError{Agent: "extractor", Err: err}))
		return &Report{Summary: fallbackReportSummary}, nil
	}

	e.logger.Info("Extracted findings", zap.Int("count", len(report.Findings)))
	return report, nil
}

func parseReport(response string) (*Report, error) {
	payload, err := llmutil.ExtractJSON[reportPayload](response)
	if err != nil {
		return nil, err
	}
	if payload.Vulnerabilities == nil || payload.Summary == nil {
		return nil, &ParseError{Agent: "extractor", Err: errMissingField("vulnerabilities/summary")}
	}

	findings := make([]schemas.Finding, 0, len(*payload.Vulnerabilities))
	for i, v := range *payload.Vulnerabilities {
		if err := validateVulnerability(i, v); err != nil {
			return nil, err
		}
		findings = append(findings, schemas.NewVulnerabilityFinding(
			*v.Type, *v.Description, *v.Evidence, schemas.Severity(*v.Severity), *v.Remediation))
	}

	return &Report{Findings: findings, Summary: *payload.Summary}, nil
}

func validateVulnerability(idx int, v vulnerabilityPayload) error {
	fields := map[string]*string{
		"type":        v.Type,
		"description": v.Description,
		"evidence":    v.Evidence,
		"severity":    v.Severity,
		"remediation": v.Remediation,
	}
	for name, value := range fields {
		if value == nil {
			return &ParseError{
				Agent: "extractor",
				Err:   fmt.Errorf("vulnerability %d: %w", idx, errMissingField(name)),
			}
		}
	}
	return nil
}
