// File: internal/workflow/extract.go
package workflow

import (
	"context"
	"regexp"
	"strings"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/agents"
	"github.com/xkilldash9x/lancet-cli/internal/transcript"
)

// ExtractStrategy turns a finished run's transcript into findings. Two
// strategies ship: the oracle-backed vulnerability extractor and the offline
// service scan over raw command output.
type ExtractStrategy interface {
	Extract(ctx context.Context, log *transcript.Log) ([]schemas.Finding, string, error)
}

// LLMExtractStrategy delegates to the extractor agent for a full
// vulnerability report with remediation advice.
type LLMExtractStrategy struct {
	Extractor *agents.Extractor
}

func (s *LLMExtractStrategy) Extract(ctx context.Context, log *transcript.Log) ([]schemas.Finding, string, error) {
	report, err := s.Extractor.Invoke(ctx, log.RenderFull())
	if err != nil {
		return nil, "", err
	}
	return report.Findings, report.Summary, nil
}

// servicePattern matches one port line of standard scanner output, e.g.
// "80/tcp open http Apache httpd 2.4.41".
var servicePattern = regexp.MustCompile(`(?m)^\s*(\d+/(?:tcp|udp))\s+(open\b.*?)\s*$`)

// ServiceScanStrategy extracts lightweight port/service findings directly
// from recorded command output. It needs no oracle round trip, which makes it
// the cheap option for pure discovery goals.
type ServiceScanStrategy struct{}

func (ServiceScanStrategy) Extract(_ context.Context, log *transcript.Log) ([]schemas.Finding, string, error) {
	seen := make(map[string]bool)
	var findings []schemas.Finding
	for _, record := range log.Records() {
		for _, m := range servicePattern.FindAllStringSubmatch(record.Output, -1) {
			port, info := m[1], strings.TrimSpace(m[2])
			if seen[port] {
				continue
			}
			seen[port] = true
			findings = append(findings, schemas.NewServiceFinding(port, info))
		}
	}

	summary := "No open services observed in the recorded output."
	if len(findings) > 0 {
		ports := make([]string, len(findings))
		for i, f := range findings {
			ports[i] = f.Port
		}
		summary = "Open services observed on: " + strings.Join(ports, ", ")
	}
	return findings, summary, nil
}
