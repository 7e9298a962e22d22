// File: internal/agents/summarizer.go
package agents

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
)

// Summarizer condenses the full transcript into a compact summary paragraph
// so long runs stay within the model context window.
type Summarizer struct {
	llm      schemas.LLMClient
	logger   *zap.Logger
	preamble string
}

func NewSummarizer(llm schemas.LLMClient, preamble string, logger *zap.Logger) *Summarizer {
	return &Summarizer{
		llm:      llm,
		logger:   logger.Named("summarizer"),
		preamble: preamble,
	}
}

// Invoke produces a plain-text summary of the transcript.
func (s *Summarizer) Invoke(ctx context.Context, transcript string) (string, error) {
	req := schemas.GenerationRequest{
		UserPrompt: buildSummarizerPrompt(s.preamble, transcript),
		Tier:       schemas.TierFast,
	}

	response, err := s.llm.Generate(ctx, req)
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(response)
	s.logger.Debug("Condensed transcript",
		zap.Int("transcript_len", len(transcript)),
		zap.Int("summary_len", len(summary)))
	return summary, nil
}
