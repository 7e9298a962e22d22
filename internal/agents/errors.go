// File: internal/agents/errors.go
package agents

import "fmt"

// ParseError indicates a model response that could not be decoded or failed
// schema validation. Callers treat it as recoverable: the planner and
// extractor absorb it with a deterministic fallback instead of aborting the
// run.
type ParseError struct {
	Agent string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: unparseable model response: %v", e.Agent, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
