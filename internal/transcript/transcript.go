// File: internal/transcript/transcript.go
package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
)

// truncationMarker is inserted between the goal header and the kept suffix
// when the rendered transcript exceeds the character budget.
const truncationMarker = "[...Context truncated due to length...]"

// stepBoundary marks the start of a rendered step block. Truncation re-anchors
// at this marker so a partial step is never emitted.
const stepBoundary = "--- Step "

// truncationHeadroom reserves space for the truncation marker itself.
const truncationHeadroom = 50

// StepRecord is one executed step of a run. Records are immutable once
// appended and are never reordered or removed; truncation only elides them
// from the rendered view.
type StepRecord struct {
	PlanText  string
	Command   string
	Output    string
	Timestamp time.Time
}

// Log owns the append-only transcript of a run plus the pieces needed to
// render it: the goal header, the current plan and an optional summary.
// Rendering is a pure projection; nothing here mutates the underlying log.
type Log struct {
	goal         string
	records      []StepRecord
	planSteps    []string
	summary      string
	maxRenderLen int
}

// NewLog creates an empty transcript for the given goal. maxRenderLen bounds
// the length of RenderFull's output; zero or negative disables truncation.
func NewLog(goal string, maxRenderLen int) *Log {
	return &Log{
		goal:         goal,
		maxRenderLen: maxRenderLen,
	}
}

// Goal returns the immutable goal this transcript belongs to.
func (l *Log) Goal() string { return l.goal }

// Append adds a step record to the end of the log.
func (l *Log) Append(r StepRecord) {
	l.records = append(l.records, r)
}

// Len returns the number of recorded steps.
func (l *Log) Len() int { return len(l.records) }

// Records returns a copy of the underlying step log.
func (l *Log) Records() []StepRecord {
	out := make([]StepRecord, len(l.records))
	copy(out, l.records)
	return out
}

// History converts the step log into its serializable report form.
func (l *Log) History() []schemas.StepEntry {
	out := make([]schemas.StepEntry, len(l.records))
	for i, r := range l.records {
		out[i] = schemas.StepEntry{
			Plan:      r.PlanText,
			Command:   r.Command,
			Output:    r.Output,
			Timestamp: r.Timestamp,
		}
	}
	return out
}

// SetPlanSteps replaces the current-plan section used by both renderings.
func (l *Log) SetPlanSteps(steps []string) {
	l.planSteps = append([]string(nil), steps...)
}

// SetSummary stores the externally produced summary used by RenderCondensed.
func (l *Log) SetSummary(summary string) {
	l.summary = summary
}

// HasSummary reports whether a condensed rendering is available.
func (l *Log) HasSummary() bool { return l.summary != "" }

// RenderFull renders the goal header, every step in order and the current
// plan. When the result exceeds the configured budget it applies
// tail-preserving truncation: the goal header is kept verbatim, leading
// history is dropped, and the kept suffix is re-anchored at the first
// complete step boundary.
func (l *Log) RenderFull() string {
	var sb strings.Builder
	sb.WriteString(l.header())

	if len(l.records) > 0 {
		sb.WriteString("ATTACK HISTORY:\n")
		for i, step := range l.records {
			sb.WriteString(fmt.Sprintf("%s%d ---\n", stepBoundary, i+1))
			sb.WriteString("Plan: " + step.PlanText + "\n")
			sb.WriteString("Command: " + step.Command + "\n")
			sb.WriteString("Output: " + step.Output + "\n\n")
		}
	}

	sb.WriteString(l.renderPlan())

	context := sb.String()
	if l.maxRenderLen > 0 && len(context) > l.maxRenderLen {
		context = l.truncate(context)
	}
	return context
}

// RenderCondensed replaces the step-by-step history with the stored summary
// paragraph, retaining the goal header and the current plan steps.
func (l *Log) RenderCondensed() string {
	var sb strings.Builder
	sb.WriteString(l.header())
	sb.WriteString("ATTACK HISTORY SUMMARY:\n" + l.summary + "\n\n")
	sb.WriteString(l.renderPlan())
	return sb.String()
}

func (l *Log) header() string {
	return "ATTACK GOAL: " + l.goal + "\n\n"
}

func (l *Log) renderPlan() string {
	if len(l.planSteps) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("CURRENT PLAN:\n")
	for i, step := range l.planSteps {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, step))
	}
	return sb.String()
}

// truncate keeps the goal header, drops leading history and re-anchors the
// kept tail at the first step boundary so no partial step is rendered.
func (l *Log) truncate(context string) string {
	goalPart := l.header()
	remaining := l.maxRenderLen - len(goalPart) - truncationHeadroom
	if remaining <= 0 {
		return goalPart + truncationMarker + "\n\n"
	}

	rest := context[len(goalPart):]
	if len(rest) > remaining {
		rest = rest[len(rest)-remaining:]
	}

	if idx := strings.Index(rest, stepBoundary); idx > 0 {
		rest = rest[idx:]
	}

	return goalPart + truncationMarker + "\n\n" + rest
}
