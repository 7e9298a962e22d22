// internal/llmutil/parser.go
package llmutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	// Regex definitions use \x60 (hex representation) for backticks because Go
	// raw strings cannot contain backticks.

	// jsonObjectRegex extracts a JSON object if the response is wrapped in markdown.
	jsonObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	// codeBlockRegex extracts content wrapped in markdown, supporting language tags.
	codeBlockRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")
)

// ExtractJSON attempts to parse an LLM response string into a target Go type.
// It handles common LLM formatting issues: markdown code fences (optionally
// tagged "json") and JSON objects embedded in conversational text.
func ExtractJSON[T any](response string) (*T, error) {
	response = strings.TrimSpace(response)
	jsonStringToParse := response

	if strings.HasPrefix(response, "```") {
		if matches := jsonObjectRegex.FindStringSubmatch(response); len(matches) > 1 {
			jsonStringToParse = matches[1]
		}
	} else if !strings.HasPrefix(response, "{") && strings.Contains(response, "{") {
		// The object is buried in surrounding prose; take the outermost braces.
		fb := strings.Index(response, "{")
		lb := strings.LastIndex(response, "}")
		if fb != -1 && lb > fb {
			jsonStringToParse = response[fb : lb+1]
		}
	}

	var result T
	if err := json.Unmarshal([]byte(jsonStringToParse), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, truncateString(jsonStringToParse, 500))
	}
	return &result, nil
}

// CleanCommandOutput normalizes an oracle-produced shell command: strips
// markdown fences and surrounding quotes, keeps only the first line, and drops
// a leading "$ " prompt artifact. A command must be a single shell invocation.
func CleanCommandOutput(raw string) string {
	command := strings.TrimSpace(raw)

	if strings.HasPrefix(command, "```") {
		if matches := codeBlockRegex.FindStringSubmatch(command); len(matches) > 1 {
			command = strings.TrimSpace(matches[1])
		}
	}

	command = strings.Trim(command, "\"'")

	if idx := strings.IndexByte(command, '\n'); idx >= 0 {
		command = strings.TrimSpace(command[:idx])
	}

	command = strings.TrimPrefix(command, "$ ")

	return command
}

// truncateString truncates a string to a maximum length for error logging.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
