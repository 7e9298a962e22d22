// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/lancet-cli/internal/observability"
)

// executeCommand runs a fresh root command with the given args and captures
// its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	observability.ResetForTest()
	t.Cleanup(viper.Reset)

	buf := new(bytes.Buffer)
	root := NewRootCommand()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestRunListGoals(t *testing.T) {
	out, err := executeCommand(t, "run", "--list-goals", "--target", "10.0.0.5")
	require.NoError(t, err)

	for _, goal := range defaultGoals {
		assert.Contains(t, out, goal)
	}
}

func TestRunRequiresGoal(t *testing.T) {
	_, err := executeCommand(t, "run", "--target", "10.0.0.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--goal is required")
}

func TestRunRejectsInvalidExtractMode(t *testing.T) {
	_, err := executeCommand(t,
		"run", "--goal", "enumerate services", "--target", "10.0.0.5", "--extract", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --extract mode")
}

func TestRunFailsWithInvalidMaxSteps(t *testing.T) {
	_, err := executeCommand(t,
		"run", "--goal", "enumerate services", "--target", "10.0.0.5", "--max-steps", "-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_steps")
}

func TestBatchRequiresFile(t *testing.T) {
	_, err := executeCommand(t, "batch")
	require.Error(t, err)
}

func TestBatchRejectsInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"target": {}, "tasks": []}`), 0o600))

	_, err := executeCommand(t, "batch", "--file", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid task configuration")
}

func TestBatchRejectsMissingFile(t *testing.T) {
	_, err := executeCommand(t, "batch", "--file", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
