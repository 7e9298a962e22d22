// File: internal/taskset/taskset_test.go
package taskset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) *Set {
	t.Helper()
	s, err := Parse([]byte(doc))
	require.NoError(t, err)
	return s
}

const validDoc = `{
	"target": {"host": "10.0.0.5", "port": 22, "username": "root", "password": "toor"},
	"global_settings": {"max_steps": 10, "use_summarizer": false, "output_dir": "/tmp/results"},
	"tasks": [
		{"id": "recon", "name": "Reconnaissance", "goal": "enumerate services", "category": "discovery"},
		{"id": "web", "name": "Web attack", "goal": "exploit the web server", "category": "exploitation", "requires": ["recon"]},
		{"id": "persist", "name": "Persistence", "goal": "install a backdoor", "requires": ["web"], "max_steps": 25, "use_summarizer": true}
	]
}`

func TestParseValidDocument(t *testing.T) {
	s := mustParse(t, validDoc)

	assert.Equal(t, "10.0.0.5", s.Target().Host)
	assert.Len(t, s.Tasks(), 3)
	assert.Equal(t, "/tmp/results", s.OutputDir())
	require.NotNil(t, s.Task("web"))
	assert.Equal(t, "exploit the web server", s.Task("web").Goal)
	assert.Nil(t, s.Task("absent"))
}

func TestParseValidationFailures(t *testing.T) {
	cases := map[string]string{
		"missing target host": `{"target": {}, "tasks": [{"id": "a", "name": "A", "goal": "g"}]}`,
		"missing tasks":       `{"target": {"host": "h"}, "tasks": []}`,
		"task missing id":     `{"target": {"host": "h"}, "tasks": [{"name": "A", "goal": "g"}]}`,
		"task missing name":   `{"target": {"host": "h"}, "tasks": [{"id": "a", "goal": "g"}]}`,
		"task missing goal":   `{"target": {"host": "h"}, "tasks": [{"id": "a", "name": "A"}]}`,
		"duplicate task id":   `{"target": {"host": "h"}, "tasks": [{"id": "a", "name": "A", "goal": "g"}, {"id": "a", "name": "B", "goal": "g"}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)

			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"target": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing task configuration")
}

func TestResolveOrderDependenciesFirst(t *testing.T) {
	s := mustParse(t, validDoc)

	assert.Equal(t, []string{"recon", "web", "persist"}, s.Order())
}

func TestResolveOrderTopologicalValidity(t *testing.T) {
	s := mustParse(t, `{
		"target": {"host": "h"},
		"tasks": [
			{"id": "d", "name": "D", "goal": "g", "requires": ["b", "c"]},
			{"id": "b", "name": "B", "goal": "g", "requires": ["a"]},
			{"id": "c", "name": "C", "goal": "g", "requires": ["a"]},
			{"id": "a", "name": "A", "goal": "g"}
		]
	}`)

	order := s.Order()
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, task := range s.Tasks() {
		for _, dep := range task.Requires {
			assert.Less(t, pos[dep], pos[task.ID], "%s must run after %s", task.ID, dep)
		}
	}
	// Declaration order breaks ties deterministically.
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestResolveOrderCycle(t *testing.T) {
	_, err := Parse([]byte(`{
		"target": {"host": "h"},
		"tasks": [
			{"id": "a", "name": "A", "goal": "g", "requires": ["b"]},
			{"id": "b", "name": "B", "goal": "g", "requires": ["a"]}
		]
	}`))
	require.Error(t, err)

	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "a", cerr.TaskID)
}

func TestResolveOrderMissingReference(t *testing.T) {
	_, err := Parse([]byte(`{
		"target": {"host": "h"},
		"tasks": [{"id": "a", "name": "A", "goal": "g", "requires": ["ghost"]}]
	}`))
	require.Error(t, err)

	var merr *MissingRefError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "a", merr.TaskID)
	assert.Equal(t, "ghost", merr.MissingDep)
}

func TestEffectiveSettingsResolution(t *testing.T) {
	s := mustParse(t, validDoc)

	// Task override wins over global.
	assert.Equal(t, 25, s.EffectiveMaxSteps("persist"))
	assert.True(t, s.EffectiveUseSummarizer("persist"))
	// Global wins over the default.
	assert.Equal(t, 10, s.EffectiveMaxSteps("recon"))
	assert.False(t, s.EffectiveUseSummarizer("recon"))
}

func TestEffectiveSettingsDefaults(t *testing.T) {
	s := mustParse(t, `{
		"target": {"host": "h"},
		"tasks": [{"id": "a", "name": "A", "goal": "g"}]
	}`)

	assert.Equal(t, 15, s.EffectiveMaxSteps("a"))
	assert.True(t, s.EffectiveUseSummarizer("a"))
	assert.Equal(t, "./attack_results", s.OutputDir())
}

func TestEffectiveTargetShallowMerge(t *testing.T) {
	s := mustParse(t, `{
		"target": {"host": "10.0.0.5", "port": 22, "username": "root", "password": "toor"},
		"tasks": [
			{"id": "a", "name": "A", "goal": "g"},
			{"id": "b", "name": "B", "goal": "g", "target": {"host": "10.0.0.9", "username": "www"}}
		]
	}`)

	base := s.EffectiveTarget("a")
	assert.Equal(t, "10.0.0.5", base.Host)

	merged := s.EffectiveTarget("b")
	assert.Equal(t, "10.0.0.9", merged.Host)
	assert.Equal(t, "www", merged.Username)
	// Fields the override omits fall through to the batch target.
	assert.Equal(t, 22, merged.Port)
	assert.Equal(t, "toor", merged.Password)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte(validDoc), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Tasks(), 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
