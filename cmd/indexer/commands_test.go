package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cardsJSON = `[
  {"id": "current_ratio", "name": "Current Ratio", "domain": "accounting", "topic": "liquidity",
   "inputs": [{"name": "ca"}, {"name": "cl"}], "output_var": "r",
   "sympy_formulas": [{"variable": "r", "formula": "ca / cl"}]},
  {"id": "broken", "name": "No formulas", "output_var": "x", "sympy_formulas": []}
]`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"CONFIG_FILE", "LLM_PROVIDER", "ARTIFACT_BACKEND", "EVENTS_SINK", "RETRIEVAL_TOP_K", "RETRIEVAL_ALPHA", "ARTIFACT_KEY"} {
		t.Setenv(key, "")
	}
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCatalogCommandReportsSkippedEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cards.json"), []byte(cardsJSON), 0o644))

	out, err := execute(t, "catalog", "--cards", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "cards: 1")
	assert.Contains(t, out, "skipped: 1")
	assert.Contains(t, out, "cards.json[1]")
	assert.Contains(t, out, "accounting: [liquidity]")
}

func TestInspectCommandFailsForMissingArtifact(t *testing.T) {
	t.Setenv("ARTIFACT_PATH", t.TempDir())
	t.Setenv("OLLAMA_URL", "http://127.0.0.1:1")

	_, err := execute(t, "inspect", "--key", "missing.vqidx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestEventsCommandRequiresSink(t *testing.T) {
	t.Setenv("ARTIFACT_PATH", t.TempDir())

	_, err := execute(t, "events")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVENTS_SINK")
}
