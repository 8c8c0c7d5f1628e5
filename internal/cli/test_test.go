package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: adds
description: "curried add"
steps:
  - match: {left: add, right: "2"}
  - match: {left: $prev, right: "3"}
    expect: {value: "5"}
`

const failingScenario = `name: wrong
description: "expects the wrong sum"
steps:
  - exec: [add, "2", "2"]
    expect: {value: "5"}
`

func writeScenario(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestTest_AllPass(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "adds.yaml", passingScenario)

	out, _, err := runCLI(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ adds")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTest_Failure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "adds.yaml", passingScenario)
	writeScenario(t, dir, "wrong.yml", failingScenario)

	out, _, err := runCLI(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, `step 0: expected "5", got "4"`)
}

func TestTest_Filter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "adds.yaml", passingScenario)
	writeScenario(t, dir, "wrong.yaml", failingScenario)

	out, _, err := runCLI(t, "test", dir, "--filter", "add*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")

	_, _, err = runCLI(t, "test", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_GoldenUpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "adds.yaml", passingScenario)

	_, _, err := runCLI(t, "test", dir, "--update")
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "adds.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario":"adds"`)

	_, _, err = runCLI(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "adds.golden"), []byte("{}"), 0o644))
	out, _, err := runCLI(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTest_JSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "wrong.yaml", failingScenario)

	out, _, err := runCLI(t, "--format", "json", "test", dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Equal(t, "TEST_FAILED", resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Len(t, resp.Data.Scenarios[0].TraceDigest, 64)
}

func TestTest_EmptyAndMissingDir(t *testing.T) {
	out, _, err := runCLI(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	_, _, err = runCLI(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_RepositoryScenarios(t *testing.T) {
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")
	golden := filepath.Join("..", "harness", "testdata", "golden")

	out, _, err := runCLI(t, "test", scenarios, "--golden", golden)
	require.NoError(t, err, out)
	assert.Contains(t, out, "4 passed, 0 failed")
}
