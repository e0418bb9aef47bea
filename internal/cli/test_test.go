package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

func writeScenario(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

const passingScenario = `name: passing
description: a put followed by a get
steps:
  - put: {record: {id: 1, v: one}}
    expect: {id: 1}
  - get: {id: 1}
    expect: {record: {id: 1, v: one}}
`

const failingScenario = `name: failing
description: expects the wrong identifier
steps:
  - put: {record: {id: 1}}
    expect: {id: 2}
`

func TestTestCommand_HarnessScenarios(t *testing.T) {
	out, err := execute(t, "test", harnessScenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ limit-window")
	assert.Contains(t, out, "✓ no-overwrite")
	assert.Contains(t, out, "All scenarios passed")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, "test", harnessScenarios, "--filter", "limit-*", "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(1), data["passed"])
}

func TestTestCommand_Failure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "passing.yaml", passingScenario)
	writeScenario(t, dir, "failing.yaml", failingScenario)

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "expected id 2, got 1")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommand_LoadError(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: broken\n")

	out, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommand_UpdateAndCompareGolden(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "passing.yaml", passingScenario)

	_, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "passing.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"passing"`)

	_, err = execute(t, "test", dir)
	require.NoError(t, err, "fresh golden file matches")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "passing.golden"), []byte("{}"), 0644))
	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_SetupExhaustsIDs(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "short-ids.yaml", `name: short-ids
description: two generated setup ids but only one planned
ids: [only]
setup:
  records: [{v: one}, {v: two}]
steps:
  - get: {id: only}
`)

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "identifiers exhausted")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

func TestTestCommand_NoScenarios(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_MissingDirectory(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", "golden", "crud.golden"), goldenFilePath(filepath.Join("scenarios", "crud.yaml")))
}
