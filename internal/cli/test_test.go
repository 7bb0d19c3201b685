package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tdq/internal/harness"
)

var harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")

const inlineScenario = `name: segments_day
description: day granularity timeseries for one app
document:
  queryType: timeseries
  baseFilters: thisApp
  appID: B97579B6-FFB8-4AC5-AAA7-DA5796CC5DCE
  granularity: day
  intervals: ["2022-08-01/2022-09-01"]
  aggregations: [{type: eventCount}]
assertions:
  - type: output_names
    names: [Events]
`

func runTestCmd(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCmd(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCmd(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	buf, err := runTestCmd(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	buf, err := runTestCmd(t, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	buf, err := runTestCmd(t, "text", harnessScenarios)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ topn_this_app")
	assert.Contains(t, output, "✓ no_filter_not_super")
	assert.Contains(t, output, "Test Summary: 4 passed, 0 failed, 4 total")
	assert.Contains(t, output, "✓ All scenarios passed")
}

func TestTestCommandHarnessScenariosJSON(t *testing.T) {
	buf, err := runTestCmd(t, "json", "--filter", "topn_*", harnessScenarios)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "topn_this_app", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestTestCommandFailingAssertion(t *testing.T) {
	dir := t.TempDir()
	failing := `name: wrong_name
description: asserts an output name the query does not have
document:
  queryType: timeseries
  baseFilters: thisApp
  appID: B97579B6-FFB8-4AC5-AAA7-DA5796CC5DCE
  granularity: day
  intervals: ["2022-08-01/2022-09-01"]
  aggregations: [{type: eventCount}]
assertions:
  - type: output_names
    names: [Signals]
`
	writeDoc(t, dir, "wrong_name.yaml", failing)

	buf, err := runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ wrong_name")
	assert.Contains(t, output, "assertions[0]")
	assert.Contains(t, output, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandFailingJSON(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "broken.yaml", "name: broken\n")

	buf, err := runTestCmd(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "broken.yaml", resp.Data.Scenarios[0].Name)
	require.NotEmpty(t, resp.Data.Scenarios[0].Errors)
	assert.Contains(t, resp.Data.Scenarios[0].Errors[0], "failed to load scenario")
}

func TestTestCommandUpdateGolden(t *testing.T) {
	dir := t.TempDir()
	scenarioFile := writeDoc(t, dir, "segments_day.yaml", inlineScenario)
	goldenFile := harness.GoldenPath(scenarioFile)

	buf, err := runTestCmd(t, "text", "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ segments_day (golden updated)")

	data, err := os.ReadFile(goldenFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hash"`)
	assert.Contains(t, string(data), `"2022-08-01T00:00:00.000Z/2022-09-01T00:00:00.000Z"`)

	// A fresh golden file matches
	buf, err = runTestCmd(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ segments_day\n")

	// A stale one does not
	require.NoError(t, os.WriteFile(goldenFile, []byte(`{"hash":"stale"}`), 0o644))
	buf, err = runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "does not match golden file")
}

func TestTestHelpText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "conformance")
	assert.Contains(t, output, "--update")
	assert.Contains(t, output, "--filter")
	assert.Contains(t, output, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0o644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "funnel-org.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "funnel-app.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "retention-org.yaml"), []byte(""), 0o644))

	files, err := findScenarioFiles(tmpDir, "funnel-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.Contains(t, filepath.Base(f), "funnel-")
	}

	_, err = findScenarioFiles(tmpDir, "[")
	assert.ErrorContains(t, err, "invalid filter pattern")
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "sub.yaml"), []byte(""), 0o644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
