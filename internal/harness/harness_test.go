package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioPath(name string) string {
	return filepath.Join("testdata", "scenarios", name+".yaml")
}

func TestRun_ScenarioFiles(t *testing.T) {
	for _, name := range []string{
		"topn_this_app",
		"organization_funnel",
		"no_filter_not_super",
		"organization_without_apps",
	} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(scenarioPath(name))
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	scenario, err := LoadScenario(scenarioPath("topn_this_app"))
	require.NoError(t, err)
	require.NoError(t, RunWithGolden(t, scenario))

	scenario.Stage = StagePrecompile
	result, err := Run(scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "topn_this_app_precompiled", result))

	failing, err := LoadScenario(scenarioPath("no_filter_not_super"))
	require.NoError(t, err)
	require.NoError(t, RunWithGolden(t, failing))
}

func TestRun_HashIgnoresClock(t *testing.T) {
	scenario, err := LoadScenario(scenarioPath("topn_this_app"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)

	scenario.Now = "2023-03-01T00:00:00Z"
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash)
	assert.NotEqual(t, string(first.Output), string(second.Output))
	assert.False(t, second.Pass, "the interval assertion pins the first clock")
}

func TestRun_Mismatches(t *testing.T) {
	document := map[string]any{
		"queryType":    "timeseries",
		"baseFilters":  "noFilter",
		"granularity":  "day",
		"intervals":    []any{"2022-08-01/2022-09-01"},
		"aggregations": []any{map[string]any{"type": "eventCount"}},
	}

	t.Run("unexpected error", func(t *testing.T) {
		result, err := Run(&Scenario{
			Name:       "x",
			Document:   document,
			Assertions: []Assertion{{Type: AssertFieldAbsent, Path: "appID"}},
		})
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.Equal(t, "NOT_ALLOWED", result.ErrorCode)
		assert.Contains(t, result.Errors[0], "unexpected compile error")
	})

	t.Run("expected error did not happen", func(t *testing.T) {
		result, err := Run(&Scenario{
			Name:     "x",
			Document: document,
			SuperOrg: true,
			Expect:   &ExpectClause{Error: "NOT_ALLOWED"},
		})
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.NotEmpty(t, result.Output)
	})

	t.Run("wrong error field", func(t *testing.T) {
		result, err := Run(&Scenario{
			Name:     "x",
			Document: map[string]any{"queryType": "timeseries", "granularity": "day"},
			Expect:   &ExpectClause{Error: "KEY_MISSING", Field: "organizationAppIDs"},
		})
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.Equal(t, "intervals", result.ErrorField)
	})

	t.Run("failed assertion", func(t *testing.T) {
		result, err := Run(&Scenario{
			Name:     "x",
			Document: document,
			SuperOrg: true,
			Assertions: []Assertion{
				{Type: AssertFieldEquals, Path: "dataSource", Value: "telemetry-signals"},
			},
		})
		require.NoError(t, err)
		assert.False(t, result.Pass)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "Expected: \"telemetry-signals\"")
	})

	t.Run("setup errors", func(t *testing.T) {
		_, err := Run(&Scenario{Name: "x", Document: document, Now: "yesterday"})
		assert.ErrorContains(t, err, "invalid now")

		_, err = Run(&Scenario{Name: "x", Document: document, OrganizationAppIDs: []string{"nope"}})
		assert.ErrorContains(t, err, "invalid organization app ID")

		_, err = Run(&Scenario{Name: "x", Document: map[string]any{"granularity": "day"}})
		assert.ErrorContains(t, err, "failed to load document")
	})
}

func TestRun_Config(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "tdq.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("dataSource: com.example\nuserField: deviceID\n"), 0o644))

	result, err := Run(&Scenario{
		Name: "x",
		Document: map[string]any{
			"queryType":    "timeseries",
			"granularity":  "day",
			"intervals":    []any{"2022-08-01/2022-09-01"},
			"aggregations": []any{map[string]any{"type": "userCount"}},
		},
		Config:             configPath,
		OrganizationAppIDs: []string{"73b9ca2a-30e6-46c9-b6b8-9034e68aad21"},
		Assertions: []Assertion{
			{Type: AssertFieldEquals, Path: "dataSource", Value: "com.example"},
			{Type: AssertFieldEquals, Path: "aggregations.0.fieldName", Value: "deviceID"},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestGoldenFiles(t *testing.T) {
	dir := t.TempDir()
	scenarioFile := filepath.Join(dir, "case.yaml")
	assert.Equal(t, filepath.Join(dir, "golden", "case.golden"), GoldenPath(scenarioFile))

	result := &Result{Pass: true, ErrorCode: "KEY_MISSING", ErrorField: "steps"}

	_, err := CompareGolden(scenarioFile, result)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, WriteGolden(scenarioFile, result))
	data, err := os.ReadFile(GoldenPath(scenarioFile))
	require.NoError(t, err)
	assert.Equal(t, `{"error_code":"KEY_MISSING","error_field":"steps"}`, string(data))

	match, err := CompareGolden(scenarioFile, result)
	require.NoError(t, err)
	assert.True(t, match)

	result.ErrorField = "stepNames"
	match, err = CompareGolden(scenarioFile, result)
	require.NoError(t, err)
	assert.False(t, match)
}
