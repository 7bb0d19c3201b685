package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runValidateCmd(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestValidateValidDocument(t *testing.T) {
	buf, err := runValidateCmd(t, "text", topNQuery)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ "+topNQuery)
	assert.Contains(t, output, "✓ All documents valid")
}

func TestValidateValidDocumentJSON(t *testing.T) {
	buf, err := runValidateCmd(t, "json", topNQuery)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Documents, 1)
	assert.Empty(t, resp.Data.Documents[0].Warnings)
}

func TestValidateDanglingFieldAccess(t *testing.T) {
	path := filepath.Join("testdata", "queries", "dangling.yaml")
	buf, err := runValidateCmd(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ "+path)
	assert.Contains(t, output, ErrCodeValidation)
	assert.Contains(t, output, `"count"`)
	assert.Contains(t, output, `"Users"`)
	assert.NotContains(t, output, "All documents valid")
}

func TestValidateDanglingFieldAccessJSON(t *testing.T) {
	buf, err := runValidateCmd(t, "json", filepath.Join("testdata", "queries", "dangling.yaml"))
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	require.Len(t, resp.Data.Documents, 1)
	assert.Len(t, resp.Data.Documents[0].Warnings, 2)
}

func TestValidateDecodeFailure(t *testing.T) {
	buf, err := runValidateCmd(t, "text", filepath.Join("testdata", "queries", "missing_type.json"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), ErrCodeDecodeFailed)
}

func TestValidateNeedsNoOrganization(t *testing.T) {
	// thisOrganization without apps fails to compile but validates
	path := writeDoc(t, t.TempDir(), "q.yaml", `queryType: timeseries
granularity: day
intervals: ["2022-08-01/2022-09-01"]
aggregations: [{type: userCount}]
`)
	buf, err := runValidateCmd(t, "text", path)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ All documents valid")
}

func TestValidateCUEConflictLocation(t *testing.T) {
	path := writeDoc(t, t.TempDir(), "q.cue", `query: {
	queryType:   "timeseries"
	granularity: "day"
	granularity: "hour"
}
`)
	buf, err := runValidateCmd(t, "text", path)
	require.Error(t, err)
	assert.Contains(t, buf.String(), path+":")
	assert.Contains(t, buf.String(), ErrCodeLoadFailed)
}

func TestValidateMultipleDocuments(t *testing.T) {
	dir := t.TempDir()
	copyDoc(t, topNQuery, dir)
	copyDoc(t, filepath.Join("testdata", "queries", "dangling.yaml"), dir)

	buf, err := runValidateCmd(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data.Documents, 2)
	assert.False(t, resp.Data.Documents[0].Valid)
	assert.True(t, resp.Data.Documents[1].Valid)
}

func TestValidateNonExistentPath(t *testing.T) {
	buf, err := runValidateCmd(t, "text", "/nonexistent/query.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), ErrCodeNotFound)
}

func TestValidateEmptyDirectory(t *testing.T) {
	buf, err := runValidateCmd(t, "text", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, buf.String(), ErrCodeNoFiles)
}
