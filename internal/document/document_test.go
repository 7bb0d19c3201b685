package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tdq/internal/query"
)

func TestLoadQueryFormatsAgree(t *testing.T) {
	want, err := LoadQuery(filepath.Join("testdata", "topn.json"))
	require.NoError(t, err)
	assert.Equal(t, query.QueryTypeTopN, want.QueryType)

	for _, name := range []string{"topn.yaml", "topn.cue"} {
		t.Run(name, func(t *testing.T) {
			got, err := LoadQuery(filepath.Join("testdata", name))
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "%s decodes to a different query", name)
		})
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"q.json", FormatJSON},
		{"q.yaml", FormatYAML},
		{"q.YML", FormatYAML},
		{"dir/q.cue", FormatCUE},
	}
	for _, tt := range tests {
		got, err := FormatOf(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}

	_, err := FormatOf("q.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "absent.json"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("empty yaml", func(t *testing.T) {
		_, err := Load(write("empty.yaml", ""))
		var de *Error
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "empty document", de.Message)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(write("bad.yaml", "queryType: [topN"))
		var de *Error
		require.ErrorAs(t, err, &de)
		assert.Contains(t, de.Error(), "bad.yaml")
	})

	t.Run("cue conflict has a position", func(t *testing.T) {
		_, err := Load(write("bad.cue", "queryType: \"topN\"\nthreshold: 10 & 11\n"))
		var de *Error
		require.ErrorAs(t, err, &de)
		require.True(t, de.Pos.IsValid())
		assert.Equal(t, "bad.cue", filepath.Base(de.Pos.Filename()))
	})

	t.Run("cue incomplete value", func(t *testing.T) {
		_, err := Load(write("open.cue", "queryType: \"topN\"\nthreshold: int\n"))
		var de *Error
		assert.ErrorAs(t, err, &de)
	})

	t.Run("decode error", func(t *testing.T) {
		_, err := LoadQuery(write("untyped.json", `{"granularity":"day"}`))
		var de *Error
		require.ErrorAs(t, err, &de)
		assert.ErrorIs(t, err, query.ErrMissingQueryType)
	})
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.json", "notes.txt", filepath.Join("sub", "c.cue")} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	}

	files, err := Find([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.json"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "sub", "c.cue"),
	}, files)

	files, err = Find([]string{filepath.Join(dir, "notes.txt")})
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = Find([]string{filepath.Join(dir, "absent")})
	assert.Error(t, err)
}
