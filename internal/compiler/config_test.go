package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "telemetry-signals", cfg.DataSource)
	assert.Equal(t, "clientUser", cfg.UserField)
	assert.Equal(t, "200000", cfg.ContextTimeout)
	assert.False(t, cfg.SkipEmptyBuckets)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tdq.yaml")
	content := `dataSource: signals-eu
exampleDataAppID: 4a8b5a0e-3b5e-4bd8-9b8e-2a1b2c3d4e5f
skipEmptyBuckets: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "signals-eu", cfg.DataSource)
	assert.Equal(t, uuid.MustParse("4a8b5a0e-3b5e-4bd8-9b8e-2a1b2c3d4e5f"), cfg.ExampleDataAppID)
	assert.True(t, cfg.SkipEmptyBuckets)
	assert.Equal(t, "clientUser", cfg.UserField)
	assert.Equal(t, "200000", cfg.ContextTimeout)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "dataSorce: x\n", "field dataSorce not found"},
		{"bad app id", "exampleDataAppID: not-a-uuid\n", "exampleDataAppID"},
		{"empty data source", "dataSource: \"\"\n", "dataSource is required"},
		{"empty user field", "userField: \"\"\n", "userField is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestParseConfigEmpty(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
