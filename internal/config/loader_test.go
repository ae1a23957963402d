package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "toolgate.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_Load_MissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Tools.MaxIterations)
	assert.Empty(t, cfg.Tools.Enabled)
}

func TestLoader_Load_ParsesActivations(t *testing.T) {
	path := writeConfigFile(t, `{
		"tools": {
			"enabled": [
				{"name": "calculator"},
				{"name": "echo", "description": "custom echo"}
			],
			"max_iterations": 3,
			"default_timeout_ms": 10000
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Tools.Enabled, 2)
	assert.Equal(t, "calculator", cfg.Tools.Enabled[0].Name)
	assert.Equal(t, "echo", cfg.Tools.Enabled[1].Name)
	assert.Equal(t, "custom echo", cfg.Tools.Enabled[1].Description)
	assert.Equal(t, 3, cfg.Tools.MaxIterations)
	assert.Equal(t, 10000, cfg.Tools.DefaultTimeoutMS)
}

func TestLoader_Load_RetainsUnknownActivationKeys(t *testing.T) {
	path := writeConfigFile(t, `{
		"tools": {
			"enabled": [
				{"name": "calculator", "timeout": 99}
			]
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Tools.Enabled, 1)
	assert.Contains(t, cfg.Tools.Enabled[0].Extra, "timeout")
}

func TestLoader_Load_DefaultsApplyWhenAbsent(t *testing.T) {
	path := writeConfigFile(t, `{"tools": {"enabled": [{"name": "echo"}]}}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Tools.MaxIterations)
	assert.Equal(t, 30000, cfg.Tools.DefaultTimeoutMS)
	assert.NotEmpty(t, cfg.Logging.File)
}

func TestLoader_Load_InvalidJSON(t *testing.T) {
	path := writeConfigFile(t, `{not json`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoader_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolgate.json")
	loader := NewLoader(path)

	cfg := DefaultConfig()
	cfg.Tools.Enabled = []ToolActivation{{Name: "current_time"}}
	cfg.Tools.MaxIterations = 2
	cfg.DataDir = filepath.Dir(path)
	require.NoError(t, loader.Save(cfg))

	reloaded, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, reloaded.Tools.Enabled, 1)
	assert.Equal(t, "current_time", reloaded.Tools.Enabled[0].Name)
	assert.Equal(t, 2, reloaded.Tools.MaxIterations)
}

func TestLoader_GetConfigPath(t *testing.T) {
	loader := NewLoader("/tmp/custom.json")
	assert.Equal(t, "/tmp/custom.json", loader.GetConfigPath())
}
