package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, int64(10*1024*1024), cfg.Preprocess.MaxFileSize)
	assert.Equal(t, 100, cfg.Watch.DebounceMs)
	assert.Equal(t, 100*time.Millisecond, cfg.Debounce())
	assert.NotEmpty(t, cfg.Project.Root)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultConfigFile))
	require.NoError(t, err)
	assert.Equal(t, Default().Preprocess.MaxFileSize, cfg.Preprocess.MaxFileSize)
}

func TestLoadResolvesRelativeDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	content := `
[project]
name = "demo"

[preprocess]
include_dirs = ["inc", "shared/inc"]
system_dirs = ["sys"]
output_dir = "out"

[watch]
debounce_ms = 250
include = ["**/*.fx"]

[defines]
QUALITY = "3"
DEBUG_SHADERS = ""
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Project.Name)
	assert.Equal(t, dir, cfg.Project.Root)
	assert.Equal(t, []string{filepath.Join(dir, "inc"), filepath.Join(dir, "shared", "inc")},
		cfg.Preprocess.IncludeDirs)
	assert.Equal(t, []string{filepath.Join(dir, "sys")}, cfg.Preprocess.SystemDirs)
	assert.Equal(t, filepath.Join(dir, "out"), cfg.Preprocess.OutputDir)
	assert.Equal(t, 250, cfg.Watch.DebounceMs)
	assert.Equal(t, "3", cfg.Defines["QUALITY"])
	assert.Contains(t, cfg.Defines, "DEBUG_SHADERS")
}

func TestLoadRejectsBadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte("[project\nbroken"), 0644))
	_, err := Load(path)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max file size", func(c *Config) { c.Preprocess.MaxFileSize = 0 }},
		{"negative debounce", func(c *Config) { c.Watch.DebounceMs = -1 }},
		{"huge debounce", func(c *Config) { c.Watch.DebounceMs = 120_000 }},
		{"define not an identifier", func(c *Config) { c.Defines["1BAD"] = "x" }},
		{"define with dash", func(c *Config) { c.Defines["A-B"] = "x" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			var cfgErr *ConfigError
			assert.ErrorAs(t, cfg.Validate(), &cfgErr)
		})
	}
}

func TestValidDefineNames(t *testing.T) {
	cfg := Default()
	cfg.Defines["_underscore"] = "1"
	cfg.Defines["MixedCase9"] = "1"
	assert.NoError(t, cfg.Validate())
}
