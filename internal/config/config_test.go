package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strand/internal/config"
)

// writeConfig drops YAML into a temp file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestLoad_FullConfig tests decoding every field.
func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
format: json
verbose: true
env_file: .env.test
manifest: suite.cue
suites:
  - integration
  - database
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, ".env.test", cfg.EnvFile)
	assert.Equal(t, "suite.cue", cfg.Manifest)
	assert.Equal(t, []string{"integration", "database"}, cfg.Suites)
}

// TestLoad_EmptyFileGetsDefaults tests that omitted fields fall back.
func TestLoad_EmptyFileGetsDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `verbose: false`))
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Format)
	assert.Empty(t, cfg.Suites)
}

// TestLoad_UnknownFieldRejected tests strict decoding: a typo fails
// loudly instead of configuring nothing.
func TestLoad_UnknownFieldRejected(t *testing.T) {
	_, err := config.Load(writeConfig(t, `manifests: suite.cue`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

// TestLoad_InvalidFormatRejected tests value validation.
func TestLoad_InvalidFormatRejected(t *testing.T) {
	_, err := config.Load(writeConfig(t, `format: xml`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"xml"`)
}

// TestLoad_MissingFile tests the read error path.
func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

// TestDefault_IsValid tests that the built-in default passes its own
// validation.
func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "text", cfg.Format)
}
