package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, "https://api.github.com", cfg.Github.Endpoint)
	assert.Equal(t, 5, cfg.Github.TopN)
	assert.Equal(t, "github", cfg.Research.Strategy)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, 32000, cfg.Budget("knowledge"))
	assert.Equal(t, 15000, cfg.Budget("structure"))
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  listen: ":9000"
gemini:
  model: gemini-2.5-flash
  budgets:
    structure: 100
github:
  top_n: 3
  timeout: 5s
storage:
  backend: sqlite
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "from-api-key-env")
	t.Setenv("GITHUB_TOKEN", "gh-token")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 100, cfg.Budget("structure"))
	assert.Equal(t, 20000, cfg.Budget("file"))
	assert.Equal(t, 3, cfg.Github.TopN)
	assert.Equal(t, 5*time.Second, cfg.Github.Timeout)
	assert.Equal(t, "./data/vault.db", cfg.Storage.Path)
	assert.Equal(t, "from-api-key-env", cfg.Gemini.APIKey)
	assert.Equal(t, "gh-token", cfg.Github.Token)
}

func TestLoad_GeminiKeyTakesPrecedence(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gemini-key-value")
	t.Setenv("API_KEY", "other")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini-key-value", cfg.Gemini.APIKey)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
