package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	cfg, err := Load(Options{
		File:   "",
		DotEnv: filepath.Join(dir, "missing.env"),
		Getenv: env(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.BaseURL)
	assert.Equal(t, cfg.BaseURL, cfg.Serve.Target)
	assert.Equal(t, 8000, cfg.Backend.Port)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
base_url: http://file:8000
token: from-file
log_level: debug
serve:
  addr: 0.0.0.0:3000
  target: http://proxy:8000
backend:
  port: 9000
  env:
    OPENAI_API_KEY: sk-test
`), 0644))
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("EASTWORLD_TOKEN=from-dotenv\nEASTWORLD_LOG_LEVEL=warn\n"), 0644))

	cfg, err := Load(Options{
		File:   file,
		DotEnv: dotenv,
		Getenv: env(map[string]string{"EASTWORLD_LOG_LEVEL": "error", "EASTWORLD_BACKEND_PORT": "9100"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://file:8000", cfg.BaseURL)
	assert.Equal(t, "from-dotenv", cfg.Token)
	assert.Equal(t, "error", cfg.LogLevel, "environment beats .env")
	assert.Equal(t, "0.0.0.0:3000", cfg.Serve.Addr)
	assert.Equal(t, "http://proxy:8000", cfg.Serve.Target)
	assert.Equal(t, 9100, cfg.Backend.Port)
	assert.Equal(t, "sk-test", cfg.Backend.Env["OPENAI_API_KEY"])

	cc := cfg.ClientConfig()
	assert.Equal(t, "from-dotenv", cc.Token)
	assert.Equal(t, 9100, cfg.BackendOptions().Port)
}

func TestExplicitFileMustExist(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "nope.yaml"), Getenv: env(nil)})
	assert.Error(t, err)
}

func TestInvalidValues(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.env")

	_, err := Load(Options{DotEnv: missing, Getenv: env(map[string]string{"EASTWORLD_BASE_URL": "localhost"})})
	assert.ErrorContains(t, err, "base_url")

	_, err = Load(Options{DotEnv: missing, Getenv: env(map[string]string{"EASTWORLD_LOG_LEVEL": "loud"})})
	assert.ErrorContains(t, err, "log_level")

	_, err = Load(Options{DotEnv: missing, Getenv: env(map[string]string{"EASTWORLD_BACKEND_PORT": "x"})})
	assert.Error(t, err)
}

func TestSaveToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.Token = "abc"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := Load(Options{File: path, DotEnv: filepath.Join(t.TempDir(), "x.env"), Getenv: env(nil)})
	require.NoError(t, err)
	assert.Equal(t, "abc", loaded.Token)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)
}
