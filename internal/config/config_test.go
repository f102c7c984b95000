package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reconcile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "reconcile.db", cfg.Store.Path)
	assert.Equal(t, 10*time.Second, cfg.Poller.Period)
	assert.Equal(t, 2*time.Second, cfg.Poller.Stagger)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Dispatch.Workers)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
store:
  path: /var/lib/reconcile/records.db
  timeout: 2s
dispatch:
  submit_timeout: 45s
  workers:
    - hostname: etl-1
      url: http://etl-1:9090
    - hostname: etl-2
      url: http://etl-2:9090
poller:
  period: 15s
log:
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/reconcile/records.db", cfg.Store.Path)
	assert.Equal(t, 2*time.Second, cfg.Store.Timeout)
	assert.Equal(t, 45*time.Second, cfg.Dispatch.SubmitTimeout)
	assert.Equal(t, []WorkerConfig{
		{Hostname: "etl-1", URL: "http://etl-1:9090"},
		{Hostname: "etl-2", URL: "http://etl-2:9090"},
	}, cfg.Dispatch.Workers)
	assert.Equal(t, 15*time.Second, cfg.Poller.Period)
	assert.Equal(t, 2*time.Second, cfg.Poller.Stagger)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "store:\n  path: from-file.db\n")
	t.Setenv("RECONCILE_STORE_PATH", "from-env.db")
	t.Setenv("RECONCILE_POLLER_STAGGER", "500ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Store.Path)
	assert.Equal(t, 500*time.Millisecond, cfg.Poller.Stagger)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `
poller:
  period: 0s
dispatch:
  workers:
    - hostname: etl-1
      url: not-a-url
    - hostname: etl-1
      url: http://etl-1b:9090
log:
  output: file
`)
	_, err := Load(path)
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "poller.period must be positive")
	assert.Contains(t, msg, `dispatch.workers[0].url "not-a-url"`)
	assert.Contains(t, msg, `dispatch.workers[1].hostname "etl-1" is duplicated`)
	assert.Contains(t, msg, "log.file_path is required")
}

func TestValidate_LogLevel(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Log.Level = "WARN"
	assert.NoError(t, cfg.Validate())

	cfg.Log.Level = "chatty"
	assert.ErrorContains(t, cfg.Validate(), `log.level "chatty"`)
}
