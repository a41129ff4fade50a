package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ledgerline/ledgersync/internal/store"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, "sqlite", cfg.Remote.Driver)
	assert.Equal(t, 3*time.Second, cfg.Sync.FullSyncDelay)
	assert.Equal(t, 1, cfg.Sync.Parallelism)
	assert.True(t, cfg.Sync.AutoFull)
	assert.Equal(t, "uuid", cfg.IDs.Format)
	assert.Equal(t, "local", cfg.Blob.Provider)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
owner_id: o-42
remote:
  driver: turso
  dsn: libsql://ledger.example.turso.io
sync:
  full_sync_delay: 500ms
  parallelism: 4
`), 0o644))
	t.Setenv("LSYNC_SYNC_PARALLELISM", "8")
	t.Setenv("LSYNC_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "o-42", cfg.OwnerID)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.FullSyncDelay)
	assert.Equal(t, 8, cfg.Sync.Parallelism, "env overrides the file")
	assert.Equal(t, "debug", cfg.LoggingConfig().Level)

	rc, err := cfg.StoreRemote()
	require.NoError(t, err)
	assert.Equal(t, store.DialectLibSQL, rc.Dialect)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no local path", func(c *Config) { c.Local.Path = "" }},
		{"bad driver", func(c *Config) { c.Remote.Driver = "postgres" }},
		{"zero parallelism", func(c *Config) { c.Sync.Parallelism = 0 }},
		{"s3 without bucket", func(c *Config) { c.Blob.Provider = "s3" }},
		{"unknown provider", func(c *Config) { c.Blob.Provider = "gcs" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestYAML_MasksSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Remote.AuthToken = "zq-auth-9917"
	cfg.Blob.SecretAccessKey = "zq-secret-4410"
	cfg.Blob.Bucket = "ledger"
	cfg.Sync.FullSyncDelay = 3 * time.Second

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "zq-auth-9917")
	assert.NotContains(t, string(out), "zq-secret-4410")

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, "ledger", back["blob"].(map[string]any)["bucket"])
	assert.Equal(t, "3s", back["sync"].(map[string]any)["full_sync_delay"])
	assert.Equal(t, "zq-auth-9917", cfg.Remote.AuthToken, "the receiver is not modified")
}
