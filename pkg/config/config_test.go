package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "enx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "https://enx-dev.wiloon.com", cfg.API.BaseURL)
	require.Equal(t, 15*time.Second, cfg.API.Timeout)
	require.Equal(t, StoreSQLite, cfg.Session.Store)
	require.Equal(t, 200, cfg.Annotate.ChunkWords)
	require.Equal(t, 5000, cfg.Annotate.ChunkBytes)
	require.Equal(t, 500*time.Millisecond, cfg.Annotate.FlushInterval)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := writeYAML(t, `
api:
  base_url: "http://localhost:3000"
  timeout: "2s"
session:
  store: "Memory"
annotate:
  chunk_words: 50
  workers: 8
log:
  level: debug
`)
	t.Setenv("ENX_WORKERS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:3000", cfg.API.BaseURL)
	require.Equal(t, 2*time.Second, cfg.API.Timeout)
	require.Equal(t, StoreMemory, cfg.Session.Store)
	require.Equal(t, 50, cfg.Annotate.ChunkWords)
	require.Equal(t, 2, cfg.Annotate.Workers)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load("")
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"relative url": "api:\n  base_url: \"/api\"\n",
		"bad store":    "session:\n  store: \"vault\"\n",
		"zero chunk":   "annotate:\n  chunk_words: -1\n",
		"bad level":    "log:\n  level: \"loud\"\n",
	}
	for name, yaml := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeYAML(t, yaml))
			require.Error(t, err)
		})
	}
}
