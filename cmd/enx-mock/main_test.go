package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFlagsOverride(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("ENX_MOCK_USERNAME", "env-user")

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--addr", "127.0.0.1:0", "--password", "secret", "--log-level", "error"}))

	cfg, err := loadConfig(cmd.Flags(), &options{})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:0", cfg.Addr)
	require.Equal(t, "env-user", cfg.Username)
	require.Equal(t, "secret", cfg.Password)
}

func TestLoadConfigRejectsEmptyCredentials(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--username", "", "--log-level", "error"}))

	_, err := loadConfig(cmd.Flags(), &options{})
	require.Error(t, err)
}
