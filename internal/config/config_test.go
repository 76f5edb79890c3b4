package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 27460, c.Server.Port)
	assert.Equal(t, "owner@localhost", c.Auth.DefaultUserEmail)
	assert.Equal(t, "system", c.Appearance.Theme)
	assert.True(t, c.IsActivityLogEnabled())
}

func TestLoadFromBytesOverlaysDefaults(t *testing.T) {
	c, err := LoadFromBytes([]byte("server:\n  port: 9000\nappearance:\n  theme: dark\n"))
	require.NoError(t, err)
	assert.Equal(t, 9000, c.Server.Port)
	assert.Equal(t, "dark", c.Appearance.Theme)
	// Untouched sections keep their defaults.
	assert.Equal(t, "./data/blockboard.db", c.Database.SQLitePath)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("BLOCKBOARD_TEST_SECRET", "s3cret")
	c, err := LoadFromBytes([]byte("auth:\n  accessSecret: ${BLOCKBOARD_TEST_SECRET}\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", c.Auth.AccessSecret)
}

func TestLoadReadsDotEnvBesideConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BLOCKBOARD_DOTENV_PORT=8123\n"), 0644))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: ${BLOCKBOARD_DOTENV_PORT}\n"), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8123, c.Server.Port)
}

func TestActivityLogEnabledParsing(t *testing.T) {
	var c Config
	for _, v := range []string{"true", "1", "yes", "YES", ""} {
		c.ActivityLog.Enabled = v
		assert.True(t, c.IsActivityLogEnabled(), "value %q", v)
	}
	for _, v := range []string{"false", "0", "no", "off"} {
		c.ActivityLog.Enabled = v
		assert.False(t, c.IsActivityLogEnabled(), "value %q", v)
	}
}
