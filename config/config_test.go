package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 20, cfg.Mastodon.PageSize)
	assert.Equal(t, time.Second, cfg.Timeline.FetchResolution)
	assert.Equal(t, []string{"user", "public:local", "public"}, cfg.Mastodon.Streams)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := chdirTemp(t)
	yaml := []byte("server:\n  port: \"9090\"\nmastodon:\n  instance: https://example.social\n  account: alice@example.social\n  page_size: 40\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))
	t.Setenv("FEDTL_MASTODON_ACCESS_TOKEN", "secret-token")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "https://example.social", cfg.Mastodon.Instance)
	assert.Equal(t, "alice@example.social", cfg.Mastodon.Account)
	assert.Equal(t, 40, cfg.Mastodon.PageSize)
	assert.Equal(t, "secret-token", cfg.Mastodon.AccessToken)
}

func TestLoadRejectsInvalid(t *testing.T) {
	chdirTemp(t)
	t.Setenv("FEDTL_DATABASE_DRIVER", "mysql")

	_, err := Load()
	assert.Error(t, err)
}
