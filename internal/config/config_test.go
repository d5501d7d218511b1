package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenProfileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultAPIURL, cfg.API.URL)
	require.Equal(t, "memory", cfg.Cache.Backend)
	require.Equal(t, DefaultSchedule, cfg.Watch.Schedule)
	require.False(t, cfg.Email.Enabled())
}

func TestLoadProfileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	profile := []byte("api:\n  url: https://escrow.example.com/\n  timeout: 5s\nauth:\n  token: from-file\ncache:\n  backend: Redis\n")
	require.NoError(t, os.WriteFile(path, profile, 0o600))

	t.Setenv("ESCROW_TOKEN", "from-env")
	t.Setenv("ESCROW_WATCH_SCHEDULE", "*/5 * * * *")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://escrow.example.com", cfg.API.URL)
	require.Equal(t, 5*time.Second, cfg.API.Timeout)
	require.Equal(t, "from-env", cfg.Auth.Token)
	require.Equal(t, "redis", cfg.Cache.Backend)
	require.Equal(t, "*/5 * * * *", cfg.Watch.Schedule)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	bad := Default()
	bad.API.URL = "not a url"
	require.Error(t, bad.Validate())

	bad = Default()
	bad.Watch.Schedule = "every now and then"
	require.Error(t, bad.Validate())

	bad = Default()
	bad.Cache.Backend = "memcached"
	require.Error(t, bad.Validate())
}

func TestSaveProfileKeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("output: json\napi:\n  timeout: 3s\n"), 0o600))

	cfg := Default()
	cfg.API.URL = "https://api.example.com"
	cfg.Auth.Token = "tok"
	require.NoError(t, cfg.SaveProfile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "json", loaded.Output)
	require.Equal(t, 3*time.Second, loaded.API.Timeout)
	require.Equal(t, "https://api.example.com", loaded.API.URL)
	require.Equal(t, "tok", loaded.Auth.Token)
}
