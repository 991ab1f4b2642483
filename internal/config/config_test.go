package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err, "an explicit path that does not exist is an error")

	// no explicit path: defaults apply even with no config file around
	cfg, err = Load("")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Feed.HTTPTimeout)
	assert.Equal(t, 365, cfg.Feed.RetentionDays)
	assert.Contains(t, cfg.Feed.UserAgent, "skim/")
	assert.True(t, cfg.Search.Enabled)
	assert.Equal(t, "off", cfg.Log.Level)
	assert.True(t, filepath.IsAbs(cfg.Database.Path))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	doc := `[database]
path = "/tmp/skim-test.db"

[feed]
http_timeout = "10s"
user_agent = "custom-agent/2.0"
retention_days = 30

[search]
enabled = false

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/skim-test.db", cfg.Database.Path)
	assert.Equal(t, 10*time.Second, cfg.Feed.HTTPTimeout)
	assert.Equal(t, "custom-agent/2.0", cfg.Feed.UserAgent)
	assert.Equal(t, 30, cfg.Feed.RetentionDays)
	assert.False(t, cfg.Search.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	original := TestConfig()
	original.Database.Path = "/tmp/roundtrip.db"
	original.Feed.RetentionDays = 42
	require.NoError(t, Save(original, path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, original.Database.Path, loaded.Database.Path)
	assert.Equal(t, original.Feed.HTTPTimeout, loaded.Feed.HTTPTimeout)
	assert.Equal(t, original.Feed.UserAgent, loaded.Feed.UserAgent)
	assert.Equal(t, original.Feed.RetentionDays, loaded.Feed.RetentionDays)
}

func TestGenerateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, GenerateDefaultConfig(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Feed.HTTPTimeout)
	assert.Equal(t, 365, cfg.Feed.RetentionDays)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty stays empty", "", ""},
		{"tilde expands", "~/skim.db", filepath.Join(home, "skim.db")},
		{"absolute unchanged", "/var/lib/skim.db", "/var/lib/skim.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandPath(tt.in))
		})
	}
}
