package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, DefaultScratchDir, cfg.Scratch.Dir)
	assert.Equal(t, DefaultVideoEndpoint, cfg.Resolvers.VideoEndpoint)
	assert.Equal(t, 30, cfg.Telegram.PollTimeout)
}

func TestLoadRequiresBotToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BotToken")
}

func TestLoadTOML(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("TERABOX_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[log]
level = "debug"
format = "json"

[telegram]
bot_token = "from-file"

[resolvers]
file_api_key = "k1"

[scratch]
dir = "/tmp/scratch"
max_age = "15m"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "from-file", cfg.Telegram.BotToken)
	assert.Equal(t, "k1", cfg.Resolvers.FileAPIKey)
	assert.Equal(t, "/tmp/scratch", cfg.Scratch.Dir)
	assert.Equal(t, 15*time.Minute, cfg.Scratch.MaxAgeDuration())
	assert.Equal(t, DefaultPhotoEndpoint, cfg.Resolvers.PhotoEndpoint)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("TERABOX_API_KEY", "env-key")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "telegram:\n  bot_token: file-token\nserver:\n  addr: \"\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.BotToken)
	assert.Equal(t, "env-key", cfg.Resolvers.FileAPIKey)
	assert.Empty(t, cfg.Server.Addr)
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	t.Setenv("BOT_TOKEN", "x")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"loud\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestScratchMaxAgeFallback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultScratchMaxAge, ScratchConfig{MaxAge: "nonsense"}.MaxAgeDuration())
	assert.Equal(t, DefaultScratchMaxAge, ScratchConfig{MaxAge: "-1m"}.MaxAgeDuration())
}

func TestWarningsFlagMissingFileAPIKey(t *testing.T) {
	t.Parallel()

	cfg := Default()
	warnings := cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "file_api_key")

	cfg.Resolvers.FileAPIKey = "k"
	assert.Empty(t, cfg.Warnings())
}
