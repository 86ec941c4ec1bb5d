package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REQUESTMIRROR_DATA_DIR", t.TempDir())
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_CHANNEL_ID", "1091223069407842306")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Poll.Min)
	assert.Equal(t, 60*time.Minute, cfg.Poll.Max)
	assert.Equal(t, 20, cfg.Poll.HistorySize)
	assert.Equal(t, 5*time.Second, cfg.Poll.TickInterval)
	assert.Equal(t, 8090, cfg.Port)
	assert.False(t, cfg.Backup.Enabled)
	assert.Empty(t, cfg.Tracks)
	assert.Contains(t, cfg.DatabasePath(), "mirror.db")
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLL_MIN", "2m")
	t.Setenv("POLL_MAX", "30m")
	t.Setenv("TRACKS", " Python, rust ,,go")
	t.Setenv("HTTP_PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Poll.Min)
	assert.Equal(t, 30*time.Minute, cfg.Poll.Max)
	assert.Equal(t, []string{"python", "rust", "go"}, cfg.Tracks)
	assert.Equal(t, 9000, cfg.Port)
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TICK_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Poll.TickInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing token", func(c *Config) { c.DiscordToken = "" }, "DISCORD_TOKEN"},
		{"missing channel", func(c *Config) { c.DiscordChannelID = "" }, "DISCORD_CHANNEL_ID"},
		{"inverted clamp", func(c *Config) { c.Poll.Max = time.Minute }, "invalid poll clamp"},
		{"tiny history", func(c *Config) { c.Poll.HistorySize = 1 }, "HISTORY_SIZE"},
		{"backup without bucket", func(c *Config) { c.Backup.Enabled = true }, "BACKUP_BUCKET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				DiscordToken:     "token",
				DiscordChannelID: "1",
				Poll:             loadPollConfig(),
				Backup:           &BackupConfig{},
			}
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
