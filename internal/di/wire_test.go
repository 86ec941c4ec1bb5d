package di

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/requestmirror/internal/config"
	"github.com/aristath/requestmirror/internal/domain"
	testingpkg "github.com/aristath/requestmirror/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:          t.TempDir(),
		ExercismAPIURL:   "http://127.0.0.1:1",
		DiscordAPIURL:    "http://127.0.0.1:1",
		DiscordToken:     "token",
		DiscordChannelID: "900",
		Poll: &config.PollConfig{
			Min:          5 * time.Minute,
			Max:          time.Hour,
			HistorySize:  20,
			TickInterval: 5 * time.Second,
			TaskTimeout:  time.Second,
		},
		Backup: &config.BackupConfig{Schedule: "0 0 3 * * *"},
	}
}

func TestInitializeDatabases(t *testing.T) {
	cfg := testConfig(t)

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.FileExists(t, filepath.Join(cfg.DataDir, "mirror.db"))

	var tables int
	err = container.DB.Conn().QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('track_threads','requests','track_activity','tasks')",
	).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 4, tables)
}

func TestInitializeRepositories_RequiresDatabase(t *testing.T) {
	assert.Error(t, InitializeRepositories(&Container{}, zerolog.Nop()))
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.Worker)
	assert.NotNil(t, container.Queue)
	assert.NotNil(t, container.Source)
	assert.NotNil(t, container.Mirror)
	assert.Nil(t, container.BackupService)

	assert.NotNil(t, jobs.WALCheckpoint)
	assert.NotNil(t, jobs.Maintenance)
	assert.NotNil(t, jobs.ClientDataCleanup)
	assert.Nil(t, jobs.Backup)
	assert.Len(t, jobs.All(), 3)

	job, ok := jobs.Find("wal_checkpoint")
	require.True(t, ok)
	assert.NoError(t, container.Cron.RunNow(job))
	_, ok = jobs.Find("backup")
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{"wal_checkpoint", "daily_maintenance", "client_data_cleanup"}, container.Cron.Jobs())
}

func TestWire_BootstrapsWithDoubles(t *testing.T) {
	cfg := testConfig(t)
	source := new(testingpkg.MockSourceClient)
	mirror := new(testingpkg.MockMirrorClient)

	container, _, err := wire(cfg, zerolog.Nop(), &Container{Source: source, Mirror: mirror})
	require.NoError(t, err)
	defer container.Close()

	require.NoError(t, container.Worker.Bootstrap([]string{"go", "rust"}))

	snap := container.Worker.Snapshot()
	require.NotNil(t, snap)
	assert.Len(t, snap.Tracks, 2)
	assert.Len(t, snap.Schedule, 4)
	mock.AssertExpectationsForObjects(t, source, mirror)
}

func TestResolveTracks_Configured(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tracks = []string{"rust", "Go", "rust", " "}
	source := new(testingpkg.MockSourceClient)

	slugs, err := ResolveTracks(context.Background(), cfg, source, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "rust"}, slugs)
	source.AssertNotCalled(t, "ListTracks", mock.Anything)
}

func TestResolveTracks_Discovered(t *testing.T) {
	cfg := testConfig(t)
	source := new(testingpkg.MockSourceClient)
	source.On("ListTracks", mock.Anything).Return([]domain.TrackInfo{
		{Slug: "python", Title: "Python"},
		{Slug: "common-lisp", Title: "Common Lisp"},
	}, nil)

	slugs, err := ResolveTracks(context.Background(), cfg, source, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"common-lisp", "python"}, slugs)
}

func TestResolveTracks_SourceError(t *testing.T) {
	cfg := testConfig(t)
	source := new(testingpkg.MockSourceClient)
	source.On("ListTracks", mock.Anything).Return(nil, errors.New("down"))

	_, err := ResolveTracks(context.Background(), cfg, source, zerolog.Nop())
	assert.Error(t, err)
}
