package clientdata

import (
	"encoding/json"
	"testing"
	"time"

	testingpkg "github.com/aristath/requestmirror/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) *Repository {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "mirror")
	t.Cleanup(cleanup)
	return NewRepository(db.Conn())
}

func TestStoreAndGetIfFresh(t *testing.T) {
	repo := setupRepo(t)

	data := []map[string]string{{"slug": "go", "title": "Go"}}
	require.NoError(t, repo.Store(TableTracks, "all", data, time.Hour))

	raw, err := repo.GetIfFresh(TableTracks, "all")
	require.NoError(t, err)
	require.NotNil(t, raw)

	var parsed []map[string]string
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.Equal(t, "go", parsed[0]["slug"])
}

func TestStoreUpsert(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.Store(TableTracks, "all", []string{"go"}, time.Hour))
	require.NoError(t, repo.Store(TableTracks, "all", []string{"go", "rust"}, time.Hour))

	raw, err := repo.Get(TableTracks, "all")
	require.NoError(t, err)
	assert.JSONEq(t, `["go","rust"]`, string(raw))
}

func TestGetIfFresh_ExpiredButGetReturnsStale(t *testing.T) {
	repo := setupRepo(t)
	now := testingpkg.FixtureTime
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Store(TableTracks, "all", []string{"go"}, time.Minute))

	repo.now = func() time.Time { return now.Add(2 * time.Minute) }

	raw, err := repo.GetIfFresh(TableTracks, "all")
	require.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = repo.Get(TableTracks, "all")
	require.NoError(t, err)
	assert.JSONEq(t, `["go"]`, string(raw))
}

func TestGet_NotFound(t *testing.T) {
	repo := setupRepo(t)

	raw, err := repo.Get(TableTracks, "missing")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestInvalidTableName(t *testing.T) {
	repo := setupRepo(t)

	assert.Error(t, repo.Store("tracks; DROP TABLE requests", "k", 1, time.Hour))
	_, err := repo.Get("nope", "k")
	assert.Error(t, err)
	_, err = repo.DeleteExpired("nope")
	assert.Error(t, err)
}

func TestDeleteAllExpired(t *testing.T) {
	repo := setupRepo(t)
	now := testingpkg.FixtureTime
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Store(TableTracks, "old", 1, time.Minute))
	require.NoError(t, repo.Store(TableTracks, "new", 2, time.Hour))

	repo.now = func() time.Time { return now.Add(10 * time.Minute) }

	results, err := repo.DeleteAllExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), results[TableTracks])

	job := NewCleanupJob(repo, zerolog.Nop())
	assert.Equal(t, "client_data_cleanup", job.Name())
	assert.NoError(t, job.Run())

	raw, err := repo.Get(TableTracks, "new")
	require.NoError(t, err)
	assert.NotNil(t, raw)
}
