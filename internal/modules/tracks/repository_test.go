package tracks

import (
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
	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestEnsure_Idempotent(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.Ensure("go"))
	require.NoError(t, repo.Ensure("go"))

	all, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "go", all[0].Slug)
	assert.False(t, all[0].HasThread())
	assert.False(t, all[0].Polled())
}

func TestThreadMapping(t *testing.T) {
	repo := setupRepo(t)

	threadID, err := repo.GetThread("rust")
	require.NoError(t, err)
	assert.Empty(t, threadID)

	require.NoError(t, repo.SetThread("rust", "1100"))
	require.NoError(t, repo.SetThread("rust", "1200"))

	threadID, err = repo.GetThread("rust")
	require.NoError(t, err)
	assert.Equal(t, "1200", threadID)
}

func TestSaveActivity_RoundTrip(t *testing.T) {
	repo := setupRepo(t)
	now := testingpkg.FixtureTime
	changes := []time.Time{now.Add(-20 * time.Minute), now.Add(-10 * time.Minute), now}

	require.NoError(t, repo.SaveActivity("python", 7*time.Minute, now, changes))

	track, err := repo.Get("python")
	require.NoError(t, err)
	require.NotNil(t, track)

	assert.Equal(t, 7*time.Minute, track.PollInterval)
	assert.Equal(t, now.Unix(), track.LastPolledAt.Unix())
	require.Len(t, track.RecentChanges, 3)
	for i := range changes {
		assert.True(t, changes[i].Equal(track.RecentChanges[i]), "change %d", i)
	}

	// Overwrite keeps one row.
	require.NoError(t, repo.SaveActivity("python", 9*time.Minute, now.Add(time.Minute), nil))
	track, err = repo.Get("python")
	require.NoError(t, err)
	assert.Equal(t, 9*time.Minute, track.PollInterval)
	assert.Empty(t, track.RecentChanges)
}

func TestGet_Unknown(t *testing.T) {
	repo := setupRepo(t)

	track, err := repo.Get("cobol")
	require.NoError(t, err)
	assert.Nil(t, track)
}

func TestGetAll_SortedWithThreadsAndActivity(t *testing.T) {
	repo := setupRepo(t)
	now := testingpkg.FixtureTime

	require.NoError(t, repo.Ensure("rust"))
	require.NoError(t, repo.SetThread("go", "42"))
	require.NoError(t, repo.SaveActivity("elixir", time.Hour, now, nil))

	all, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "elixir", all[0].Slug)
	assert.Equal(t, time.Hour, all[0].PollInterval)
	assert.Equal(t, "go", all[1].Slug)
	assert.Equal(t, "42", all[1].ThreadID)
	assert.Equal(t, "rust", all[2].Slug)
	assert.Zero(t, all[2].PollInterval)
}
