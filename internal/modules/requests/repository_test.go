package requests

import (
	"testing"

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

func TestTrack_InsertsUnmirroredOnce(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.Track("r1", "go"))
	require.NoError(t, repo.SetMessage("r1", "go", "m1"))
	require.NoError(t, repo.Track("r1", "go")) // must not clear the message

	item, err := repo.Get("r1")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "m1", item.MessageID)
	assert.True(t, item.Mirrored())
}

func TestGet_Unknown(t *testing.T) {
	repo := setupRepo(t)

	item, err := repo.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestDelete(t *testing.T) {
	repo := setupRepo(t)
	require.NoError(t, repo.SetMessage("r1", "go", "m1"))

	require.NoError(t, repo.Delete("r1"))
	require.NoError(t, repo.Delete("r1"))

	item, err := repo.Get("r1")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestSyncMessages(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.SetMessage("gone", "go", "m-gone"))
	require.NoError(t, repo.Track("pending", "go"))
	require.NoError(t, repo.SetMessage("other", "rust", "m-other"))

	require.NoError(t, repo.SyncMessages("go", map[string]string{
		"kept": "m-kept",
	}))

	items, err := repo.ListByTrack("go")
	require.NoError(t, err)
	require.Len(t, items, 3)

	byID := map[string]RequestItem{}
	for _, item := range items {
		byID[item.RequestID] = item
	}
	assert.Empty(t, byID["gone"].MessageID, "message no longer in the thread")
	assert.Empty(t, byID["pending"].MessageID)
	assert.Equal(t, "m-kept", byID["kept"].MessageID)

	other, err := repo.Get("other")
	require.NoError(t, err)
	assert.Equal(t, "m-other", other.MessageID, "other tracks untouched")
}

func TestPruneUnmirrored(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.Track("still-open", "go"))
	require.NoError(t, repo.Track("vanished", "go"))
	require.NoError(t, repo.SetMessage("mirrored", "go", "m1"))

	pruned, err := repo.PruneUnmirrored("go", map[string]bool{"still-open": true})
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	items, err := repo.ListByTrack("go")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "mirrored", items[0].RequestID)
	assert.Equal(t, "still-open", items[1].RequestID)
}

func TestCountByTrack(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.SetMessage("a", "go", "m1"))
	require.NoError(t, repo.SetMessage("b", "go", "m2"))
	require.NoError(t, repo.Track("c", "go"))
	require.NoError(t, repo.SetMessage("d", "rust", "m3"))

	counts, err := repo.CountByTrack()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"go": 2, "rust": 1}, counts)
}
