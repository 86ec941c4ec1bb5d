package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aristath/requestmirror/internal/events"
	testingpkg "github.com/aristath/requestmirror/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory ObjectStore.
type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failWrite bool
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Upload(ctx context.Context, key string, body io.Reader) error {
	if m.failWrite {
		return errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStore) List(ctx context.Context, prefix string) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Object
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, Object{Key: key, SizeBytes: int64(len(data))})
		}
	}
	return out, nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func newBackupService(t *testing.T, store ObjectStore, retention int, bus *events.Bus) *BackupService {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "mirror")
	t.Cleanup(cleanup)

	_, err := db.Conn().Exec("INSERT INTO track_threads (track_slug, message_id) VALUES ('go', '10')")
	require.NoError(t, err)

	svc := NewBackupService(db, store, t.TempDir(), retention, bus, zerolog.Nop())
	svc.now = func() time.Time { return testingpkg.FixtureTime }
	return svc
}

func TestCreateAndUpload_ArchiveContents(t *testing.T) {
	store := newMemStore()
	svc := newBackupService(t, store, 3, nil)

	info, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "requestmirror-backup-2024-03-01-120000.tar.gz", info.Key)
	assert.Greater(t, info.SizeBytes, int64(0))

	gz, err := gzip.NewReader(bytes.NewReader(store.objects[info.Key]))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := map[string][]byte{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = data
	}

	require.Contains(t, files, "mirror.db")
	require.Contains(t, files, "backup-metadata.json")
	assert.True(t, bytes.HasPrefix(files["mirror.db"], []byte("SQLite format 3")))

	var meta BackupMetadata
	require.NoError(t, json.Unmarshal(files["backup-metadata.json"], &meta))
	assert.Equal(t, "mirror", meta.Database)
	assert.Equal(t, int64(len(files["mirror.db"])), meta.SizeBytes)
	assert.True(t, strings.HasPrefix(meta.Checksum, "sha256:"))
}

func TestRotate_KeepsNewest(t *testing.T) {
	store := newMemStore()
	svc := newBackupService(t, store, 2, nil)

	base := testingpkg.FixtureTime
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * 24 * time.Hour)
		svc.now = func() time.Time { return at }
		_, err := svc.CreateAndUpload(context.Background())
		require.NoError(t, err)
	}
	// Foreign objects are ignored
	store.objects["requestmirror-backup-garbage.tar.gz"] = []byte("x")

	deleted, err := svc.Rotate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	assert.Equal(t, []string{
		"requestmirror-backup-2024-03-03-120000.tar.gz",
		"requestmirror-backup-2024-03-04-120000.tar.gz",
		"requestmirror-backup-garbage.tar.gz",
	}, store.keys())
}

func TestRun_EmitsBackupCompleted(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	var got []*events.Event
	bus.Subscribe(func(e *events.Event) { got = append(got, e) })

	svc := newBackupService(t, newMemStore(), 3, bus)
	assert.Equal(t, "backup", svc.Name())
	require.NoError(t, svc.Run())

	require.Len(t, got, 1)
	assert.Equal(t, events.BackupCompleted, got[0].Type)
	data, ok := got[0].Data.(*events.BackupCompletedData)
	require.True(t, ok)
	assert.Equal(t, "requestmirror-backup-2024-03-01-120000.tar.gz", data.Key)
}

func TestRun_UploadFailure(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	var got []*events.Event
	bus.Subscribe(func(e *events.Event) { got = append(got, e) })

	store := newMemStore()
	store.failWrite = true
	svc := newBackupService(t, store, 3, bus)

	err := svc.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")
	require.Len(t, got, 1)
	assert.Equal(t, events.ErrorOccurred, got[0].Type)
}

func TestMaintenanceJob(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "mirror")
	defer cleanup()

	job := NewMaintenanceJob(db, t.TempDir(), zerolog.Nop())
	assert.Equal(t, "daily_maintenance", job.Name())
	assert.NoError(t, job.Run())
}
