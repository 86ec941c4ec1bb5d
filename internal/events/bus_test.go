package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EmitReachesSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got []*Event
	bus.Subscribe(func(e *Event) { got = append(got, e) })
	bus.Subscribe(func(e *Event) { got = append(got, e) })

	bus.Emit("worker", &TaskExecutedData{Kind: "apply-add", TrackSlug: "go", Outcome: "success"})

	require.Len(t, got, 2)
	assert.Equal(t, TaskExecuted, got[0].Type)
	assert.Equal(t, "worker", got[0].Module)
	assert.False(t, got[0].Timestamp.IsZero())

	data, ok := got[0].Data.(*TaskExecutedData)
	require.True(t, ok)
	assert.Equal(t, "go", data.TrackSlug)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	calls := 0
	unsubscribe := bus.Subscribe(func(*Event) { calls++ })
	assert.Equal(t, 1, bus.Subscribers())

	bus.Emit("worker", &TrackPolledData{TrackSlug: "go"})
	unsubscribe()
	unsubscribe()
	bus.Emit("worker", &TrackPolledData{TrackSlug: "go"})

	assert.Equal(t, 1, calls)
	assert.Zero(t, bus.Subscribers())
}

func TestBus_EmitError(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got *Event
	bus.Subscribe(func(e *Event) { got = e })
	bus.EmitError("backup", errors.New("bucket missing"), map[string]interface{}{"bucket": "b"})

	require.NotNil(t, got)
	assert.Equal(t, ErrorOccurred, got.Type)
	assert.Equal(t, "bucket missing", got.Data.(*ErrorEventData).Error)
}

func TestEvent_JSON(t *testing.T) {
	event := Event{
		Type:   BackupCompleted,
		Module: "backup",
		Data:   &BackupCompletedData{Key: "backups/mirror-1.db.gz", SizeBytes: 1024, Rotated: 2},
	}

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"BACKUP_COMPLETED"`)
	assert.Contains(t, string(raw), `"key":"backups/mirror-1.db.gz"`)
	assert.Contains(t, string(raw), `"rotated":2`)
}
