package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsanev/camguard-go/internal/conf"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "events.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testEvent(camera, eventType string, at time.Time) *Event {
	return &Event{
		Timestamp:  NewEventTimestamp(at),
		CameraName: camera,
		EventType:  eventType,
		FilePath:   "/recordings/" + camera + ".mp4",
	}
}

func TestSaveAssignsEventID(t *testing.T) {
	store := openTestStore(t)

	ev := testEvent("front", EventTypeRecording, time.Now())
	require.NoError(t, store.Save(ev))
	assert.NotEmpty(t, ev.EventID)

	got, err := store.Get(ev.EventID)
	require.NoError(t, err)
	assert.Equal(t, "front", got.CameraName)
	assert.Equal(t, EventTypeRecording, got.EventType)
}

func TestDeleteByEventID(t *testing.T) {
	store := openTestStore(t)

	ev := testEvent("front", EventTypeSnapshot, time.Now())
	require.NoError(t, store.Save(ev))
	require.NoError(t, store.Delete(ev.EventID))

	_, err := store.Get(ev.EventID)
	assert.Error(t, err)

	assert.Error(t, store.Delete(ev.EventID), "deleting twice reports not found")
}

func TestOldestReturnsEventsOldestFirst(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newest := testEvent("a", EventTypeRecording, base.Add(2*time.Hour))
	oldest := testEvent("b", EventTypeRecording, base)
	middle := testEvent("c", EventTypeRecording, base.Add(time.Hour))
	for _, ev := range []*Event{newest, oldest, middle} {
		require.NoError(t, store.Save(ev))
	}

	got, err := store.Oldest(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].CameraName)
	assert.Equal(t, "c", got[1].CameraName)

	all, err := store.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].CameraName, "GetAll returns newest first")
}

func TestCountByCamera(t *testing.T) {
	store := openTestStore(t)

	now := time.Now()
	require.NoError(t, store.Save(testEvent("front", EventTypeRecording, now)))
	require.NoError(t, store.Save(testEvent("front", EventTypeSnapshot, now)))
	require.NoError(t, store.Save(testEvent(GridCameraName, EventTypeGridSnapshot, now)))

	n, err := store.CountByCamera("front")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = store.CountByCamera(GridCameraName)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestNewSelectsSQLite(t *testing.T) {
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	assert.IsType(t, &SQLiteStore{}, New(settings))

	settings.Output.SQLite.Enabled = false
	assert.Nil(t, New(settings))
}
