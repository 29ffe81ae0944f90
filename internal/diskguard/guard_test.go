package diskguard

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsanev/camguard-go/internal/conf"
	"github.com/tsanev/camguard-go/internal/datastore"
)

// memCatalog is an in-memory datastore.Interface for pruning tests.
type memCatalog struct {
	events []datastore.Event
}

func (c *memCatalog) Open() error  { return nil }
func (c *memCatalog) Close() error { return nil }

func (c *memCatalog) Save(event *datastore.Event) error {
	c.events = append(c.events, *event)
	return nil
}

func (c *memCatalog) Get(eventID string) (datastore.Event, error) {
	for _, ev := range c.events {
		if ev.EventID == eventID {
			return ev, nil
		}
	}
	return datastore.Event{}, os.ErrNotExist
}

func (c *memCatalog) Delete(eventID string) error {
	for i, ev := range c.events {
		if ev.EventID == eventID {
			c.events = append(c.events[:i], c.events[i+1:]...)
			return nil
		}
	}
	return os.ErrNotExist
}

func (c *memCatalog) GetAll() ([]datastore.Event, error) {
	return append([]datastore.Event(nil), c.events...), nil
}

func (c *memCatalog) Oldest(limit int) ([]datastore.Event, error) {
	sorted := append([]datastore.Event(nil), c.events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (c *memCatalog) CountByCamera(string) (int64, error) {
	return int64(len(c.events)), nil
}

// seedRecording writes a file of the given size and catalogs it.
func seedRecording(t *testing.T, catalog *memCatalog, dir, name string, size int, at time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	require.NoError(t, catalog.Save(&datastore.Event{
		EventID:    name,
		Timestamp:  datastore.NewEventTimestamp(at),
		CameraName: "cam1",
		EventType:  datastore.EventTypeRecording,
		FilePath:   path,
	}))
	return path
}

func TestUnlimitedQuotaAlwaysPermits(t *testing.T) {
	g := New(t.TempDir(), 0, conf.QuotaActionStop, nil, nil)
	assert.True(t, g.MayStartNewRecording())
}

func TestUnderLimitPermits(t *testing.T) {
	dir := t.TempDir()
	catalog := &memCatalog{}
	seedRecording(t, catalog, dir, "a.mp4", 100, time.Now())

	g := New(dir, 1000, conf.QuotaActionStop, catalog, nil)
	assert.True(t, g.MayStartNewRecording())
}

func TestStopActionRefusesAndDeletesNothing(t *testing.T) {
	dir := t.TempDir()
	catalog := &memCatalog{}
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	// 1200 bytes of recordings against a 1000 byte limit.
	pathA := seedRecording(t, catalog, dir, "a.mp4", 600, base)
	pathB := seedRecording(t, catalog, dir, "b.mp4", 600, base.Add(time.Hour))

	g := New(dir, 1000, conf.QuotaActionStop, catalog, nil)
	assert.False(t, g.MayStartNewRecording())

	_, err := os.Stat(pathA)
	assert.NoError(t, err, "stop action must not delete anything")
	_, err = os.Stat(pathB)
	assert.NoError(t, err)
	assert.Len(t, catalog.events, 2)
}

func TestOverwriteOldestPrunesUntilUnderLimit(t *testing.T) {
	dir := t.TempDir()
	catalog := &memCatalog{}
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	oldest := seedRecording(t, catalog, dir, "oldest.mp4", 400, base)
	middle := seedRecording(t, catalog, dir, "middle.mp4", 400, base.Add(time.Hour))
	newest := seedRecording(t, catalog, dir, "newest.mp4", 400, base.Add(2*time.Hour))

	g := New(dir, 1000, conf.QuotaActionOverwriteOldest, catalog, nil)
	assert.True(t, g.MayStartNewRecording())

	// 1200 -> deleting the oldest 400 brings usage to 800 < 1000.
	_, err := os.Stat(oldest)
	assert.True(t, os.IsNotExist(err), "oldest file is pruned first")
	_, err = os.Stat(middle)
	assert.NoError(t, err)
	_, err = os.Stat(newest)
	assert.NoError(t, err)

	usage, err := g.Usage()
	require.NoError(t, err)
	assert.Less(t, usage, int64(1000))
}

func TestOverwriteOldestSkipsLockedFiles(t *testing.T) {
	dir := t.TempDir()
	catalog := &memCatalog{}
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	locked := seedRecording(t, catalog, dir, "locked.mp4", 600, base)
	other := seedRecording(t, catalog, dir, "other.mp4", 600, base.Add(time.Hour))

	g := New(dir, 1000, conf.QuotaActionOverwriteOldest, catalog, nil)
	g.Lock(locked)
	assert.True(t, g.MayStartNewRecording())

	_, err := os.Stat(locked)
	assert.NoError(t, err, "in-progress files are never deleted")
	_, err = os.Stat(other)
	assert.True(t, os.IsNotExist(err), "pruning falls through to the next oldest")
}

func TestOverwriteOldestWithEmptyCatalogStillPermits(t *testing.T) {
	dir := t.TempDir()
	// Untracked bytes over the limit, nothing in the catalog to prune.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.bin"), make([]byte, 1500), 0o644))

	g := New(dir, 1000, conf.QuotaActionOverwriteOldest, &memCatalog{}, nil)
	assert.True(t, g.MayStartNewRecording())
}

func TestUsageWalksRecursively(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "cam1")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.bin"), make([]byte, 250), 0o644))

	g := New(dir, 0, conf.QuotaActionStop, nil, nil)
	usage, err := g.Usage()
	require.NoError(t, err)
	assert.EqualValues(t, 350, usage)
}

func TestUsageMissingRootIsEmpty(t *testing.T) {
	g := New(filepath.Join(t.TempDir(), "missing"), 0, conf.QuotaActionStop, nil, nil)
	usage, err := g.Usage()
	require.NoError(t, err)
	assert.Zero(t, usage)
}
