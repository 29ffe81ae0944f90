// Package diskguard enforces the storage quota over the recordings root:
// before any new recording or snapshot starts it either refuses, or prunes
// the oldest catalog events until usage is back under the limit.
package diskguard

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/tsanev/camguard-go/internal/conf"
	"github.com/tsanev/camguard-go/internal/datastore"
	"github.com/tsanev/camguard-go/internal/errors"
	"github.com/tsanev/camguard-go/internal/logging"
	"github.com/tsanev/camguard-go/internal/observability"
)

// pruneBatchSize bounds how many catalog rows one pruning pass fetches at a
// time.
const pruneBatchSize = 50

// Guard applies the configured quota policy to the recordings root.
type Guard struct {
	root    string
	limit   int64 // bytes, 0 means unlimited
	action  string
	store   datastore.Interface
	metrics *observability.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	locked map[string]struct{}
}

// New creates a guard for the recordings root. store may be nil, in which
// case overwrite-oldest degrades to stop because there is no catalog to
// prune from. metrics may be nil.
func New(root string, limit int64, action string, store datastore.Interface, metrics *observability.Metrics) *Guard {
	logger := logging.ForService("diskguard")
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		root:    root,
		limit:   limit,
		action:  action,
		store:   store,
		metrics: metrics,
		logger:  logger,
		locked:  make(map[string]struct{}),
	}
}

// Lock marks a file as belonging to an in-progress session. Locked files
// survive pruning no matter how old their events are.
func (g *Guard) Lock(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.locked[path] = struct{}{}
}

// Unlock releases a previously locked file.
func (g *Guard) Unlock(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.locked, path)
}

func (g *Guard) isLocked(path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.locked[path]
	return ok
}

// MayStartNewRecording applies the quota policy. Under the limit (or with
// no limit) it permits. Over the limit, the stop action refuses, and the
// overwrite-oldest action prunes oldest events first and then permits.
func (g *Guard) MayStartNewRecording() bool {
	if g.limit <= 0 {
		return true
	}

	usage, err := g.Usage()
	if err != nil {
		g.logger.Error("failed to compute storage usage, refusing new recording", "error", err)
		return false
	}
	if g.metrics != nil {
		g.metrics.Storage.UsageBytes.Set(float64(usage))
	}
	if usage < g.limit {
		return true
	}

	if g.action != conf.QuotaActionOverwriteOldest || g.store == nil {
		g.logger.Warn("storage quota exceeded, refusing new recording",
			"usage_bytes", usage, "limit_bytes", g.limit, "action", g.action)
		if g.metrics != nil {
			g.metrics.Storage.QuotaRefusals.Inc()
		}
		return false
	}

	if err := g.pruneToLimit(usage); err != nil {
		g.logger.Error("quota pruning failed", "error", err)
	}
	return true
}

// Usage returns the recursive size of the recordings root in bytes. A
// missing root counts as empty.
func (g *Guard) Usage() (int64, error) {
	var total int64
	err := filepath.WalkDir(g.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // file vanished mid-walk
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, errors.New(fmt.Errorf("walking recordings root: %w", err)).
			Category(errors.CategoryDiskUsage).
			Component("diskguard").
			Context("root", g.root).
			Build()
	}
	return total, nil
}

// Prune deletes oldest events until usage is under the limit. Used by the
// overwrite-oldest policy and by the one-shot prune command.
func (g *Guard) Prune() error {
	usage, err := g.Usage()
	if err != nil {
		return err
	}
	if g.limit <= 0 || usage < g.limit {
		return nil
	}
	return g.pruneToLimit(usage)
}

func (g *Guard) pruneToLimit(usage int64) error {
	if g.store == nil {
		return errors.Newf("no event catalog available for pruning").
			Category(errors.CategoryDiskCleanup).
			Component("diskguard").
			Build()
	}

	var prunedBytes int64
	var prunedEvents int

	for usage >= g.limit {
		events, err := g.store.Oldest(pruneBatchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			break
		}

		progressed := false
		for _, ev := range events {
			if usage < g.limit {
				break
			}
			if g.isLocked(ev.FilePath) {
				continue
			}

			var size int64
			if info, err := os.Stat(ev.FilePath); err == nil {
				size = info.Size()
			}
			if err := os.Remove(ev.FilePath); err != nil && !os.IsNotExist(err) {
				g.logger.Warn("failed to delete recording file", "path", ev.FilePath, "error", err)
				continue
			}
			if err := g.store.Delete(ev.EventID); err != nil {
				g.logger.Warn("failed to delete catalog event", "event_id", ev.EventID, "error", err)
			}

			usage -= size
			prunedBytes += size
			prunedEvents++
			progressed = true
			g.logger.Info("pruned oldest event",
				"event_id", ev.EventID,
				"camera", ev.CameraName,
				"path", ev.FilePath,
				"freed_bytes", size)
		}
		if !progressed {
			// Everything left is locked or undeletable.
			break
		}
	}

	if g.metrics != nil {
		g.metrics.Storage.PrunedBytes.Add(float64(prunedBytes))
		g.metrics.Storage.PrunedEvents.Add(float64(prunedEvents))
		g.metrics.Storage.UsageBytes.Set(float64(usage))
	}
	return nil
}

// LogDiskSpace reports filesystem-level usage of the volume holding the
// recordings root.
func (g *Guard) LogDiskSpace() {
	du, err := disk.Usage(g.root)
	if err != nil {
		g.logger.Warn("failed to read disk usage", "root", g.root, "error", err)
		return
	}
	g.logger.Info("disk usage",
		"root", g.root,
		"total_bytes", du.Total,
		"free_bytes", du.Free,
		"used_percent", fmt.Sprintf("%.1f", du.UsedPercent))
}
