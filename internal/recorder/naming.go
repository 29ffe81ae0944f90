// Package recorder writes frame-paced recording files and snapshot stills.
// Each recording session runs its own writer goroutine that converts jittery
// frame arrival into a constant-fps output file.
package recorder

import (
	"path/filepath"
	"time"

	"github.com/tsanev/camguard-go/internal/conf"
)

// Trigger identifies what started a recording session.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerMotion    Trigger = "motion"
	TriggerScheduled Trigger = "scheduled"
	TriggerGrid      Trigger = "grid"
)

// filePrefix returns the output file name prefix for the trigger kind.
func (t Trigger) filePrefix() string {
	switch t {
	case TriggerMotion:
		return "motion"
	case TriggerScheduled:
		return "sched"
	case TriggerGrid:
		return "rec_grid"
	default:
		return "rec"
	}
}

// timestampLayout is the wall-clock component of output file names.
const timestampLayout = "20060102_150405"

// RecordingPath builds the output path for a recording session:
// <root>/<prefix>_<sanitized_name>_<YYYYmmdd_HHMMSS>.mp4
func RecordingPath(root string, trigger Trigger, cameraName string, at time.Time) string {
	name := trigger.filePrefix() + "_" + conf.SanitizeName(cameraName) + "_" + at.Format(timestampLayout) + ".mp4"
	return filepath.Join(root, name)
}

// SnapshotPath builds the output path for a still image. grid selects the
// multi-camera composite prefix.
func SnapshotPath(root, cameraName string, grid bool, at time.Time) string {
	prefix := "snap"
	if grid {
		prefix = "snap_grid"
	}
	name := prefix + "_" + conf.SanitizeName(cameraName) + "_" + at.Format(timestampLayout) + ".jpg"
	return filepath.Join(root, name)
}
