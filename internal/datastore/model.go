// Package datastore persists the event catalog: one record per finished
// recording or snapshot, deletable by id together with its backing file.
package datastore

import "time"

// EventTimestampLayout is the catalog timestamp format.
const EventTimestampLayout = "2006-01-02 15:04:05"

// GridCameraName marks events produced from the multi-camera composite.
const GridCameraName = "grid"

// Event types.
const (
	EventTypeRecording          = "recording"
	EventTypeMotionRecording    = "motion_recording"
	EventTypeScheduledRecording = "scheduled_recording"
	EventTypeGridRecording      = "grid_recording"
	EventTypeSnapshot           = "snapshot"
	EventTypeGridSnapshot       = "grid_snapshot"
)

// Event is one catalog entry. EventID is a UUID assigned on save; Timestamp
// is wall-clock in EventTimestampLayout so the catalog sorts
// lexicographically by age.
type Event struct {
	ID         uint   `gorm:"primaryKey"`
	EventID    string `gorm:"uniqueIndex;type:varchar(36)"`
	Timestamp  string `gorm:"index:idx_events_timestamp"`
	CameraName string `gorm:"index:idx_events_camera"`
	EventType  string `gorm:"type:varchar(32)"`
	FilePath   string
}

// NewEventTimestamp formats a time for the catalog.
func NewEventTimestamp(t time.Time) string {
	return t.Format(EventTimestampLayout)
}
