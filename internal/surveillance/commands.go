package surveillance

import (
	"fmt"
	"os"
	"time"

	"github.com/tsanev/camguard-go/internal/datastore"
	"github.com/tsanev/camguard-go/internal/errors"
	"github.com/tsanev/camguard-go/internal/recorder"
)

// Command actions accepted by Dispatch.
const (
	ActionSnapshot     = "snapshot"
	ActionToggleRecord = "toggle_record"
	ActionDeleteEvent  = "delete_event"
)

// Command is one externally issued control message. CameraID may be a real
// camera id or the literal "grid".
type Command struct {
	Action  string         `json:"action"`
	Payload CommandPayload `json:"payload"`
}

// CommandPayload carries the per-action arguments.
type CommandPayload struct {
	CameraID string `json:"camera_id,omitempty"`
	State    bool   `json:"state,omitempty"`
	EventID  string `json:"event_id,omitempty"`
}

// Dispatch routes one command to the owning pipeline.
func (o *Orchestrator) Dispatch(cmd Command) error {
	switch cmd.Action {
	case ActionSnapshot:
		_, err := o.Snapshot(cmd.Payload.CameraID)
		return err
	case ActionToggleRecord:
		return o.ToggleRecord(cmd.Payload.CameraID, cmd.Payload.State)
	case ActionDeleteEvent:
		return o.DeleteEvent(cmd.Payload.EventID)
	default:
		return errors.Newf("unknown command action %q", cmd.Action).
			Category(errors.CategoryValidation).
			Component("surveillance").
			Build()
	}
}

// Snapshot writes a JPEG of the camera's latest frame, or of the grid
// composite, and returns the file path.
func (o *Orchestrator) Snapshot(cameraID string) (string, error) {
	if !o.guard.MayStartNewRecording() {
		return "", errors.Newf("storage quota exceeded, snapshot refused").
			Category(errors.CategoryStorageQuota).
			Component("surveillance").
			Build()
	}

	shot := time.Now()

	if cameraID == GridCameraID {
		canvas := o.ComposeGrid()
		if canvas == nil {
			return "", errors.Newf("no cameras running, nothing to snapshot").
				Category(errors.CategoryNotFound).
				Component("surveillance").
				Build()
		}
		root := o.recordingRoot(nil)
		if err := os.MkdirAll(root, 0o755); err != nil {
			return "", errors.New(fmt.Errorf("creating recordings directory: %w", err)).
				Category(errors.CategoryFileIO).
				Component("surveillance").
				Build()
		}
		path := recorder.SnapshotPath(root, datastore.GridCameraName, true, shot)
		if err := recorder.WriteSnapshot(path, canvas); err != nil {
			return "", err
		}
		o.saveEvent(datastore.GridCameraName, datastore.EventTypeGridSnapshot, path)
		return path, nil
	}

	p := o.cameraPipeline(cameraID)
	if p == nil {
		return "", errors.Newf("camera %s is not running", cameraID).
			Category(errors.CategoryNotFound).
			Component("surveillance").
			Build()
	}
	latest := p.processor.Latest()
	if latest == nil {
		return "", errors.Newf("camera %s has no recent frame", cameraID).
			Category(errors.CategoryNotFound).
			Component("surveillance").
			Build()
	}

	root := o.recordingRoot(&p.camera)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", errors.New(fmt.Errorf("creating recordings directory: %w", err)).
			Category(errors.CategoryFileIO).
			Component("surveillance").
			Build()
	}
	path := recorder.SnapshotPath(root, p.camera.Name, false, shot)
	if err := recorder.WriteSnapshot(path, latest); err != nil {
		return "", err
	}
	o.saveEvent(p.camera.Name, datastore.EventTypeSnapshot, path)
	return path, nil
}

// ToggleRecord starts (state=true) or stops (state=false) the manual
// recording session for a camera, or the composite session for "grid".
func (o *Orchestrator) ToggleRecord(cameraID string, state bool) error {
	if cameraID == GridCameraID {
		if state {
			return o.startGridRecording()
		}
		o.mu.Lock()
		grid := o.gridRec
		o.gridRec = nil
		o.mu.Unlock()
		if grid == nil {
			return nil
		}
		o.stopGridRecording(grid)
		return nil
	}

	p := o.cameraPipeline(cameraID)
	if p == nil {
		return errors.Newf("camera %s is not running", cameraID).
			Category(errors.CategoryNotFound).
			Component("surveillance").
			Build()
	}
	if state {
		return o.startRecording(p, recorder.TriggerManual)
	}
	o.stopRecording(p, recorder.TriggerManual)
	return nil
}

// DeleteEvent removes a catalog entry and its backing file. In-progress
// files are protected by the quota lock and refuse deletion.
func (o *Orchestrator) DeleteEvent(eventID string) error {
	if o.store == nil {
		return errors.Newf("event catalog is disabled").
			Category(errors.CategoryState).
			Component("surveillance").
			Build()
	}
	ev, err := o.store.Get(eventID)
	if err != nil {
		return err
	}
	if err := os.Remove(ev.FilePath); err != nil && !os.IsNotExist(err) {
		return errors.New(fmt.Errorf("deleting recording file: %w", err)).
			Category(errors.CategoryFileIO).
			Component("surveillance").
			Context("path", ev.FilePath).
			Build()
	}
	return o.store.Delete(eventID)
}
