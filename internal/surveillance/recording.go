package surveillance

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/tsanev/camguard-go/internal/conf"
	"github.com/tsanev/camguard-go/internal/datastore"
	"github.com/tsanev/camguard-go/internal/errors"
	"github.com/tsanev/camguard-go/internal/frame"
	"github.com/tsanev/camguard-go/internal/motion"
	"github.com/tsanev/camguard-go/internal/mqtt"
	"github.com/tsanev/camguard-go/internal/recorder"
)

// startRecording opens a new session of the given trigger kind on a running
// camera pipeline. Enforces the quota policy and the one-session-per-kind
// invariant.
func (o *Orchestrator) startRecording(p *pipeline, trigger recorder.Trigger) error {
	if p.processor.Sink(trigger) != nil {
		return errors.Newf("camera %s already has an active %s recording", p.camera.ID, trigger).
			Category(errors.CategoryConflict).
			Component("surveillance").
			Build()
	}
	if trigger == recorder.TriggerManual && o.gridRecordingActive() {
		return errors.Newf("a grid recording is active, per-camera manual recording refused").
			Category(errors.CategoryConflict).
			Component("surveillance").
			Build()
	}
	if !o.guard.MayStartNewRecording() {
		return errors.Newf("storage quota exceeded, recording not started").
			Category(errors.CategoryStorageQuota).
			Component("surveillance").
			Context("camera_id", p.camera.ID).
			Build()
	}

	rec := o.settings.Recording
	width, height, fps := p.camera.Width, p.camera.Height, p.camera.FPS
	if rec.Width > 0 && rec.Height > 0 {
		width, height = rec.Width, rec.Height
	}
	if rec.FPS > 0 {
		fps = rec.FPS
	}

	root := o.recordingRoot(&p.camera)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return errors.New(fmt.Errorf("creating recordings directory: %w", err)).
			Category(errors.CategoryFileIO).
			Component("surveillance").
			Context("path", root).
			Build()
	}

	path := recorder.RecordingPath(root, trigger, p.camera.Name, time.Now())
	writer, err := o.newWriter(path, width, height, fps)
	if err != nil {
		return err
	}

	sink := recorder.NewSink(recorder.SinkConfig{
		CameraID:   p.camera.ID,
		CameraName: p.camera.Name,
		Trigger:    trigger,
		Path:       path,
		Width:      width,
		Height:     height,
		FPS:        fps,
	}, writer, o.metrics)

	o.guard.Lock(path)
	sink.Start()
	if !p.processor.AttachSink(trigger, sink) {
		// Lost the race to another starter of the same kind.
		_ = sink.Stop()
		o.guard.Unlock(path)
		_ = os.Remove(path)
		return errors.Newf("camera %s already has an active %s recording", p.camera.ID, trigger).
			Category(errors.CategoryConflict).
			Component("surveillance").
			Build()
	}

	o.publishAlert(p.camera, mqtt.AlertRecordingStarted, path)
	return nil
}

// stopRecording closes the session of the given kind, if one is active.
func (o *Orchestrator) stopRecording(p *pipeline, trigger recorder.Trigger) {
	sink := p.processor.DetachSink(trigger)
	if sink == nil {
		return
	}
	o.finishSink(p.camera.Name, sink)
	o.publishAlert(p.camera, mqtt.AlertRecordingStopped, sink.Path())
}

// finishSink joins the writer loop, releases the quota lock and catalogs
// the finished file. The file only counts as complete after Stop returns.
func (o *Orchestrator) finishSink(cameraName string, sink *recorder.Sink) {
	err := sink.Stop()
	o.guard.Unlock(sink.Path())
	if err != nil {
		o.logger.Error("recording finished with error",
			"camera_name", cameraName, "path", sink.Path(), "error", err)
		return
	}
	o.saveEvent(cameraName, eventTypeForTrigger(sink.Trigger()), sink.Path())
}

func eventTypeForTrigger(trigger recorder.Trigger) string {
	switch trigger {
	case recorder.TriggerMotion:
		return datastore.EventTypeMotionRecording
	case recorder.TriggerScheduled:
		return datastore.EventTypeScheduledRecording
	case recorder.TriggerGrid:
		return datastore.EventTypeGridRecording
	default:
		return datastore.EventTypeRecording
	}
}

// saveEvent appends a catalog entry; called only after the file is durably
// on disk.
func (o *Orchestrator) saveEvent(cameraName, eventType, filePath string) {
	if o.store == nil {
		return
	}
	ev := &datastore.Event{
		Timestamp:  datastore.NewEventTimestamp(time.Now()),
		CameraName: cameraName,
		EventType:  eventType,
		FilePath:   filePath,
	}
	if err := o.store.Save(ev); err != nil {
		o.logger.Error("failed to catalog event",
			"camera_name", cameraName, "event_type", eventType, "error", err)
		return
	}
	o.logger.Info("event cataloged",
		"event_id", ev.EventID, "camera_name", cameraName, "event_type", eventType, "path", filePath)
}

// recordingRoot resolves where a camera's files land. A per-camera storage
// path overrides the shared recordings root.
func (o *Orchestrator) recordingRoot(cam *conf.CameraConfig) string {
	if cam != nil && cam.StoragePath != "" {
		return cam.StoragePath
	}
	return o.settings.Storage.Path
}

// handleMotion reacts to detector transitions: publish an alert and drive
// the motion-triggered recording session.
func (o *Orchestrator) handleMotion(cam conf.CameraConfig, ev motion.Event) {
	p := o.cameraPipeline(cam.ID)
	if p == nil {
		// Late callback from a stopped camera; drop it.
		return
	}

	switch ev.Type {
	case motion.EventStarted:
		o.publishAlert(cam, mqtt.AlertMotionStarted, "")
		if err := o.startRecording(p, recorder.TriggerMotion); err != nil {
			if !errors.HasCategory(err, errors.CategoryConflict) {
				o.logger.Warn("motion recording not started", "camera_id", cam.ID, "error", err)
			}
		}
	case motion.EventStopped:
		o.publishAlert(cam, mqtt.AlertMotionStopped, "")
		o.stopRecording(p, recorder.TriggerMotion)
	}
}

// SetScheduledRecording reconciles the scheduled session toward the desired
// state. Idempotent: asking for the current state is a no-op.
func (o *Orchestrator) SetScheduledRecording(cameraID string, active bool) {
	p := o.cameraPipeline(cameraID)
	if p == nil {
		return
	}
	running := p.processor.Sink(recorder.TriggerScheduled) != nil
	switch {
	case active && !running:
		if err := o.startRecording(p, recorder.TriggerScheduled); err != nil {
			o.logger.Warn("scheduled recording not started", "camera_id", cameraID, "error", err)
		}
	case !active && running:
		o.stopRecording(p, recorder.TriggerScheduled)
	}
}

func (o *Orchestrator) publishAlert(cam conf.CameraConfig, kind, filePath string) {
	if o.notifier == nil {
		return
	}
	o.notifier.Publish(context.Background(), mqtt.Alert{
		CameraID:   cam.ID,
		CameraName: cam.Name,
		Kind:       kind,
		Timestamp:  datastore.NewEventTimestamp(time.Now()),
		FilePath:   filePath,
	})
}

// gridRecording is the composite session: its feeder ticks at the target
// fps, composes the latest frames of all running cameras and pushes the
// canvas into the sink.
type gridRecording struct {
	sink *recorder.Sink
	stop chan struct{}
	done chan struct{}
}

func (o *Orchestrator) gridRecordingActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gridRec != nil
}

// startGridRecording opens the composite session. Refused while any manual
// per-camera session is active.
func (o *Orchestrator) startGridRecording() error {
	o.mu.Lock()
	if o.gridRec != nil {
		o.mu.Unlock()
		return errors.Newf("grid recording already active").
			Category(errors.CategoryConflict).
			Component("surveillance").
			Build()
	}
	for _, p := range o.pipelines {
		if p.processor.Sink(recorder.TriggerManual) != nil {
			o.mu.Unlock()
			return errors.Newf("camera %s has a manual recording active, grid recording refused", p.camera.ID).
				Category(errors.CategoryConflict).
				Component("surveillance").
				Build()
		}
	}
	o.mu.Unlock()

	if !o.guard.MayStartNewRecording() {
		return errors.Newf("storage quota exceeded, recording not started").
			Category(errors.CategoryStorageQuota).
			Component("surveillance").
			Build()
	}

	rec := o.settings.Recording
	root := o.recordingRoot(nil)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return errors.New(fmt.Errorf("creating recordings directory: %w", err)).
			Category(errors.CategoryFileIO).
			Component("surveillance").
			Context("path", root).
			Build()
	}

	path := recorder.RecordingPath(root, recorder.TriggerGrid, datastore.GridCameraName, time.Now())
	writer, err := o.newWriter(path, rec.Width, rec.Height, rec.FPS)
	if err != nil {
		return err
	}

	sink := recorder.NewSink(recorder.SinkConfig{
		CameraID:   GridCameraID,
		CameraName: datastore.GridCameraName,
		Trigger:    recorder.TriggerGrid,
		Path:       path,
		Width:      rec.Width,
		Height:     rec.Height,
		FPS:        rec.FPS,
	}, writer, o.metrics)

	grid := &gridRecording{
		sink: sink,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	o.mu.Lock()
	if o.gridRec != nil {
		o.mu.Unlock()
		_ = sink.Stop()
		_ = os.Remove(path)
		return errors.Newf("grid recording already active").
			Category(errors.CategoryConflict).
			Component("surveillance").
			Build()
	}
	o.gridRec = grid
	o.mu.Unlock()

	o.guard.Lock(path)
	sink.Start()
	go o.feedGridRecording(grid, time.Second/time.Duration(rec.FPS))
	return nil
}

func (o *Orchestrator) feedGridRecording(grid *gridRecording, interval time.Duration) {
	defer close(grid.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-grid.stop:
			return
		case <-ticker.C:
			if canvas := o.ComposeGrid(); canvas != nil {
				grid.sink.AddFrame(canvas)
			}
		}
	}
}

// stopGridRecording joins the feeder, then finalizes the composite file.
func (o *Orchestrator) stopGridRecording(grid *gridRecording) {
	close(grid.stop)
	<-grid.done
	o.finishSink(datastore.GridCameraName, grid.sink)
}

// ComposeGrid tiles the latest frame of every running camera into one
// canvas, row-major in camera-id order, with zeroed tiles for cameras that
// have no recent frame. Returns nil when no cameras are running.
func (o *Orchestrator) ComposeGrid() *frame.Frame {
	o.mu.Lock()
	pipelines := make([]*pipeline, 0, len(o.pipelines))
	for _, p := range o.pipelines {
		pipelines = append(pipelines, p)
	}
	o.mu.Unlock()

	if len(pipelines) == 0 {
		return nil
	}
	sort.Slice(pipelines, func(i, j int) bool {
		return pipelines[i].camera.ID < pipelines[j].camera.ID
	})

	tiles := make([]*frame.Frame, 0, len(pipelines))
	for _, p := range pipelines {
		tiles = append(tiles, p.processor.Latest())
	}

	rec := o.settings.Recording
	cols := frame.GridColumns(len(tiles))
	cellWidth := rec.Width / cols
	rows := (len(tiles) + cols - 1) / cols
	cellHeight := rec.Height / rows

	return frame.Compose(tiles, cellWidth, cellHeight)
}
