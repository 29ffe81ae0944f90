// Package surveillance owns the running system: one capture/processing
// pipeline per active camera, the recording sessions attached to them, and
// the supervision that restarts failed pipelines.
package surveillance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tsanev/camguard-go/internal/capture"
	"github.com/tsanev/camguard-go/internal/conf"
	"github.com/tsanev/camguard-go/internal/datastore"
	"github.com/tsanev/camguard-go/internal/diskguard"
	"github.com/tsanev/camguard-go/internal/frame"
	"github.com/tsanev/camguard-go/internal/logging"
	"github.com/tsanev/camguard-go/internal/motion"
	"github.com/tsanev/camguard-go/internal/mqtt"
	"github.com/tsanev/camguard-go/internal/observability"
	"github.com/tsanev/camguard-go/internal/processor"
	"github.com/tsanev/camguard-go/internal/recorder"
)

const (
	// restartDelay is the cool-down before a failed camera pipeline is
	// rebuilt. Restarting immediately would hammer a down camera.
	restartDelay = 5 * time.Second

	// shutdownGrace bounds how long teardown waits for pipelines to join
	// before detaching them.
	shutdownGrace = 10 * time.Second
)

// GridCameraID is the command target selecting the multi-camera composite.
const GridCameraID = "grid"

// DecoderFactory builds the stream decoder for one camera. Swapped out in
// tests for synthetic streams.
type DecoderFactory func(cam conf.CameraConfig) capture.Decoder

// WriterFactory opens the container writer for one recording session.
type WriterFactory func(path string, width, height, fps int) (recorder.FrameWriter, error)

// pipeline bundles the per-camera workers.
type pipeline struct {
	camera    conf.CameraConfig
	buf       *capture.Buffer
	source    *capture.Source
	processor *processor.Processor
	detector  *motion.Detector
}

// Orchestrator owns all camera pipelines and recording sessions and routes
// external commands to them.
type Orchestrator struct {
	settings *conf.Settings
	metrics  *observability.Metrics
	store    datastore.Interface
	guard    *diskguard.Guard
	notifier *mqtt.Notifier
	logger   *slog.Logger

	newDecoder DecoderFactory
	newWriter  WriterFactory

	// displayFn receives display-ready frames; nil when no consumer is
	// attached.
	displayFn func(cameraID string, f *frame.Frame)
	// statusFn receives per-camera connection status changes.
	statusFn func(capture.StatusUpdate)

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	pipelines map[string]*pipeline
	gridRec   *gridRecording
	stopping  bool

	// stragglers tracks detached pipelines still draining during shutdown.
	stragglers sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDecoderFactory replaces the stream decoder construction.
func WithDecoderFactory(f DecoderFactory) Option {
	return func(o *Orchestrator) { o.newDecoder = f }
}

// WithWriterFactory replaces the recording writer construction.
func WithWriterFactory(f WriterFactory) Option {
	return func(o *Orchestrator) { o.newWriter = f }
}

// WithDisplayFunc attaches a consumer for display-ready frames.
func WithDisplayFunc(f func(cameraID string, fr *frame.Frame)) Option {
	return func(o *Orchestrator) { o.displayFn = f }
}

// WithStatusFunc attaches a consumer for camera status updates.
func WithStatusFunc(f func(capture.StatusUpdate)) Option {
	return func(o *Orchestrator) { o.statusFn = f }
}

// WithNotifier attaches the alert publisher.
func WithNotifier(n *mqtt.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// New creates an orchestrator. store may be nil when the event catalog is
// disabled; metrics may be nil.
func New(settings *conf.Settings, guard *diskguard.Guard, store datastore.Interface, metrics *observability.Metrics, opts ...Option) *Orchestrator {
	logger := logging.ForService("surveillance")
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		settings:  settings,
		metrics:   metrics,
		store:     store,
		guard:     guard,
		logger:    logger,
		pipelines: make(map[string]*pipeline),
	}
	o.newDecoder = func(cam conf.CameraConfig) capture.Decoder {
		return &capture.FFmpegDecoder{
			FFmpegPath: settings.FFmpegPath,
			CameraID:   cam.ID,
			URL:        cam.RTSPURL,
			Username:   cam.Username,
			Password:   cam.Password,
			Transport:  settings.Transport,
			Width:      cam.Width,
			Height:     cam.Height,
		}
	}
	o.newWriter = func(path string, width, height, fps int) (recorder.FrameWriter, error) {
		return recorder.NewFFmpegWriter(settings.FFmpegPath, path, width, height, fps)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start boots a pipeline for every active camera. Idempotent per camera:
// already-running pipelines are left alone.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.ctx == nil {
		o.ctx, o.cancel = context.WithCancel(ctx)
	}
	o.mu.Unlock()

	for _, cam := range o.settings.ActiveCameras() {
		o.StartCamera(cam)
	}
}

// StartCamera boots the pipeline for one camera. A no-op when the camera is
// already running or the orchestrator is shutting down.
func (o *Orchestrator) StartCamera(cam conf.CameraConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopping || o.ctx == nil {
		return
	}
	if _, running := o.pipelines[cam.ID]; running {
		return
	}
	o.startPipelineLocked(cam)
}

// startPipelineLocked wires buffer, source, detector and processor for one
// camera and launches the supervision watcher. Caller holds o.mu.
func (o *Orchestrator) startPipelineLocked(cam conf.CameraConfig) {
	buf := capture.NewBuffer()

	var detector *motion.Detector
	if cam.Motion.Enabled {
		detector = motion.NewDetector(cam.ID, cam.Motion.Sensitivity,
			time.Duration(cam.Motion.CooldownSec)*time.Second)
		if roi := cam.Motion.ROI; roi != nil {
			detector.SetRegion(&motion.Region{X: roi.X, Y: roi.Y, Width: roi.Width, Height: roi.Height})
		}
	}

	motionFn := func(ev motion.Event) { o.handleMotion(cam, ev) }
	var displayFn func(*frame.Frame)
	if o.displayFn != nil {
		displayFn = func(f *frame.Frame) { o.displayFn(cam.ID, f) }
	}

	source := capture.NewSource(cam.ID, o.newDecoder(cam), buf, o.metrics, o.statusFn)
	proc := processor.New(cam.ID, buf, detector, motionFn, displayFn, o.metrics)

	p := &pipeline{
		camera:    cam,
		buf:       buf,
		source:    source,
		processor: proc,
		detector:  detector,
	}
	o.pipelines[cam.ID] = p

	source.Start(o.ctx)
	proc.Start()
	go o.supervise(p)

	o.logger.Info("camera pipeline started", "camera_id", cam.ID, "camera_name", cam.Name)
}

// supervise waits for a pipeline to die and rebuilds it after the restart
// delay, unless it was stopped on purpose.
func (o *Orchestrator) supervise(p *pipeline) {
	<-p.processor.Done()

	// Sinks attached to a dead pipeline stop receiving frames; close them
	// out so their files are finalized.
	o.closeCameraSinks(p, "pipeline exited")

	o.mu.Lock()
	current, present := o.pipelines[p.camera.ID]
	if !present || current != p || o.stopping {
		o.mu.Unlock()
		return
	}
	delete(o.pipelines, p.camera.ID)
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.Capture.Reconnects.WithLabelValues(p.camera.ID).Inc()
	}
	if o.statusFn != nil {
		o.statusFn(capture.StatusUpdate{CameraID: p.camera.ID, Status: capture.StatusReconnecting})
	}
	o.publishAlert(p.camera, mqtt.AlertCameraOffline, "")
	o.logger.Warn("camera pipeline died, restarting",
		"camera_id", p.camera.ID, "delay", restartDelay.String())

	select {
	case <-o.ctx.Done():
		return
	case <-time.After(restartDelay):
	}
	o.StartCamera(p.camera)
}

// StopCamera tears down one camera's pipeline and its recording sessions.
func (o *Orchestrator) StopCamera(cameraID string) {
	o.mu.Lock()
	p, ok := o.pipelines[cameraID]
	if ok {
		delete(o.pipelines, cameraID)
	}
	o.mu.Unlock()
	if !ok {
		return
	}

	p.source.Stop()
	select {
	case <-p.processor.Done():
	case <-time.After(shutdownGrace):
		o.logger.Warn("processor did not drain in time", "camera_id", cameraID)
	}
	o.closeCameraSinks(p, "camera stopped")
	o.logger.Info("camera pipeline stopped", "camera_id", cameraID)
}

// closeCameraSinks stops every recording session attached to the pipeline
// and catalogs the finished files.
func (o *Orchestrator) closeCameraSinks(p *pipeline, reason string) {
	for _, trigger := range []recorder.Trigger{recorder.TriggerManual, recorder.TriggerMotion, recorder.TriggerScheduled} {
		if sink := p.processor.DetachSink(trigger); sink != nil {
			o.logger.Info("closing recording session",
				"camera_id", p.camera.ID, "trigger", string(trigger), "reason", reason)
			o.finishSink(p.camera.Name, sink)
		}
	}
}

// Shutdown stops everything: grid session, per-camera sinks, sources and
// processors. Pipelines that fail to drain within the grace period are
// detached and left to finish on their own; they can no longer reach any
// shared state once removed from the pipeline map.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	o.stopping = true
	pipelines := make([]*pipeline, 0, len(o.pipelines))
	for _, p := range o.pipelines {
		pipelines = append(pipelines, p)
	}
	o.pipelines = make(map[string]*pipeline)
	grid := o.gridRec
	o.gridRec = nil
	cancel := o.cancel
	o.mu.Unlock()

	if grid != nil {
		o.stopGridRecording(grid)
	}

	var g errgroup.Group
	for _, p := range pipelines {
		p := p
		g.Go(func() error {
			p.source.Stop()
			select {
			case <-p.processor.Done():
				o.closeCameraSinks(p, "shutdown")
			case <-time.After(shutdownGrace):
				o.logger.Warn("detaching stalled pipeline", "camera_id", p.camera.ID)
				o.stragglers.Add(1)
				go func() {
					defer o.stragglers.Done()
					<-p.processor.Done()
					o.closeCameraSinks(p, "late shutdown")
				}()
			}
			return nil
		})
	}
	_ = g.Wait()

	if cancel != nil {
		cancel()
	}
	o.logger.Info("surveillance shut down")
}

// cameraPipeline returns the running pipeline for a camera id.
func (o *Orchestrator) cameraPipeline(cameraID string) *pipeline {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pipelines[cameraID]
}

// RunningCameras returns the ids of cameras with a live pipeline.
func (o *Orchestrator) RunningCameras() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.pipelines))
	for id := range o.pipelines {
		ids = append(ids, id)
	}
	return ids
}

// LatestFrame returns a copy of the camera's most recent frame, or nil when
// none arrived within the staleness window.
func (o *Orchestrator) LatestFrame(cameraID string) *frame.Frame {
	p := o.cameraPipeline(cameraID)
	if p == nil {
		return nil
	}
	return p.processor.Latest()
}
