// Package processor drains a camera's frame buffer and fans each frame out
// to its three consumers: the latest-frame snapshot slot, the active
// recording sinks, and the motion detector.
package processor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tsanev/camguard-go/internal/capture"
	"github.com/tsanev/camguard-go/internal/frame"
	"github.com/tsanev/camguard-go/internal/logging"
	"github.com/tsanev/camguard-go/internal/motion"
	"github.com/tsanev/camguard-go/internal/observability"
	"github.com/tsanev/camguard-go/internal/recorder"
)

const (
	// motionAnalysisInterval invokes the detector on every Nth frame to
	// bound CPU cost.
	motionAnalysisInterval = 3

	// latestFrameStaleness is the window after which the snapshot slot
	// reports no frame.
	latestFrameStaleness = 5 * time.Second

	// Motion analysis geometry. Differencing full frames buys nothing but
	// CPU; a fixed small grayscale copy is enough.
	motionFrameWidth  = 320
	motionFrameHeight = 240
)

// Processor is the per-camera worker between the frame buffer and the
// frame's consumers. Its loop exits when the buffer closes.
type Processor struct {
	cameraID  string
	buf       *capture.Buffer
	detector  *motion.Detector
	motionFn  func(motion.Event)
	displayFn func(*frame.Frame)
	metrics   *observability.Metrics
	logger    *slog.Logger

	mu       sync.Mutex
	latest   *frame.Frame
	latestAt time.Time
	sinks    map[recorder.Trigger]*recorder.Sink

	frameCount uint64
	now        func() time.Time

	startOnce sync.Once
	done      chan struct{}
}

// New creates a processor. detector, motionFn, displayFn and metrics may
// all be nil.
func New(cameraID string, buf *capture.Buffer, detector *motion.Detector, motionFn func(motion.Event), displayFn func(*frame.Frame), metrics *observability.Metrics) *Processor {
	logger := logging.ForService("processor")
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		cameraID:  cameraID,
		buf:       buf,
		detector:  detector,
		motionFn:  motionFn,
		displayFn: displayFn,
		metrics:   metrics,
		logger:    logger.With("camera_id", cameraID),
		sinks:     make(map[recorder.Trigger]*recorder.Sink),
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start launches the processing loop. Subsequent calls are no-ops. The loop
// ends on its own when the upstream source closes the buffer; there is no
// separate stop signal.
func (p *Processor) Start() {
	p.startOnce.Do(func() {
		go p.run()
	})
}

// Done is closed when the processing loop has exited.
func (p *Processor) Done() <-chan struct{} {
	return p.done
}

func (p *Processor) run() {
	defer close(p.done)
	for {
		f, ok := p.buf.Pop()
		if !ok {
			p.logger.Debug("frame buffer closed, processor exiting")
			return
		}
		p.process(f)
	}
}

func (p *Processor) process(f *frame.Frame) {
	if err := f.Validate(); err != nil {
		// One bad frame never terminates the loop.
		p.logger.Warn("skipping invalid frame", "error", err)
		return
	}

	p.frameCount++

	p.mu.Lock()
	p.latest = f
	p.latestAt = p.now()
	p.mu.Unlock()

	for _, sink := range p.activeSinks() {
		sink.AddFrame(f.Clone())
	}

	if p.detector != nil && p.frameCount%motionAnalysisInterval == 0 {
		gray := f.Resize(motionFrameWidth, motionFrameHeight).Grayscale()
		if ev, fired := p.detector.Detect(gray); fired {
			if p.metrics != nil {
				switch ev.Type {
				case motion.EventStarted:
					p.metrics.Motion.EventsStarted.WithLabelValues(p.cameraID).Inc()
				case motion.EventStopped:
					p.metrics.Motion.EventsStopped.WithLabelValues(p.cameraID).Inc()
				}
			}
			if p.motionFn != nil {
				p.motionFn(ev)
			}
		}
	}

	if p.displayFn != nil {
		p.displayFn(f.Clone())
	}
}

// Latest returns a copy of the most recent frame, or nil when no frame
// arrived within the staleness window. The caller owns the returned frame.
func (p *Processor) Latest() *frame.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil || p.now().Sub(p.latestAt) > latestFrameStaleness {
		return nil
	}
	return p.latest.Clone()
}

// AttachSink subscribes a recording sink under its trigger kind. Returns
// false when a sink of that kind is already attached.
func (p *Processor) AttachSink(trigger recorder.Trigger, sink *recorder.Sink) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.sinks[trigger]; exists {
		return false
	}
	p.sinks[trigger] = sink
	return true
}

// DetachSink removes and returns the sink of the given trigger kind, or nil.
func (p *Processor) DetachSink(trigger recorder.Trigger) *recorder.Sink {
	p.mu.Lock()
	defer p.mu.Unlock()
	sink := p.sinks[trigger]
	delete(p.sinks, trigger)
	return sink
}

// Sink returns the attached sink of the given trigger kind, or nil.
func (p *Processor) Sink(trigger recorder.Trigger) *recorder.Sink {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sinks[trigger]
}

func (p *Processor) activeSinks() []*recorder.Sink {
	p.mu.Lock()
	defer p.mu.Unlock()
	sinks := make([]*recorder.Sink, 0, len(p.sinks))
	for _, s := range p.sinks {
		sinks = append(sinks, s)
	}
	return sinks
}
