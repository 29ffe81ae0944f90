package recorder

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tsanev/camguard-go/internal/frame"
	"github.com/tsanev/camguard-go/internal/logging"
	"github.com/tsanev/camguard-go/internal/observability"
)

// SinkConfig describes one recording session.
type SinkConfig struct {
	CameraID   string
	CameraName string
	Trigger    Trigger
	Path       string
	Width      int
	Height     int
	FPS        int
}

// Sink converts irregular frame arrival into a constant-fps file. Incoming
// frames land in a single-slot coalescing queue; the writer loop duplicates
// the most recent frame when input is sparse and keeps only the latest when
// input is dense, so the output plays back at a stable rate either way.
type Sink struct {
	cfg     SinkConfig
	writer  FrameWriter
	metrics *observability.Metrics
	logger  *slog.Logger

	in   chan *frame.Frame
	stop chan struct{}
	done chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	framesWritten atomic.Int64
	startedAt     time.Time
	closeErr      error
}

// NewSink creates a recording session around an open writer. metrics may be
// nil.
func NewSink(cfg SinkConfig, writer FrameWriter, metrics *observability.Metrics) *Sink {
	logger := logging.ForService("recorder")
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		cfg:     cfg,
		writer:  writer,
		metrics: metrics,
		logger:  logger.With("camera_id", cfg.CameraID, "trigger", string(cfg.Trigger), "path", cfg.Path),
		in:      make(chan *frame.Frame, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the writer loop. Subsequent calls are no-ops.
func (s *Sink) Start() {
	s.startOnce.Do(func() {
		s.startedAt = time.Now()
		if s.metrics != nil {
			s.metrics.Recorder.ActiveRecordings.Inc()
		}
		s.logger.Info("recording started")
		go s.run()
	})
}

// AddFrame offers a frame without blocking. When the writer loop has not
// consumed the previous frame yet, the older one is replaced.
func (s *Sink) AddFrame(f *frame.Frame) {
	select {
	case s.in <- f:
		return
	default:
	}
	select {
	case <-s.in:
		if s.metrics != nil {
			s.metrics.Recorder.FramesCoalesced.WithLabelValues(s.cfg.CameraID, string(s.cfg.Trigger)).Inc()
		}
	default:
	}
	select {
	case s.in <- f:
	default:
	}
}

// Stop drains the pending frame, closes the writer and joins the loop. The
// file is complete only after Stop returns. Safe to call more than once and
// with zero frames ever received.
func (s *Sink) Stop() error {
	s.Start() // a session stopped before Start still closes its writer
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
	return s.closeErr
}

// FramesWritten returns the number of frames written so far.
func (s *Sink) FramesWritten() int64 {
	return s.framesWritten.Load()
}

// Path returns the output file path.
func (s *Sink) Path() string { return s.cfg.Path }

// Trigger returns what started this session.
func (s *Sink) Trigger() Trigger { return s.cfg.Trigger }

// CameraID returns the owning camera id, or "grid" for composites.
func (s *Sink) CameraID() string { return s.cfg.CameraID }

// StartedAt returns when the session started.
func (s *Sink) StartedAt() time.Time { return s.startedAt }

func (s *Sink) run() {
	defer close(s.done)
	defer func() {
		if s.metrics != nil {
			s.metrics.Recorder.ActiveRecordings.Dec()
		}
	}()

	frameDuration := time.Second / time.Duration(s.cfg.FPS)
	next := time.Now().Add(frameDuration)
	var last *frame.Frame

	for {
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}

		select {
		case f := <-s.in:
			f = s.conform(f)
			if f != nil {
				last = f
			}
		case <-time.After(wait):
		case <-s.stop:
			// Adopt a frame that raced with the stop signal, then flush.
			select {
			case f := <-s.in:
				if f = s.conform(f); f != nil {
					last = f
				}
			default:
			}
			if last != nil {
				s.write(last)
			}
			s.finish()
			return
		}

		now := time.Now()
		if last == nil {
			// Nothing to duplicate yet; keep the clock from accumulating
			// a backlog that would burst-write the first frame.
			next = now.Add(frameDuration)
			continue
		}
		for !next.After(now) {
			s.write(last)
			next = next.Add(frameDuration)
		}
	}
}

// conform resizes a frame to the writer geometry. Frames with an unexpected
// channel layout are dropped.
func (s *Sink) conform(f *frame.Frame) *frame.Frame {
	if f == nil {
		return nil
	}
	if f.Channels != frame.ChannelsBGR {
		s.logger.Warn("dropping frame with unexpected channel layout", "channels", f.Channels)
		return nil
	}
	if f.Width != s.cfg.Width || f.Height != s.cfg.Height {
		return f.Resize(s.cfg.Width, s.cfg.Height)
	}
	return f
}

// write pushes one frame into the writer. A mid-stream write failure is
// logged and the frame skipped; the session continues.
func (s *Sink) write(f *frame.Frame) {
	if err := s.writer.WriteFrame(f); err != nil {
		if s.metrics != nil {
			s.metrics.Recorder.WriteErrors.WithLabelValues(s.cfg.CameraID, string(s.cfg.Trigger)).Inc()
		}
		s.logger.Error("recording write failed", "error", err)
		return
	}
	s.framesWritten.Add(1)
	if s.metrics != nil {
		s.metrics.Recorder.FramesWritten.WithLabelValues(s.cfg.CameraID, string(s.cfg.Trigger)).Inc()
	}
}

func (s *Sink) finish() {
	if err := s.writer.Close(); err != nil {
		s.closeErr = err
		s.logger.Error("failed to close recording", "error", err)
		return
	}
	s.logger.Info("recording stopped",
		"frames_written", s.framesWritten.Load(),
		"duration", time.Since(s.startedAt).Round(time.Millisecond).String())
}
