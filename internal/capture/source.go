package capture

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/tsanev/camguard-go/internal/observability"
)

// ErrBadFrame marks a single undecodable frame. The read loop skips it and
// keeps the stream open; any other read error tears the connection down.
var ErrBadFrame = errors.New("undecodable frame")

// Status describes the operator-visible connection state of a camera stream.
type Status string

const (
	StatusConnecting   Status = "Connecting…"
	StatusConnected    Status = "Connected"
	StatusDisconnected Status = "Disconnected"
	StatusReconnecting Status = "Reconnecting…"
	StatusError        Status = "Error"
	StatusStopped      Status = "Stopped"
)

// StatusUpdate is delivered to the status callback on every state change.
// Err is set for StatusError and StatusDisconnected when a cause is known.
type StatusUpdate struct {
	CameraID string
	Status   Status
	Err      error
}

// Source runs the capture loop for one camera: open the stream, read frames
// and publish them into the frame buffer without ever blocking. The loop
// exits on any connection-level failure and closes the buffer so the
// downstream processor drains and stops too; restarting is the supervisor's
// job, not the source's.
type Source struct {
	cameraID string
	decoder  Decoder
	buf      *Buffer
	metrics  *observability.Metrics
	statusFn func(StatusUpdate)

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSource creates a capture source for one camera. statusFn and metrics
// may be nil.
func NewSource(cameraID string, decoder Decoder, buf *Buffer, metrics *observability.Metrics, statusFn func(StatusUpdate)) *Source {
	return &Source{
		cameraID: cameraID,
		decoder:  decoder,
		buf:      buf,
		metrics:  metrics,
		statusFn: statusFn,
		done:     make(chan struct{}),
	}
}

// Buffer returns the frame buffer this source publishes into.
func (s *Source) Buffer() *Buffer {
	return s.buf
}

// Done is closed when the capture loop has fully exited and the buffer is
// closed.
func (s *Source) Done() <-chan struct{} {
	return s.done
}

// Start launches the capture loop. Subsequent calls are no-ops.
func (s *Source) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		go s.run(ctx)
	})
}

// Stop cancels the capture loop and waits for it to exit. Safe to call
// multiple times and before Start.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			close(s.done)
			return
		}
		s.cancel()
		<-s.done
	})
}

func (s *Source) run(ctx context.Context) {
	logger := captureLogger().With("camera_id", s.cameraID)
	defer close(s.done)
	defer s.buf.Close()
	defer s.setConnected(false)

	s.notify(StatusUpdate{CameraID: s.cameraID, Status: StatusConnecting})

	reader, err := s.decoder.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.notify(StatusUpdate{CameraID: s.cameraID, Status: StatusStopped})
			return
		}
		logger.Error("failed to open camera stream", "error", err)
		s.notify(StatusUpdate{CameraID: s.cameraID, Status: StatusError, Err: err})
		return
	}
	defer reader.Close()

	s.setConnected(true)
	s.notify(StatusUpdate{CameraID: s.cameraID, Status: StatusConnected})
	logger.Info("camera stream connected")

	for {
		if ctx.Err() != nil {
			s.notify(StatusUpdate{CameraID: s.cameraID, Status: StatusStopped})
			return
		}

		f, err := reader.ReadFrame()
		switch {
		case err == nil:
		case errors.Is(err, ErrBadFrame):
			// Skip the frame, keep the stream.
			if s.metrics != nil {
				s.metrics.Capture.DecodeErrors.WithLabelValues(s.cameraID).Inc()
			}
			logger.Debug("skipping undecodable frame")
			continue
		default:
			if ctx.Err() != nil {
				s.notify(StatusUpdate{CameraID: s.cameraID, Status: StatusStopped})
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Warn("camera stream ended")
			} else {
				logger.Error("camera stream read failed", "error", err)
			}
			s.notify(StatusUpdate{CameraID: s.cameraID, Status: StatusDisconnected, Err: err})
			return
		}

		if s.metrics != nil {
			s.metrics.Capture.FramesReceived.WithLabelValues(s.cameraID).Inc()
		}
		if !s.buf.Push(f) {
			if s.metrics != nil {
				s.metrics.Capture.FramesDropped.WithLabelValues(s.cameraID).Inc()
			}
			logger.Debug("frame buffer full, dropping frame")
		}
	}
}

func (s *Source) notify(u StatusUpdate) {
	if s.statusFn != nil {
		s.statusFn(u)
	}
}

func (s *Source) setConnected(up bool) {
	if s.metrics == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	s.metrics.Capture.Connected.WithLabelValues(s.cameraID).Set(v)
}
