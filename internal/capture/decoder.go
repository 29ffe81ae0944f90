package capture

import (
	"context"

	"github.com/tsanev/camguard-go/internal/frame"
)

// Decoder opens a camera stream and produces a FrameReader. The pipeline
// owns no wire protocol itself; RTSP decoding is delegated to an external
// process (ffmpeg) behind this interface, which also keeps the capture loop
// testable with synthetic readers.
type Decoder interface {
	Open(ctx context.Context) (FrameReader, error)
}

// FrameReader yields decoded frames until the stream ends or fails.
type FrameReader interface {
	// ReadFrame blocks until the next full frame is decoded. io.EOF or any
	// other error means the connection is gone; single-frame decode problems
	// are reported as ErrBadFrame and the caller may continue reading.
	ReadFrame() (*frame.Frame, error)
	Close() error
}
