package recorder

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/tsanev/camguard-go/internal/errors"
	"github.com/tsanev/camguard-go/internal/frame"
)

// FrameWriter receives raw frames of a fixed geometry and persists them into
// a container file. Implementations must make the file visible at its final
// path only after a successful Close.
type FrameWriter interface {
	WriteFrame(f *frame.Frame) error
	Close() error
}

// encoderCleanupTimeout bounds how long Close waits for the encoder process
// to flush and exit after stdin is closed.
const encoderCleanupTimeout = 10 * time.Second

// FFmpegWriter pipes raw bgr24 frames into an ffmpeg process that encodes
// them as H.264/MP4. Frames are written to a temp file next to the target
// and renamed into place on Close, so readers never observe a torn file.
type FFmpegWriter struct {
	path     string
	tempPath string
	width    int
	height   int
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stderr   *bytes.Buffer

	closeOnce sync.Once
	closeErr  error
}

// NewFFmpegWriter starts the encoder process for the given output path.
// It fails fast when ffmpeg cannot start, before any frames are accepted.
func NewFFmpegWriter(ffmpegPath, outputPath string, width, height, fps int) (*FFmpegWriter, error) {
	tempPath := outputPath + ".part"

	args := []string{
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(fps),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-an",
		"-f", "mp4",
		"-loglevel", "error",
		"-hide_banner",
		"-y", tempPath,
	}

	cmd := exec.Command(ffmpegPath, args...) //nolint:gosec // G204: ffmpeg path comes from validated settings, args built internally
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to create encoder stdin pipe: %w", err)).
			Category(errors.CategorySystem).
			Component("recorder").
			Build()
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.New(fmt.Errorf("failed to start ffmpeg encoder: %w", err)).
			Category(errors.CategoryRecordingWrite).
			Component("recorder").
			Context("path", outputPath).
			Build()
	}

	return &FFmpegWriter{
		path:     outputPath,
		tempPath: tempPath,
		width:    width,
		height:   height,
		cmd:      cmd,
		stdin:    stdin,
		stderr:   &stderr,
	}, nil
}

// WriteFrame pushes one frame into the encoder. The frame must already match
// the writer's configured geometry.
func (w *FFmpegWriter) WriteFrame(f *frame.Frame) error {
	if f.Width != w.width || f.Height != w.height || f.Channels != frame.ChannelsBGR {
		return errors.Newf("frame geometry %dx%dx%d does not match writer %dx%d",
			f.Width, f.Height, f.Channels, w.width, w.height).
			Category(errors.CategoryRecordingWrite).
			Component("recorder").
			Build()
	}
	if _, err := w.stdin.Write(f.Pixels); err != nil {
		return errors.New(fmt.Errorf("encoder write failed: %w", err)).
			Category(errors.CategoryRecordingWrite).
			Component("recorder").
			Context("path", w.path).
			Context("ffmpeg_stderr", truncate(w.stderr.String(), 512)).
			Build()
	}
	return nil
}

// Close flushes the encoder and moves the finished file into place. Safe to
// call more than once.
func (w *FFmpegWriter) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.finalize()
	})
	return w.closeErr
}

func (w *FFmpegWriter) finalize() error {
	_ = w.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- w.cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			_ = os.Remove(w.tempPath)
			return errors.New(fmt.Errorf("ffmpeg encoder failed: %w", err)).
				Category(errors.CategoryRecordingWrite).
				Component("recorder").
				Context("path", w.path).
				Context("ffmpeg_stderr", truncate(w.stderr.String(), 512)).
				Build()
		}
	case <-time.After(encoderCleanupTimeout):
		_ = w.cmd.Process.Kill()
		_ = os.Remove(w.tempPath)
		return errors.Newf("ffmpeg encoder did not exit within %s", encoderCleanupTimeout).
			Category(errors.CategoryTimeout).
			Component("recorder").
			Context("path", w.path).
			Build()
	}

	if err := os.Rename(w.tempPath, w.path); err != nil {
		return errors.New(fmt.Errorf("failed to finalize recording file: %w", err)).
			Category(errors.CategoryFileIO).
			Component("recorder").
			Context("path", w.path).
			Build()
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
