package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/tsanev/camguard-go/internal/errors"
	"github.com/tsanev/camguard-go/internal/frame"
)

const (
	// processCleanupTimeout bounds how long Close waits for ffmpeg to exit
	// after the kill signal.
	processCleanupTimeout = 5 * time.Second
)

// FFmpegDecoder decodes an RTSP stream into raw bgr24 frames by running an
// ffmpeg process and reading fixed-size frames from its stdout pipe.
type FFmpegDecoder struct {
	FFmpegPath string
	CameraID   string
	URL        string
	Username   string
	Password   string
	Transport  string // tcp or udp
	Width      int
	Height     int
}

// connectionURL injects credentials into the stream address when they are
// configured and the URL does not already carry userinfo.
func (d *FFmpegDecoder) connectionURL() (string, error) {
	if d.URL == "" {
		return "", errors.Newf("camera %s has an empty stream address", d.CameraID).
			Category(errors.CategoryValidation).
			Component("capture").
			Build()
	}
	if d.Username == "" {
		return d.URL, nil
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		return "", errors.New(fmt.Errorf("invalid stream address: %w", err)).
			Category(errors.CategoryValidation).
			Component("capture").
			Context("camera_id", d.CameraID).
			Build()
	}
	if u.User == nil {
		u.User = url.UserPassword(d.Username, d.Password)
	}
	return u.String(), nil
}

// Open starts the ffmpeg process and returns a reader over its stdout.
func (d *FFmpegDecoder) Open(ctx context.Context) (FrameReader, error) {
	connStr, err := d.connectionURL()
	if err != nil {
		return nil, err
	}

	transport := d.Transport
	if transport == "" {
		transport = "tcp"
	}

	args := []string{
		"-rtsp_transport", transport,
		"-i", connStr,
		"-loglevel", "error",
		"-an",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-vf", fmt.Sprintf("scale=%d:%d", d.Width, d.Height),
		"-hide_banner",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, d.FFmpegPath, args...) //nolint:gosec // G204: ffmpeg path comes from validated settings, args built internally
	setupProcessGroup(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to create stdout pipe: %w", err)).
			Category(errors.CategorySystem).
			Component("capture").
			Context("camera_id", d.CameraID).
			Build()
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.New(fmt.Errorf("failed to start ffmpeg: %w", err)).
			Category(errors.CategoryCameraConnection).
			Component("capture").
			Context("camera_id", d.CameraID).
			Context("transport", transport).
			Build()
	}

	captureLogger().Info("ffmpeg decode process started",
		"camera_id", d.CameraID,
		"pid", cmd.Process.Pid,
		"transport", transport,
		"frame_size", strconv.Itoa(d.Width)+"x"+strconv.Itoa(d.Height))

	return &ffmpegReader{
		cameraID: d.CameraID,
		width:    d.Width,
		height:   d.Height,
		cmd:      cmd,
		stdout:   stdout,
		stderr:   &stderr,
	}, nil
}

// ffmpegReader reads fixed-size bgr24 frames from the ffmpeg stdout pipe.
type ffmpegReader struct {
	cameraID string
	width    int
	height   int
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	stderr   *bytes.Buffer

	closeOnce sync.Once
	closeErr  error
}

func (r *ffmpegReader) ReadFrame() (*frame.Frame, error) {
	f := frame.New(r.cameraID, r.width, r.height, frame.ChannelsBGR)
	if _, err := io.ReadFull(r.stdout, f.Pixels); err != nil {
		detail := r.stderr.String()
		return nil, errors.New(fmt.Errorf("stream read failed: %w", err)).
			Category(errors.CategoryCameraConnection).
			Component("capture").
			Context("camera_id", r.cameraID).
			Context("ffmpeg_stderr", truncate(detail, 512)).
			Build()
	}
	f.Timestamp = time.Now()
	return f, nil
}

// Close kills the ffmpeg process group and reaps it. Safe to call more
// than once and from a different goroutine than ReadFrame.
func (r *ffmpegReader) Close() error {
	r.closeOnce.Do(func() {
		_ = r.stdout.Close()
		if err := killProcessGroup(r.cmd); err != nil {
			captureLogger().Warn("failed to kill ffmpeg process group",
				"camera_id", r.cameraID, "error", err)
		}

		done := make(chan error, 1)
		go func() { done <- r.cmd.Wait() }()
		select {
		case <-done:
			// exit status of a killed decoder is not interesting
		case <-time.After(processCleanupTimeout):
			r.closeErr = errors.Newf("ffmpeg process did not exit within %s", processCleanupTimeout).
				Category(errors.CategoryTimeout).
				Component("capture").
				Context("camera_id", r.cameraID).
				Build()
		}
	})
	return r.closeErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
