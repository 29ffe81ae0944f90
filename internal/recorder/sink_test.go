package recorder

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tsanev/camguard-go/internal/frame"
)

// memWriter records written frames in memory.
type memWriter struct {
	mu     sync.Mutex
	frames []*frame.Frame
	closed bool
}

func (w *memWriter) WriteFrame(f *frame.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = append(w.frames, f)
	return nil
}

func (w *memWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *memWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

func (w *memWriter) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func bgrFrame(w, h int) *frame.Frame {
	return frame.New("cam1", w, h, frame.ChannelsBGR)
}

func newTestSink(writer FrameWriter, fps int) *Sink {
	return NewSink(SinkConfig{
		CameraID:   "cam1",
		CameraName: "Front Door",
		Trigger:    TriggerManual,
		Path:       "/tmp/out.mp4",
		Width:      8,
		Height:     8,
		FPS:        fps,
	}, writer, nil)
}

func TestSinkPacesOutputToTargetRate(t *testing.T) {
	defer goleak.VerifyNone(t)

	writer := &memWriter{}
	sink := newTestSink(writer, 20)
	sink.Start()

	// Feed frames much faster than the target rate for one second; the
	// output count must track fps, not the input rate.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		sink.AddFrame(bgrFrame(8, 8))
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, sink.Stop())

	written := writer.count()
	assert.InDelta(t, 20, written, 3, "one second at 20 fps should write about 20 frames, wrote %d", written)
	assert.True(t, writer.isClosed())
}

func TestSinkDuplicatesSparseInput(t *testing.T) {
	defer goleak.VerifyNone(t)

	writer := &memWriter{}
	sink := newTestSink(writer, 20)
	sink.Start()

	// A single frame, then silence: the sink keeps duplicating it.
	sink.AddFrame(bgrFrame(8, 8))
	time.Sleep(500 * time.Millisecond)
	require.NoError(t, sink.Stop())

	written := writer.count()
	assert.Greater(t, written, 5, "sparse input should be duplicated at the target rate, wrote %d", written)
}

func TestSinkStopWithNoFramesIsSafe(t *testing.T) {
	defer goleak.VerifyNone(t)

	writer := &memWriter{}
	sink := newTestSink(writer, 20)
	sink.Start()
	require.NoError(t, sink.Stop())

	assert.Equal(t, 0, writer.count())
	assert.True(t, writer.isClosed(), "writer is closed even when nothing was recorded")
}

func TestSinkStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	writer := &memWriter{}
	sink := newTestSink(writer, 20)
	sink.Start()
	require.NoError(t, sink.Stop())
	require.NoError(t, sink.Stop())
}

func TestSinkResizesMismatchedFrames(t *testing.T) {
	defer goleak.VerifyNone(t)

	writer := &memWriter{}
	sink := newTestSink(writer, 50)
	sink.Start()

	sink.AddFrame(bgrFrame(16, 16))
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, sink.Stop())

	require.Greater(t, writer.count(), 0)
	writer.mu.Lock()
	defer writer.mu.Unlock()
	for _, f := range writer.frames {
		assert.Equal(t, 8, f.Width)
		assert.Equal(t, 8, f.Height)
	}
}

func TestSinkAddFrameNeverBlocks(t *testing.T) {
	defer goleak.VerifyNone(t)

	writer := &memWriter{}
	sink := newTestSink(writer, 1)
	sink.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			sink.AddFrame(bgrFrame(8, 8))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("AddFrame blocked")
	}
	require.NoError(t, sink.Stop())
}

func TestRecordingPathNaming(t *testing.T) {
	at := time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC)

	assert.Equal(t, filepath.Join("/rec", "rec_Front_Door_20260301_140509.mp4"),
		RecordingPath("/rec", TriggerManual, "Front Door", at))
	assert.Equal(t, filepath.Join("/rec", "motion_Yard_20260301_140509.mp4"),
		RecordingPath("/rec", TriggerMotion, "Yard", at))
	assert.Equal(t, filepath.Join("/rec", "sched_Yard_20260301_140509.mp4"),
		RecordingPath("/rec", TriggerScheduled, "Yard", at))
	assert.Equal(t, filepath.Join("/rec", "rec_grid_grid_20260301_140509.mp4"),
		RecordingPath("/rec", TriggerGrid, "grid", at))
	assert.Equal(t, filepath.Join("/rec", "snap_Yard_20260301_140509.jpg"),
		SnapshotPath("/rec", "Yard", false, at))
	assert.Equal(t, filepath.Join("/rec", "snap_grid_grid_20260301_140509.jpg"),
		SnapshotPath("/rec", "grid", true, at))
}

func TestWriteSnapshotProducesJPEG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap_cam_20260301_140509.jpg")

	f := bgrFrame(8, 8)
	for i := 0; i < len(f.Pixels); i += 3 {
		f.Pixels[i] = 0xff // blue
	}
	require.NoError(t, WriteSnapshot(path, f))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 2)
	assert.Equal(t, []byte{0xff, 0xd8}, data[:2], "JPEG magic bytes")

	// No temp file lingers.
	_, err = os.Stat(path + ".part")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteSnapshotNilFrame(t *testing.T) {
	err := WriteSnapshot(filepath.Join(t.TempDir(), "x.jpg"), nil)
	assert.Error(t, err)
}
