package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tsanev/camguard-go/internal/frame"
)

// fakeReader replays a scripted sequence of frames and errors.
type fakeReader struct {
	mu     sync.Mutex
	script []func() (*frame.Frame, error)
	closed bool
}

func (r *fakeReader) ReadFrame() (*frame.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.script) == 0 {
		return nil, io.EOF
	}
	step := r.script[0]
	r.script = r.script[1:]
	return step()
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

type fakeDecoder struct {
	reader  *fakeReader
	openErr error
}

func (d *fakeDecoder) Open(ctx context.Context) (FrameReader, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.reader, nil
}

func frameStep(f *frame.Frame) func() (*frame.Frame, error) {
	return func() (*frame.Frame, error) { return f, nil }
}

func errStep(err error) func() (*frame.Frame, error) {
	return func() (*frame.Frame, error) { return nil, err }
}

func collectStatuses() (func(StatusUpdate), func() []Status) {
	var mu sync.Mutex
	var seen []Status
	record := func(u StatusUpdate) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, u.Status)
	}
	snapshot := func() []Status {
		mu.Lock()
		defer mu.Unlock()
		return append([]Status(nil), seen...)
	}
	return record, snapshot
}

func TestSourceDeliversFramesAndClosesBufferOnEOF(t *testing.T) {
	defer goleak.VerifyNone(t)

	f1 := testFrame(t, "cam1")
	f2 := testFrame(t, "cam1")
	dec := &fakeDecoder{reader: &fakeReader{script: []func() (*frame.Frame, error){
		frameStep(f1),
		frameStep(f2),
	}}}

	buf := NewBuffer()
	record, snapshot := collectStatuses()
	src := NewSource("cam1", dec, buf, nil, record)
	src.Start(context.Background())

	got1, ok := buf.Pop()
	require.True(t, ok)
	assert.Same(t, f1, got1)
	got2, ok := buf.Pop()
	require.True(t, ok)
	assert.Same(t, f2, got2)

	// EOF ends the stream and closes the buffer.
	_, ok = buf.Pop()
	assert.False(t, ok)

	<-src.Done()
	src.Stop()

	statuses := snapshot()
	assert.Equal(t, []Status{StatusConnecting, StatusConnected, StatusDisconnected}, statuses)
	assert.True(t, dec.reader.closed)
}

func TestSourceSkipsBadFrames(t *testing.T) {
	defer goleak.VerifyNone(t)

	good := testFrame(t, "cam1")
	dec := &fakeDecoder{reader: &fakeReader{script: []func() (*frame.Frame, error){
		errStep(ErrBadFrame),
		frameStep(good),
	}}}

	buf := NewBuffer()
	src := NewSource("cam1", dec, buf, nil, nil)
	src.Start(context.Background())

	got, ok := buf.Pop()
	require.True(t, ok)
	assert.Same(t, good, got, "a bad frame is skipped, not fatal")

	<-src.Done()
	src.Stop()
}

func TestSourceReportsErrorWhenOpenFails(t *testing.T) {
	defer goleak.VerifyNone(t)

	openErr := errors.New("connection refused")
	dec := &fakeDecoder{openErr: openErr}

	buf := NewBuffer()
	var mu sync.Mutex
	var last StatusUpdate
	src := NewSource("cam1", dec, buf, nil, func(u StatusUpdate) {
		mu.Lock()
		defer mu.Unlock()
		last = u
	})
	src.Start(context.Background())
	<-src.Done()
	src.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, StatusError, last.Status)
	assert.ErrorIs(t, last.Err, openErr)

	// The consumer side is unblocked even though nothing was produced.
	_, ok := buf.Pop()
	assert.False(t, ok)
}

func TestSourceStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	blocking := make(chan struct{})
	dec := &fakeDecoder{reader: &fakeReader{script: []func() (*frame.Frame, error){
		func() (*frame.Frame, error) {
			<-blocking
			return nil, io.EOF
		},
	}}}

	buf := NewBuffer()
	src := NewSource("cam1", dec, buf, nil, nil)
	src.Start(context.Background())
	src.Start(context.Background())

	close(blocking)
	src.Stop()
	src.Stop()

	select {
	case <-src.Done():
	case <-time.After(time.Second):
		t.Fatal("source did not stop")
	}
}

func TestSourceStopBeforeStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := NewSource("cam1", &fakeDecoder{reader: &fakeReader{}}, NewBuffer(), nil, nil)
	src.Stop()

	select {
	case <-src.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Stop without Start")
	}
}
