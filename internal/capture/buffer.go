package capture

import "github.com/tsanev/camguard-go/internal/frame"

// frameBufferCapacity bounds the slot between source and processor. Two
// frames keep end-to-end latency low; newly decoded frames are dropped when
// the processor falls behind.
const frameBufferCapacity = 2

// Buffer is the bounded single-producer/single-consumer queue between a
// FrameSource and its FrameProcessor. Push never blocks the producer; Pop
// blocks the consumer until a frame arrives or the buffer is closed.
type Buffer struct {
	ch chan *frame.Frame
}

// NewBuffer creates an empty frame buffer.
func NewBuffer() *Buffer {
	return &Buffer{ch: make(chan *frame.Frame, frameBufferCapacity)}
}

// Push offers a frame without blocking. Returns false when the buffer is
// full and the frame was dropped. A full buffer drops the newest frame and
// keeps the already-buffered ones.
func (b *Buffer) Push(f *frame.Frame) bool {
	select {
	case b.ch <- f:
		return true
	default:
		return false
	}
}

// Pop blocks until a frame is available or the buffer is closed. A nil
// frame with ok=false signals shutdown.
func (b *Buffer) Pop() (*frame.Frame, bool) {
	f, ok := <-b.ch
	return f, ok
}

// Close unblocks the consumer. Only the producer may call Close, exactly
// once, after its final Push.
func (b *Buffer) Close() {
	close(b.ch)
}

// Len returns the number of buffered frames. Intended for tests and metrics.
func (b *Buffer) Len() int {
	return len(b.ch)
}
