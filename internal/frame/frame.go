// Package frame defines the raw image frame type flowing through the
// capture pipeline and the raster operations the pipeline needs: cloning,
// grayscale conversion, nearest-neighbor resize and pixel differencing.
// Frames are owned by exactly one pipeline stage at a time; a consumer that
// keeps a frame past the current call must take a Clone.
package frame

import (
	"time"

	"github.com/tsanev/camguard-go/internal/errors"
)

// Channel counts for the supported pixel layouts.
const (
	ChannelsBGR  = 3 // bgr24, the ffmpeg rawvideo layout used by the pipeline
	ChannelsGray = 1
)

// Frame is one decoded image from a camera stream at a point in time.
type Frame struct {
	CameraID  string
	Timestamp time.Time
	Width     int
	Height    int
	Channels  int
	Pixels    []byte // len = Width * Height * Channels
}

// New allocates a zeroed (black) frame with the given geometry.
func New(cameraID string, width, height, channels int) *Frame {
	return &Frame{
		CameraID:  cameraID,
		Timestamp: time.Now(),
		Width:     width,
		Height:    height,
		Channels:  channels,
		Pixels:    make([]byte, width*height*channels),
	}
}

// Size returns the expected pixel buffer length.
func (f *Frame) Size() int {
	return f.Width * f.Height * f.Channels
}

// Validate checks the pixel buffer length against the frame geometry.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return errors.Newf("invalid frame geometry %dx%d", f.Width, f.Height).
			Category(errors.CategoryValidation).
			Component("frame").
			Build()
	}
	if f.Channels != ChannelsBGR && f.Channels != ChannelsGray {
		return errors.Newf("unsupported channel count %d", f.Channels).
			Category(errors.CategoryValidation).
			Component("frame").
			Build()
	}
	if len(f.Pixels) != f.Size() {
		return errors.Newf("pixel buffer length %d does not match geometry %dx%dx%d",
			len(f.Pixels), f.Width, f.Height, f.Channels).
			Category(errors.CategoryFrameDecode).
			Component("frame").
			Build()
	}
	return nil
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	pixels := make([]byte, len(f.Pixels))
	copy(pixels, f.Pixels)
	return &Frame{
		CameraID:  f.CameraID,
		Timestamp: f.Timestamp,
		Width:     f.Width,
		Height:    f.Height,
		Channels:  f.Channels,
		Pixels:    pixels,
	}
}

// Grayscale converts a BGR frame to single-channel using integer BT.601
// luma weights. A grayscale input is cloned as-is.
func (f *Frame) Grayscale() *Frame {
	if f.Channels == ChannelsGray {
		return f.Clone()
	}
	out := &Frame{
		CameraID:  f.CameraID,
		Timestamp: f.Timestamp,
		Width:     f.Width,
		Height:    f.Height,
		Channels:  ChannelsGray,
		Pixels:    make([]byte, f.Width*f.Height),
	}
	for i, j := 0, 0; i < len(f.Pixels); i, j = i+3, j+1 {
		b := int(f.Pixels[i])
		g := int(f.Pixels[i+1])
		r := int(f.Pixels[i+2])
		// y = 0.299r + 0.587g + 0.114b, scaled by 1024
		out.Pixels[j] = byte((306*r + 601*g + 117*b) >> 10)
	}
	return out
}

// Resize scales the frame to width x height with nearest-neighbor sampling.
// Returns a clone when the geometry already matches.
func (f *Frame) Resize(width, height int) *Frame {
	if width == f.Width && height == f.Height {
		return f.Clone()
	}
	out := &Frame{
		CameraID:  f.CameraID,
		Timestamp: f.Timestamp,
		Width:     width,
		Height:    height,
		Channels:  f.Channels,
		Pixels:    make([]byte, width*height*f.Channels),
	}
	ch := f.Channels
	for y := 0; y < height; y++ {
		srcY := y * f.Height / height
		srcRow := srcY * f.Width * ch
		dstRow := y * width * ch
		for x := 0; x < width; x++ {
			srcOff := srcRow + (x*f.Width/width)*ch
			dstOff := dstRow + x*ch
			copy(out.Pixels[dstOff:dstOff+ch], f.Pixels[srcOff:srcOff+ch])
		}
	}
	return out
}

// Crop returns a copy of the rectangle [x, y, x+width, y+height), clamped
// to the frame bounds. A rectangle with no area inside the frame yields a
// clone of the whole frame.
func (f *Frame) Crop(x, y, width, height int) *Frame {
	if x < 0 {
		width += x
		x = 0
	}
	if y < 0 {
		height += y
		y = 0
	}
	if x+width > f.Width {
		width = f.Width - x
	}
	if y+height > f.Height {
		height = f.Height - y
	}
	if width <= 0 || height <= 0 || (width == f.Width && height == f.Height) {
		return f.Clone()
	}
	ch := f.Channels
	out := &Frame{
		CameraID:  f.CameraID,
		Timestamp: f.Timestamp,
		Width:     width,
		Height:    height,
		Channels:  ch,
		Pixels:    make([]byte, width*height*ch),
	}
	for row := 0; row < height; row++ {
		srcOff := ((y+row)*f.Width + x) * ch
		dstOff := row * width * ch
		copy(out.Pixels[dstOff:dstOff+width*ch], f.Pixels[srcOff:srcOff+width*ch])
	}
	return out
}

// DiffCount compares two equally sized grayscale frames and returns the
// number of pixels whose absolute difference exceeds threshold. Mismatched
// geometry counts as no difference; the caller controls sampling geometry.
func DiffCount(a, b *Frame, threshold byte) int {
	if a == nil || b == nil || len(a.Pixels) != len(b.Pixels) {
		return 0
	}
	count := 0
	for i := range a.Pixels {
		d := int(a.Pixels[i]) - int(b.Pixels[i])
		if d < 0 {
			d = -d
		}
		if d > int(threshold) {
			count++
		}
	}
	return count
}
