package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	f := New("cam-1", 4, 4, ChannelsBGR)
	f.Pixels[0] = 200

	c := f.Clone()
	c.Pixels[0] = 10
	assert.EqualValues(t, 200, f.Pixels[0])
	assert.Equal(t, f.Width, c.Width)
	assert.Equal(t, f.CameraID, c.CameraID)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	f := New("cam-1", 4, 4, ChannelsBGR)
	require.NoError(t, f.Validate())

	f.Pixels = f.Pixels[:10]
	assert.Error(t, f.Validate())

	bad := &Frame{Width: 0, Height: 4, Channels: ChannelsBGR}
	assert.Error(t, bad.Validate())
}

func TestGrayscaleGeometry(t *testing.T) {
	t.Parallel()

	f := New("cam-1", 8, 4, ChannelsBGR)
	for i := range f.Pixels {
		f.Pixels[i] = 255
	}

	g := f.Grayscale()
	assert.Equal(t, ChannelsGray, g.Channels)
	assert.Len(t, g.Pixels, 8*4)
	// pure white stays (close to) white under integer luma weights
	assert.InDelta(t, 255, int(g.Pixels[0]), 1)
}

func TestResizeNearest(t *testing.T) {
	t.Parallel()

	f := New("cam-1", 2, 2, ChannelsGray)
	f.Pixels = []byte{10, 20, 30, 40}

	up := f.Resize(4, 4)
	require.Len(t, up.Pixels, 16)
	// each source pixel expands to a 2x2 block
	assert.EqualValues(t, 10, up.Pixels[0])
	assert.EqualValues(t, 10, up.Pixels[1])
	assert.EqualValues(t, 20, up.Pixels[2])
	assert.EqualValues(t, 30, up.Pixels[8])

	same := f.Resize(2, 2)
	assert.Equal(t, f.Pixels, same.Pixels)
}

func TestCropExtractsRectangle(t *testing.T) {
	t.Parallel()

	f := New("cam-1", 4, 4, ChannelsGray)
	for i := range f.Pixels {
		f.Pixels[i] = byte(i)
	}

	c := f.Crop(1, 1, 2, 2)
	require.Equal(t, 2, c.Width)
	require.Equal(t, 2, c.Height)
	assert.Equal(t, []byte{5, 6, 9, 10}, c.Pixels)
}

func TestCropClampsToBounds(t *testing.T) {
	t.Parallel()

	f := New("cam-1", 4, 4, ChannelsGray)

	c := f.Crop(2, 2, 10, 10)
	assert.Equal(t, 2, c.Width)
	assert.Equal(t, 2, c.Height)

	// a rectangle with no area inside the frame falls back to a clone
	whole := f.Crop(10, 10, 2, 2)
	assert.Equal(t, f.Width, whole.Width)
	assert.Len(t, whole.Pixels, len(f.Pixels))
}

func TestDiffCountThreshold(t *testing.T) {
	t.Parallel()

	a := New("cam-1", 4, 1, ChannelsGray)
	b := New("cam-1", 4, 1, ChannelsGray)
	b.Pixels = []byte{0, 30, 26, 25}

	// threshold 25: only differences strictly above count
	assert.Equal(t, 2, DiffCount(a, b, 25))
	assert.Equal(t, 0, DiffCount(a, a.Clone(), 25))
	assert.Equal(t, 0, DiffCount(a, nil, 25))
}

func TestGridColumns(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, GridColumns(1))
	assert.Equal(t, 2, GridColumns(2))
	assert.Equal(t, 2, GridColumns(4))
	assert.Equal(t, 3, GridColumns(5))
}

func TestComposePlacesTilesAndBlanks(t *testing.T) {
	t.Parallel()

	white := New("cam-1", 2, 2, ChannelsBGR)
	for i := range white.Pixels {
		white.Pixels[i] = 255
	}

	canvas := Compose([]*Frame{white, nil}, 2, 2)
	require.Equal(t, 4, canvas.Width) // 2 columns
	require.Equal(t, 2, canvas.Height)

	// first tile populated
	assert.EqualValues(t, 255, canvas.Pixels[0])
	// second tile blank
	secondTileOff := 2 * ChannelsBGR
	assert.EqualValues(t, 0, canvas.Pixels[secondTileOff])
}

func TestComposeResizesMismatchedTile(t *testing.T) {
	t.Parallel()

	big := New("cam-1", 8, 8, ChannelsBGR)
	for i := range big.Pixels {
		big.Pixels[i] = 42
	}

	canvas := Compose([]*Frame{big}, 4, 4)
	assert.Equal(t, 4, canvas.Width)
	assert.Equal(t, 4, canvas.Height)
	assert.EqualValues(t, 42, canvas.Pixels[0])
}
