package frame

import "time"

// GridColumns returns the column count used to tile n cameras: 1, 2x2 up to
// four tiles, 3 columns beyond that. Matches the live-view layout.
func GridColumns(n int) int {
	switch {
	case n <= 1:
		return 1
	case n <= 4:
		return 2
	default:
		return 3
	}
}

// Compose tiles the given frames into a row-major grid canvas. Each tile is
// resized to cellWidth x cellHeight; a nil entry produces a blank (zeroed)
// tile. The tiles slice length determines the grid size.
func Compose(tiles []*Frame, cellWidth, cellHeight int) *Frame {
	cols := GridColumns(len(tiles))
	rows := (len(tiles) + cols - 1) / cols
	if rows == 0 {
		rows = 1
	}

	canvas := New("grid", cols*cellWidth, rows*cellHeight, ChannelsBGR)
	canvas.Timestamp = time.Now()

	for i, tile := range tiles {
		if tile == nil {
			continue
		}
		cell := tile
		if cell.Channels != ChannelsBGR {
			// grayscale tiles are not expected here, skip rather than corrupt the canvas
			continue
		}
		if cell.Width != cellWidth || cell.Height != cellHeight {
			cell = cell.Resize(cellWidth, cellHeight)
		}

		row := i / cols
		col := i % cols
		dstX := col * cellWidth * ChannelsBGR
		canvasStride := canvas.Width * ChannelsBGR
		cellStride := cellWidth * ChannelsBGR
		for y := 0; y < cellHeight; y++ {
			dstOff := (row*cellHeight+y)*canvasStride + dstX
			srcOff := y * cellStride
			copy(canvas.Pixels[dstOff:dstOff+cellStride], cell.Pixels[srcOff:srcOff+cellStride])
		}
	}

	return canvas
}
