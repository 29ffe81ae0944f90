package recorder

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"

	"github.com/tsanev/camguard-go/internal/errors"
	"github.com/tsanev/camguard-go/internal/frame"
)

// snapshotQuality is the JPEG encode quality for still images.
const snapshotQuality = 90

// WriteSnapshot encodes a bgr24 frame as a JPEG file at path. The image is
// written to a temp file and renamed into place so partially written
// snapshots never become visible.
func WriteSnapshot(path string, f *frame.Frame) error {
	if f == nil {
		return errors.Newf("no frame available for snapshot").
			Category(errors.CategoryNotFound).
			Component("recorder").
			Context("path", path).
			Build()
	}
	if err := f.Validate(); err != nil {
		return err
	}
	if f.Channels != frame.ChannelsBGR {
		return errors.Newf("snapshot requires a bgr frame, got %d channels", f.Channels).
			Category(errors.CategoryValidation).
			Component("recorder").
			Build()
	}

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i < len(f.Pixels); i, j = i+3, j+4 {
		img.Pix[j+0] = f.Pixels[i+2]
		img.Pix[j+1] = f.Pixels[i+1]
		img.Pix[j+2] = f.Pixels[i+0]
		img.Pix[j+3] = 0xff
	}

	tempPath := path + ".part"
	out, err := os.Create(tempPath)
	if err != nil {
		return errors.New(fmt.Errorf("failed to create snapshot file: %w", err)).
			Category(errors.CategoryFileIO).
			Component("recorder").
			Context("path", path).
			Build()
	}

	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: snapshotQuality}); err != nil {
		_ = out.Close()
		_ = os.Remove(tempPath)
		return errors.New(fmt.Errorf("failed to encode snapshot: %w", err)).
			Category(errors.CategoryFileIO).
			Component("recorder").
			Context("path", path).
			Build()
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tempPath)
		return errors.New(fmt.Errorf("failed to flush snapshot: %w", err)).
			Category(errors.CategoryFileIO).
			Component("recorder").
			Context("path", path).
			Build()
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return errors.New(fmt.Errorf("failed to finalize snapshot: %w", err)).
			Category(errors.CategoryFileIO).
			Component("recorder").
			Context("path", path).
			Build()
	}
	return nil
}
