// Package motion implements per-camera motion detection by two-frame
// grayscale differencing with cooldown-gated started/stopped events.
package motion

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tsanev/camguard-go/internal/frame"
	"github.com/tsanev/camguard-go/internal/logging"
)

const (
	// diffPixelThreshold is the per-pixel absolute difference above which a
	// pixel counts as changed.
	diffPixelThreshold byte = 25

	// DefaultSensitivity is the changed-pixel count a frame must exceed to
	// register as motion.
	DefaultSensitivity = 500

	// DefaultCooldown gates successive started events and delays the
	// stopped event after activity ends.
	DefaultCooldown = 5 * time.Second
)

// EventType distinguishes the two motion transitions.
type EventType string

const (
	EventStarted EventType = "motion_started"
	EventStopped EventType = "motion_stopped"
)

// Event is emitted when a camera transitions into or out of motion.
type Event struct {
	CameraID     string
	Type         EventType
	At           time.Time
	ActivePixels int
}

// Region is a rectangle in frame-fraction coordinates restricting where the
// detector looks for changes.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Detector holds the per-camera differencing state: one grayscale reference
// frame, replaced on every call, plus the active/cooldown bookkeeping. Not
// safe for concurrent use; each camera's processor owns its own detector.
type Detector struct {
	cameraID    string
	sensitivity int
	cooldown    time.Duration
	logger      *slog.Logger

	mu            sync.Mutex
	roi           *Region
	ref           *frame.Frame
	active        bool
	lastDetection time.Time

	now func() time.Time
}

// NewDetector creates a detector for one camera. Non-positive sensitivity or
// cooldown fall back to the defaults.
func NewDetector(cameraID string, sensitivity int, cooldown time.Duration) *Detector {
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	logger := logging.ForService("motion")
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		cameraID:    cameraID,
		sensitivity: sensitivity,
		cooldown:    cooldown,
		logger:      logger.With("camera_id", cameraID),
		now:         time.Now,
	}
}

// SetRegion restricts detection to a sub-rectangle of the analysis frame.
// Passing nil restores whole-frame analysis. Changing the region drops the
// reference frame so the next call reseeds with matching geometry.
func (d *Detector) SetRegion(roi *Region) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roi = roi
	d.ref = nil
}

// Detect analyzes one grayscale frame against the retained reference and
// returns a transition event when one fires. The detector takes ownership of
// gray; callers must pass a dedicated copy. The first call only seeds the
// reference and never reports motion.
func (d *Detector) Detect(gray *frame.Frame) (Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()

	if d.roi != nil && gray != nil {
		r := d.roi
		gray = gray.Crop(
			int(r.X*float64(gray.Width)),
			int(r.Y*float64(gray.Height)),
			int(r.Width*float64(gray.Width)),
			int(r.Height*float64(gray.Height)),
		)
	}

	ref := d.ref
	d.ref = gray
	if ref == nil || gray == nil || ref.Size() != gray.Size() {
		// No comparable reference, e.g. first frame or a resolution change.
		return Event{}, false
	}

	count := frame.DiffCount(ref, gray, diffPixelThreshold)
	if count > d.sensitivity {
		d.lastDetection = now
		if !d.active {
			d.active = true
			d.logger.Info("motion started", "active_pixels", count)
			return Event{CameraID: d.cameraID, Type: EventStarted, At: now, ActivePixels: count}, true
		}
		return Event{}, false
	}

	if d.active && now.Sub(d.lastDetection) >= d.cooldown {
		d.active = false
		d.logger.Info("motion stopped")
		return Event{CameraID: d.cameraID, Type: EventStopped, At: now, ActivePixels: count}, true
	}
	return Event{}, false
}

// Active reports whether the camera is currently inside a motion episode.
func (d *Detector) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Reset drops the reference frame and any in-progress episode. Used when a
// camera pipeline restarts so stale state cannot trigger a phantom event.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ref = nil
	d.active = false
	d.lastDetection = time.Time{}
}
