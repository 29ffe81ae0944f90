// Package schedule evaluates per-camera weekly recording windows on a fixed
// tick and drives scheduled recording sessions through a controller.
package schedule

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tsanev/camguard-go/internal/conf"
	"github.com/tsanev/camguard-go/internal/logging"
)

// DefaultInterval is the evaluation tick. Minute-resolution schedules do not
// need anything finer.
const DefaultInterval = 30 * time.Second

// Controller starts and stops scheduled recording sessions. Calls must be
// idempotent: asking for a state that already holds is a no-op.
type Controller interface {
	SetScheduledRecording(cameraID string, active bool)
}

// ShouldRecord reports whether the window covers the given instant. The
// window is half-open [Start, End) within a single weekday; it never wraps
// midnight, so an end before the start yields an empty window. Unparseable
// times disable the window.
func ShouldRecord(window conf.DaySchedule, now time.Time) bool {
	if !window.Enabled {
		return false
	}
	start, ok := minuteOfDay(window.Start)
	if !ok {
		return false
	}
	end, ok := minuteOfDay(window.End)
	if !ok {
		return false
	}
	current := now.Hour()*60 + now.Minute()
	return start <= current && current < end
}

func minuteOfDay(hhmm string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// Scheduler ticks over the active cameras and reconciles each one's desired
// scheduled-recording state with the controller.
type Scheduler struct {
	interval time.Duration
	cameras  func() []conf.CameraConfig
	ctrl     Controller
	logger   *slog.Logger
	now      func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a scheduler. cameras is called on every tick so config
// reloads are picked up without restarting the scheduler.
func New(interval time.Duration, cameras func() []conf.CameraConfig, ctrl Controller) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := logging.ForService("schedule")
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		cameras:  cameras,
		ctrl:     ctrl,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start evaluates once immediately, then on every tick. Subsequent calls are
// no-ops.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		go s.run(ctx)
	})
}

// Stop halts the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			close(s.done)
			return
		}
		s.cancel()
		<-s.done
	})
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	s.Evaluate(s.now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Evaluate(s.now())
		}
	}
}

// Evaluate reconciles every active camera against its current weekday
// window. Exposed for tests and for a forced re-check after config changes.
func (s *Scheduler) Evaluate(now time.Time) {
	weekday := now.Weekday().String()
	for _, cam := range s.cameras() {
		if !cam.IsActive {
			continue
		}
		window := cam.ScheduleFor(weekday)
		s.ctrl.SetScheduledRecording(cam.ID, ShouldRecord(window, now))
	}
}
