package schedule

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsanev/camguard-go/internal/conf"
)

func window(enabled bool, start, end string) conf.DaySchedule {
	return conf.DaySchedule{Enabled: enabled, Start: start, End: end}
}

// at builds a time on Monday 2026-03-02 at the given wall clock.
func at(hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return time.Date(2026, 3, 2, t.Hour(), t.Minute(), 0, 0, time.UTC)
}

func TestShouldRecordHalfOpenWindow(t *testing.T) {
	w := window(true, "09:00", "17:00")

	assert.False(t, ShouldRecord(w, at("08:59")))
	assert.True(t, ShouldRecord(w, at("09:00")), "start is inclusive")
	assert.True(t, ShouldRecord(w, at("12:30")))
	assert.False(t, ShouldRecord(w, at("17:00")), "end is exclusive")
	assert.False(t, ShouldRecord(w, at("23:00")))
}

func TestShouldRecordDisabledWindow(t *testing.T) {
	assert.False(t, ShouldRecord(window(false, "00:00", "23:59"), at("12:00")))
}

func TestShouldRecordNoMidnightWrap(t *testing.T) {
	// 22:00-06:00 does not wrap into the night: evaluated at 23:00 the
	// half-open single-day window is empty past its end.
	w := window(true, "22:00", "06:00")

	assert.False(t, ShouldRecord(w, at("23:00")))
	assert.False(t, ShouldRecord(w, at("02:00")))
	assert.False(t, ShouldRecord(w, at("22:00")))
}

func TestShouldRecordBadTimesDisable(t *testing.T) {
	assert.False(t, ShouldRecord(window(true, "9am", "17:00"), at("12:00")))
	assert.False(t, ShouldRecord(window(true, "09:00", ""), at("12:00")))
}

// recordingController records the last state set per camera.
type recordingController struct {
	mu    sync.Mutex
	state map[string]bool
	calls int
}

func (c *recordingController) SetScheduledRecording(cameraID string, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		c.state = make(map[string]bool)
	}
	c.state[cameraID] = active
	c.calls++
}

func (c *recordingController) stateOf(cameraID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state[cameraID]
}

func TestEvaluateReconcilesActiveCameras(t *testing.T) {
	cameras := []conf.CameraConfig{
		{
			ID:       "front",
			IsActive: true,
			Schedule: map[string]conf.DaySchedule{
				"monday": window(true, "09:00", "17:00"),
			},
		},
		{
			ID:       "back",
			IsActive: true,
			Schedule: map[string]conf.DaySchedule{
				"monday": window(true, "18:00", "20:00"),
			},
		},
		{
			ID:       "disabled",
			IsActive: false,
			Schedule: map[string]conf.DaySchedule{
				"monday": window(true, "00:00", "23:59"),
			},
		},
	}

	ctrl := &recordingController{}
	s := New(DefaultInterval, func() []conf.CameraConfig { return cameras }, ctrl)

	s.Evaluate(at("12:00"))
	assert.True(t, ctrl.stateOf("front"))
	assert.False(t, ctrl.stateOf("back"))

	ctrl.mu.Lock()
	_, sawDisabled := ctrl.state["disabled"]
	ctrl.mu.Unlock()
	assert.False(t, sawDisabled, "inactive cameras are not evaluated")

	// Re-evaluating an unchanged instant produces the same states.
	s.Evaluate(at("12:00"))
	assert.True(t, ctrl.stateOf("front"))
	assert.False(t, ctrl.stateOf("back"))
}

func TestEvaluateCameraWithoutWeekdayEntry(t *testing.T) {
	cameras := []conf.CameraConfig{
		{ID: "front", IsActive: true, Schedule: map[string]conf.DaySchedule{}},
	}
	ctrl := &recordingController{}
	s := New(DefaultInterval, func() []conf.CameraConfig { return cameras }, ctrl)

	s.Evaluate(at("12:00"))
	assert.False(t, ctrl.stateOf("front"))
}

func TestSchedulerStartStop(t *testing.T) {
	ctrl := &recordingController{}
	s := New(10*time.Millisecond, func() []conf.CameraConfig {
		return []conf.CameraConfig{{
			ID:       "front",
			IsActive: true,
			Schedule: map[string]conf.DaySchedule{
				strings.ToLower(time.Now().Weekday().String()): window(true, "00:00", "23:59"),
			},
		}}
	}, ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.Start(ctx)
	require.Eventually(t, func() bool {
		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		return ctrl.calls > 0
	}, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
}
