// conf/validate.go settings validation
package conf

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Per-camera defaults applied when a configured value is missing or invalid.
const (
	DefaultMotionSensitivity = 500
	DefaultMotionCooldownSec = 5
)

// ValidateSettings checks the loaded settings. Global misconfiguration is an
// error; per-camera problems downgrade that camera's feature to disabled so
// one bad entry cannot take the rest of the fleet down.
func ValidateSettings(settings *Settings) error {
	switch settings.Storage.Action {
	case QuotaActionStop, QuotaActionOverwriteOldest:
	case "":
		settings.Storage.Action = QuotaActionStop
	default:
		return fmt.Errorf("invalid storage action %q, expected %q or %q",
			settings.Storage.Action, QuotaActionStop, QuotaActionOverwriteOldest)
	}

	if settings.Storage.LimitBytes < 0 {
		return fmt.Errorf("storage limit must not be negative, got %d", settings.Storage.LimitBytes)
	}

	if settings.Recording.Width <= 0 || settings.Recording.Height <= 0 {
		return fmt.Errorf("invalid recording dimensions %dx%d",
			settings.Recording.Width, settings.Recording.Height)
	}
	if settings.Recording.FPS <= 0 {
		return fmt.Errorf("recording fps must be positive, got %d", settings.Recording.FPS)
	}

	if settings.Scheduler.IntervalSec < 5 {
		settings.Scheduler.IntervalSec = 30
	}

	seenIDs := make(map[string]bool)
	for i := range settings.Cameras {
		validateCamera(&settings.Cameras[i], settings, seenIDs)
	}

	return nil
}

// validateCamera normalizes one camera entry in place, disabling broken
// features instead of failing startup.
func validateCamera(cam *CameraConfig, settings *Settings, seenIDs map[string]bool) {
	if cam.ID == "" {
		cam.ID = strings.ToLower(SanitizeName(cam.Name))
	}
	if cam.ID == "" || seenIDs[cam.ID] {
		log.Printf("⚠️  Camera %q has a missing or duplicate id, disabling it", cam.Name)
		cam.IsActive = false
		return
	}
	seenIDs[cam.ID] = true

	if cam.Name == "" {
		cam.Name = cam.ID
	}

	if cam.RTSPURL == "" {
		log.Printf("⚠️  Camera %q has no stream address, disabling it", cam.Name)
		cam.IsActive = false
		return
	}

	if cam.Width <= 0 || cam.Height <= 0 {
		cam.Width = settings.Recording.Width
		cam.Height = settings.Recording.Height
	}
	if cam.FPS <= 0 {
		cam.FPS = settings.Recording.FPS
	}

	if cam.Motion.Sensitivity <= 0 {
		cam.Motion.Sensitivity = DefaultMotionSensitivity
	}
	if cam.Motion.CooldownSec <= 0 {
		cam.Motion.CooldownSec = DefaultMotionCooldownSec
	}
	if cam.Motion.ROI != nil && !cam.Motion.ROI.IsValid() {
		log.Printf("⚠️  Camera %q has an invalid motion region, analyzing the whole frame", cam.Name)
		cam.Motion.ROI = nil
	}

	for day, entry := range cam.Schedule {
		if !entry.Enabled {
			continue
		}
		if !validTimeOfDay(entry.Start) || !validTimeOfDay(entry.End) {
			log.Printf("⚠️  Camera %q has an invalid %s schedule window (%s-%s), disabling that day",
				cam.Name, day, entry.Start, entry.End)
			entry.Enabled = false
			cam.Schedule[day] = entry
		}
	}
}

// validTimeOfDay reports whether s is a valid "HH:MM" time.
func validTimeOfDay(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}
