package capture

import (
	"log/slog"

	"github.com/tsanev/camguard-go/internal/logging"
)

// captureLogger returns the capture service logger.
func captureLogger() *slog.Logger {
	if l := logging.ForService("capture"); l != nil {
		return l
	}
	return slog.Default().With("service", "capture")
}
