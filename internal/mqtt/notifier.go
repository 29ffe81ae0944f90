package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tsanev/camguard-go/internal/logging"
)

const (
	// alertDedupTTL suppresses identical alerts for the same camera. Motion
	// flapping at the detector cooldown boundary would otherwise flood the
	// topic.
	alertDedupTTL = 30 * time.Second

	dedupCleanupInterval = 5 * time.Minute
)

// Alert is the JSON payload published for every surveillance event.
type Alert struct {
	CameraID   string `json:"camera_id"`
	CameraName string `json:"camera_name"`
	Kind       string `json:"kind"`
	Timestamp  string `json:"timestamp"`
	FilePath   string `json:"file_path,omitempty"`
}

// Alert kinds.
const (
	AlertMotionStarted    = "motion_started"
	AlertMotionStopped    = "motion_stopped"
	AlertRecordingStarted = "recording_started"
	AlertRecordingStopped = "recording_stopped"
	AlertCameraOffline    = "camera_offline"
)

// Notifier publishes alerts with per-camera deduplication. A nil Notifier
// is valid and drops everything, so callers do not need to gate on the
// feature flag.
type Notifier struct {
	client Client
	topic  string
	dedup  *cache.Cache
	logger *slog.Logger
}

// NewNotifier wraps a connected client. Returns nil when client is nil.
func NewNotifier(client Client, topic string) *Notifier {
	if client == nil {
		return nil
	}
	logger := logging.ForService("mqtt")
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		client: client,
		topic:  topic,
		dedup:  cache.New(alertDedupTTL, dedupCleanupInterval),
		logger: logger,
	}
}

// Publish sends one alert unless an identical camera/kind pair went out
// within the dedup window. Publish failures are logged, never propagated;
// alerting is best-effort and must not disturb the pipeline.
func (n *Notifier) Publish(ctx context.Context, alert Alert) {
	if n == nil {
		return
	}

	key := alert.CameraID + "|" + alert.Kind
	if _, found := n.dedup.Get(key); found {
		n.logger.Debug("suppressing duplicate alert", "camera_id", alert.CameraID, "kind", alert.Kind)
		return
	}
	n.dedup.Set(key, struct{}{}, cache.DefaultExpiration)

	payload, err := json.Marshal(alert)
	if err != nil {
		n.logger.Error("failed to encode alert", "error", err)
		return
	}
	if err := n.client.Publish(ctx, n.topic, string(payload)); err != nil {
		n.logger.Warn("failed to publish alert",
			"camera_id", alert.CameraID, "kind", alert.Kind, "error", err)
	}
}
