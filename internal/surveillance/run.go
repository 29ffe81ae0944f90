package surveillance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tsanev/camguard-go/internal/conf"
	"github.com/tsanev/camguard-go/internal/datastore"
	"github.com/tsanev/camguard-go/internal/diskguard"
	"github.com/tsanev/camguard-go/internal/logging"
	"github.com/tsanev/camguard-go/internal/mqtt"
	"github.com/tsanev/camguard-go/internal/observability"
	"github.com/tsanev/camguard-go/internal/schedule"
)

// Run wires the whole system together from settings and blocks until ctx is
// cancelled: event catalog, storage guard, alert publisher, metrics
// endpoint, camera pipelines and the schedule evaluator.
func Run(ctx context.Context, settings *conf.Settings) error {
	logger := logging.ForService("surveillance")
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	var endpoint *observability.Endpoint
	if settings.Telemetry.Enabled {
		endpoint = observability.NewEndpoint(settings.Telemetry.Listen, metrics)
		endpoint.Start()
	}

	store := datastore.New(settings)
	if store != nil {
		if err := store.Open(); err != nil {
			return fmt.Errorf("opening event catalog: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close event catalog", "error", err)
			}
		}()
	}

	guard := diskguard.New(settings.Storage.Path, settings.Storage.LimitBytes,
		settings.Storage.Action, store, metrics)
	guard.LogDiskSpace()

	var notifier *mqtt.Notifier
	if settings.MQTT.Enabled {
		client := mqtt.NewClient(&settings.MQTT, settings.Main.Name)
		if err := client.Connect(ctx); err != nil {
			// Alerting is best-effort; the pipelines run without it.
			logger.Warn("MQTT broker unavailable, alerts disabled", "error", err)
		} else {
			notifier = mqtt.NewNotifier(client, settings.MQTT.Topic)
			defer client.Disconnect()
		}
	}

	orch := New(settings, guard, store, metrics, WithNotifier(notifier))
	orch.Start(ctx)

	var sched *schedule.Scheduler
	if settings.Scheduler.Enabled {
		interval := time.Duration(settings.Scheduler.IntervalSec) * time.Second
		sched = schedule.New(interval, settings.ActiveCameras, orch)
		sched.Start(ctx)
	}

	logger.Info("surveillance core running",
		"cameras", len(settings.ActiveCameras()),
		"storage_root", settings.Storage.Path,
		"quota_action", settings.Storage.Action)

	<-ctx.Done()
	logger.Info("shutting down")

	if sched != nil {
		sched.Stop()
	}
	orch.Shutdown()

	if endpoint != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := endpoint.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics endpoint shutdown failed", "error", err)
		}
	}
	return nil
}
