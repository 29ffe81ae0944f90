// Package observability provides Prometheus metrics for the surveillance
// pipeline: per-camera capture rates, recording output, motion events and
// storage pruning.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// CaptureMetrics contains metrics for the per-camera capture loops.
type CaptureMetrics struct {
	FramesReceived *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec
	DecodeErrors   *prometheus.CounterVec
	Reconnects     *prometheus.CounterVec
	Connected      *prometheus.GaugeVec
}

// RecorderMetrics contains metrics for recording sinks.
type RecorderMetrics struct {
	FramesWritten    *prometheus.CounterVec
	FramesCoalesced  *prometheus.CounterVec
	ActiveRecordings prometheus.Gauge
	WriteErrors      *prometheus.CounterVec
}

// MotionMetrics contains metrics for motion detection.
type MotionMetrics struct {
	EventsStarted *prometheus.CounterVec
	EventsStopped *prometheus.CounterVec
}

// StorageMetrics contains metrics for quota enforcement.
type StorageMetrics struct {
	UsageBytes    prometheus.Gauge
	PrunedBytes   prometheus.Counter
	PrunedEvents  prometheus.Counter
	QuotaRefusals prometheus.Counter
}

// Metrics holds all metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Capture  CaptureMetrics
	Recorder RecorderMetrics
	Motion   MotionMetrics
	Storage  StorageMetrics
}

// NewMetrics creates a new Metrics instance with all collectors registered
// on a private registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	m := &Metrics{registry: registry}

	m.Capture = CaptureMetrics{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camguard_frames_received_total",
			Help: "Total number of frames decoded from camera streams",
		}, []string{"camera_id"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camguard_frames_dropped_total",
			Help: "Total number of frames dropped because the frame buffer was full",
		}, []string{"camera_id"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camguard_decode_errors_total",
			Help: "Total number of skipped undecodable frames",
		}, []string{"camera_id"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camguard_stream_reconnects_total",
			Help: "Total number of camera stream reconnect attempts",
		}, []string{"camera_id"}),
		Connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "camguard_stream_connected",
			Help: "Camera stream connection status (1 connected, 0 not)",
		}, []string{"camera_id"}),
	}

	m.Recorder = RecorderMetrics{
		FramesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camguard_recording_frames_written_total",
			Help: "Total number of frames written to recording containers",
		}, []string{"camera_id", "trigger"}),
		FramesCoalesced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camguard_recording_frames_coalesced_total",
			Help: "Total number of incoming frames replaced before being written",
		}, []string{"camera_id", "trigger"}),
		ActiveRecordings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camguard_active_recordings",
			Help: "Number of currently open recording sessions",
		}),
		WriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camguard_recording_write_errors_total",
			Help: "Total number of recording write failures",
		}, []string{"camera_id", "trigger"}),
	}

	m.Motion = MotionMetrics{
		EventsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camguard_motion_started_total",
			Help: "Total number of motion started events",
		}, []string{"camera_id"}),
		EventsStopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camguard_motion_stopped_total",
			Help: "Total number of motion stopped events",
		}, []string{"camera_id"}),
	}

	m.Storage = StorageMetrics{
		UsageBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camguard_storage_usage_bytes",
			Help: "Recursive size of the recordings root",
		}),
		PrunedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camguard_storage_pruned_bytes_total",
			Help: "Total bytes reclaimed by quota pruning",
		}),
		PrunedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camguard_storage_pruned_events_total",
			Help: "Total events deleted by quota pruning",
		}),
		QuotaRefusals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camguard_storage_quota_refusals_total",
			Help: "Total recordings refused because the quota was exceeded",
		}),
	}

	collectors := []prometheus.Collector{
		m.Capture.FramesReceived, m.Capture.FramesDropped, m.Capture.DecodeErrors,
		m.Capture.Reconnects, m.Capture.Connected,
		m.Recorder.FramesWritten, m.Recorder.FramesCoalesced,
		m.Recorder.ActiveRecordings, m.Recorder.WriteErrors,
		m.Motion.EventsStarted, m.Motion.EventsStopped,
		m.Storage.UsageBytes, m.Storage.PrunedBytes, m.Storage.PrunedEvents,
		m.Storage.QuotaRefusals,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics collector: %w", err)
		}
	}

	return m, nil
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
