package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient records published payloads.
type mockClient struct {
	mu        sync.Mutex
	published []string
	connected bool
}

func (m *mockClient) Connect(context.Context) error { m.connected = true; return nil }
func (m *mockClient) IsConnected() bool             { return m.connected }
func (m *mockClient) Disconnect()                   { m.connected = false }

func (m *mockClient) Publish(_ context.Context, _ string, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, payload)
	return nil
}

func (m *mockClient) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

func TestNotifierPublishesAlertPayload(t *testing.T) {
	client := &mockClient{connected: true}
	n := NewNotifier(client, "camguard/alerts")

	n.Publish(context.Background(), Alert{
		CameraID:   "front",
		CameraName: "Front Door",
		Kind:       AlertMotionStarted,
		Timestamp:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).Format("2006-01-02 15:04:05"),
	})

	require.Equal(t, 1, client.count())
	var alert Alert
	require.NoError(t, json.Unmarshal([]byte(client.published[0]), &alert))
	assert.Equal(t, "front", alert.CameraID)
	assert.Equal(t, AlertMotionStarted, alert.Kind)
	assert.Empty(t, alert.FilePath, "file_path is omitted when empty")
}

func TestNotifierDeduplicatesSameCameraAndKind(t *testing.T) {
	client := &mockClient{connected: true}
	n := NewNotifier(client, "camguard/alerts")

	alert := Alert{CameraID: "front", Kind: AlertMotionStarted}
	n.Publish(context.Background(), alert)
	n.Publish(context.Background(), alert)
	assert.Equal(t, 1, client.count(), "identical alerts inside the window collapse")

	// A different kind for the same camera is not suppressed.
	n.Publish(context.Background(), Alert{CameraID: "front", Kind: AlertMotionStopped})
	assert.Equal(t, 2, client.count())

	// Same kind for another camera is not suppressed either.
	n.Publish(context.Background(), Alert{CameraID: "back", Kind: AlertMotionStarted})
	assert.Equal(t, 3, client.count())
}

func TestNilNotifierIsSafe(t *testing.T) {
	var n *Notifier
	n.Publish(context.Background(), Alert{CameraID: "front", Kind: AlertMotionStarted})
	assert.Nil(t, NewNotifier(nil, "topic"))
}
