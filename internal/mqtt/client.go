// Package mqtt publishes surveillance alerts (motion transitions, recording
// lifecycle) to an MQTT broker.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tsanev/camguard-go/internal/conf"
	"github.com/tsanev/camguard-go/internal/errors"
	"github.com/tsanev/camguard-go/internal/logging"
)

const (
	connectTimeout    = 30 * time.Second
	publishTimeout    = 10 * time.Second
	reconnectCooldown = 5 * time.Second
)

// Client abstracts the broker connection.
type Client interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic, payload string) error
	IsConnected() bool
	Disconnect()
}

type client struct {
	broker   string
	clientID string
	username string
	password string
	logger   *slog.Logger

	mu              sync.Mutex
	internalClient  pahomqtt.Client
	lastConnAttempt time.Time
}

// NewClient creates an MQTT client from the alerting settings.
func NewClient(settings *conf.MQTTSettings, clientID string) Client {
	logger := logging.ForService("mqtt")
	if logger == nil {
		logger = slog.Default()
	}
	return &client{
		broker:   settings.Broker,
		clientID: clientID,
		username: settings.Username,
		password: settings.Password,
		logger:   logger,
	}
}

// Connect establishes the broker connection. Repeated calls inside the
// reconnect cooldown are refused to avoid hammering a down broker.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < reconnectCooldown {
		return errors.Newf("connection attempt too recent, last attempt was %v ago", since.Round(time.Millisecond)).
			Category(errors.CategoryMQTTConnection).
			Component("mqtt").
			Build()
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.broker)
	if err != nil {
		return errors.New(fmt.Errorf("invalid broker URL: %w", err)).
			Category(errors.CategoryValidation).
			Component("mqtt").
			Build()
	}
	if host := u.Hostname(); net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return errors.New(fmt.Errorf("failed to resolve broker host %s: %w", host, err)).
				Category(errors.CategoryMQTTConnection).
				Component("mqtt").
				Build()
		}
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.broker)
	opts.SetClientID(c.clientID)
	opts.SetUsername(c.username)
	opts.SetPassword(c.password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		c.logger.Info("connected to MQTT broker", "broker", c.broker)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.logger.Warn("MQTT connection lost", "broker", c.broker, "error", err)
	})

	c.internalClient = pahomqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.Newf("MQTT connect timed out after %s", connectTimeout).
			Category(errors.CategoryMQTTConnection).
			Component("mqtt").
			Context("broker", c.broker).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(fmt.Errorf("MQTT connect failed: %w", err)).
			Category(errors.CategoryMQTTConnection).
			Component("mqtt").
			Context("broker", c.broker).
			Build()
	}
	return nil
}

// Publish sends one message at QoS 0.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	cl := c.internalClient
	c.mu.Unlock()

	if cl == nil || !cl.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Category(errors.CategoryMQTTPublish).
			Component("mqtt").
			Context("topic", topic).
			Build()
	}

	token := cl.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.Newf("MQTT publish timed out after %s", publishTimeout).
			Category(errors.CategoryMQTTPublish).
			Component("mqtt").
			Context("topic", topic).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(fmt.Errorf("MQTT publish failed: %w", err)).
			Category(errors.CategoryMQTTPublish).
			Component("mqtt").
			Context("topic", topic).
			Build()
	}
	return nil
}

// IsConnected reports the broker connection state.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the broker connection, allowing in-flight messages a
// short grace period.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient != nil {
		c.internalClient.Disconnect(250)
	}
}
