package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/odlevakp/enviro-pi/internal/config"
	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
)

const qosAtLeastOnce = byte(1)

var (
	ErrNotConnected = errors.New("mqtt client not connected")
	ErrStopped      = errors.New("mqtt client stopped")
)

// Client publishes stored readings and, when a handler is set, consumes
// telemetry from the station topic.
type Client struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool
	handler   func(Telemetry)

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	c := &Client{
		cfg:    cfg,
		logger: logger.With("component", "mqtt"),
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Clean sessions drop subscriptions, so resubscribe on every (re)connect.
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		c.logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		if c.currentHandler() != nil {
			if err := c.subscribe(); err != nil {
				c.logger.Error("mqtt subscribe failed", "topic", cfg.MQTTTopic, "error", err)
			}
		}
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		c.logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// SetTelemetryHandler registers the consumer for incoming telemetry. Set it
// before Connect so no message queued by the broker is missed.
func (c *Client) SetTelemetryHandler(h func(Telemetry)) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Connect waits for the initial connection, honouring ctx and Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return ErrStopped
	default:
	}

	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return ErrStopped
		default:
		}
	}
}

func (c *Client) subscribe() error {
	token := c.client.Subscribe(c.cfg.MQTTTopic, qosAtLeastOnce, func(_ mqtt.Client, msg mqtt.Message) {
		c.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", c.cfg.MQTTTopic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.cfg.MQTTTopic, err)
	}
	c.logger.Info("subscribed to mqtt topic", "topic", c.cfg.MQTTTopic, "qos", qosAtLeastOnce)
	return nil
}

func (c *Client) handleMessage(topic string, payload []byte) {
	t, err := decodeTelemetry(payload)
	if err != nil {
		c.logger.Warn("invalid telemetry message", "topic", topic, "error", err, "size", len(payload))
		return
	}
	if h := c.currentHandler(); h != nil {
		h(t)
	}
}

// PublishReading sends a stored reading to the station topic.
func (c *Client) PublishReading(ctx context.Context, r types.Reading) error {
	return c.PublishTelemetry(ctx, FromReading(c.cfg.StationID, r))
}

func (c *Client) PublishTelemetry(ctx context.Context, t Telemetry) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	topic := c.cfg.MQTTTopic
	token := c.client.Publish(topic, qosAtLeastOnce, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish telemetry: %w", err)
	}

	c.logger.Debug("published telemetry", "topic", topic, "station_id", t.StationID)
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client. Safe to call more than once; Connect fails
// with ErrStopped afterwards.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.IsConnected() && c.currentHandler() != nil {
		c.client.Unsubscribe(c.cfg.MQTTTopic).WaitTimeout(2 * time.Second)
	}
	c.client.Disconnect(250)

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) currentHandler() func(Telemetry) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
