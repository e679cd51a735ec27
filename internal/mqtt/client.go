// Package mqtt provides the MQTT messaging session used to publish telemetry
package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected is returned when publishing without a broker connection
var ErrNotConnected = errors.New("MQTT client is not connected")

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
)

// Config holds MQTT client configuration
type Config struct {
	Broker    string // MQTT broker address (e.g., "tcp://localhost:1883")
	ClientID  string // Unique client ID
	Username  string // MQTT username (optional)
	Password  string // MQTT password (optional)
	UseTLS    bool   // Enable TLS connection
	QoS       byte   // QoS for telemetry payloads
	BaseTopic string // Prefix under which the process status is announced

	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// StatusTopic returns the topic carrying the process online/offline status
func (c Config) StatusTopic() string {
	return c.BaseTopic + "/" + StatusTopicSuffix
}

// MessageHandler receives messages delivered to a subscription
type MessageHandler func(topic string, payload []byte)

// Client wraps the paho client
type Client struct {
	client   mqtt.Client
	config   Config
	mu       sync.RWMutex
	logger   *slog.Logger
	isActive bool
}

// New creates a new MQTT client. A last will marks the process offline if
// the connection drops without a clean disconnect.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required")
	}

	if cfg.ClientID == "" {
		host, _ := os.Hostname()
		cfg.ClientID = fmt.Sprintf("navtelemetry-%s-%d", host, time.Now().Unix())
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}

	c := &Client{
		config: cfg,
		logger: logger.With("component", "mqtt"),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	if cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	if cfg.BaseTopic != "" {
		opts.SetWill(cfg.StatusTopic(), StatusOffline, 1, true)
	}

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		c.logger.Warn("Connection lost", "error", err)
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		c.logger.Info("Connected to broker", "broker", cfg.Broker)
	})

	opts.SetReconnectingHandler(func(client mqtt.Client, options *mqtt.ClientOptions) {
		c.logger.Info("Attempting to reconnect")
	})

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetConnectTimeout(cfg.ConnectTimeout)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetCleanSession(true)

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect establishes connection to MQTT broker
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isActive {
		return nil
	}

	c.logger.Info("Connecting to broker", "broker", c.config.Broker, "client_id", c.config.ClientID)

	token := c.client.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return fmt.Errorf("timed out connecting to MQTT broker %s", c.config.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	c.isActive = true
	return nil
}

// Disconnect closes connection to MQTT broker
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isActive {
		return
	}

	c.client.Disconnect(250) // Wait up to 250ms for in-flight messages
	c.isActive = false

	c.logger.Info("Disconnected from broker")
}

// PublishWithQoS publishes a message and waits for the broker to accept it
func (c *Client) PublishWithQoS(topic string, qos byte, retained bool, payload interface{}) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isActive {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(c.config.PublishTimeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("Published", "topic", topic, "qos", qos, "retained", retained)
	return nil
}

// PublishNoWait publishes without waiting for completion. Errors are dropped.
func (c *Client) PublishNoWait(topic string, qos byte, payload interface{}) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isActive {
		return
	}
	c.client.Publish(topic, qos, false, payload)
}

// Subscribe registers handler for messages matching filter
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isActive {
		return ErrNotConnected
	}

	token := c.client.Subscribe(filter, qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return fmt.Errorf("timed out subscribing to %s", filter)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", filter, err)
	}

	c.logger.Info("Subscribed", "filter", filter)
	return nil
}

// IsConnected returns true if client is connected to broker
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isActive && c.client.IsConnected()
}

// GetConfig returns the current MQTT configuration
func (c *Client) GetConfig() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}
