package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Environment variable names
const (
	// MQTT settings
	EnvMQTTBroker   = "NAVTEL_MQTT_BROKER"
	EnvMQTTClientID = "NAVTEL_MQTT_CLIENT_ID"
	EnvMQTTUsername = "NAVTEL_MQTT_USERNAME"
	EnvMQTTPassword = "NAVTEL_MQTT_PASSWORD"
	EnvMQTTUseTLS   = "NAVTEL_MQTT_USE_TLS"
	EnvMQTTQoS      = "NAVTEL_MQTT_QOS"
	EnvBaseTopic    = "NAVTEL_BASE_TOPIC"
	EnvLogTopic     = "NAVTEL_LOG_TOPIC"
	// Local state and observability
	EnvStateDB     = "NAVTEL_STATE_DB"
	EnvMetricsAddr = "NAVTEL_METRICS_ADDR"
	// Devices
	EnvGPSDevice          = "NAVTEL_GPS_DEVICE"
	EnvIIORoot            = "NAVTEL_IIO_ROOT"
	EnvRCIORoot           = "NAVTEL_RCIO_ROOT"
	EnvSkipAutopilotCheck = "NAVTEL_SKIP_AUTOPILOT_CHECK"
	// Live monitor
	EnvMonitorAddr          = "NAVTEL_MONITOR_ADDR"
	EnvMonitorJWTSecret     = "NAVTEL_MONITOR_JWT_SECRET"
	EnvMonitorJWTExpiration = "NAVTEL_MONITOR_JWT_EXPIRATION"
)

// Default values
const (
	DefaultMQTTBroker   = "tcp://localhost:1883"
	DefaultMQTTClientID = ""
	DefaultMQTTUseTLS   = false
	DefaultMQTTQoS      = 0
	DefaultBaseTopic    = "telemetry/sensors"
	DefaultLogTopic     = ""
	DefaultStateDB      = "navtelemetry.db"
	DefaultMetricsAddr  = ""
	DefaultGPSDevice    = "/dev/spidev0.0"
	DefaultIIORoot      = "/sys/bus/iio/devices"
	DefaultRCIORoot     = "/sys/kernel/rcio"
	DefaultMonitorAddr  = ":8080"

	DefaultMonitorJWTExpiration = 24 * time.Hour
)

// Config holds the deployment settings read from the .env file.
// It is immutable after Load; all access goes through getters.
type Config struct {
	mu       sync.RWMutex
	filePath string

	// MQTT settings
	mqttBroker   string
	mqttClientID string
	mqttUsername string
	mqttPassword string
	mqttUseTLS   bool
	mqttQoS      byte
	baseTopic    string
	logTopic     string

	stateDB     string
	metricsAddr string

	// Device settings
	gpsDevice          string
	iioRoot            string
	rcioRoot           string
	skipAutopilotCheck bool

	// Monitor settings
	monitorAddr          string
	monitorJWTSecret     string
	monitorJWTExpiration time.Duration
}

// Load reads configuration from a .env file. A missing file is not an
// error: every key has a default. The file is never written back.
func Load(filePath string) (*Config, error) {
	cfg := &Config{
		filePath: filePath,
	}

	cfg.setDefaults()

	if err := cfg.loadFromFile(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// setDefaults initializes all fields with default values.
func (c *Config) setDefaults() {
	c.mqttBroker = DefaultMQTTBroker
	c.mqttClientID = DefaultMQTTClientID
	c.mqttUseTLS = DefaultMQTTUseTLS
	c.mqttQoS = DefaultMQTTQoS
	c.baseTopic = DefaultBaseTopic
	c.logTopic = DefaultLogTopic
	c.stateDB = DefaultStateDB
	c.metricsAddr = DefaultMetricsAddr
	c.gpsDevice = DefaultGPSDevice
	c.iioRoot = DefaultIIORoot
	c.rcioRoot = DefaultRCIORoot
	c.monitorAddr = DefaultMonitorAddr
	c.monitorJWTExpiration = DefaultMonitorJWTExpiration
}

// loadFromFile reads configuration from .env file.
func (c *Config) loadFromFile() error {
	file, err := os.Open(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	values, err := ParseEnvFile(file)
	if err != nil {
		return err
	}

	return c.applyValues(values)
}

// applyValues applies parsed key-value pairs to config.
func (c *Config) applyValues(values map[string]string) error {
	if v, ok := values[EnvMQTTBroker]; ok && v != "" {
		c.mqttBroker = v
	}
	if v, ok := values[EnvMQTTClientID]; ok {
		c.mqttClientID = v
	}
	if v, ok := values[EnvMQTTUsername]; ok {
		c.mqttUsername = v
	}
	if v, ok := values[EnvMQTTPassword]; ok {
		c.mqttPassword = v
	}
	if v, ok := values[EnvMQTTUseTLS]; ok {
		c.mqttUseTLS = parseBool(v)
	}
	if v, ok := values[EnvMQTTQoS]; ok && v != "" {
		qos, err := strconv.Atoi(v)
		if err != nil || qos < 0 || qos > 2 {
			return fmt.Errorf("%s must be 0, 1 or 2, got %q", EnvMQTTQoS, v)
		}
		c.mqttQoS = byte(qos)
	}
	if v, ok := values[EnvBaseTopic]; ok && v != "" {
		c.baseTopic = strings.TrimSuffix(v, "/")
	}
	if v, ok := values[EnvLogTopic]; ok {
		c.logTopic = v
	}

	if v, ok := values[EnvStateDB]; ok {
		c.stateDB = v
	}
	if v, ok := values[EnvMetricsAddr]; ok {
		c.metricsAddr = v
	}

	if v, ok := values[EnvGPSDevice]; ok && v != "" {
		c.gpsDevice = v
	}
	if v, ok := values[EnvIIORoot]; ok && v != "" {
		c.iioRoot = v
	}
	if v, ok := values[EnvRCIORoot]; ok && v != "" {
		c.rcioRoot = v
	}
	if v, ok := values[EnvSkipAutopilotCheck]; ok {
		c.skipAutopilotCheck = parseBool(v)
	}

	if v, ok := values[EnvMonitorAddr]; ok && v != "" {
		c.monitorAddr = v
	}
	if v, ok := values[EnvMonitorJWTSecret]; ok {
		c.monitorJWTSecret = v
	}
	if v, ok := values[EnvMonitorJWTExpiration]; ok && v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			c.monitorJWTExpiration = time.Duration(seconds) * time.Second
		}
	}

	return nil
}

// validate checks if configuration is valid.
func (c *Config) validate() error {
	u, err := url.Parse(c.mqttBroker)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid MQTT broker address: %s", c.mqttBroker)
	}
	switch u.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
	default:
		return fmt.Errorf("unsupported MQTT broker scheme: %s", u.Scheme)
	}

	if strings.ContainsAny(c.baseTopic, "#+") {
		return errors.New("base topic cannot contain MQTT wildcards")
	}
	if c.logTopic != "" && strings.ContainsAny(c.logTopic, "#+") {
		return errors.New("log topic cannot contain MQTT wildcards")
	}

	if c.metricsAddr != "" {
		if err := validateListenAddr(c.metricsAddr); err != nil {
			return fmt.Errorf("metrics address: %w", err)
		}
	}
	if err := validateListenAddr(c.monitorAddr); err != nil {
		return fmt.Errorf("monitor address: %w", err)
	}

	if c.monitorJWTExpiration < time.Minute {
		return errors.New("JWT expiration must be at least 1 minute")
	}
	if c.monitorJWTExpiration > 365*24*time.Hour {
		return errors.New("JWT expiration cannot exceed 1 year")
	}

	return nil
}

// validateListenAddr checks a host:port listen address.
func validateListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %s", addr)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 1 || portNum > 65535 {
		return fmt.Errorf("invalid port number: %s", port)
	}
	return nil
}

// Getters (thread-safe)

// FilePath returns the path to the .env file.
func (c *Config) FilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filePath
}

// MQTTBroker returns the MQTT broker address.
func (c *Config) MQTTBroker() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttBroker
}

// MQTTClientID returns the MQTT client ID.
func (c *Config) MQTTClientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttClientID
}

// MQTTUsername returns the MQTT username.
func (c *Config) MQTTUsername() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttUsername
}

// MQTTPassword returns the MQTT password.
func (c *Config) MQTTPassword() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttPassword
}

// MQTTUseTLS returns whether TLS is enabled for MQTT.
func (c *Config) MQTTUseTLS() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttUseTLS
}

// MQTTQoS returns the QoS used for telemetry payloads.
func (c *Config) MQTTQoS() byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttQoS
}

// BaseTopic returns the prefix of every telemetry topic.
func (c *Config) BaseTopic() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseTopic
}

// LogTopic returns the topic log lines are mirrored to, or "".
func (c *Config) LogTopic() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logTopic
}

// StateDB returns the topic registry path, or "" to run without one.
func (c *Config) StateDB() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateDB
}

// MetricsAddr returns the metrics listen address, or "" when disabled.
func (c *Config) MetricsAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metricsAddr
}

// GPSDevice returns the receiver's device node.
func (c *Config) GPSDevice() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gpsDevice
}

// IIORoot returns the IIO sysfs root.
func (c *Config) IIORoot() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.iioRoot
}

// RCIORoot returns the RCIO sysfs root.
func (c *Config) RCIORoot() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rcioRoot
}

// SkipAutopilotCheck returns whether the startup autopilot check is skipped.
func (c *Config) SkipAutopilotCheck() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.skipAutopilotCheck
}

// MonitorAddr returns the live monitor listen address.
func (c *Config) MonitorAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.monitorAddr
}

// MonitorJWTSecret returns the monitor token signing secret.
func (c *Config) MonitorJWTSecret() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.monitorJWTSecret
}

// MonitorJWTExpiration returns the lifetime of minted monitor tokens.
func (c *Config) MonitorJWTExpiration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.monitorJWTExpiration
}

// Helper functions

// parseBool parses a boolean string value.
// Accepts: true, false, 1, 0, yes, no, on (case-insensitive)
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// String returns a string representation of the config (without secrets).
func (c *Config) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	secretDisplay := "[not set]"
	if c.monitorJWTSecret != "" {
		secretDisplay = "[set]"
	}

	return fmt.Sprintf(
		"Config{Broker: %q, BaseTopic: %q, QoS: %d, StateDB: %q, MetricsAddr: %q, MonitorAddr: %q, MonitorJWTSecret: %s}",
		c.mqttBroker, c.baseTopic, c.mqttQoS, c.stateDB, c.metricsAddr, c.monitorAddr, secretDisplay,
	)
}
