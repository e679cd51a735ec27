package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"navtelemetry/internal/publisher"
	"navtelemetry/internal/storage"
)

// Status payloads announced on <topic>/status.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// StatusTopicSuffix is the last segment of every status topic.
const StatusTopicSuffix = "status"

// statusQoS is used for every status announcement.
const statusQoS byte = 1

// ErrSessionClosed is returned by endpoints after Close.
var ErrSessionClosed = errors.New("messaging session closed")

// transport is the part of Client a Session uses.
type transport interface {
	PublishWithQoS(topic string, qos byte, retained bool, payload interface{}) error
	PublishNoWait(topic string, qos byte, payload interface{})
	Disconnect()
}

// Session is an open connection on which publishers are declared.
//
// Declaring a publisher announces it with a retained "online" status and
// waits for the broker acknowledgement; Close retracts every announcement.
type Session struct {
	client   transport
	registry storage.Registry
	config   Config
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	declared []string
	closed   bool
}

// Open connects to the broker and announces the process as online. A
// non-nil registry is used to retract announcements left behind by a
// previous run that did not shut down cleanly.
func Open(cfg Config, registry storage.Registry, logger *slog.Logger) (*Session, error) {
	client, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(); err != nil {
		return nil, err
	}

	s := newSession(client, client.GetConfig(), registry, logger)
	if err := s.start(); err != nil {
		client.Disconnect()
		return nil, err
	}
	return s, nil
}

func newSession(t transport, cfg Config, registry storage.Registry, logger *slog.Logger) *Session {
	return &Session{
		client:   t,
		registry: registry,
		config:   cfg,
		logger:   logger.With("component", "mqtt"),
		now:      time.Now,
	}
}

func (s *Session) start() error {
	s.clearStale()
	if s.config.BaseTopic == "" {
		return nil
	}
	if err := s.client.PublishWithQoS(s.config.StatusTopic(), statusQoS, true, StatusOnline); err != nil {
		return fmt.Errorf("failed to announce session: %w", err)
	}
	return nil
}

// clearStale marks topics from an unclean shutdown offline.
func (s *Session) clearStale() {
	if s.registry == nil {
		return
	}
	stale, err := s.registry.Topics()
	if err != nil {
		s.logger.Warn("Failed to read topic registry", "error", err)
		return
	}
	for _, rec := range stale {
		s.logger.Warn("Clearing stale publisher status", "topic", rec.Topic, "declared_at", rec.DeclaredAt)
		if err := s.client.PublishWithQoS(rec.StatusTopic, statusQoS, true, StatusOffline); err != nil {
			s.logger.Warn("Failed to clear stale status", "topic", rec.Topic, "error", err)
			continue
		}
		if err := s.registry.RemoveTopic(rec.Topic); err != nil {
			s.logger.Warn("Failed to forget stale topic", "topic", rec.Topic, "error", err)
		}
	}
}

// DeclarePublisher announces a publisher for topic and returns its endpoint.
func (s *Session) DeclarePublisher(topic string) (publisher.Endpoint, error) {
	if topic == "" {
		return nil, errors.New("topic cannot be empty")
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrSessionClosed
	}

	statusTopic := topic + "/" + StatusTopicSuffix
	if err := s.client.PublishWithQoS(statusTopic, statusQoS, true, StatusOnline); err != nil {
		return nil, fmt.Errorf("failed to declare publisher for %s: %w", topic, err)
	}

	if s.registry != nil {
		rec := storage.TopicRecord{
			Topic:       topic,
			StatusTopic: statusTopic,
			ClientID:    s.config.ClientID,
			DeclaredAt:  s.now().UTC(),
		}
		if err := s.registry.AddTopic(rec); err != nil {
			s.logger.Warn("Failed to record topic", "topic", topic, "error", err)
		}
	}

	s.mu.Lock()
	s.declared = append(s.declared, topic)
	s.mu.Unlock()

	return &Endpoint{session: s, topic: topic}, nil
}

// LogWriter returns an io.Writer publishing each write to topic without
// waiting for delivery.
func (s *Session) LogWriter(topic string) *LogWriter {
	return &LogWriter{client: s.client, topic: topic}
}

// Close retracts every announcement and disconnects.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	declared := s.declared
	s.declared = nil
	s.mu.Unlock()

	var errs []error
	for _, topic := range declared {
		if err := s.client.PublishWithQoS(topic+"/"+StatusTopicSuffix, statusQoS, true, StatusOffline); err != nil {
			errs = append(errs, err)
			continue
		}
		if s.registry != nil {
			if err := s.registry.RemoveTopic(topic); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if s.config.BaseTopic != "" {
		if err := s.client.PublishWithQoS(s.config.StatusTopic(), statusQoS, true, StatusOffline); err != nil {
			errs = append(errs, err)
		}
	}

	s.client.Disconnect()
	return errors.Join(errs...)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Endpoint publishes payloads to one declared topic.
type Endpoint struct {
	session *Session
	topic   string
}

// Topic returns the topic the endpoint was declared for.
func (e *Endpoint) Topic() string {
	return e.topic
}

// Send publishes payload at the session's telemetry QoS.
func (e *Endpoint) Send(payload []byte) error {
	if e.session.isClosed() {
		return ErrSessionClosed
	}
	return e.session.client.PublishWithQoS(e.topic, e.session.config.QoS, false, payload)
}
