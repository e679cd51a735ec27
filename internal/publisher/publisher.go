// Package publisher caches one messaging endpoint per topic.
package publisher

import (
	"log/slog"
	"sync"
)

// Endpoint sends payloads to the topic it was declared for.
type Endpoint interface {
	Send(payload []byte) error
}

// Session declares endpoints on the messaging backend. Declaration is
// expensive compared to Send.
type Session interface {
	DeclarePublisher(topic string) (Endpoint, error)
}

// Observer receives cache events. All methods must be safe for concurrent use.
type Observer interface {
	EndpointDeclared(topic string)
	DeclareFailed(topic string)
	Published(topic string)
	PublishFailed(topic string)
}

// Cache maps topics to endpoints, declaring each endpoint on first use.
type Cache struct {
	session  Session
	logger   *slog.Logger
	observer Observer

	mu        sync.Mutex
	endpoints map[string]Endpoint
}

// New returns a cache over session. A nil session means the session failed
// to open; the cache then reports not ready and every Publish fails.
func New(session Session, logger *slog.Logger) *Cache {
	return &Cache{
		session:   session,
		logger:    logger.With("component", "publisher"),
		endpoints: make(map[string]Endpoint),
	}
}

// SetObserver installs an observer. Call before the first Publish.
func (c *Cache) SetObserver(o Observer) {
	c.observer = o
}

// Ready reports whether the underlying session opened.
func (c *Cache) Ready() bool {
	return c.session != nil
}

// Publish sends payload to topic, declaring the endpoint if needed. It
// returns false when the session is not ready, the topic is empty, or the
// declaration or send fails.
func (c *Cache) Publish(topic string, payload []byte) bool {
	c.logger.Debug("Publishing", "topic", topic)
	if !c.Ready() {
		c.logger.Error("Cannot publish, no messaging session")
		return false
	}
	if topic == "" {
		c.logger.Error("Cannot publish, empty topic")
		return false
	}

	ep := c.endpoint(topic)
	if ep == nil {
		c.logger.Error("Failed to find or create publisher", "topic", topic)
		c.notify(func(o Observer) { o.PublishFailed(topic) })
		return false
	}

	if err := ep.Send(payload); err != nil {
		c.logger.Error("Failed to send", "topic", topic, "error", err)
		c.notify(func(o Observer) { o.PublishFailed(topic) })
		return false
	}

	c.logger.Debug("Published", "topic", topic)
	c.notify(func(o Observer) { o.Published(topic) })
	return true
}

// endpoint returns the cached endpoint for topic, declaring it on a miss.
// The lock covers only lookup, declaration and insertion. Failed
// declarations are not cached, so the next call retries.
func (c *Cache) endpoint(topic string) Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ep, ok := c.endpoints[topic]; ok {
		return ep
	}

	c.logger.Debug("Declaring publisher", "topic", topic)
	ep, err := c.session.DeclarePublisher(topic)
	if err != nil || ep == nil {
		c.logger.Error("Failed to declare publisher", "topic", topic, "error", err)
		c.notify(func(o Observer) { o.DeclareFailed(topic) })
		return nil
	}

	c.endpoints[topic] = ep
	c.logger.Info("Declared publisher", "topic", topic)
	c.notify(func(o Observer) { o.EndpointDeclared(topic) })
	return ep
}

// Topics returns the topics with a live endpoint.
func (c *Cache) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	topics := make([]string, 0, len(c.endpoints))
	for t := range c.endpoints {
		topics = append(topics, t)
	}
	return topics
}

// Close drops every endpoint. Endpoints are released by the session itself
// when it closes.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.endpoints)
}

func (c *Cache) notify(fn func(Observer)) {
	if c.observer != nil {
		fn(c.observer)
	}
}
