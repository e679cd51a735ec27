// Package storage persists the small amount of state the publisher needs
// across restarts: which topics it announced as online.
package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a topic is not registered.
var ErrNotFound = errors.New("topic not found")

// TopicRecord describes one announced publisher.
type TopicRecord struct {
	Topic       string    `json:"topic"`
	StatusTopic string    `json:"status_topic"`
	ClientID    string    `json:"client_id"`
	DeclaredAt  time.Time `json:"declared_at"`
}

// Registry remembers announced topics until they are retracted. Entries
// surviving a restart mark an unclean shutdown.
type Registry interface {
	// AddTopic records or refreshes a topic.
	AddTopic(rec TopicRecord) error

	// GetTopic returns the record for topic, or ErrNotFound.
	GetTopic(topic string) (TopicRecord, error)

	// RemoveTopic forgets a topic. Removing an unknown topic is not an error.
	RemoveTopic(topic string) error

	// Topics returns every record, ordered by topic.
	Topics() ([]TopicRecord, error)

	// Close closes the registry.
	Close() error
}
