package monitor

import (
	"strings"
	"sync"
	"time"

	"navtelemetry/internal/codec"
)

// Entry is one payload received from the broker.
type Entry struct {
	ID         int64         `json:"id"`
	Topic      string        `json:"topic"`
	Sensor     string        `json:"sensor"`
	ReceivedAt time.Time     `json:"received_at"`
	Message    codec.Message `json:"message"`
}

// Section names the pager line a payload belongs to. Both inertial units
// share a topic and are told apart by their name field.
func Section(topic string, msg codec.Message) string {
	switch topicKind(topic) {
	case "imu":
		name, _ := msg.Get("name")
		if msg.Unavailable {
			name = strings.TrimPrefix(msg.Label, "IMU")
		}
		if name = strings.TrimSpace(name); name == "" {
			return "IMU"
		}
		return "IMU/" + name
	case "adc":
		return "ADC"
	case "barometer":
		return "Barometer"
	case "gps":
		return "GPS"
	case "rcinput":
		return "RCInput"
	case "rcinput/axes":
		return "RCInput/axes"
	default:
		return topicKind(topic)
	}
}

// topicKind returns the last path segment of topic, keeping "rcinput/axes"
// whole.
func topicKind(topic string) string {
	if strings.HasSuffix(topic, "/rcinput/axes") {
		return "rcinput/axes"
	}
	if idx := strings.LastIndex(topic, "/"); idx != -1 {
		return topic[idx+1:]
	}
	return topic
}

// Store holds entries in memory with a fixed capacity (ring buffer)
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	latest  map[string]Entry // by section
	maxSize int
	nextID  int64
}

// NewStore creates a new store with specified max capacity
func NewStore(maxSize int) *Store {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Store{
		entries: make([]Entry, 0, maxSize),
		latest:  make(map[string]Entry),
		maxSize: maxSize,
	}
}

// Add stores a parsed payload and returns the stored entry
func (s *Store) Add(topic string, msg codec.Message, at time.Time) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	entry := Entry{
		ID:         s.nextID,
		Topic:      topic,
		Sensor:     Section(topic, msg),
		ReceivedAt: at,
		Message:    msg,
	}

	// Ring buffer: remove oldest if at max capacity
	if len(s.entries) >= s.maxSize {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)
	s.latest[entry.Sensor] = entry
	return entry
}

// GetLast returns the last N entries (newest first)
func (s *Store) GetLast(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.entries) || n <= 0 {
		n = len(s.entries)
	}

	result := make([]Entry, n)
	for i := 0; i < n; i++ {
		result[i] = s.entries[len(s.entries)-1-i]
	}
	return result
}

// GetSince returns entries newer than the given ID (newest first)
func (s *Store) GetSince(lastID int64) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].ID <= lastID {
			break
		}
		result = append(result, s.entries[i])
	}
	return result
}

// Latest returns the newest entry of every section, keyed by section.
func (s *Store) Latest() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]Entry, len(s.latest))
	for k, v := range s.latest {
		result[k] = v
	}
	return result
}

// Count returns the number of buffered entries
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// LastID returns the ID of the most recent entry
func (s *Store) LastID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}
