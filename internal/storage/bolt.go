package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// topicsBucket stores announced topics keyed by topic name
const topicsBucket = "_topics"

// BoltRegistry is a bbolt implementation of the Registry interface
type BoltRegistry struct {
	db *bbolt.DB
}

// NewBoltRegistry opens the registry file, creating it if needed
func NewBoltRegistry(path string) (*BoltRegistry, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(topicsBucket)); err != nil {
			return fmt.Errorf("failed to create topics bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltRegistry{db: db}, nil
}

// AddTopic records or refreshes a topic
func (s *BoltRegistry) AddTopic(rec TopicRecord) error {
	if rec.Topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(topicsBucket))
		if bucket == nil {
			return fmt.Errorf("topics bucket not found")
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal topic record: %w", err)
		}

		return bucket.Put([]byte(rec.Topic), data)
	})
}

// GetTopic returns the record for topic
func (s *BoltRegistry) GetTopic(topic string) (TopicRecord, error) {
	var rec TopicRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(topicsBucket))
		if bucket == nil {
			return fmt.Errorf("topics bucket not found")
		}

		data := bucket.Get([]byte(topic))
		if data == nil {
			return ErrNotFound
		}

		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal topic record: %w", err)
		}
		return nil
	})

	return rec, err
}

// RemoveTopic forgets a topic
func (s *BoltRegistry) RemoveTopic(topic string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(topicsBucket))
		if bucket == nil {
			return fmt.Errorf("topics bucket not found")
		}

		return bucket.Delete([]byte(topic))
	})
}

// Topics returns every record in key order
func (s *BoltRegistry) Topics() ([]TopicRecord, error) {
	var records []TopicRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(topicsBucket))
		if bucket == nil {
			return fmt.Errorf("topics bucket not found")
		}

		return bucket.ForEach(func(k, v []byte) error {
			var rec TopicRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil // Skip corrupted entries
			}
			records = append(records, rec)
			return nil
		})
	})

	return records, err
}

// Close closes the database
func (s *BoltRegistry) Close() error {
	return s.db.Close()
}
