package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// WSTokenStore manages WebSocket tickets.
// Tickets are one-time use and expire after a short TTL
type WSTokenStore struct {
	mu     sync.Mutex
	tokens map[string]wsTokenEntry
	now    func() time.Time
}

type wsTokenEntry struct {
	viewer    string
	createdAt time.Time
}

const (
	// WSTokenTTL is how long a ticket is valid
	WSTokenTTL = 30 * time.Second
	// WSTokenLength is the byte length of the ticket (hex encoded to 2x)
	WSTokenLength = 32
)

// NewWSTokenStore creates a new WebSocket ticket store
func NewWSTokenStore() *WSTokenStore {
	return &WSTokenStore{
		tokens: make(map[string]wsTokenEntry),
		now:    time.Now,
	}
}

// Generate creates a new one-time ticket for a viewer
func (s *WSTokenStore) Generate(viewer string) (string, error) {
	bytes := make([]byte, WSTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(bytes)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanup()
	s.tokens[token] = wsTokenEntry{viewer: viewer, createdAt: s.now()}

	return token, nil
}

// Validate consumes a ticket and returns the viewer it was issued to
func (s *WSTokenStore) Validate(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.tokens[token]
	if !exists {
		return "", false
	}
	delete(s.tokens, token)

	if s.now().Sub(entry.createdAt) > WSTokenTTL {
		return "", false
	}
	return entry.viewer, true
}

// Len returns the number of outstanding tickets
func (s *WSTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// cleanup removes expired tickets. Called with mu held.
func (s *WSTokenStore) cleanup() {
	now := s.now()
	for token, entry := range s.tokens {
		if now.Sub(entry.createdAt) > WSTokenTTL {
			delete(s.tokens, token)
		}
	}
}
