// Package session tracks the association between opaque client-held tokens
// and authenticated user ids. The contract is small on purpose: a token can
// be created, resolved and destroyed. Anything satisfying Store (an external
// cache, a signed-cookie scheme) can replace the in-memory implementation.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Store is the server-side session backend.
type Store interface {
	// Create issues a fresh opaque token bound to userID.
	Create(userID int64) (string, error)
	// Get resolves a token to its user id. ok is false for unknown or
	// expired tokens.
	Get(token string) (userID int64, ok bool)
	// Destroy drops the token. Destroying an unknown token is a no-op.
	Destroy(token string)
	// PurgeExpired removes sessions past their deadline.
	PurgeExpired()
}

type entry struct {
	userID    int64
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded in-process Store with sliding expiry:
// every successful Get pushes the deadline out by the configured TTL.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]entry
	now      func() time.Time
}

// NewMemoryStore creates an empty store whose sessions expire after ttl of
// inactivity.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		sessions: make(map[string]entry),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(userID int64) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.sessions[token] = entry{userID: userID, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return token, nil
}

func (s *MemoryStore) Get(token string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[token]
	if !ok {
		return 0, false
	}
	if s.now().After(e.expiresAt) {
		delete(s.sessions, token)
		return 0, false
	}
	e.expiresAt = s.now().Add(s.ttl)
	s.sessions[token] = e
	return e.userID, true
}

func (s *MemoryStore) Destroy(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

func (s *MemoryStore) PurgeExpired() {
	now := s.now()
	s.mu.Lock()
	for token, e := range s.sessions {
		if now.After(e.expiresAt) {
			delete(s.sessions, token)
		}
	}
	s.mu.Unlock()
}

// randomToken returns 32 bytes from crypto/rand as a hex string.
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
