package store

import (
	"context"
	"sync"

	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/ports"
)

// MemoryStore is an in-memory implementation of the TokenStore interface
type MemoryStore struct {
	sessions map[string]*core.CredentialSet
	offline  map[string]core.Credential
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory token store
func NewMemoryStore() ports.TokenStore {
	return &MemoryStore{
		sessions: make(map[string]*core.CredentialSet),
		offline:  make(map[string]core.Credential),
	}
}

// SaveSession atomically replaces the credential set for a session
func (s *MemoryStore) SaveSession(ctx context.Context, sessionID string, set *core.CredentialSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *set
	s.sessions[sessionID] = &copied
	return nil
}

// GetSession returns the credential set for a session
func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (*core.CredentialSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.sessions[sessionID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}

	copied := *set
	return &copied, nil
}

// DeleteSession destroys the session container; offline credentials survive
func (s *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// SaveOffline persists an offline credential keyed by user identity
func (s *MemoryStore) SaveOffline(ctx context.Context, userID string, cred core.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offline[userID] = cred
	return nil
}

// GetOffline returns the offline credential for a user
func (s *MemoryStore) GetOffline(ctx context.Context, userID string) (core.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.offline[userID]
	if !ok {
		return core.Credential{}, core.ErrSessionNotFound
	}

	return cred, nil
}

// DeleteOffline removes a user's offline credential
func (s *MemoryStore) DeleteOffline(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.offline, userID)
	return nil
}
