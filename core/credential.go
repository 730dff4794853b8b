package core

import (
	"fmt"
	"time"
)

// CredentialKind identifies one of the three credential tiers.
type CredentialKind string

const (
	CredentialAccess  CredentialKind = "access"
	CredentialRefresh CredentialKind = "refresh"
	CredentialOffline CredentialKind = "offline"
)

// Credential is a single opaque token plus its expiry metadata
type Credential struct {
	Kind     CredentialKind
	Value    string
	IssuedAt time.Time
	TTL      time.Duration
}

// ExpiresAt returns the absolute expiry time of the credential
func (c Credential) ExpiresAt() time.Time {
	return c.IssuedAt.Add(c.TTL)
}

// Expired reports whether the credential is unusable at the given time.
// A credential with no value is always expired.
func (c Credential) Expired(now time.Time) bool {
	if c.Value == "" {
		return true
	}
	return now.After(c.ExpiresAt())
}

// CredentialSet holds the three-tier credential set for a session.
// Access and Refresh live with the session; Offline may be empty when the
// identity provider did not grant one.
type CredentialSet struct {
	Access  Credential
	Refresh Credential
	Offline Credential
}

// NewCredentialSet validates tier kinds and the TTL ordering
// access < refresh < offline. Offline is optional.
func NewCredentialSet(access, refresh, offline Credential) (*CredentialSet, error) {
	if access.Kind != CredentialAccess || refresh.Kind != CredentialRefresh {
		return nil, fmt.Errorf("credential set: wrong tier kinds %q/%q", access.Kind, refresh.Kind)
	}
	if access.TTL >= refresh.TTL {
		return nil, fmt.Errorf("credential set: access ttl %s must be shorter than refresh ttl %s", access.TTL, refresh.TTL)
	}
	if offline.Value != "" {
		if offline.Kind != CredentialOffline {
			return nil, fmt.Errorf("credential set: wrong offline kind %q", offline.Kind)
		}
		if refresh.TTL >= offline.TTL {
			return nil, fmt.Errorf("credential set: refresh ttl %s must be shorter than offline ttl %s", refresh.TTL, offline.TTL)
		}
	}
	return &CredentialSet{Access: access, Refresh: refresh, Offline: offline}, nil
}

// HasOffline reports whether the set carries an offline-tier credential.
func (s *CredentialSet) HasOffline() bool {
	return s.Offline.Value != ""
}
