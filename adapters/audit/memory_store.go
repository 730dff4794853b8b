package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/ports"
)

// MemoryStore is an in-memory implementation of the AuditStore interface.
// Slice order is insertion order, which is the audit order.
type MemoryStore struct {
	events []*core.LoginEvent
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory audit store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends one event, assigning its identity
func (s *MemoryStore) Record(ctx context.Context, event *core.LoginEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	copied := *event
	s.events = append(s.events, &copied)
	return nil
}

// List returns events matching the filter, in audit order
func (s *MemoryStore) List(ctx context.Context, filter ports.EventFilter) ([]*core.LoginEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.LoginEvent
	for _, e := range s.events {
		if !matches(e, filter) {
			continue
		}
		copied := *e
		out = append(out, &copied)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func matches(e *core.LoginEvent, filter ports.EventFilter) bool {
	if len(filter.Outcomes) > 0 {
		found := false
		for _, o := range filter.Outcomes {
			if e.Outcome == o {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && e.Timestamp.After(filter.To) {
		return false
	}
	return true
}

// Annotate marks an event as reviewed
func (s *MemoryStore) Annotate(ctx context.Context, eventID, annotation string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.ID == eventID {
			now := time.Now().UTC()
			e.Annotated = true
			e.Annotation = annotation
			e.AnnotatedAt = &now
			return true, nil
		}
	}
	return false, nil
}

// PotentialFalsePositives returns blocked events whose IP later logged in
// successfully, suggesting the block hit a legitimate user
func (s *MemoryStore) PotentialFalsePositives(ctx context.Context, since time.Time) ([]*core.LoginEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.LoginEvent
	for i, e := range s.events {
		if !e.Outcome.Blocked() || e.UserIP == "" || e.Timestamp.Before(since) {
			continue
		}
		for _, later := range s.events[i+1:] {
			if later.Allowed && later.UserIP == e.UserIP && later.Timestamp.After(e.Timestamp) {
				copied := *e
				out = append(out, &copied)
				break
			}
		}
	}
	return out, nil
}

// BlockedStats counts events per outcome since the given time
func (s *MemoryStore) BlockedStats(ctx context.Context, since time.Time) (map[core.Outcome]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[core.Outcome]int)
	for _, e := range s.events {
		if e.Timestamp.Before(since) {
			continue
		}
		stats[e.Outcome]++
	}
	return stats, nil
}
