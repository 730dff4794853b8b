package ports

import (
	"context"
	"time"

	"github.com/veriford/trustcore/core"
)

// EventFilter narrows an audit listing. Zero values mean "no constraint".
type EventFilter struct {
	Outcomes []core.Outcome
	From     time.Time
	To       time.Time
	Limit    int
}

// AuditStore is the append-only record of login attempts. Insertion order is
// temporal order; records are never updated or deleted, annotation only
// marks review state.
type AuditStore interface {
	// Record appends one event. Failures map to core.ErrAuditUnavailable.
	Record(ctx context.Context, event *core.LoginEvent) error

	// List returns events matching the filter, ordered by timestamp ascending.
	List(ctx context.Context, filter EventFilter) ([]*core.LoginEvent, error)

	// Annotate marks an event as reviewed with core.AnnotationLegitimate or
	// core.AnnotationFraudulent. Returns false when the event does not exist.
	Annotate(ctx context.Context, eventID, annotation string) (bool, error)

	// BlockedStats counts events per outcome since the given time.
	BlockedStats(ctx context.Context, since time.Time) (map[core.Outcome]int, error)

	// PotentialFalsePositives returns blocked events since the given time
	// whose IP later completed an allowed login, in audit order.
	PotentialFalsePositives(ctx context.Context, since time.Time) ([]*core.LoginEvent, error)
}
