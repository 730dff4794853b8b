package ports

import (
	"context"

	"github.com/veriford/trustcore/core"
)

// EventPublisher notifies other instances about login outcomes
type EventPublisher interface {
	PublishLogin(ctx context.Context, event *core.LoginEvent) error
}
