package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/ports"
)

// LoginMessage is the wire form of a login outcome notification.
// Score and labels stay out of it; they are audit-only.
type LoginMessage struct {
	EventID   string `json:"event_id"`
	Outcome   string `json:"outcome"`
	UserIP    string `json:"user_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Email     string `json:"email,omitempty"`
	Timestamp string `json:"timestamp"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     "trustcore.login",
	}
}

// PublishLogin publishes a login outcome event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, event *core.LoginEvent) error {
	msg := LoginMessage{
		EventID:   event.ID,
		Outcome:   string(event.Outcome),
		UserIP:    event.UserIP,
		UserAgent: event.UserAgent,
		Email:     event.Email,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.publisher.Publish(p.topic, message.NewMessage(event.ID, payload)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
