package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// EventPublisher publishes outbox events to a message bus.
type EventPublisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}

// eventEnvelope is the wire format published on the bus.
type eventEnvelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	UserID    string          `json:"userId"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NATSPublisher publishes events to NATS subjects karma.quest.<EventType>.
type NATSPublisher struct {
	conn          *nats.Conn
	subjectPrefix string
}

func NewNATSPublisher(conn *nats.Conn, subjectPrefix string) *NATSPublisher {
	return &NATSPublisher{
		conn:          conn,
		subjectPrefix: subjectPrefix,
	}
}

func (p *NATSPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	subject := fmt.Sprintf("%s.quest.%s", p.subjectPrefix, event.EventType)

	envelope := eventEnvelope{
		EventID:   event.ID.String(),
		EventType: event.EventType,
		UserID:    event.UserID.String(),
		Timestamp: event.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Payload:   event.Payload,
	}

	messageBytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.conn.Publish(subject, messageBytes); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", event.ID.String()).
		Int("size", len(messageBytes)).
		Msg("published event to NATS")
	return nil
}

// MockPublisher is a simple logging publisher for development/testing
type MockPublisher struct{}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (p *MockPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", event.EventType).
		Str("user_id", event.UserID.String()).
		Msg("publishing event")
	return nil
}
