package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// ConsumerConfig holds configuration for the NATS event consumer.
type ConsumerConfig struct {
	URL           string
	SubjectFilter string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConsumerConfig returns default NATS consumer configuration.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		SubjectFilter: "karma.quest.>",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// busEnvelope mirrors the JSON the outbox publisher puts on the bus.
type busEnvelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	UserID    string          `json:"userId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// EventConsumer subscribes to the quest event subjects and re-broadcasts
// each event to the websocket connections of the user it concerns.
type EventConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	sub               *nats.Subscription
	config            ConsumerConfig
}

// NewEventConsumer connects to NATS and prepares a consumer.
func NewEventConsumer(cm *ConnectionManager, config ConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &EventConsumer{
		connectionManager: cm,
		nc:                nc,
		config:            config,
	}, nil
}

// Start subscribes to the configured subjects.
func (ec *EventConsumer) Start() error {
	sub, err := ec.nc.Subscribe(ec.config.SubjectFilter, ec.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", ec.config.SubjectFilter, err)
	}
	ec.sub = sub

	log.Info().Str("subject", ec.config.SubjectFilter).Msg("gateway event consumer started")
	return nil
}

// Stop unsubscribes and closes the NATS connection.
func (ec *EventConsumer) Stop() {
	if ec.sub != nil {
		_ = ec.sub.Unsubscribe()
	}
	ec.nc.Close()
	log.Info().Msg("gateway event consumer stopped")
}

func (ec *EventConsumer) handleMessage(msg *nats.Msg) {
	event, userID, err := parseBusMessage(msg.Data)
	if err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to parse bus message")
		return
	}

	ec.connectionManager.BroadcastToUser(userID, event)
}

func parseBusMessage(data []byte) (*QuestEvent, uuid.UUID, error) {
	var envelope busEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, uuid.Nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	userID, err := uuid.Parse(envelope.UserID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("invalid user id %q: %w", envelope.UserID, err)
	}

	return &QuestEvent{
		ID:        envelope.EventID,
		UserID:    envelope.UserID,
		Type:      envelope.EventType,
		Timestamp: envelope.Timestamp,
		Data:      envelope.Payload,
	}, userID, nil
}
