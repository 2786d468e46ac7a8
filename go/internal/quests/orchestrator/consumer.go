package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/karmahq/questline/go/internal/events"
)

const (
	natsMaxReconnects = -1
	natsReconnectWait = 2 * time.Second
)

// busEnvelope mirrors the JSON the outbox publisher puts on the bus.
type busEnvelope struct {
	EventType string          `json:"eventType"`
	UserID    string          `json:"userId"`
	Payload   json.RawMessage `json:"payload"`
}

// ConnectBus subscribes the orchestrator to quest lifecycle events so timers
// follow assignments and completions made anywhere in the system:
// QuestAssigned schedules the deadline, QuestCompleted cancels it.
func (o *Orchestrator) ConnectBus(ctx context.Context, natsURL, subjectPrefix string) error {
	opts := []nats.Option{
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
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

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	o.nc = nc

	subject := subjectPrefix + ".quest.>"
	if _, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		if err := o.processEvent(ctx, msg.Data); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to process quest event")
		}
	}); err != nil {
		nc.Close()
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	log.Info().Str("subject", subject).Msg("orchestrator subscribed to quest events")
	return nil
}

func (o *Orchestrator) processEvent(ctx context.Context, data []byte) error {
	var envelope busEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	switch envelope.EventType {
	case events.EventTypeQuestAssigned:
		var payload events.QuestAssignedPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal QuestAssigned payload: %w", err)
		}
		if payload.ExpiresAt != nil {
			o.Schedule(ctx, payload.QuestIDStr, *payload.ExpiresAt)
		}

	case events.EventTypeQuestComplete:
		var payload events.QuestCompletedPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal QuestCompleted payload: %w", err)
		}
		o.Cancel(payload.QuestIDStr)
	}
	return nil
}

// Close gracefully closes the orchestrator's bus connection.
func (o *Orchestrator) Close() error {
	if o.nc != nil {
		o.nc.Close()
	}
	return nil
}
