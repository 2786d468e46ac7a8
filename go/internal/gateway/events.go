package gateway

import (
	"encoding/json"
	"time"

	"github.com/karmahq/questline/go/internal/events"
)

// QuestEvent is the envelope pushed to websocket clients.
type QuestEvent struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ParseEventPayload parses event data into the appropriate payload struct.
func ParseEventPayload(event *QuestEvent) (interface{}, error) {
	switch event.Type {
	case events.EventTypeQuestAssigned:
		var payload events.QuestAssignedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case events.EventTypeQuestComplete:
		var payload events.QuestCompletedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case events.EventTypeQuestExpired:
		var payload events.QuestExpiredPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case events.EventTypeKarmaAwarded:
		var payload events.KarmaAwardedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case events.EventTypePhotoUploaded:
		var payload events.PhotoUploadedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case events.EventTypeFriendAdded:
		var payload events.FriendAddedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
