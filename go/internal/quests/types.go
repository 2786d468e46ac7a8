package quests

import (
	"time"

	"github.com/google/uuid"
)

// CreateQuestRequest represents the data needed to create a new quest
type CreateQuestRequest struct {
	UserToID            uuid.UUID  `json:"user_to_id"`
	TargetCategory      string     `json:"target_category"`
	ExpiresAt           *time.Time `json:"expiry_time,omitempty"`
	UserFromID          *uuid.UUID `json:"user_from_id,omitempty"`
	NominatedByImageURI *string    `json:"nominated_by_image_uri,omitempty"`
}
