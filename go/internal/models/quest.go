package models

import (
	"time"

	"github.com/google/uuid"
)

// QuestStatus defines the lifecycle state of a quest.
type QuestStatus string

const (
	QuestStatusPending   QuestStatus = "pending"
	QuestStatusCompleted QuestStatus = "completed"
	QuestStatusExpired   QuestStatus = "expired"
)

// Quest represents a time-bounded photo task assigned to a user,
// optionally nominated by a friend's completed deed.
type Quest struct {
	ID                  uuid.UUID   `json:"id"`
	QuestIDStr          string      `json:"quest_id_str"`
	UserToID            uuid.UUID   `json:"user_to_id"`
	UserFromID          *uuid.UUID  `json:"user_from_id,omitempty"`
	NominatedByImageURI *string     `json:"nominated_by_image_uri,omitempty"`
	TargetCategory      string      `json:"target_category"`
	Status              QuestStatus `json:"status"`
	CompletionImageURI  *string     `json:"completion_image_uri,omitempty"`
	PointsAwarded       *int        `json:"points_awarded,omitempty"`
	CreatedAt           time.Time   `json:"creation_time"`
	ExpiresAt           *time.Time  `json:"expiry_time,omitempty"`
	CompletedAt         *time.Time  `json:"completion_time,omitempty"`
}

// IsExpired reports whether the quest's deadline has passed at the given time.
// Quests without an expiry never expire.
func (q *Quest) IsExpired(now time.Time) bool {
	return q.ExpiresAt != nil && now.After(*q.ExpiresAt)
}
