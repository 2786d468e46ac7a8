package events

import "time"

// Event types published on the karma.quest.* subjects.
const (
	EventTypeQuestAssigned = "QuestAssigned"
	EventTypeQuestComplete = "QuestCompleted"
	EventTypeQuestExpired  = "QuestExpired"
	EventTypeKarmaAwarded  = "KarmaAwarded"
	EventTypePhotoUploaded = "PhotoUploaded"
	EventTypeFriendAdded   = "FriendAdded"
)

// Event payload types shared between the domain apps and the gateway.

// QuestAssignedPayload is the payload for a QuestAssigned event
type QuestAssignedPayload struct {
	QuestIDStr     string     `json:"quest_id_str"`
	UserToID       string     `json:"user_to_id"`
	UserFromID     *string    `json:"user_from_id,omitempty"`
	TargetCategory string     `json:"target_category"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	AssignedAt     time.Time  `json:"assigned_at"`
}

// QuestCompletedPayload is the payload for a QuestCompleted event
type QuestCompletedPayload struct {
	QuestIDStr         string    `json:"quest_id_str"`
	UserID             string    `json:"user_id"`
	TargetCategory     string    `json:"target_category"`
	CompletionImageURI string    `json:"completion_image_uri"`
	PointsAwarded      int       `json:"points_awarded"`
	CompletedAt        time.Time `json:"completed_at"`
}

// QuestExpiredPayload is the payload for a QuestExpired event
type QuestExpiredPayload struct {
	QuestIDStr     string    `json:"quest_id_str"`
	UserID         string    `json:"user_id"`
	TargetCategory string    `json:"target_category"`
	ExpiredAt      time.Time `json:"expired_at"`
}

// KarmaAwardedPayload is the payload for a KarmaAwarded event
type KarmaAwardedPayload struct {
	UserID     string    `json:"user_id"`
	Points     int       `json:"points"`
	TotalKarma int       `json:"total_karma"`
	Category   string    `json:"category"`
	AwardedAt  time.Time `json:"awarded_at"`
}

// PhotoUploadedPayload is the payload for a PhotoUploaded event
type PhotoUploadedPayload struct {
	UserID     string    `json:"user_id"`
	QuestIDStr string    `json:"quest_id_str"`
	ImageURI   string    `json:"image_uri"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// FriendAddedPayload is the payload for a FriendAdded event
type FriendAddedPayload struct {
	UserID   string    `json:"user_id"`
	FriendID string    `json:"friend_id"`
	AddedAt  time.Time `json:"added_at"`
}
