package models

import (
	"time"

	"github.com/google/uuid"
)

// Photo records an uploaded quest-completion image and where its blob lives.
type Photo struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	QuestIDStr   string    `json:"quest_id_str"`
	URI          string    `json:"uri"`
	ThumbnailURI *string   `json:"thumbnail_uri,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
