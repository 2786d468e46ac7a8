package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an attendee in the system
type User struct {
	ID           uuid.UUID   `json:"id"`
	AttendeeCode string      `json:"attendee_code"`
	Name         string      `json:"name"`
	Socials      []string    `json:"socials"`
	Karma        int         `json:"karma"`
	Phone        *string     `json:"phone,omitempty"`
	Friends      []uuid.UUID `json:"friends"`
	Quests       []string    `json:"quests"`
	Photos       []string    `json:"photos"`
	CreatedAt    time.Time   `json:"created_at"`
}
