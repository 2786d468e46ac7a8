package scoring

import (
	"time"

	"github.com/google/uuid"
)

// CachedActivity is a previously scored activity with its embedding vector.
type CachedActivity struct {
	ID              uuid.UUID
	Embedding       []float64
	KarmaPoints     int
	DescriptionText string
	Description     string
	Category        string
	CreatedAt       time.Time
}

// CacheActivityRequest stores a freshly scored activity.
type CacheActivityRequest struct {
	Embedding       []float64
	KarmaPoints     int
	DescriptionText string
	Description     string
	Category        string
}
