package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/karmahq/questline/go/internal/events"
)

// OutboxRepository defines what the app layer needs from the repository
type OutboxRepository interface {
	InsertEvent(ctx context.Context, tx pgx.Tx, userID uuid.UUID, eventType string, payload []byte) error
}

// App handles outbox business logic
type App struct {
	repo OutboxRepository
}

// NewApp creates a new outbox App
func NewApp(repo OutboxRepository) *App {
	return &App{
		repo: repo,
	}
}

// InsertQuestAssignedEvent inserts a QuestAssigned event into the outbox
func (a *App) InsertQuestAssignedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return a.insert(ctx, userID, events.EventTypeQuestAssigned, payload)
}

// InsertQuestCompletedEvent inserts a QuestCompleted event into the outbox
func (a *App) InsertQuestCompletedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return a.insert(ctx, userID, events.EventTypeQuestComplete, payload)
}

// InsertQuestExpiredEvent inserts a QuestExpired event into the outbox
func (a *App) InsertQuestExpiredEvent(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return a.insert(ctx, userID, events.EventTypeQuestExpired, payload)
}

// InsertKarmaAwardedEvent inserts a KarmaAwarded event into the outbox
func (a *App) InsertKarmaAwardedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return a.insert(ctx, userID, events.EventTypeKarmaAwarded, payload)
}

// InsertPhotoUploadedEvent inserts a PhotoUploaded event into the outbox
func (a *App) InsertPhotoUploadedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return a.insert(ctx, userID, events.EventTypePhotoUploaded, payload)
}

// InsertFriendAddedEvent inserts a FriendAdded event into the outbox
func (a *App) InsertFriendAddedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return a.insert(ctx, userID, events.EventTypeFriendAdded, payload)
}

func (a *App) insert(ctx context.Context, userID uuid.UUID, eventType string, payload []byte) error {
	if err := a.validateEventPayload(payload); err != nil {
		return fmt.Errorf("invalid %s payload: %w", eventType, err)
	}

	if err := a.repo.InsertEvent(ctx, nil, userID, eventType, payload); err != nil {
		return fmt.Errorf("failed to insert %s event: %w", eventType, err)
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("event_type", eventType).
		Msg("outbox event inserted")
	return nil
}

func (a *App) validateEventPayload(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("payload is empty")
	}
	if !json.Valid(payload) {
		return fmt.Errorf("payload is not valid JSON")
	}
	return nil
}
