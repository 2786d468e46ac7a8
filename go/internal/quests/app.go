package quests

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/karmahq/questline/go/internal/models"
)

// QuestsRepository defines what the app layer needs from the repository
type QuestsRepository interface {
	CreateQuest(ctx context.Context, req CreateQuestRequest) (*models.Quest, error)
	GetQuestByIDStr(ctx context.Context, questIDStr string) (*models.Quest, error)
	ListPendingForUser(ctx context.Context, userID uuid.UUID) ([]*models.Quest, error)
	ListPendingWithDeadline(ctx context.Context) ([]*models.Quest, error)
	MarkCompleted(ctx context.Context, questIDStr, completionImageURI string, points int, completedAt time.Time) (*models.Quest, error)
	MarkExpired(ctx context.Context, questIDStr string) (*models.Quest, error)
}

// UsersApp defines what the quest lifecycle needs from the users app
type UsersApp interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	AssignQuest(ctx context.Context, id uuid.UUID, questIDStr string) error
	UnassignQuest(ctx context.Context, id uuid.UUID, questIDStr string) error
}

// CompletionResult describes the outcome of completing a quest: the closed
// quest (nil when it had already expired) and the follow-up quest handed to
// a friend or back to the completing user.
type CompletionResult struct {
	Completed  *models.Quest
	Next       *models.Quest
	WasExpired bool
}

// ExpiryResult describes an expired quest and its regenerated replacement.
type ExpiryResult struct {
	Expired *models.Quest
	Next    *models.Quest
}

// App handles quest lifecycle business logic
type App struct {
	repo       QuestsRepository
	users      UsersApp
	categories *CategorySource
	clock      clockwork.Clock
	pick       func(n int) int
}

// NewApp creates a new quests App
func NewApp(repo QuestsRepository, users UsersApp, categories *CategorySource) *App {
	return &App{
		repo:       repo,
		users:      users,
		categories: categories,
		clock:      clockwork.NewRealClock(),
		pick:       rand.IntN,
	}
}

// WithClock substitutes the clock, for tests.
func (a *App) WithClock(clock clockwork.Clock) *App {
	a.clock = clock
	return a
}

// WithPicker substitutes the random index picker, for tests.
func (a *App) WithPicker(pick func(n int) int) *App {
	a.pick = pick
	return a
}

// ListPending returns the user's open quests.
func (a *App) ListPending(ctx context.Context, userID uuid.UUID) ([]*models.Quest, error) {
	quests, err := a.repo.ListPendingForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending quests: %w", err)
	}
	return quests, nil
}

// ListPendingWithDeadline returns all pending quests carrying an expiry.
func (a *App) ListPendingWithDeadline(ctx context.Context) ([]*models.Quest, error) {
	return a.repo.ListPendingWithDeadline(ctx)
}

// GetQuest retrieves a quest by its public identifier.
func (a *App) GetQuest(ctx context.Context, questIDStr string) (*models.Quest, error) {
	return a.repo.GetQuestByIDStr(ctx, questIDStr)
}

// GenerateSystemQuest assigns a fresh system quest with a random category
// and the configured lifetime to the user.
func (a *App) GenerateSystemQuest(ctx context.Context, userID uuid.UUID) (*models.Quest, error) {
	categories := a.categories.Categories()
	category := categories[a.pick(len(categories))]
	expiry := a.clock.Now().UTC().Add(a.categories.QuestDuration())

	quest, err := a.repo.CreateQuest(ctx, CreateQuestRequest{
		UserToID:       userID,
		TargetCategory: category,
		ExpiresAt:      &expiry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create system quest: %w", err)
	}
	if err := a.users.AssignQuest(ctx, userID, quest.QuestIDStr); err != nil {
		return nil, err
	}

	log.Info().
		Str("quest_id", quest.QuestIDStr).
		Str("user_id", userID.String()).
		Str("category", category).
		Msg("generated system quest")
	return quest, nil
}

// CompleteAndNominate closes a quest with the uploaded completion image and
// hands a follow-up quest to a random eligible friend, carrying the image
// as the nomination. A friendless user gets a fresh system quest instead.
// Completing an already-expired quest expires it and regenerates a system
// quest for the same user.
func (a *App) CompleteAndNominate(ctx context.Context, questIDStr, completionImageURI string, points int) (*CompletionResult, error) {
	quest, err := a.repo.GetQuestByIDStr(ctx, questIDStr)
	if err != nil {
		return nil, err
	}

	now := a.clock.Now().UTC()
	if quest.IsExpired(now) {
		result, err := a.expireQuest(ctx, quest)
		if err != nil {
			return nil, err
		}
		return &CompletionResult{Next: result.Next, WasExpired: true}, nil
	}

	completed, err := a.repo.MarkCompleted(ctx, questIDStr, completionImageURI, points, now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("quest %s is not pending", questIDStr)
		}
		return nil, err
	}
	if err := a.users.UnassignQuest(ctx, completed.UserToID, questIDStr); err != nil {
		return nil, err
	}

	next, err := a.nominateNext(ctx, completed, completionImageURI)
	if err != nil {
		return nil, err
	}
	return &CompletionResult{Completed: completed, Next: next}, nil
}

func (a *App) nominateNext(ctx context.Context, completed *models.Quest, imageURI string) (*models.Quest, error) {
	user, err := a.users.GetUser(ctx, completed.UserToID)
	if err != nil {
		return nil, err
	}

	var eligible []uuid.UUID
	for _, friendID := range user.Friends {
		if friendID != completed.UserToID {
			eligible = append(eligible, friendID)
		}
	}
	if len(eligible) == 0 {
		return a.GenerateSystemQuest(ctx, completed.UserToID)
	}

	friendID := eligible[a.pick(len(eligible))]
	categories := a.categories.Categories()
	category := categories[a.pick(len(categories))]
	expiry := a.clock.Now().UTC().Add(a.categories.QuestDuration())
	fromID := completed.UserToID

	next, err := a.repo.CreateQuest(ctx, CreateQuestRequest{
		UserToID:            friendID,
		TargetCategory:      category,
		ExpiresAt:           &expiry,
		UserFromID:          &fromID,
		NominatedByImageURI: &imageURI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create nominated quest: %w", err)
	}
	if err := a.users.AssignQuest(ctx, friendID, next.QuestIDStr); err != nil {
		return nil, err
	}

	log.Info().
		Str("quest_id", next.QuestIDStr).
		Str("from", fromID.String()).
		Str("to", friendID.String()).
		Msg("nominated quest to friend")
	return next, nil
}

// HandleExpiry expires a pending quest whose deadline has passed and
// regenerates a system quest for the same user. Quests that are no longer
// pending, or not actually past their deadline, are left alone.
func (a *App) HandleExpiry(ctx context.Context, questIDStr string) (*ExpiryResult, error) {
	quest, err := a.repo.GetQuestByIDStr(ctx, questIDStr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if quest.Status != models.QuestStatusPending || !quest.IsExpired(a.clock.Now().UTC()) {
		return nil, nil
	}
	return a.expireQuest(ctx, quest)
}

func (a *App) expireQuest(ctx context.Context, quest *models.Quest) (*ExpiryResult, error) {
	expired, err := a.repo.MarkExpired(ctx, quest.QuestIDStr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Lost the race to another handler.
			return nil, nil
		}
		return nil, err
	}
	if err := a.users.UnassignQuest(ctx, expired.UserToID, expired.QuestIDStr); err != nil {
		return nil, err
	}

	next, err := a.GenerateSystemQuest(ctx, expired.UserToID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("quest_id", expired.QuestIDStr).
		Str("next_quest_id", next.QuestIDStr).
		Msg("expired quest regenerated")
	return &ExpiryResult{Expired: expired, Next: next}, nil
}
