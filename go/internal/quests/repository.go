package quests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karmahq/questline/go/internal/models"
)

// ErrNotFound is returned when no quest matches the lookup.
var ErrNotFound = errors.New("quest not found")

// Repository implements quest data access operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new quests repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

const questColumns = `id, quest_id_str, user_to_id, user_from_id, nominated_by_image_uri,
	target_category, status, completion_image_uri, points_awarded, creation_time, expiry_time, completion_time`

func scanQuest(row pgx.Row) (*models.Quest, error) {
	var q models.Quest
	err := row.Scan(&q.ID, &q.QuestIDStr, &q.UserToID, &q.UserFromID, &q.NominatedByImageURI,
		&q.TargetCategory, &q.Status, &q.CompletionImageURI, &q.PointsAwarded,
		&q.CreatedAt, &q.ExpiresAt, &q.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// CreateQuest inserts a pending quest.
func (r *Repository) CreateQuest(ctx context.Context, req CreateQuestRequest) (*models.Quest, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO quests (id, quest_id_str, user_to_id, user_from_id, nominated_by_image_uri,
			target_category, status, creation_time, expiry_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), $8)
		RETURNING `+questColumns,
		uuid.New(), uuid.New().String(), req.UserToID, req.UserFromID, req.NominatedByImageURI,
		req.TargetCategory, models.QuestStatusPending, req.ExpiresAt)

	quest, err := scanQuest(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create quest: %w", err)
	}
	return quest, nil
}

// GetQuestByIDStr retrieves a quest by its public string identifier.
func (r *Repository) GetQuestByIDStr(ctx context.Context, questIDStr string) (*models.Quest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+questColumns+` FROM quests WHERE quest_id_str = $1`, questIDStr)
	quest, err := scanQuest(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}
	return quest, nil
}

// ListPendingForUser returns the user's open quests.
func (r *Repository) ListPendingForUser(ctx context.Context, userID uuid.UUID) ([]*models.Quest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+questColumns+` FROM quests
		WHERE user_to_id = $1 AND status = $2
		ORDER BY creation_time`,
		userID, models.QuestStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list quests: %w", err)
	}
	defer rows.Close()

	var quests []*models.Quest
	for rows.Next() {
		quest, err := scanQuest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quest: %w", err)
		}
		quests = append(quests, quest)
	}
	return quests, rows.Err()
}

// ListPendingWithDeadline returns every pending quest that has an expiry,
// for timer rescheduling at startup.
func (r *Repository) ListPendingWithDeadline(ctx context.Context) ([]*models.Quest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+questColumns+` FROM quests
		WHERE status = $1 AND expiry_time IS NOT NULL`,
		models.QuestStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending quests: %w", err)
	}
	defer rows.Close()

	var quests []*models.Quest
	for rows.Next() {
		quest, err := scanQuest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quest: %w", err)
		}
		quests = append(quests, quest)
	}
	return quests, rows.Err()
}

// MarkCompleted transitions a pending quest to completed. Returns
// ErrNotFound if the quest is missing or no longer pending.
func (r *Repository) MarkCompleted(ctx context.Context, questIDStr, completionImageURI string, points int, completedAt time.Time) (*models.Quest, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE quests
		SET status = $2, completion_image_uri = $3, points_awarded = $4, completion_time = $5
		WHERE quest_id_str = $1 AND status = $6
		RETURNING `+questColumns,
		questIDStr, models.QuestStatusCompleted, completionImageURI, points, completedAt, models.QuestStatusPending)

	quest, err := scanQuest(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to mark quest completed: %w", err)
	}
	return quest, nil
}

// MarkExpired transitions a pending quest to expired. Returns ErrNotFound
// if the quest is missing or no longer pending, which callers treat as
// already handled.
func (r *Repository) MarkExpired(ctx context.Context, questIDStr string) (*models.Quest, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE quests
		SET status = $2, completion_time = now()
		WHERE quest_id_str = $1 AND status = $3
		RETURNING `+questColumns,
		questIDStr, models.QuestStatusExpired, models.QuestStatusPending)

	quest, err := scanQuest(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to mark quest expired: %w", err)
	}
	return quest, nil
}
